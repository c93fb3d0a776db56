package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency represents how often a recurring expense fires
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// Display returns the human-readable form of the frequency, used when
// annotating generated expense titles.
func (f Frequency) Display() string {
	switch f {
	case FrequencyDaily:
		return "Daily"
	case FrequencyWeekly:
		return "Weekly"
	case FrequencyMonthly:
		return "Monthly"
	}
	return string(f)
}

// RecurringExpense is a template that generates a new expense each time it
// comes due. SplitDetails holds the serialized per-participant parameters
// (percentages or direct amounts keyed by user ID) for non-equal policies.
type RecurringExpense struct {
	Base
	Title        string          `gorm:"not null" json:"title"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaidByID     uint            `gorm:"not null;index" json:"paid_by_id"`
	GroupID      *uint           `gorm:"index" json:"group_id,omitempty"`
	Frequency    Frequency       `gorm:"not null;index" json:"frequency"`
	SplitPolicy  SplitPolicy     `gorm:"not null;default:'EQUAL'" json:"split_policy"`
	SplitDetails string          `gorm:"type:text" json:"split_details,omitempty"`
	NextDueDate  time.Time       `gorm:"not null;index" json:"next_due_date"`

	// Relationships
	PaidBy       User   `gorm:"foreignKey:PaidByID" json:"paid_by,omitempty"`
	Group        *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Participants []User `gorm:"many2many:recurring_expense_participants" json:"participants,omitempty"`
}
