package models

import "github.com/shopspring/decimal"

// SplitPolicy determines how an expense is divided among its participants
type SplitPolicy string

const (
	SplitPolicyEqual       SplitPolicy = "EQUAL"
	SplitPolicyPercentage  SplitPolicy = "PERCENTAGE"
	SplitPolicyDirect      SplitPolicy = "DIRECT"
	SplitPolicyParentChild SplitPolicy = "PARENT_CHILD"
)

// Expense represents a shared expense paid by one user and split among participants.
// An expense is immutable once recorded; corrective workflows create new records.
type Expense struct {
	Base
	Title              string          `gorm:"not null" json:"title"`
	Amount             decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaidByID           uint            `gorm:"not null;index" json:"paid_by_id"`
	GroupID            *uint           `gorm:"index" json:"group_id,omitempty"`
	ParentExpenseID    *uint           `gorm:"index" json:"parent_expense_id,omitempty"`
	RecurringExpenseID *uint           `json:"recurring_expense_id,omitempty"`
	SplitPolicy        SplitPolicy     `gorm:"not null;default:'EQUAL'" json:"split_policy"`

	// Relationships
	PaidBy        User           `gorm:"foreignKey:PaidByID" json:"paid_by,omitempty"`
	Group         *Group         `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	ParentExpense *ParentExpense `gorm:"foreignKey:ParentExpenseID" json:"parent_expense,omitempty"`
	Splits        []Split        `gorm:"foreignKey:ExpenseID" json:"splits,omitempty"`
}
