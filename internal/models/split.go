package models

import "github.com/shopspring/decimal"

// Split records one participant's share of an expense. Created once alongside
// the expense and never mutated afterwards.
type Split struct {
	Base
	ExpenseID  uint             `gorm:"not null;uniqueIndex:idx_splits_expense_user" json:"expense_id"`
	UserID     uint             `gorm:"not null;uniqueIndex:idx_splits_expense_user" json:"user_id"`
	AmountOwed decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"amount_owed"`
	Percentage *decimal.Decimal `gorm:"type:decimal(5,2)" json:"percentage,omitempty"`

	// Relationships
	Expense Expense `gorm:"foreignKey:ExpenseID" json:"expense,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
