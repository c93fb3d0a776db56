package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Debt is the ledger's net balance between two users, optionally scoped to a
// group. At most one unsettled row may exist per (creditor, debtor, group) and
// the reverse pair must not exist unsettled at the same time; the ledger
// service nets opposing balances into a single direction on every update.
// A debt that nets to exactly zero is deleted rather than stored as zero.
type Debt struct {
	Base
	CreditorID uint            `gorm:"not null;index" json:"creditor_id"`
	DebtorID   uint            `gorm:"not null;index" json:"debtor_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	GroupID    *uint           `gorm:"index" json:"group_id,omitempty"`
	ExpenseID  *uint           `json:"expense_id,omitempty"`
	IsSettled  bool            `gorm:"not null;default:false;index" json:"is_settled"`
	SettledAt  *time.Time      `json:"settled_at,omitempty"`

	// Relationships
	Creditor User     `gorm:"foreignKey:CreditorID" json:"creditor,omitempty"`
	Debtor   User     `gorm:"foreignKey:DebtorID" json:"debtor,omitempty"`
	Group    *Group   `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Expense  *Expense `gorm:"foreignKey:ExpenseID" json:"expense,omitempty"`
}
