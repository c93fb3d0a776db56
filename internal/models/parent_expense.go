package models

// ParentExpense groups several child expenses under one umbrella, for complex
// expenses that need to be broken down into smaller parts. Its total is always
// derived from the child expenses and never stored.
type ParentExpense struct {
	Base
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	GroupID     uint   `gorm:"not null;index" json:"group_id"`
	CreatedByID uint   `gorm:"not null" json:"created_by_id"`

	// Relationships
	Group         Group     `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	CreatedBy     User      `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	ChildExpenses []Expense `gorm:"foreignKey:ParentExpenseID" json:"child_expenses,omitempty"`
}
