package models

// Group represents a set of users who share expenses together.
// Users can belong to multiple groups and groups can have multiple members.
type Group struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	AdminID     *uint  `json:"admin_id,omitempty"`

	// Relationships
	Admin    *User     `gorm:"foreignKey:AdminID" json:"admin,omitempty"`
	Members  []User    `gorm:"many2many:group_members" json:"members,omitempty"`
	Expenses []Expense `gorm:"foreignKey:GroupID" json:"expenses,omitempty"`
}
