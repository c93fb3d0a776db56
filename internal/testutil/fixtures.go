package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"splitledger/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestGroup creates a group with the given users as members. The first
// member becomes the admin.
func CreateTestGroup(t *testing.T, db *gorm.DB, members ...*models.User) *models.Group {
	t.Helper()

	group := &models.Group{
		Name: fmt.Sprintf("Test Group %d", nextID()),
	}
	if len(members) > 0 {
		group.AdminID = &members[0].ID
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test group: %v", err)
	}
	for _, m := range members {
		if err := db.Model(group).Association("Members").Append(m); err != nil {
			t.Fatalf("failed to add group member: %v", err)
		}
	}
	return group
}

// CreateTestExpense creates an equal-split expense paid by the given user,
// without splits or ledger entries. Use the expense service when those matter.
func CreateTestExpense(t *testing.T, db *gorm.DB, payerID uint, groupID *uint, amount string) *models.Expense {
	t.Helper()

	expense := &models.Expense{
		Title:       fmt.Sprintf("Test Expense %d", nextID()),
		Amount:      MustDecimal(t, amount),
		PaidByID:    payerID,
		GroupID:     groupID,
		SplitPolicy: models.SplitPolicyEqual,
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}

// CreateTestDebt creates an unsettled debt row directly, bypassing the ledger.
func CreateTestDebt(t *testing.T, db *gorm.DB, creditorID, debtorID uint, groupID *uint, amount string) *models.Debt {
	t.Helper()

	debt := &models.Debt{
		CreditorID: creditorID,
		DebtorID:   debtorID,
		Amount:     MustDecimal(t, amount),
		GroupID:    groupID,
	}
	if err := db.Create(debt).Error; err != nil {
		t.Fatalf("failed to create test debt: %v", err)
	}
	return debt
}

// CreateTestRecurringExpense creates an equal-split recurring template due on
// the given date with the given participants.
func CreateTestRecurringExpense(t *testing.T, db *gorm.DB, payerID uint, groupID *uint, amount string, due time.Time, participants ...*models.User) *models.RecurringExpense {
	t.Helper()

	rec := &models.RecurringExpense{
		Title:       fmt.Sprintf("Test Recurring %d", nextID()),
		Amount:      MustDecimal(t, amount),
		PaidByID:    payerID,
		GroupID:     groupID,
		Frequency:   models.FrequencyMonthly,
		SplitPolicy: models.SplitPolicyEqual,
		NextDueDate: due,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("failed to create test recurring expense: %v", err)
	}
	for _, p := range participants {
		if err := db.Model(rec).Association("Participants").Append(p); err != nil {
			t.Fatalf("failed to add recurring participant: %v", err)
		}
	}
	return rec
}

// MustDecimal parses a decimal string or fails the test.
func MustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

// AssertDecimalEqual fails the test unless got equals want (decimal compare,
// so 30 and 30.00 are equal).
func AssertDecimalEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()

	w := MustDecimal(t, want)
	if !got.Equal(w) {
		t.Errorf("expected %s, got %s", w, got)
	}
}
