package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"splitledger/internal/models"
	"splitledger/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
}

// GroupServicer defines the contract for group-related business logic.
type GroupServicer interface {
	CreateGroup(adminID uint, name, description string, memberIDs []uint) (*models.Group, error)
	GetUserGroups(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Group], error)
	GetGroupByID(userID, groupID uint) (*models.Group, error)
	AddMember(actorID, groupID, userID uint) (*models.Group, error)
	IsMember(groupID, userID uint) (bool, error)
}

// ExpenseInput carries everything needed to record one expense. Percentages
// and Amounts are the per-participant policy parameters, consulted only for
// the PERCENTAGE and DIRECT policies respectively.
type ExpenseInput struct {
	Title           string
	Amount          decimal.Decimal
	PaidByID        uint
	GroupID         *uint
	ParentExpenseID *uint
	SplitPolicy     models.SplitPolicy
	ParticipantIDs  []uint
	Percentages     map[uint]decimal.Decimal
	Amounts         map[uint]decimal.Decimal

	// Set by the recurring scheduler when it fires a template.
	RecurringExpenseID *uint
}

// ExpenseFilter holds optional filter parameters for listing group expenses.
type ExpenseFilter struct {
	PaidByID  *uint
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	FromDate  *time.Time
	ToDate    *time.Time
}

// ExpenseServicer defines the contract for recording and reading expenses.
type ExpenseServicer interface {
	RecordExpense(in ExpenseInput) (*models.Expense, error)
	RecordExpenseTx(tx *gorm.DB, in ExpenseInput) (*models.Expense, error)
	GetExpenseByID(userID, expenseID uint) (*models.Expense, error)
	GetGroupExpenses(userID, groupID uint, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error)
	CreateParentExpense(createdByID, groupID uint, title, description string) (*models.ParentExpense, error)
	GetParentExpense(userID, parentID uint) (*models.ParentExpense, decimal.Decimal, error)
}

// SettlementResult describes the outcome of applying a settlement payment
// against the ledger.
type SettlementResult struct {
	CreditorID    uint            `json:"creditor_id"`
	DebtorID      uint            `json:"debtor_id"`
	GroupID       *uint           `json:"group_id,omitempty"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
	SettledDebts  []models.Debt   `json:"settled_debts"`
	Remainder     *models.Debt    `json:"remainder,omitempty"`
}

// LedgerServicer defines the contract for the pairwise net-debt ledger.
// ApplyObligation runs inside the caller's transaction so expense recording
// stays atomic; Settle manages its own transaction.
type LedgerServicer interface {
	ApplyObligation(tx *gorm.DB, creditorID, debtorID uint, amount decimal.Decimal, groupID, expenseID *uint) error
	Settle(creditorID, debtorID uint, groupID *uint, amount decimal.Decimal) (*SettlementResult, error)
}

// Transfer is one step of a simplification plan: debtor pays creditor amount.
type Transfer struct {
	DebtorID   uint            `json:"debtor_id"`
	CreditorID uint            `json:"creditor_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// BalanceSummary aggregates a user's position across all unsettled debts.
type BalanceSummary struct {
	UserID     uint            `json:"user_id"`
	OwedToUser decimal.Decimal `json:"owed_to_user"`
	OwedByUser decimal.Decimal `json:"owed_by_user"`
	Net        decimal.Decimal `json:"net"`
}

// SettlementServicer defines the contract for balances, debt simplification
// and settlement recording.
type SettlementServicer interface {
	GroupBalances(userID, groupID uint) (map[uint]decimal.Decimal, error)
	Simplify(userID, groupID uint) ([]Transfer, error)
	RecordSettlement(actorID, creditorID, debtorID uint, groupID *uint, amount decimal.Decimal) (*SettlementResult, error)
	UserBalance(userID uint) (*BalanceSummary, error)
	SettledHistory(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Debt], error)
}

// RecurringInput carries everything needed to create a recurring template.
type RecurringInput struct {
	Title          string
	Amount         decimal.Decimal
	PaidByID       uint
	GroupID        *uint
	Frequency      models.Frequency
	SplitPolicy    models.SplitPolicy
	ParticipantIDs []uint
	Percentages    map[uint]decimal.Decimal
	Amounts        map[uint]decimal.Decimal
	NextDueDate    time.Time
}

// RunError records why one template failed during a batch run.
type RunError struct {
	TemplateID uint   `json:"template_id"`
	Reason     string `json:"reason"`
}

// RunReport summarizes one scheduler batch: every expense generated plus
// per-template failures. A failed template never aborts the rest of the run.
type RunReport struct {
	Generated []models.Expense `json:"generated"`
	Errors    []RunError       `json:"errors"`
}

// RecurringServicer defines the contract for recurring expense templates.
type RecurringServicer interface {
	CreateRecurring(in RecurringInput) (*models.RecurringExpense, error)
	GetUserRecurring(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.RecurringExpense], error)
	GenerateNow(userID, templateID uint) (*models.Expense, error)
	RunDue(today time.Time) (*RunReport, error)
}
