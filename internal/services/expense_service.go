package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
	"splitledger/internal/split"
)

// sumEpsilon is the tolerance used when checking that policy parameters
// reconcile (percentages to 100, direct amounts to the expense total), so
// decimal representation noise in client input does not cause spurious
// rejections.
var sumEpsilon = decimal.NewFromFloat(0.01)

// expenseService records expenses, creates their splits and feeds the
// resulting obligations into the ledger as one atomic unit.
type expenseService struct {
	db           *gorm.DB
	ledger       LedgerServicer
	groupService GroupServicer
}

// NewExpenseService creates a new ExpenseServicer.
func NewExpenseService(db *gorm.DB, ledger LedgerServicer, groupService GroupServicer) ExpenseServicer {
	return &expenseService{
		db:           db,
		ledger:       ledger,
		groupService: groupService,
	}
}

// RecordExpense validates the split request, then creates the expense, one
// split per participant and every ledger update inside a single transaction.
// Validation failures surface before any write happens.
func (s *expenseService) RecordExpense(in ExpenseInput) (*models.Expense, error) {
	if err := s.validateExpense(&in); err != nil {
		return nil, err
	}

	var result *models.Expense
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.recordExpenseTx(tx, in)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordExpenseTx is RecordExpense running inside an externally managed
// transaction, so callers like the recurring scheduler can make the expense
// and their own bookkeeping atomic together.
func (s *expenseService) RecordExpenseTx(tx *gorm.DB, in ExpenseInput) (*models.Expense, error) {
	if err := s.validateExpense(&in); err != nil {
		return nil, err
	}
	return s.recordExpenseTx(tx, in)
}

// validateExpense checks everything that can be checked before writing:
// amount positivity, participants, group membership and the per-policy sum
// constraints. It also normalizes the input (payer auto-added to
// participants).
func (s *expenseService) validateExpense(in *ExpenseInput) error {
	if in.Title == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
	}
	if !in.Amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if len(in.ParticipantIDs) == 0 {
		return apperrors.ErrEmptyParticipants
	}

	in.ParticipantIDs = ensurePayer(in.ParticipantIDs, in.PaidByID)

	if in.GroupID != nil {
		for _, id := range in.ParticipantIDs {
			member, err := s.groupService.IsMember(*in.GroupID, id)
			if err != nil {
				return err
			}
			if !member {
				return apperrors.ErrNotGroupMember
			}
		}
	}

	if in.ParentExpenseID != nil {
		var parent models.ParentExpense
		if err := s.db.First(&parent, *in.ParentExpenseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrParentExpenseNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	switch in.SplitPolicy {
	case models.SplitPolicyPercentage:
		total := decimal.Zero
		for _, id := range in.ParticipantIDs {
			total = total.Add(in.Percentages[id])
		}
		if total.Sub(decimal.NewFromInt(100)).Abs().GreaterThan(sumEpsilon) {
			return apperrors.ErrPercentageSum
		}
	case models.SplitPolicyDirect:
		total := decimal.Zero
		for _, id := range in.ParticipantIDs {
			if id == in.PaidByID {
				continue
			}
			total = total.Add(in.Amounts[id])
		}
		if total.Sub(in.Amount).Abs().GreaterThan(sumEpsilon) {
			return apperrors.ErrDirectAmountSum
		}
	case models.SplitPolicyEqual, models.SplitPolicyParentChild:
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown split policy")
	}
	return nil
}

// recordExpenseTx performs the writes with a given database connection
// (useful for transactions); validation must already have happened.
func (s *expenseService) recordExpenseTx(tx *gorm.DB, in ExpenseInput) (*models.Expense, error) {
	shares, err := split.Calculate(in.SplitPolicy, in.Amount, in.PaidByID, in.ParticipantIDs, split.Params{
		Percentages: in.Percentages,
		Amounts:     in.Amounts,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	expense := &models.Expense{
		Title:              in.Title,
		Amount:             in.Amount,
		PaidByID:           in.PaidByID,
		GroupID:            in.GroupID,
		ParentExpenseID:    in.ParentExpenseID,
		RecurringExpenseID: in.RecurringExpenseID,
		SplitPolicy:        in.SplitPolicy,
	}
	if err := tx.Create(expense).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, userID := range in.ParticipantIDs {
		owed := shares[userID]
		sp := models.Split{
			ExpenseID:  expense.ID,
			UserID:     userID,
			AmountOwed: owed,
		}
		if in.SplitPolicy == models.SplitPolicyPercentage && userID != in.PaidByID {
			pct := in.Percentages[userID]
			sp.Percentage = &pct
		}
		if err := tx.Create(&sp).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		expense.Splits = append(expense.Splits, sp)
	}

	expenseID := expense.ID
	for _, userID := range in.ParticipantIDs {
		if userID == in.PaidByID {
			continue
		}
		owed := shares[userID]
		if !owed.IsPositive() {
			continue
		}
		if err := s.ledger.ApplyObligation(tx, in.PaidByID, userID, owed, in.GroupID, &expenseID); err != nil {
			return nil, err
		}
	}
	return expense, nil
}

// ensurePayer returns participantIDs with the payer appended if absent and
// duplicates removed, preserving order.
func ensurePayer(participantIDs []uint, payerID uint) []uint {
	seen := make(map[uint]bool, len(participantIDs)+1)
	out := make([]uint, 0, len(participantIDs)+1)
	for _, id := range participantIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if !seen[payerID] {
		out = append(out, payerID)
	}
	return out
}

// GetExpenseByID retrieves an expense with its splits. The requesting user
// must be a participant, the payer, or a member of the expense's group.
func (s *expenseService) GetExpenseByID(userID, expenseID uint) (*models.Expense, error) {
	var expense models.Expense
	if err := s.db.Preload("Splits").First(&expense, expenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if expense.PaidByID != userID && !hasParticipant(expense.Splits, userID) {
		if expense.GroupID == nil {
			return nil, apperrors.ErrForbidden
		}
		member, err := s.groupService.IsMember(*expense.GroupID, userID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, apperrors.ErrForbidden
		}
	}
	return &expense, nil
}

func hasParticipant(splits []models.Split, userID uint) bool {
	for _, s := range splits {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// GetGroupExpenses retrieves a paginated, filtered list of a group's
// expenses, newest first.
func (s *expenseService) GetGroupExpenses(userID, groupID uint, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error) {
	member, err := s.groupService.IsMember(groupID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.ErrNotGroupMember
	}

	page.Defaults()

	base := s.db.Model(&models.Expense{}).Where("group_id = ?", groupID)
	base = applyExpenseFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expenses []models.Expense
	err = base.Scopes(pagination.Paginate(page)).
		Preload("Splits").
		Order("created_at DESC, id DESC").
		Find(&expenses).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(expenses, page.Page, page.PageSize, totalItems)
	return &resp, nil
}

// applyExpenseFilters adds WHERE clauses for each filter field that is set.
func applyExpenseFilters(q *gorm.DB, filter ExpenseFilter) *gorm.DB {
	if filter.PaidByID != nil {
		q = q.Where("paid_by_id = ?", *filter.PaidByID)
	}
	if filter.MinAmount != nil {
		q = q.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		q = q.Where("amount <= ?", *filter.MaxAmount)
	}
	if filter.FromDate != nil {
		q = q.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		q = q.Where("created_at <= ?", *filter.ToDate)
	}
	return q
}

// CreateParentExpense creates an umbrella for child expenses. The total is
// never stored; it is derived from the children on read.
func (s *expenseService) CreateParentExpense(createdByID, groupID uint, title, description string) (*models.ParentExpense, error) {
	if title == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
	}

	member, err := s.groupService.IsMember(groupID, createdByID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.ErrNotGroupMember
	}

	parent := &models.ParentExpense{
		Title:       title,
		Description: description,
		GroupID:     groupID,
		CreatedByID: createdByID,
	}
	if err := s.db.Create(parent).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return parent, nil
}

// GetParentExpense retrieves a parent expense with its children and the
// derived total amount.
func (s *expenseService) GetParentExpense(userID, parentID uint) (*models.ParentExpense, decimal.Decimal, error) {
	var parent models.ParentExpense
	if err := s.db.Preload("ChildExpenses").Preload("ChildExpenses.Splits").First(&parent, parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, decimal.Zero, apperrors.ErrParentExpenseNotFound
		}
		return nil, decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	member, err := s.groupService.IsMember(parent.GroupID, userID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !member {
		return nil, decimal.Zero, apperrors.ErrNotGroupMember
	}

	total := decimal.Zero
	for _, child := range parent.ChildExpenses {
		total = total.Add(child.Amount)
	}
	return &parent, total, nil
}
