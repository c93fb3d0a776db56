package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/logger"
	"splitledger/internal/models"
)

// ledgerService owns the pairwise net-debt ledger. Every mutation nets
// against any opposing balance so that at most one unsettled row exists per
// ordered (creditor, debtor, group) pair.
type ledgerService struct {
	db *gorm.DB

	// pairLocks serializes read-modify-write cycles per unordered
	// (user, user, group) key so two concurrent expense recordings touching
	// the same pair cannot lose an update.
	mu        sync.Mutex
	pairLocks map[string]*sync.Mutex
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB) LedgerServicer {
	return &ledgerService{
		db:        db,
		pairLocks: make(map[string]*sync.Mutex),
	}
}

// pairKey builds an order-independent key for a user pair within a group
// scope, so A→B and B→A contend on the same lock.
func pairKey(a, b uint, groupID *uint) string {
	if a > b {
		a, b = b, a
	}
	g := uint(0)
	if groupID != nil {
		g = *groupID
	}
	return fmt.Sprintf("%d:%d:%d", a, b, g)
}

func (s *ledgerService) lockPair(a, b uint, groupID *uint) func() {
	key := pairKey(a, b, groupID)

	s.mu.Lock()
	lock, ok := s.pairLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.pairLocks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// scopeGroup narrows a debt query to one group, or to ungrouped debts when
// groupID is nil.
func scopeGroup(q *gorm.DB, groupID *uint) *gorm.DB {
	if groupID == nil {
		return q.Where("group_id IS NULL")
	}
	return q.Where("group_id = ?", *groupID)
}

// findUnsettled loads the single unsettled debt row for an ordered pair, or
// gorm.ErrRecordNotFound.
func findUnsettled(tx *gorm.DB, creditorID, debtorID uint, groupID *uint) (*models.Debt, error) {
	var debt models.Debt
	q := tx.Where("creditor_id = ? AND debtor_id = ? AND is_settled = ?", creditorID, debtorID, false)
	q = scopeGroup(q, groupID)
	if err := q.First(&debt).Error; err != nil {
		return nil, err
	}
	return &debt, nil
}

// ApplyObligation records that debtor owes creditor amount, netting against
// any opposing unsettled balance for the same pair and group:
//   - reverse larger:  reduce the reverse row, keep its direction
//   - reverse equal:   delete the reverse row, nothing remains
//   - reverse smaller: delete the reverse row, create a forward row with the difference
//   - no reverse:      increment the forward row, or create it
//
// Runs inside the caller's transaction; the pair lock is held for the whole
// read-modify-write.
func (s *ledgerService) ApplyObligation(tx *gorm.DB, creditorID, debtorID uint, amount decimal.Decimal, groupID, expenseID *uint) error {
	if !amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "obligation amount must be greater than zero")
	}
	if creditorID == debtorID {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "creditor and debtor must differ")
	}

	unlock := s.lockPair(creditorID, debtorID, groupID)
	defer unlock()

	reverse, err := findUnsettled(tx, debtorID, creditorID, groupID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if reverse != nil {
		forward, ferr := findUnsettled(tx, creditorID, debtorID, groupID)
		if ferr != nil && !errors.Is(ferr, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(apperrors.ErrInternalServer, ferr)
		}
		if forward != nil {
			// Both directions unsettled at once means a prior bug corrupted
			// the table. Refuse to make it worse.
			logger.Get().Errorw("ledger holds both directions unsettled",
				"creditor_id", creditorID, "debtor_id", debtorID, "group_id", groupID)
			return apperrors.ErrLedgerConflict
		}

		switch reverse.Amount.Cmp(amount) {
		case 1:
			reverse.Amount = reverse.Amount.Sub(amount)
			if err := tx.Save(reverse).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil
		case 0:
			if err := tx.Unscoped().Delete(reverse).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil
		default:
			remainder := amount.Sub(reverse.Amount)
			if err := tx.Unscoped().Delete(reverse).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			debt := &models.Debt{
				CreditorID: creditorID,
				DebtorID:   debtorID,
				Amount:     remainder,
				GroupID:    groupID,
				ExpenseID:  expenseID,
			}
			if err := tx.Create(debt).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil
		}
	}

	forward, err := findUnsettled(tx, creditorID, debtorID, groupID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if forward != nil {
		forward.Amount = forward.Amount.Add(amount)
		if err := tx.Save(forward).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	}

	debt := &models.Debt{
		CreditorID: creditorID,
		DebtorID:   debtorID,
		Amount:     amount,
		GroupID:    groupID,
		ExpenseID:  expenseID,
	}
	if err := tx.Create(debt).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Settle applies a payment from debtor to creditor against their unsettled
// debt rows, oldest first. Rows fully covered are flagged settled; a partial
// tail splits its row into a settled portion and a new unsettled remainder.
func (s *ledgerService) Settle(creditorID, debtorID uint, groupID *uint, amount decimal.Decimal) (*SettlementResult, error) {
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidSettleAmount
	}

	unlock := s.lockPair(creditorID, debtorID, groupID)
	defer unlock()

	result := &SettlementResult{
		CreditorID: creditorID,
		DebtorID:   debtorID,
		GroupID:    groupID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var debts []models.Debt
		q := tx.Where("creditor_id = ? AND debtor_id = ? AND is_settled = ?", creditorID, debtorID, false)
		q = scopeGroup(q, groupID)
		if err := q.Order("created_at ASC, id ASC").Find(&debts).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if len(debts) == 0 {
			return apperrors.ErrNoUnsettledDebt
		}

		now := time.Now()
		remaining := amount
		for i := range debts {
			if !remaining.IsPositive() {
				break
			}
			debt := &debts[i]

			if remaining.GreaterThanOrEqual(debt.Amount) {
				remaining = remaining.Sub(debt.Amount)
				debt.IsSettled = true
				debt.SettledAt = &now
				if err := tx.Save(debt).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternalServer, err)
				}
				result.SettledDebts = append(result.SettledDebts, *debt)
				result.AmountApplied = result.AmountApplied.Add(debt.Amount)
				continue
			}

			// Partial payment: shrink the original to what was paid and flag
			// it settled, then keep the unpaid portion as a fresh unsettled
			// row. Settling first keeps the one-unsettled-row-per-pair
			// constraint satisfied at every statement.
			leftover := debt.Amount.Sub(remaining)
			debt.Amount = remaining
			debt.IsSettled = true
			debt.SettledAt = &now
			if err := tx.Save(debt).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			remainderRow := &models.Debt{
				CreditorID: creditorID,
				DebtorID:   debtorID,
				Amount:     leftover,
				GroupID:    groupID,
				ExpenseID:  debt.ExpenseID,
			}
			if err := tx.Create(remainderRow).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			result.SettledDebts = append(result.SettledDebts, *debt)
			result.AmountApplied = result.AmountApplied.Add(remaining)
			result.Remainder = remainderRow
			remaining = decimal.Zero
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
