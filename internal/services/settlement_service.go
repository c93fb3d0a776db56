package services

import (
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
)

// balanceEpsilon treats balances this close to zero as settled when
// simplifying, absorbing cent-level rounding noise from split truncation.
var balanceEpsilon = decimal.NewFromFloat(0.01)

// settlementService computes balances, simplification plans and records
// settlement payments against the ledger.
type settlementService struct {
	db           *gorm.DB
	ledger       LedgerServicer
	groupService GroupServicer
}

// NewSettlementService creates a new SettlementServicer.
func NewSettlementService(db *gorm.DB, ledger LedgerServicer, groupService GroupServicer) SettlementServicer {
	return &settlementService{
		db:           db,
		ledger:       ledger,
		groupService: groupService,
	}
}

// GroupBalances returns each member's net balance within the group:
// owed-to-them minus owed-by-them across unsettled debts. Members with no
// debt activity appear with a zero balance.
func (s *settlementService) GroupBalances(userID, groupID uint) (map[uint]decimal.Decimal, error) {
	group, err := s.groupService.GetGroupByID(userID, groupID)
	if err != nil {
		return nil, err
	}

	balances := make(map[uint]decimal.Decimal, len(group.Members))
	for _, m := range group.Members {
		balances[m.ID] = decimal.Zero
	}

	var debts []models.Debt
	err = s.db.Where("group_id = ? AND is_settled = ?", groupID, false).Find(&debts).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, d := range debts {
		balances[d.CreditorID] = balances[d.CreditorID].Add(d.Amount)
		balances[d.DebtorID] = balances[d.DebtorID].Sub(d.Amount)
	}
	return balances, nil
}

// party is one side of the simplification matching: a user with the absolute
// magnitude of their net balance.
type party struct {
	userID uint
	amount decimal.Decimal
}

// Simplify computes a near-minimal set of transfers that would bring every
// group member's net balance to zero, by repeatedly matching the largest
// debtor with the largest creditor. Read-only: applying the plan is a
// separate RecordSettlement call per transfer.
func (s *settlementService) Simplify(userID, groupID uint) ([]Transfer, error) {
	balances, err := s.GroupBalances(userID, groupID)
	if err != nil {
		return nil, err
	}
	return simplifyBalances(balances), nil
}

// simplifyBalances is the pure greedy matching over a balance map.
func simplifyBalances(balances map[uint]decimal.Decimal) []Transfer {
	var debtors, creditors []party
	for userID, net := range balances {
		switch {
		case net.LessThan(balanceEpsilon.Neg()):
			debtors = append(debtors, party{userID: userID, amount: net.Neg()})
		case net.GreaterThan(balanceEpsilon):
			creditors = append(creditors, party{userID: userID, amount: net})
		}
	}

	byMagnitude := func(ps []party) {
		sort.Slice(ps, func(i, j int) bool {
			if !ps[i].amount.Equal(ps[j].amount) {
				return ps[i].amount.GreaterThan(ps[j].amount)
			}
			return ps[i].userID < ps[j].userID
		})
	}
	byMagnitude(debtors)
	byMagnitude(creditors)

	transfers := []Transfer{}
	for len(debtors) > 0 && len(creditors) > 0 {
		d, c := &debtors[0], &creditors[0]

		amount := decimal.Min(d.amount, c.amount)
		transfers = append(transfers, Transfer{
			DebtorID:   d.userID,
			CreditorID: c.userID,
			Amount:     amount,
		})

		d.amount = d.amount.Sub(amount)
		c.amount = c.amount.Sub(amount)
		if d.amount.LessThanOrEqual(balanceEpsilon) {
			debtors = debtors[1:]
		}
		if c.amount.LessThanOrEqual(balanceEpsilon) {
			creditors = creditors[1:]
		}
		byMagnitude(debtors)
		byMagnitude(creditors)
	}
	return transfers
}

// RecordSettlement applies a payment from debtor to creditor. The acting
// user must be one of the two parties, and both must be members when the
// settlement is scoped to a group.
func (s *settlementService) RecordSettlement(actorID, creditorID, debtorID uint, groupID *uint, amount decimal.Decimal) (*SettlementResult, error) {
	if actorID != creditorID && actorID != debtorID {
		return nil, apperrors.ErrForbidden
	}
	if groupID != nil {
		for _, id := range []uint{creditorID, debtorID} {
			member, err := s.groupService.IsMember(*groupID, id)
			if err != nil {
				return nil, err
			}
			if !member {
				return nil, apperrors.ErrNotGroupMember
			}
		}
	}
	return s.ledger.Settle(creditorID, debtorID, groupID, amount)
}

// UserBalance aggregates the user's unsettled position across all groups and
// ungrouped debts.
func (s *settlementService) UserBalance(userID uint) (*BalanceSummary, error) {
	summary := &BalanceSummary{
		UserID:     userID,
		OwedToUser: decimal.Zero,
		OwedByUser: decimal.Zero,
	}

	var debts []models.Debt
	err := s.db.Where("(creditor_id = ? OR debtor_id = ?) AND is_settled = ?", userID, userID, false).
		Find(&debts).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, d := range debts {
		if d.CreditorID == userID {
			summary.OwedToUser = summary.OwedToUser.Add(d.Amount)
		} else {
			summary.OwedByUser = summary.OwedByUser.Add(d.Amount)
		}
	}
	summary.Net = summary.OwedToUser.Sub(summary.OwedByUser)
	return summary, nil
}

// SettledHistory retrieves the user's settled debts, newest settlement first.
func (s *settlementService) SettledHistory(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Debt], error) {
	page.Defaults()

	base := s.db.Model(&models.Debt{}).
		Where("(creditor_id = ? OR debtor_id = ?) AND is_settled = ?", userID, userID, true)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var debts []models.Debt
	err := base.Scopes(pagination.Paginate(page)).
		Order("settled_at DESC, id DESC").
		Find(&debts).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(debts, page.Page, page.PageSize, totalItems)
	return &resp, nil
}
