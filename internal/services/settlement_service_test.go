package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"splitledger/internal/pagination"
	"splitledger/internal/testutil"
)

func newSettlementService(db *gorm.DB) SettlementServicer {
	return NewSettlementService(db, NewLedgerService(db), NewGroupService(db))
}

func TestGroupBalances(t *testing.T) {
	t.Run("nets_debts_in_both_directions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newSettlementService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		c := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a, b, c)

		testutil.CreateTestDebt(t, db, a.ID, b.ID, &group.ID, "30.00")
		testutil.CreateTestDebt(t, db, c.ID, a.ID, &group.ID, "10.00")

		balances, err := svc.GroupBalances(a.ID, group.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimalEqual(t, "20.00", balances[a.ID])
		testutil.AssertDecimalEqual(t, "-30.00", balances[b.ID])
		testutil.AssertDecimalEqual(t, "10.00", balances[c.ID])
	})

	t.Run("settled_debts_are_excluded", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newSettlementService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a, b)

		debt := testutil.CreateTestDebt(t, db, a.ID, b.ID, &group.ID, "30.00")
		db.Model(debt).Update("is_settled", true)

		balances, err := svc.GroupBalances(a.ID, group.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimalEqual(t, "0", balances[a.ID])
		testutil.AssertDecimalEqual(t, "0", balances[b.ID])
	})

	t.Run("requires_membership", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newSettlementService(db)

		a := testutil.CreateTestUser(t, db)
		outsider := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)

		_, err := svc.GroupBalances(outsider.ID, group.ID)
		testutil.AssertAppError(t, err, "NOT_GROUP_MEMBER")
	})
}

// applyPlan replays a simplification plan over a copy of the balances and
// returns the resulting map.
func applyPlan(balances map[uint]decimal.Decimal, plan []Transfer) map[uint]decimal.Decimal {
	out := make(map[uint]decimal.Decimal, len(balances))
	for id, v := range balances {
		out[id] = v
	}
	for _, tr := range plan {
		out[tr.DebtorID] = out[tr.DebtorID].Add(tr.Amount)
		out[tr.CreditorID] = out[tr.CreditorID].Sub(tr.Amount)
	}
	return out
}

func TestSimplify(t *testing.T) {
	t.Run("chain_collapses_to_single_transfer_per_debtor", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newSettlementService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		c := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a, b, c)

		// B owes A 20, C owes B 20. Net: A +20, B 0, C -20.
		testutil.CreateTestDebt(t, db, a.ID, b.ID, &group.ID, "20.00")
		testutil.CreateTestDebt(t, db, b.ID, c.ID, &group.ID, "20.00")

		plan, err := svc.Simplify(a.ID, group.ID)
		testutil.AssertNoError(t, err)

		if len(plan) != 1 {
			t.Fatalf("expected a single transfer, got %d", len(plan))
		}
		if plan[0].DebtorID != c.ID || plan[0].CreditorID != a.ID {
			t.Errorf("expected transfer c->a, got %d->%d", plan[0].DebtorID, plan[0].CreditorID)
		}
		testutil.AssertDecimalEqual(t, "20.00", plan[0].Amount)
	})

	t.Run("plan_zeroes_every_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newSettlementService(db)

		users := make([]uint, 0, 4)
		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		c := testutil.CreateTestUser(t, db)
		d := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a, b, c, d)
		users = append(users, a.ID, b.ID, c.ID, d.ID)

		testutil.CreateTestDebt(t, db, a.ID, b.ID, &group.ID, "45.10")
		testutil.CreateTestDebt(t, db, a.ID, c.ID, &group.ID, "12.35")
		testutil.CreateTestDebt(t, db, d.ID, b.ID, &group.ID, "7.60")
		testutil.CreateTestDebt(t, db, c.ID, d.ID, &group.ID, "3.00")

		balances, err := svc.GroupBalances(a.ID, group.ID)
		testutil.AssertNoError(t, err)

		plan, err := svc.Simplify(a.ID, group.ID)
		testutil.AssertNoError(t, err)

		if len(plan) > len(users)-1 {
			t.Errorf("expected at most %d transfers, got %d", len(users)-1, len(plan))
		}

		eps := testutil.MustDecimal(t, "0.01")
		after := applyPlan(balances, plan)
		for id, net := range after {
			if net.Abs().GreaterThan(eps) {
				t.Errorf("user %d still has net balance %s after plan", id, net)
			}
		}
	})

	t.Run("settled_group_yields_empty_plan", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newSettlementService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a, b)

		plan, err := svc.Simplify(a.ID, group.ID)
		testutil.AssertNoError(t, err)
		if len(plan) != 0 {
			t.Errorf("expected empty plan, got %d transfers", len(plan))
		}
	})
}

func TestRecordSettlement(t *testing.T) {
	t.Run("debtor_can_settle", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newSettlementService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a, b)
		testutil.CreateTestDebt(t, db, a.ID, b.ID, &group.ID, "50.00")

		result, err := svc.RecordSettlement(b.ID, a.ID, b.ID, &group.ID, testutil.MustDecimal(t, "20.00"))
		testutil.AssertNoError(t, err)

		testutil.AssertDecimalEqual(t, "20.00", result.AmountApplied)
		if result.Remainder == nil {
			t.Fatal("expected a remainder row")
		}
		testutil.AssertDecimalEqual(t, "30.00", result.Remainder.Amount)
	})

	t.Run("third_party_cannot_settle", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newSettlementService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		outsider := testutil.CreateTestUser(t, db)
		testutil.CreateTestDebt(t, db, a.ID, b.ID, nil, "50.00")

		_, err := svc.RecordSettlement(outsider.ID, a.ID, b.ID, nil, testutil.MustDecimal(t, "20.00"))
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("group_settlement_requires_membership", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newSettlementService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)

		_, err := svc.RecordSettlement(b.ID, a.ID, b.ID, &group.ID, testutil.MustDecimal(t, "20.00"))
		testutil.AssertAppError(t, err, "NOT_GROUP_MEMBER")
	})
}

func TestUserBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newSettlementService(db)

	a := testutil.CreateTestUser(t, db)
	b := testutil.CreateTestUser(t, db)
	c := testutil.CreateTestUser(t, db)

	testutil.CreateTestDebt(t, db, a.ID, b.ID, nil, "40.00")
	testutil.CreateTestDebt(t, db, c.ID, a.ID, nil, "15.50")

	summary, err := svc.UserBalance(a.ID)
	testutil.AssertNoError(t, err)

	testutil.AssertDecimalEqual(t, "40.00", summary.OwedToUser)
	testutil.AssertDecimalEqual(t, "15.50", summary.OwedByUser)
	testutil.AssertDecimalEqual(t, "24.50", summary.Net)
}

func TestSettledHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := NewLedgerService(db)
	svc := NewSettlementService(db, ledger, NewGroupService(db))

	a := testutil.CreateTestUser(t, db)
	b := testutil.CreateTestUser(t, db)
	testutil.CreateTestDebt(t, db, a.ID, b.ID, nil, "50.00")

	_, err := ledger.Settle(a.ID, b.ID, nil, testutil.MustDecimal(t, "20.00"))
	testutil.AssertNoError(t, err)

	history, err := svc.SettledHistory(a.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)

	if history.TotalItems != 1 {
		t.Fatalf("expected 1 settled debt, got %d", history.TotalItems)
	}
	testutil.AssertDecimalEqual(t, "20.00", history.Data[0].Amount)
	if !history.Data[0].IsSettled {
		t.Error("expected the history row to be settled")
	}
}
