package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"splitledger/internal/models"
	"splitledger/internal/testutil"
)

func newRecurringService(db *gorm.DB) RecurringServicer {
	groups := NewGroupService(db)
	expenses := NewExpenseService(db, NewLedgerService(db), groups)
	return NewRecurringService(db, expenses, groups)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestNextDueDate(t *testing.T) {
	cases := []struct {
		name      string
		current   time.Time
		frequency models.Frequency
		want      time.Time
	}{
		{"daily", date(2026, time.March, 15), models.FrequencyDaily, date(2026, time.March, 16)},
		{"weekly", date(2026, time.March, 15), models.FrequencyWeekly, date(2026, time.March, 22)},
		{"monthly_same_day", date(2026, time.March, 15), models.FrequencyMonthly, date(2026, time.April, 15)},
		{"monthly_jan31_clamps_to_feb28", date(2026, time.January, 31), models.FrequencyMonthly, date(2026, time.February, 28)},
		{"monthly_jan31_leap_year", date(2028, time.January, 31), models.FrequencyMonthly, date(2028, time.February, 29)},
		{"monthly_jan30_clamps", date(2026, time.January, 30), models.FrequencyMonthly, date(2026, time.February, 28)},
		{"monthly_dec_wraps_year", date(2026, time.December, 10), models.FrequencyMonthly, date(2027, time.January, 10)},
		{"monthly_mar31_to_apr30", date(2026, time.March, 31), models.FrequencyMonthly, date(2026, time.April, 30)},
		{"unknown_frequency_adds_30_days", date(2026, time.March, 1), models.Frequency("YEARLY"), date(2026, time.March, 31)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextDueDate(tc.current, tc.frequency)
			if !got.Equal(tc.want) {
				t.Errorf("expected %s, got %s", tc.want.Format("2006-01-02"), got.Format("2006-01-02"))
			}
		})
	}
}

func TestCreateRecurring(t *testing.T) {
	t.Run("stores_percentage_details", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)

		template, err := svc.CreateRecurring(RecurringInput{
			Title:          "Rent",
			Amount:         testutil.MustDecimal(t, "1200.00"),
			PaidByID:       a.ID,
			Frequency:      models.FrequencyMonthly,
			SplitPolicy:    models.SplitPolicyPercentage,
			ParticipantIDs: []uint{a.ID, b.ID},
			Percentages:    pctMap(t, map[uint]string{b.ID: "100"}),
			NextDueDate:    date(2026, time.September, 1),
		})
		testutil.AssertNoError(t, err)

		if template.SplitDetails == "" {
			t.Error("expected serialized split details")
		}
		if len(template.Participants) != 2 {
			t.Errorf("expected 2 participants, got %d", len(template.Participants))
		}

		params, err := decodeSplitDetails(template.SplitDetails)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimalEqual(t, "100", params[b.ID])
	})

	t.Run("rejects_unknown_frequency", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)

		_, err := svc.CreateRecurring(RecurringInput{
			Title:          "Rent",
			Amount:         testutil.MustDecimal(t, "1200.00"),
			PaidByID:       a.ID,
			Frequency:      models.Frequency("FORTNIGHTLY"),
			SplitPolicy:    models.SplitPolicyEqual,
			ParticipantIDs: []uint{a.ID},
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects_empty_participants", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)

		_, err := svc.CreateRecurring(RecurringInput{
			Title:       "Rent",
			Amount:      testutil.MustDecimal(t, "1200.00"),
			PaidByID:    a.ID,
			Frequency:   models.FrequencyMonthly,
			SplitPolicy: models.SplitPolicyEqual,
		})
		testutil.AssertAppError(t, err, "EMPTY_PARTICIPANTS")
	})
}

func TestRunDue(t *testing.T) {
	t.Run("fires_due_templates_and_advances_dates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a, b)

		today := date(2026, time.August, 31)
		due := testutil.CreateTestRecurringExpense(t, db, a.ID, &group.ID, "60.00", date(2026, time.August, 30), a, b)
		testutil.CreateTestRecurringExpense(t, db, a.ID, &group.ID, "10.00", date(2026, time.September, 15), a, b)

		report, err := svc.RunDue(today)
		testutil.AssertNoError(t, err)

		if len(report.Generated) != 1 {
			t.Fatalf("expected 1 generated expense, got %d", len(report.Generated))
		}
		if len(report.Errors) != 0 {
			t.Fatalf("expected no errors, got %v", report.Errors)
		}

		expense := report.Generated[0]
		if expense.RecurringExpenseID == nil || *expense.RecurringExpenseID != due.ID {
			t.Error("expected generated expense to reference its template")
		}
		if expense.Title != due.Title+" (Recurring: Monthly)" {
			t.Errorf("unexpected generated title %q", expense.Title)
		}

		// Ledger got fed: b owes a half of 60.
		debts := unsettledDebts(t, db, a.ID, b.ID)
		if len(debts) != 1 {
			t.Fatalf("expected 1 debt from the firing, got %d", len(debts))
		}
		testutil.AssertDecimalEqual(t, "30.00", debts[0].Amount)

		var reloaded models.RecurringExpense
		testutil.AssertNoError(t, db.First(&reloaded, due.ID).Error)
		if !reloaded.NextDueDate.Equal(date(2026, time.September, 30)) {
			t.Errorf("expected due date advanced to 2026-09-30, got %s", reloaded.NextDueDate.Format("2006-01-02"))
		}
	})

	t.Run("one_bad_template_does_not_stop_the_batch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)

		today := date(2026, time.August, 31)
		// No participants at all: firing fails validation.
		bad := testutil.CreateTestRecurringExpense(t, db, a.ID, nil, "10.00", date(2026, time.August, 1))
		good := testutil.CreateTestRecurringExpense(t, db, a.ID, nil, "20.00", date(2026, time.August, 1), a, b)

		report, err := svc.RunDue(today)
		testutil.AssertNoError(t, err)

		if len(report.Generated) != 1 {
			t.Fatalf("expected 1 generated expense, got %d", len(report.Generated))
		}
		if report.Generated[0].RecurringExpenseID == nil || *report.Generated[0].RecurringExpenseID != good.ID {
			t.Error("expected the healthy template to fire")
		}
		if len(report.Errors) != 1 {
			t.Fatalf("expected 1 error, got %d", len(report.Errors))
		}
		if report.Errors[0].TemplateID != bad.ID {
			t.Errorf("expected error for template %d, got %d", bad.ID, report.Errors[0].TemplateID)
		}
	})

	t.Run("malformed_split_details_fall_back_to_equal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)

		template := testutil.CreateTestRecurringExpense(t, db, a.ID, nil, "50.00", date(2026, time.August, 1), a, b)
		db.Model(template).Updates(map[string]interface{}{
			"split_policy":  models.SplitPolicyPercentage,
			"split_details": "{not json",
		})

		report, err := svc.RunDue(date(2026, time.August, 31))
		testutil.AssertNoError(t, err)

		if len(report.Errors) != 0 {
			t.Fatalf("expected fallback instead of error, got %v", report.Errors)
		}
		if len(report.Generated) != 1 {
			t.Fatalf("expected 1 generated expense, got %d", len(report.Generated))
		}
		if report.Generated[0].SplitPolicy != models.SplitPolicyEqual {
			t.Errorf("expected equal-split fallback, got %s", report.Generated[0].SplitPolicy)
		}

		debts := unsettledDebts(t, db, a.ID, b.ID)
		if len(debts) != 1 {
			t.Fatalf("expected 1 debt, got %d", len(debts))
		}
		testutil.AssertDecimalEqual(t, "25.00", debts[0].Amount)
	})

	t.Run("nothing_due", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)
		testutil.CreateTestRecurringExpense(t, db, a.ID, nil, "10.00", date(2026, time.December, 1), a)

		report, err := svc.RunDue(date(2026, time.August, 31))
		testutil.AssertNoError(t, err)

		if len(report.Generated) != 0 || len(report.Errors) != 0 {
			t.Errorf("expected an empty report, got %+v", report)
		}
	})
}

func TestGenerateNow(t *testing.T) {
	t.Run("payer_fires_immediately", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		template := testutil.CreateTestRecurringExpense(t, db, a.ID, nil, "40.00", date(2026, time.December, 1), a, b)

		expense, err := svc.GenerateNow(a.ID, template.ID)
		testutil.AssertNoError(t, err)

		if expense.RecurringExpenseID == nil || *expense.RecurringExpenseID != template.ID {
			t.Error("expected expense to reference its template")
		}
	})

	t.Run("only_payer_may_fire", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		template := testutil.CreateTestRecurringExpense(t, db, a.ID, nil, "40.00", date(2026, time.December, 1), a, b)

		_, err := svc.GenerateNow(b.ID, template.ID)
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRecurringService(db)

		a := testutil.CreateTestUser(t, db)

		_, err := svc.GenerateNow(a.ID, 99999)
		testutil.AssertAppError(t, err, "RECURRING_NOT_FOUND")
	})
}
