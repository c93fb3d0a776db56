package main

import (
	"fmt"
	"os"
	"time"

	"splitledger/internal/database"
	"splitledger/internal/logger"
	"splitledger/internal/services"
)

// One-shot batch runner for recurring expenses. Intended to be invoked
// from cron; generates an expense for every template whose due date has
// arrived and advances the schedule.
func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Scheduler run failed: %v", err)
	}
}

func run() error {
	log := logger.Get()

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	db := dbManager.DB()
	ledgerService := services.NewLedgerService(db)
	groupService := services.NewGroupService(db)
	expenseService := services.NewExpenseService(db, ledgerService, groupService)
	recurringService := services.NewRecurringService(db, expenseService, groupService)

	report, err := recurringService.RunDue(time.Now())
	if err != nil {
		return fmt.Errorf("failed to run due recurring expenses: %w", err)
	}

	log.Infow("Recurring run complete",
		"generated", len(report.Generated),
		"errors", len(report.Errors),
	)
	for _, runErr := range report.Errors {
		log.Warnw("Template skipped",
			"template_id", runErr.TemplateID,
			"reason", runErr.Reason,
		)
	}

	if len(report.Errors) > 0 {
		return fmt.Errorf("%d recurring template(s) failed", len(report.Errors))
	}
	return nil
}
