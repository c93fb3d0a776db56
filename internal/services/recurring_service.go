package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/logger"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
)

// recurringService manages recurring expense templates: creation, manual
// firing and the periodic batch run that generates due expenses.
type recurringService struct {
	db             *gorm.DB
	expenseService ExpenseServicer
	groupService   GroupServicer
}

// NewRecurringService creates a new RecurringServicer.
func NewRecurringService(db *gorm.DB, expenseService ExpenseServicer, groupService GroupServicer) RecurringServicer {
	return &recurringService{
		db:             db,
		expenseService: expenseService,
		groupService:   groupService,
	}
}

// CreateRecurring stores a new template. For PERCENTAGE and DIRECT policies
// the per-participant parameters are serialized into SplitDetails so the
// scheduler can reconstruct them at firing time.
func (s *recurringService) CreateRecurring(in RecurringInput) (*models.RecurringExpense, error) {
	if in.Title == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	switch in.Frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown frequency")
	}
	if len(in.ParticipantIDs) == 0 {
		return nil, apperrors.ErrEmptyParticipants
	}

	in.ParticipantIDs = ensurePayer(in.ParticipantIDs, in.PaidByID)

	if in.GroupID != nil {
		for _, id := range in.ParticipantIDs {
			member, err := s.groupService.IsMember(*in.GroupID, id)
			if err != nil {
				return nil, err
			}
			if !member {
				return nil, apperrors.ErrNotGroupMember
			}
		}
	}

	var participants []models.User
	if err := s.db.Find(&participants, in.ParticipantIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(participants) != len(in.ParticipantIDs) {
		return nil, apperrors.WithMessage(apperrors.ErrUserNotFound, "one or more participants do not exist")
	}

	details, err := encodeSplitDetails(in.SplitPolicy, in.Percentages, in.Amounts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	nextDue := in.NextDueDate
	if nextDue.IsZero() {
		nextDue = time.Now()
	}

	template := &models.RecurringExpense{
		Title:        in.Title,
		Amount:       in.Amount,
		PaidByID:     in.PaidByID,
		GroupID:      in.GroupID,
		Frequency:    in.Frequency,
		SplitPolicy:  in.SplitPolicy,
		SplitDetails: details,
		NextDueDate:  nextDue,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(template).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Model(template).Association("Participants").Append(&participants); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	template.Participants = participants
	return template, nil
}

// encodeSplitDetails serializes per-participant parameters as a JSON map of
// user ID to decimal string. Policies without parameters store nothing.
func encodeSplitDetails(policy models.SplitPolicy, percentages, amounts map[uint]decimal.Decimal) (string, error) {
	var params map[uint]decimal.Decimal
	switch policy {
	case models.SplitPolicyPercentage:
		params = percentages
	case models.SplitPolicyDirect:
		params = amounts
	default:
		return "", nil
	}

	out := make(map[string]string, len(params))
	for userID, v := range params {
		out[fmt.Sprint(userID)] = v.String()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeSplitDetails parses stored parameters back into a user ID keyed map.
// Any decoding problem returns an error; the caller decides the fallback.
func decodeSplitDetails(details string) (map[uint]decimal.Decimal, error) {
	if details == "" {
		return nil, errors.New("empty split details")
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(details), &raw); err != nil {
		return nil, err
	}

	params := make(map[uint]decimal.Decimal, len(raw))
	for key, val := range raw {
		var userID uint
		if _, err := fmt.Sscanf(key, "%d", &userID); err != nil {
			return nil, fmt.Errorf("bad user id %q: %w", key, err)
		}
		amount, err := decimal.NewFromString(val)
		if err != nil {
			return nil, fmt.Errorf("bad amount for user %s: %w", key, err)
		}
		params[userID] = amount
	}
	return params, nil
}

// GetUserRecurring retrieves a paginated list of templates paid by the user.
func (s *recurringService) GetUserRecurring(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.RecurringExpense], error) {
	page.Defaults()

	base := s.db.Model(&models.RecurringExpense{}).Where("paid_by_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var templates []models.RecurringExpense
	err := base.Scopes(pagination.Paginate(page)).
		Preload("Participants").
		Order("next_due_date ASC").
		Find(&templates).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(templates, page.Page, page.PageSize, totalItems)
	return &resp, nil
}

// GenerateNow fires one template immediately, regardless of its due date,
// and advances the due date as if it had fired on schedule. Only the
// template's payer may trigger this.
func (s *recurringService) GenerateNow(userID, templateID uint) (*models.Expense, error) {
	var template models.RecurringExpense
	err := s.db.Preload("Participants").First(&template, templateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecurringNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if template.PaidByID != userID {
		return nil, apperrors.ErrForbidden
	}
	return s.fire(&template)
}

// RunDue fires every template whose due date has arrived. Each template is
// processed in its own transaction; one failure is recorded in the report
// and the batch continues.
func (s *recurringService) RunDue(today time.Time) (*RunReport, error) {
	var due []models.RecurringExpense
	err := s.db.Preload("Participants").
		Where("next_due_date <= ?", today).
		Order("next_due_date ASC").
		Find(&due).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	report := &RunReport{
		Generated: []models.Expense{},
		Errors:    []RunError{},
	}
	for i := range due {
		template := &due[i]
		expense, err := s.fire(template)
		if err != nil {
			logger.Get().Warnw("recurring template failed to fire",
				"template_id", template.ID, "error", err)
			report.Errors = append(report.Errors, RunError{
				TemplateID: template.ID,
				Reason:     err.Error(),
			})
			continue
		}
		report.Generated = append(report.Generated, *expense)
	}
	return report, nil
}

// fire generates one expense from a template and advances its due date, both
// inside a single transaction. Missing or malformed stored parameters for
// PERCENTAGE and DIRECT templates degrade to an equal split instead of
// failing the firing.
func (s *recurringService) fire(template *models.RecurringExpense) (*models.Expense, error) {
	participantIDs := make([]uint, 0, len(template.Participants))
	for _, p := range template.Participants {
		participantIDs = append(participantIDs, p.ID)
	}

	in := ExpenseInput{
		Title:              fmt.Sprintf("%s (Recurring: %s)", template.Title, template.Frequency.Display()),
		Amount:             template.Amount,
		PaidByID:           template.PaidByID,
		GroupID:            template.GroupID,
		SplitPolicy:        template.SplitPolicy,
		ParticipantIDs:     participantIDs,
		RecurringExpenseID: &template.ID,
	}

	switch template.SplitPolicy {
	case models.SplitPolicyPercentage, models.SplitPolicyDirect:
		params, err := decodeSplitDetails(template.SplitDetails)
		if err != nil {
			logger.Get().Warnw("recurring template has unusable split details, falling back to equal split",
				"template_id", template.ID, "error", err)
			in.SplitPolicy = models.SplitPolicyEqual
		} else if template.SplitPolicy == models.SplitPolicyPercentage {
			in.Percentages = params
		} else {
			in.Amounts = params
		}
	}

	var expense *models.Expense
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		expense, txErr = s.expenseService.RecordExpenseTx(tx, in)
		if txErr != nil {
			return txErr
		}

		next := nextDueDate(template.NextDueDate, template.Frequency)
		txErr = tx.Model(&models.RecurringExpense{}).
			Where("id = ?", template.ID).
			Update("next_due_date", next).Error
		if txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		template.NextDueDate = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// nextDueDate advances a due date by one period. Monthly keeps the same
// day-of-month, clamped to the last valid day when the next month is
// shorter (Jan 31 advances to Feb 28, or Feb 29 in a leap year). An
// unrecognized frequency advances 30 days.
func nextDueDate(current time.Time, frequency models.Frequency) time.Time {
	switch frequency {
	case models.FrequencyDaily:
		return current.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		return current.AddDate(0, 0, 7)
	case models.FrequencyMonthly:
		year, month := current.Year(), current.Month()+1
		if month > time.December {
			month = time.January
			year++
		}
		day := current.Day()
		if last := lastDayOfMonth(year, month); day > last {
			day = last
		}
		return time.Date(year, month, day,
			current.Hour(), current.Minute(), current.Second(), current.Nanosecond(), current.Location())
	}
	return current.AddDate(0, 0, 30)
}

// lastDayOfMonth returns the number of days in the given month.
func lastDayOfMonth(year int, month time.Month) int {
	// Day zero of the following month is this month's last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
