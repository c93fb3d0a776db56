package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
	"splitledger/internal/services"
)

// RecurringHandler handles recurring expense template requests.
type RecurringHandler struct {
	recurringService services.RecurringServicer
}

// NewRecurringHandler creates a new RecurringHandler.
func NewRecurringHandler(recurringService services.RecurringServicer) *RecurringHandler {
	return &RecurringHandler{recurringService: recurringService}
}

// CreateRecurringRequest represents the request payload for creating a
// recurring expense template.
type CreateRecurringRequest struct {
	Title          string                     `json:"title" binding:"required,min=1,max=200"`
	Amount         decimal.Decimal            `json:"amount" binding:"required"`
	GroupID        *uint                      `json:"group_id"`
	Frequency      models.Frequency           `json:"frequency" binding:"required,frequency"`
	SplitPolicy    models.SplitPolicy         `json:"split_policy" binding:"required,split_policy"`
	ParticipantIDs []uint                     `json:"participant_ids" binding:"required,min=1"`
	Percentages    map[string]decimal.Decimal `json:"percentages"`
	Amounts        map[string]decimal.Decimal `json:"amounts"`
	NextDueDate    time.Time                  `json:"next_due_date"`
}

// CreateRecurring creates a recurring expense template paid by the caller.
// @Summary     Create a recurring expense
// @Description Create a template that generates an expense each time it comes due
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateRecurringRequest true "Template details"
// @Success     201 {object} models.RecurringExpense "Template created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Participant not a group member"
// @Router      /recurring [post]
func (h *RecurringHandler) CreateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	percentages, err := userKeyedDecimals(req.Percentages)
	if err != nil {
		respondWithError(c, err)
		return
	}
	amounts, err := userKeyedDecimals(req.Amounts)
	if err != nil {
		respondWithError(c, err)
		return
	}

	template, err := h.recurringService.CreateRecurring(services.RecurringInput{
		Title:          req.Title,
		Amount:         req.Amount,
		PaidByID:       userID,
		GroupID:        req.GroupID,
		Frequency:      req.Frequency,
		SplitPolicy:    req.SplitPolicy,
		ParticipantIDs: req.ParticipantIDs,
		Percentages:    percentages,
		Amounts:        amounts,
		NextDueDate:    req.NextDueDate,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recurring_expense": template})
}

// GetRecurring lists the caller's recurring templates.
// @Summary     List recurring expenses
// @Description Get a paginated list of the caller's recurring expense templates
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[models.RecurringExpense] "Templates"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /recurring [get]
func (h *RecurringHandler) GetRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	templates, err := h.recurringService.GetUserRecurring(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, templates)
}

// GenerateNow fires one template immediately.
// @Summary     Generate an expense from a template now
// @Description Fire a recurring template immediately and advance its due date
// @Tags        recurring
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Template ID"
// @Success     201 {object} models.Expense "Generated expense"
// @Failure     403 {object} ErrorResponse "Caller is not the template's payer"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Router      /recurring/{id}/generate [post]
func (h *RecurringHandler) GenerateNow(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	templateID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.recurringService.GenerateNow(userID, templateID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

// RunDue fires all due templates. Protected by the scheduler API key, not
// user auth; an external cron trigger calls it.
// @Summary     Run due recurring expenses
// @Description Generate expenses for every template whose due date has arrived
// @Tags        recurring
// @Produce     json
// @Param       X-API-Key header string true "Scheduler API key"
// @Success     200 {object} services.RunReport "Run report"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /recurring/run [post]
func (h *RecurringHandler) RunDue(c *gin.Context) {
	report, err := h.recurringService.RunDue(time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
