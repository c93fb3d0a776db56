package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
	"splitledger/internal/services"
)

// ExpenseHandler handles expense-related requests.
type ExpenseHandler struct {
	expenseService services.ExpenseServicer
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenseService services.ExpenseServicer) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// CreateExpenseRequest represents the request payload for recording an
// expense. Percentages and amounts are keyed by participant user ID.
type CreateExpenseRequest struct {
	Title           string                     `json:"title" binding:"required,min=1,max=200"`
	Amount          decimal.Decimal            `json:"amount" binding:"required"`
	GroupID         *uint                      `json:"group_id"`
	ParentExpenseID *uint                      `json:"parent_expense_id"`
	SplitPolicy     models.SplitPolicy         `json:"split_policy" binding:"required,split_policy"`
	ParticipantIDs  []uint                     `json:"participant_ids" binding:"required,min=1"`
	Percentages     map[string]decimal.Decimal `json:"percentages"`
	Amounts         map[string]decimal.Decimal `json:"amounts"`
}

// CreateParentExpenseRequest represents the request payload for creating a
// parent expense.
type CreateParentExpenseRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=500"`
	GroupID     uint   `json:"group_id" binding:"required"`
}

// expenseListQuery carries pagination and filter parameters for listing
// group expenses.
type expenseListQuery struct {
	pagination.PageRequest
	PaidBy    *uint      `form:"paid_by"`
	MinAmount string     `form:"min_amount"`
	MaxAmount string     `form:"max_amount"`
	From      *time.Time `form:"from" time_format:"2006-01-02"`
	To        *time.Time `form:"to" time_format:"2006-01-02"`
}

// userKeyedDecimals converts a JSON object keyed by stringified user IDs into
// a uint-keyed map.
func userKeyedDecimals(in map[string]decimal.Decimal) (map[uint]decimal.Decimal, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[uint]decimal.Decimal, len(in))
	for key, v := range in {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid user ID key: "+key)
		}
		out[uint(id)] = v
	}
	return out, nil
}

// CreateExpense records a new expense paid by the caller.
// @Summary     Record an expense
// @Description Record an expense, create its splits and update the debt ledger atomically
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateExpenseRequest true "Expense details"
// @Success     201 {object} models.Expense "Expense recorded"
// @Failure     400 {object} ErrorResponse "Invalid input or split parameters"
// @Failure     403 {object} ErrorResponse "Participant not a group member"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateExpenseRequest
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

	expense, err := h.expenseService.RecordExpense(services.ExpenseInput{
		Title:           req.Title,
		Amount:          req.Amount,
		PaidByID:        userID,
		GroupID:         req.GroupID,
		ParentExpenseID: req.ParentExpenseID,
		SplitPolicy:     req.SplitPolicy,
		ParticipantIDs:  req.ParticipantIDs,
		Percentages:     percentages,
		Amounts:         amounts,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

// GetExpense retrieves one expense with its splits.
// @Summary     Get an expense
// @Description Get an expense and its splits; caller must be involved or share the group
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Success     200 {object} models.Expense "Expense"
// @Failure     403 {object} ErrorResponse "Access denied"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /expenses/{id} [get]
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.GetExpenseByID(userID, expenseID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// GetGroupExpenses lists a group's expenses with pagination and filters.
// @Summary     List group expenses
// @Description Get a paginated list of a group's expenses, filterable by payer, amount range and date range
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Group ID"
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Param       paid_by query int false "Filter by payer user ID"
// @Param       min_amount query string false "Minimum amount"
// @Param       max_amount query string false "Maximum amount"
// @Param       from query string false "From date (YYYY-MM-DD)"
// @Param       to query string false "To date (YYYY-MM-DD)"
// @Success     200 {object} pagination.PageResponse[models.Expense] "Expenses"
// @Failure     403 {object} ErrorResponse "Not a member"
// @Router      /groups/{id}/expenses [get]
func (h *ExpenseHandler) GetGroupExpenses(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query expenseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.ExpenseFilter{
		PaidByID: query.PaidBy,
		FromDate: query.From,
		ToDate:   query.To,
	}
	if query.MinAmount != "" {
		min, err := decimal.NewFromString(query.MinAmount)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid min_amount"))
			return
		}
		filter.MinAmount = &min
	}
	if query.MaxAmount != "" {
		max, err := decimal.NewFromString(query.MaxAmount)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid max_amount"))
			return
		}
		filter.MaxAmount = &max
	}

	expenses, err := h.expenseService.GetGroupExpenses(userID, groupID, query.PageRequest, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, expenses)
}

// CreateParentExpense creates an umbrella for child expenses.
// @Summary     Create a parent expense
// @Description Create a parent expense that groups child expenses; total is derived
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateParentExpenseRequest true "Parent expense details"
// @Success     201 {object} models.ParentExpense "Parent expense created"
// @Failure     403 {object} ErrorResponse "Not a member"
// @Router      /parent-expenses [post]
func (h *ExpenseHandler) CreateParentExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateParentExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	parent, err := h.expenseService.CreateParentExpense(userID, req.GroupID, req.Title, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"parent_expense": parent})
}

// GetParentExpense retrieves a parent expense with children and derived total.
// @Summary     Get a parent expense
// @Description Get a parent expense, its child expenses and the derived total amount
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Parent expense ID"
// @Success     200 {object} models.ParentExpense "Parent expense with total"
// @Failure     404 {object} ErrorResponse "Parent expense not found"
// @Router      /parent-expenses/{id} [get]
func (h *ExpenseHandler) GetParentExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	parentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	parent, total, err := h.expenseService.GetParentExpense(userID, parentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"parent_expense": parent,
		"total_amount":   total,
	})
}
