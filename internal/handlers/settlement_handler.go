package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/pagination"
	"splitledger/internal/services"
)

// SettlementHandler handles balance, simplification and settlement requests.
type SettlementHandler struct {
	settlementService services.SettlementServicer
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementService services.SettlementServicer) *SettlementHandler {
	return &SettlementHandler{settlementService: settlementService}
}

// RecordSettlementRequest represents the request payload for recording a
// settlement payment.
type RecordSettlementRequest struct {
	CreditorID uint            `json:"creditor_id" binding:"required"`
	DebtorID   uint            `json:"debtor_id" binding:"required"`
	GroupID    *uint           `json:"group_id"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
}

// GetBalances returns the caller's overall debt position.
// @Summary     Get my balances
// @Description Get the caller's total owed-to and owed-by amounts across all unsettled debts
// @Tags        settlements
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.BalanceSummary "Balance summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /balances [get]
func (h *SettlementHandler) GetBalances(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.settlementService.UserBalance(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balances": summary})
}

// GetGroupBalances returns the net balance of every group member.
// @Summary     Get group balances
// @Description Get each member's net balance within the group
// @Tags        settlements
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Group ID"
// @Success     200 {object} map[string]interface{} "Member balances"
// @Failure     403 {object} ErrorResponse "Not a member"
// @Router      /groups/{id}/balances [get]
func (h *SettlementHandler) GetGroupBalances(c *gin.Context) {
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

	balances, err := h.settlementService.GroupBalances(userID, groupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

// SimplifyGroup returns a minimal settlement plan for a group.
// @Summary     Simplify group debts
// @Description Compute a near-minimal set of transfers that settles all member balances; read-only
// @Tags        settlements
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Group ID"
// @Success     200 {object} map[string]interface{} "Settlement plan"
// @Failure     403 {object} ErrorResponse "Not a member"
// @Router      /groups/{id}/simplify [get]
func (h *SettlementHandler) SimplifyGroup(c *gin.Context) {
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

	plan, err := h.settlementService.Simplify(userID, groupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfers": plan})
}

// RecordSettlement records a payment against an unsettled debt.
// @Summary     Record a settlement
// @Description Apply a payment from debtor to creditor against their unsettled debts, oldest first
// @Tags        settlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body RecordSettlementRequest true "Settlement details"
// @Success     200 {object} services.SettlementResult "Settlement applied"
// @Failure     400 {object} ErrorResponse "Invalid amount"
// @Failure     403 {object} ErrorResponse "Caller is not a party to the debt"
// @Failure     404 {object} ErrorResponse "No unsettled debt"
// @Router      /settlements [post]
func (h *SettlementHandler) RecordSettlement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecordSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.settlementService.RecordSettlement(userID, req.CreditorID, req.DebtorID, req.GroupID, req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"settlement": result})
}

// GetSettlements lists the caller's settled debts.
// @Summary     Settlement history
// @Description Get a paginated list of the caller's settled debts, newest first
// @Tags        settlements
// @Produce     json
// @Security    BearerAuth
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[models.Debt] "Settled debts"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /settlements [get]
func (h *SettlementHandler) GetSettlements(c *gin.Context) {
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

	history, err := h.settlementService.SettledHistory(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}
