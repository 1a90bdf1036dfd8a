package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	accountsvc "github.com/david-jerry/heroku-suibison/internal/domain/services/account"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/staking"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/withdrawal"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

// UserHandlers exposes the user-facing service surface.
type UserHandlers struct {
	accounts    *accountsvc.Service
	staking     *staking.Service
	withdrawals *withdrawal.Service
	logger      *logger.Logger
}

// NewUserHandlers creates user handlers.
func NewUserHandlers(accounts *accountsvc.Service, stakingSvc *staking.Service, withdrawals *withdrawal.Service, log *logger.Logger) *UserHandlers {
	return &UserHandlers{
		accounts:    accounts,
		staking:     stakingSvc,
		withdrawals: withdrawals,
		logger:      log,
	}
}

type registerRequest struct {
	UserID        int64   `json:"user_id" binding:"required"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	ReferrerID    *int64  `json:"referrer_id"`
	WalletAddress string  `json:"wallet_address" binding:"required"`
	WalletPhrase  string  `json:"wallet_phrase" binding:"required"`
}

// Register creates an account with its wallet and referral edges.
func (h *UserHandlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), accountsvc.RegisterInput{
		UserID:        req.UserID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		ReferrerID:    req.ReferrerID,
		WalletAddress: req.WalletAddress,
		WalletPhrase:  req.WalletPhrase,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// GetUser returns the account with balances and referral tree.
func (h *UserHandlers) GetUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	view, err := h.accounts.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateProfile merges a partial profile update.
func (h *UserHandlers) UpdateProfile(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var update entities.AccountUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	account, err := h.accounts.UpdateProfile(c.Request.Context(), userID, update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// Activities lists the newest ledger events of an account.
func (h *UserHandlers) Activities(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	limit := parseIntParam(c, "limit", 50)
	activities, err := h.accounts.Activities(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

// Stake runs the deposit flow for the account's full custodial balance.
func (h *UserHandlers) Stake(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	stake, err := h.staking.Deposit(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stake)
}

type withdrawRequest struct {
	// Address is the user's own external wallet, the destination of the
	// transferred share.
	Address string `json:"address" binding:"required"`
}

// Withdraw pays out the account's earnings to the supplied external wallet.
func (h *UserHandlers) Withdraw(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	result, err := h.withdrawals.Withdraw(c.Request.Context(), userID, req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
