package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	accountsvc "github.com/david-jerry/heroku-suibison/internal/domain/services/account"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/matrixpool"
	"github.com/david-jerry/heroku-suibison/internal/domain/services/tokenmeter"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

// AdminHandlers exposes the operator surface.
type AdminHandlers struct {
	accounts *accountsvc.Service
	meter    *tokenmeter.Service
	pools    *matrixpool.Service
	logger   *logger.Logger
}

// NewAdminHandlers creates admin handlers.
func NewAdminHandlers(accounts *accountsvc.Service, meter *tokenmeter.Service, pools *matrixpool.Service, log *logger.Logger) *AdminHandlers {
	return &AdminHandlers{
		accounts: accounts,
		meter:    meter,
		pools:    pools,
		logger:   log,
	}
}

type createMeterRequest struct {
	Address  string          `json:"address" binding:"required"`
	Phrase   string          `json:"phrase" binding:"required"`
	TotalCap decimal.Decimal `json:"total_cap"`
	Price    decimal.Decimal `json:"price"`
}

// CreateTokenMeter sets up the platform custodial wallet record.
func (h *AdminHandlers) CreateTokenMeter(c *gin.Context) {
	var req createMeterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	meter, err := h.meter.Create(c.Request.Context(), tokenmeter.CreateInput{
		Address:  req.Address,
		Phrase:   req.Phrase,
		TotalCap: req.TotalCap,
		Price:    req.Price,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, meter)
}

// UpdateTokenMeter merges a partial meter update.
func (h *AdminHandlers) UpdateTokenMeter(c *gin.Context) {
	var update entities.TokenMeterUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	meter, err := h.meter.Update(c.Request.Context(), update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meter)
}

type banRequest struct {
	Blocked bool `json:"blocked"`
}

// BanUser soft-blocks or unblocks an account.
func (h *AdminHandlers) BanUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if err := h.accounts.SetBlocked(c.Request.Context(), userID, req.Blocked); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addPoolMemberRequest struct {
	UserID int64   `json:"user_id" binding:"required"`
	Name   *string `json:"name"`
}

// AddPoolMember adds an account to the active matrix pool by hand.
func (h *AdminHandlers) AddPoolMember(c *gin.Context) {
	var req addPoolMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if err := h.pools.AddMember(c.Request.Context(), req.UserID, req.Name); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats returns the platform overview.
func (h *AdminHandlers) Stats(c *gin.Context) {
	stats, err := h.accounts.PlatformStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
