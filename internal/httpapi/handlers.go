// Package httpapi holds the back-office JSON handlers. Handlers stay thin:
// bind and validate input, call an internal service, map errors to status
// codes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dealership-platform/internal/audit"
	"dealership-platform/internal/auth"
	"dealership-platform/internal/crm"
	"dealership-platform/internal/rbac"
	"dealership-platform/internal/reporting"
	"dealership-platform/internal/tasks"
	"dealership-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
)

// Dispatch is the subset of the task dispatcher the API enqueues through.
type Dispatch interface {
	ScoreLead(ctx context.Context, customerID int64, text string) (string, error)
	AnalyzeInteraction(ctx context.Context, interactionID int64) (string, error)
	ScheduleFollowup(ctx context.Context, customerID int64, followupType string, extra ...asynq.Option) (string, error)
	GenerateInvoice(ctx context.Context, customerID, vehicleID int64) (string, error)
	DailyNurture(ctx context.Context) (string, error)
}

type Handlers struct {
	Auth      *auth.Manager
	CRM       *crm.Service
	Audit     *audit.Service
	Dispatch  Dispatch
	Jobs      tasks.StatusReader
	Reporting *reporting.Service
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// bind decodes the JSON body into dst and runs struct validation.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "invalid " + fe.Field() + ": failed " + fe.Tag()
	}
	return err.Error()
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return n, true
}

// fail maps domain errors onto HTTP status codes.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, crm.ErrInvalidInput), errors.Is(err, reporting.ErrInvalidRequest), errors.Is(err, audit.ErrInvalidChange):
		status = http.StatusBadRequest
	case errors.Is(err, crm.ErrNotFound), errors.Is(err, tasks.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, crm.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func accepted(c *gin.Context, taskID string) {
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "status": "queued"})
}

// --- Auth ---

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	Role         string `json:"role" validate:"required"`
}

// Refresh exchanges a refresh token for a new pair scoped to role.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}
	if !rbac.Valid(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, req.Role, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}
