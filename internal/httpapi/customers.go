package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"dealership-platform/internal/audit"
	"dealership-platform/internal/auth"
	"dealership-platform/internal/crm"
	"dealership-platform/internal/tasks"
	"dealership-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type createCustomerRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Phone     string `json:"phone_number" validate:"max=32"`
	Email     string `json:"email" validate:"omitempty,email"`
	Address   string `json:"address"`
	Tier      string `json:"customer_type" validate:"omitempty,oneof='Hot Lead' 'Warm Lead' 'Prospect' 'Cold Lead'"`
}

func (h Handlers) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.CRM.CreateCustomer(c.Request.Context(), crm.Customer{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
		Tier:      crm.Tier(req.Tier),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) ListCustomers(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 100)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	tier := crm.Tier(c.Query("customer_type"))
	if tier != "" && !tier.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown customer_type"})
		return
	}
	out, err := h.CRM.Store().ListCustomers(c.Request.Context(), crm.CustomerFilter{
		Tier:   tier,
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		fail(c, err)
		return
	}
	if out == nil {
		out = []crm.Customer{}
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.CRM.Store().GetCustomer(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type updateCustomerRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Phone     *string `json:"phone_number" validate:"omitempty,max=32"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Address   *string `json:"address"`
}

func (h Handlers) UpdateCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateCustomerRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.CRM.UpdateCustomer(c.Request.Context(), id, crm.CustomerPatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Address:   req.Address,
		Phone:     req.Phone,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DeleteCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.CRM.Store().DeleteCustomer(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setTierRequest struct {
	Tier   string `json:"customer_type" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// SetTier is the audited manual override of a customer's lead tier.
func (h Handlers) SetTier(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req setTierRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	prev, err := h.CRM.SetTier(ctx, id, crm.Tier(req.Tier), audit.SourceManual, auth.Actor(ctx), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer_id": id, "previous_status": prev, "new_status": req.Tier})
}

func (h Handlers) TierHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}
	out, err := h.Audit.History(c.Request.Context(), id, limit)
	if err != nil {
		fail(c, err)
		return
	}
	if out == nil {
		out = []audit.TierChange{}
	}
	c.JSON(http.StatusOK, out)
}

type logInteractionRequest struct {
	Channel string `json:"channel" validate:"required"`
	Content string `json:"content" validate:"max=20000"`
}

func (h Handlers) LogInteraction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req logInteractionRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	out, err := h.CRM.LogInteraction(ctx, id, crm.Channel(req.Channel), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	// The row is committed; a failed enqueue leaves it for the backlog check.
	if _, err := h.Dispatch.AnalyzeInteraction(ctx, out.ID); err != nil {
		logger.FromGin(c).Error("analysis enqueue failed", "interaction_id", out.ID, "err", err)
	}
	c.JSON(http.StatusCreated, out)
}

// ScheduleFollowup queues one of the fixed follow-up emails for a customer.
func (h Handlers) ScheduleFollowup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	followupType := strings.TrimSpace(c.Query("followup_type"))
	if _, known := tasks.FollowupFor(followupType); !known {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown followup_type"})
		return
	}
	ctx := c.Request.Context()
	if _, err := h.CRM.Store().GetCustomer(ctx, id); err != nil {
		fail(c, err)
		return
	}
	taskID, err := h.Dispatch.ScheduleFollowup(ctx, id, followupType)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "status": "queued", "followup_type": followupType})
}

func (h Handlers) Timeline(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.CRM.Timeline(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// StatsByType counts customers per lead tier.
func (h Handlers) StatsByType(c *gin.Context) {
	out, err := h.CRM.Store().CountByTier(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ListInteractions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.CRM.Store().GetCustomer(ctx, id); err != nil {
		fail(c, err)
		return
	}
	out, err := h.CRM.Store().ListInteractions(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	if out == nil {
		out = []crm.Interaction{}
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ListDocuments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.CRM.Store().GetCustomer(ctx, id); err != nil {
		fail(c, err)
		return
	}
	out, err := h.CRM.Store().ListDocuments(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	if out == nil {
		out = []crm.Document{}
	}
	c.JSON(http.StatusOK, out)
}

// --- Vehicles ---

type createVehicleRequest struct {
	ModelName            string          `json:"model_name" validate:"required,max=100"`
	Brand                string          `json:"brand" validate:"required,max=100"`
	BasePriceMinor       int64           `json:"base_price_minor" validate:"gt=0"`
	ConfigurationDetails json.RawMessage `json:"configuration_details"`
}

func (h Handlers) CreateVehicle(c *gin.Context) {
	var req createVehicleRequest
	if !bind(c, &req) {
		return
	}
	if len(req.ConfigurationDetails) > 0 && !json.Valid(req.ConfigurationDetails) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "configuration_details must be JSON"})
		return
	}
	out, err := h.CRM.Store().CreateVehicle(c.Request.Context(), crm.Vehicle{
		ModelName:            req.ModelName,
		Brand:                req.Brand,
		BasePriceMinor:       req.BasePriceMinor,
		ConfigurationDetails: req.ConfigurationDetails,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) ListVehicles(c *gin.Context) {
	out, err := h.CRM.Store().ListVehicles(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if out == nil {
		out = []crm.Vehicle{}
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetVehicle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.CRM.Store().GetVehicle(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
