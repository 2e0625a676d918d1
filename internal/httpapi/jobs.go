package httpapi

import (
	"net/http"
	"strings"

	"dealership-platform/internal/crm"

	"github.com/gin-gonic/gin"
)

type scoreLeadRequest struct {
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	Text       string `json:"text" validate:"required,max=20000"`
}

// ScoreLead enqueues a scoring job. Existence of the customer is checked by
// the job itself so callers can score rows they have just created.
func (h Handlers) ScoreLead(c *gin.Context) {
	var req scoreLeadRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	id, err := h.Dispatch.ScoreLead(c.Request.Context(), req.CustomerID, req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	accepted(c, id)
}

type invoiceRequest struct {
	CustomerID int64 `json:"customer_id" validate:"required,gt=0"`
	VehicleID  int64 `json:"vehicle_id" validate:"required,gt=0"`
}

func (h Handlers) GenerateInvoice(c *gin.Context) {
	var req invoiceRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.CRM.Store().GetCustomer(ctx, req.CustomerID); err != nil {
		fail(c, err)
		return
	}
	if _, err := h.CRM.Store().GetVehicle(ctx, req.VehicleID); err != nil {
		fail(c, err)
		return
	}
	id, err := h.Dispatch.GenerateInvoice(ctx, req.CustomerID, req.VehicleID)
	if err != nil {
		fail(c, err)
		return
	}
	accepted(c, id)
}

func (h Handlers) TriggerNurture(c *gin.Context) {
	id, err := h.Dispatch.DailyNurture(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	accepted(c, id)
}

func (h Handlers) JobStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}
	st, err := h.Jobs.Status(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// --- Analytics ---

func (h Handlers) Dashboard(c *gin.Context) {
	days, ok := queryInt(c, "days", 30)
	if !ok {
		return
	}
	out, err := h.Reporting.Dashboard(c.Request.Context(), days)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) Pipeline(c *gin.Context) {
	out, err := h.Reporting.Pipeline(c.Request.Context(), crm.Tier(c.Query("status")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CustomerInsights(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.Reporting.CustomerInsights(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) Trends(c *gin.Context) {
	days, ok := queryInt(c, "days", 30)
	if !ok {
		return
	}
	out, err := h.Reporting.Trends(c.Request.Context(), days)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) AgentHealth(c *gin.Context) {
	out, err := h.Reporting.AgentHealth(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
