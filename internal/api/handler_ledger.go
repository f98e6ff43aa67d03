package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"yard-occupancy-backend/internal/ledger"
	"yard-occupancy-backend/internal/notification"
)

// ledgerHandler serves the occupancy endpoints of one resource kind.
type ledgerHandler struct {
	svc      *ledger.Service
	notifier Notifier
}

// containerID accepts either a JSON string or a JSON number.
type containerID string

func (id *containerID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = containerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("container_id must be a string or a number")
	}
	*id = containerID(n.String())
	return nil
}

type seedRequest struct {
	Count int `json:"count" binding:"required"`
}

type statusRequest struct {
	IsOccupied *bool `json:"is_occupied" binding:"required"`
}

type assignmentRequest struct {
	ContainerID containerID `json:"container_id"`
	Timestamp   string      `json:"timestamp"`
	Pit         *int        `json:"pit"`
}

// Seed handles POST /api/{doors,pits}.
func (h *ledgerHandler) Seed(c *gin.Context) {
	var req seedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, codeInvalidRequest, "invalid request")
		return
	}
	doc, err := h.svc.Seed(c.Request.Context(), req.Count)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "ledger created", doc)
}

// Get handles GET /api/{doors,pits}.
func (h *ledgerHandler) Get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "ledger", doc)
}

// SetStatus handles PATCH /api/{doors,pits}/resources/:index/status.
func (h *ledgerHandler) SetStatus(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondCode(c, http.StatusBadRequest, codeInvalidRequest, "invalid resource index")
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, codeInvalidRequest, "invalid request")
		return
	}
	doc, err := h.svc.SetOccupied(c.Request.Context(), index, *req.IsOccupied)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "status updated", doc.Resources[index])
}

// RecordAssignment handles POST /api/{doors,pits}/assignments. Doors broadcast
// to every free door; pits target the requested pit, the first one by default.
func (h *ledgerHandler) RecordAssignment(c *gin.Context) {
	var req assignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, codeInvalidRequest, "invalid request")
		return
	}

	sel := ledger.Free()
	if h.svc.Kind() == ledger.KindPit {
		pit := 0
		if req.Pit != nil {
			pit = *req.Pit
		}
		sel = ledger.AtIndex(pit)
	}

	got, err := h.svc.RecordAssignment(c.Request.Context(), sel, string(req.ContainerID), req.Timestamp)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.notifier != nil {
		h.notifier.Dispatch(notification.Event{
			Kind:        h.svc.Kind(),
			ContainerID: got.Slot.ContainerID,
			Resources:   got.Resources,
		})
	}
	respondOK(c, http.StatusCreated, "assignment recorded", got)
}

// ClearAssignment handles DELETE /api/{doors,pits}/assignments/:container_id.
func (h *ledgerHandler) ClearAssignment(c *gin.Context) {
	id := c.Param("container_id")
	cleared, err := h.svc.ClearAssignment(c.Request.Context(), id, c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !cleared {
		respondCode(c, http.StatusNotFound, codeNothingToClear, "no active assignment to clear")
		return
	}
	respondOK(c, http.StatusOK, "assignment cleared", gin.H{"container_id": id, "cleared": true})
}

// Active handles GET /api/{doors,pits}/active.
func (h *ledgerHandler) Active(c *gin.Context) {
	report, err := h.svc.QueryActive(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "active containers", report)
}

func (h *ledgerHandler) register(g *gin.RouterGroup, caching gin.HandlerFunc) {
	g.POST("", caching, h.Seed)
	g.GET("", caching, h.Get)
	g.PATCH("/resources/:index/status", caching, h.SetStatus)
	g.POST("/assignments", caching, h.RecordAssignment)
	g.DELETE("/assignments/:container_id", caching, h.ClearAssignment)
	g.GET("/active", caching, h.Active)
}
