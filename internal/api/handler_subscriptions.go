package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"yard-occupancy-backend/internal/ledger"
	"yard-occupancy-backend/internal/logging"
	"yard-occupancy-backend/internal/model"
	"yard-occupancy-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint string   `json:"endpoint" binding:"required"`
	P256DH   string   `json:"p256dh" binding:"required"`
	Auth     string   `json:"auth" binding:"required"`
	Kinds    []string `json:"kinds"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, codeInvalidRequest, "invalid request")
		return
	}

	kinds := make([]ledger.Kind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kind := ledger.Kind(k)
		if !kind.Valid() {
			respondCode(c, http.StatusBadRequest, codeValidation, "unknown kind "+k)
			return
		}
		kinds = append(kinds, kind)
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.UpsertSubscription(c.Request.Context(), subscription, kinds); err != nil {
		logging.Errorf(c.Request.Context(), "failed to store subscription: %v", err)
		respondCode(c, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, codeInvalidRequest, "invalid request")
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		logging.Errorf(c.Request.Context(), "failed to delete subscription: %v", err)
		respondCode(c, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		respondCode(c, http.StatusBadRequest, codeInvalidRequest, "endpoint is required")
		return
	}

	subscription, err := h.store.GetSubscription(c.Request.Context(), endpoint)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			respondCode(c, http.StatusNotFound, codeNotFound, "subscription not found")
		} else {
			logging.Errorf(c.Request.Context(), "failed to load subscription: %v", err)
			respondCode(c, http.StatusInternalServerError, codeInternal, "internal error")
		}
		return
	}

	kinds := make([]string, len(subscription.Kinds))
	for i, k := range subscription.Kinds {
		kinds[i] = k.Kind
	}

	c.JSON(http.StatusOK, gin.H{"kinds": kinds})
}
