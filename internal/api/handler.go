package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"yard-occupancy-backend/internal/ledger"
	"yard-occupancy-backend/internal/notification"
	"yard-occupancy-backend/internal/store"
)

// Notifier queues assignment events for push delivery.
type Notifier interface {
	Dispatch(ev notification.Event) bool
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	doors   *ledgerHandler
	pits    *ledgerHandler
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler. notifier may be nil when push is disabled.
func NewHandler(doors, pits *ledger.Service, s store.Store, webpushOptions *webpush.Options, notifier Notifier) *Handler {
	return &Handler{
		doors:   &ledgerHandler{svc: doors, notifier: notifier},
		pits:    &ledgerHandler{svc: pits, notifier: notifier},
		store:   s,
		webpush: webpushOptions,
	}
}
