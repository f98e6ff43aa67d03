package notification

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/SherClockHolmes/webpush-go"

	"yard-occupancy-backend/internal/ledger"
	"yard-occupancy-backend/internal/logging"
	"yard-occupancy-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Subscriptions is the part of the store the workers need.
type Subscriptions interface {
	SubscriptionsForKind(ctx context.Context, kind ledger.Kind) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Event announces that a container was assigned to some resources.
type Event struct {
	Kind        ledger.Kind
	ContainerID string
	Resources   []int
}

// Message renders the push payload, e.g. "Contenedor C1 asignado a puerta 0, 2".
func (e Event) Message() string {
	idx := make([]string, len(e.Resources))
	for i, r := range e.Resources {
		idx[i] = strconv.Itoa(r)
	}
	return fmt.Sprintf("Contenedor %s asignado a %s %s", e.ContainerID, e.Kind.Label(), strings.Join(idx, ", "))
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Event
	subs    Subscriptions
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool with a job queue of queueSize.
func NewWorkerPool(size, queueSize int, subs Subscriptions, webpushOptions *webpush.Options) *WorkerPool {
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, queueSize),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	logging.Debugf(ctx, "notification worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			wp.sendNotificationsForEvent(ctx, ev)
		case <-ctx.Done():
			logging.Debugf(ctx, "notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an event without blocking. It reports false when the queue
// is full and the event was dropped.
func (wp *WorkerPool) Dispatch(ev Event) bool {
	select {
	case wp.jobs <- ev:
		return true
	default:
		logging.Warnf(context.Background(), "notification queue full, dropping %s event for container %s", ev.Kind, ev.ContainerID)
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForEvent(ctx context.Context, ev Event) {
	subscriptions, err := wp.subs.SubscriptionsForKind(ctx, ev.Kind)
	if err != nil {
		logging.Errorf(ctx, "error fetching %s subscriptions: %v", ev.Kind, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	logging.Infof(ctx, "sending %d notifications for container %s", len(subscriptions), ev.ContainerID)
	payload := []byte(ev.Message())
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		logging.Errorf(ctx, "error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		logging.Infof(ctx, "subscription for endpoint %s is expired, deleting", sub.Endpoint)
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			logging.Errorf(ctx, "failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
