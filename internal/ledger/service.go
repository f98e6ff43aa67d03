package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"yard-occupancy-backend/internal/logging"
	"yard-occupancy-backend/internal/parse"
)

// Repository persists ledger documents.
//
// Update must only succeed when the stored version equals doc.Version, and on
// success must leave doc.Version incremented. A stale version yields
// ErrVersionConflict. Find yields ErrNotFound when the kind has no document,
// Create yields ErrAlreadyExists when it does.
type Repository interface {
	Find(ctx context.Context, kind Kind) (*Document, error)
	Create(ctx context.Context, doc *Document) error
	Update(ctx context.Context, doc *Document) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Observer receives ledger events, typically for metrics.
type Observer interface {
	Assigned(kind Kind, resources int)
	Cleared(kind Kind, slots int)
	Conflict(kind Kind)
}

type noopObserver struct{}

func (noopObserver) Assigned(Kind, int) {}
func (noopObserver) Cleared(Kind, int)  {}
func (noopObserver) Conflict(Kind)      {}

// Service applies occupancy operations to the ledger of a single kind.
type Service struct {
	kind       Kind
	repo       Repository
	clock      Clock
	loc        *time.Location
	maxRetries int
	observer   Observer
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation sets the zone used to derive date and time keys.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithMaxRetries bounds retries after a version conflict.
func WithMaxRetries(n int) Option {
	return func(s *Service) { s.maxRetries = n }
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService creates a ledger service for kind.
func NewService(kind Kind, repo Repository, opts ...Option) *Service {
	s := &Service{
		kind:       kind,
		repo:       repo,
		clock:      ClockFunc(time.Now),
		loc:        time.UTC,
		maxRetries: 5,
		observer:   noopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns the kind this service manages.
func (s *Service) Kind() Kind {
	return s.kind
}

// Assignment is the outcome of RecordAssignment.
type Assignment struct {
	Document  *Document `json:"ledger"`
	Date      DateKey   `json:"date"`
	Slot      SlotKey   `json:"slot"`
	Resources []int     `json:"resources"`
}

// ActiveReport lists the containers present on a date.
type ActiveReport struct {
	Date               DateKey  `json:"date"`
	ActiveContainerIDs []string `json:"active_container_ids"`
}

// Seed creates the ledger for this kind with count free resources.
func (s *Service) Seed(ctx context.Context, count int) (*Document, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: resource count must be positive, got %d", ErrValidation, count)
	}
	doc := NewDocument(s.kind, count)
	if err := s.repo.Create(ctx, doc); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create %s ledger: %v", ErrPersistence, s.kind, err)
	}
	logging.Infof(ctx, "seeded %s ledger with %d resources", s.kind, count)
	return doc, nil
}

// Get returns the current ledger document.
func (s *Service) Get(ctx context.Context) (*Document, error) {
	return s.load(ctx)
}

// SetOccupied opens or closes the gate of one resource.
func (s *Service) SetOccupied(ctx context.Context, index int, occupied bool) (*Document, error) {
	return s.mutate(ctx, func(doc *Document) (bool, error) {
		r, err := doc.Resource(index)
		if err != nil {
			return false, err
		}
		if r.IsOccupied == occupied {
			return false, nil
		}
		r.IsOccupied = occupied
		return true, nil
	})
}

// RecordAssignment marks containerID present on every resource matched by sel.
// An empty timestamp means now.
func (s *Service) RecordAssignment(ctx context.Context, sel Selector, containerID, timestamp string) (*Assignment, error) {
	containerID = strings.TrimSpace(containerID)
	if containerID == "" {
		return nil, fmt.Errorf("%w: container id is required", ErrValidation)
	}
	at, err := s.resolveTime(timestamp)
	if err != nil {
		return nil, err
	}

	date := DateKeyOf(at)
	slot := NewSlotKey(containerID, at)
	var touched []int

	doc, err := s.mutate(ctx, func(doc *Document) (bool, error) {
		touched = touched[:0]
		for i := range doc.Resources {
			if !sel(doc.Resources[i]) {
				continue
			}
			doc.Resources[i].Assign(date, slot)
			touched = append(touched, doc.Resources[i].Index)
		}
		if len(touched) == 0 {
			return false, fmt.Errorf("%w: no %s matches the assignment", ErrNoFreeResource, s.kind.Label())
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.observer.Assigned(s.kind, len(touched))
	logging.WithFields(ctx, map[string]interface{}{
		"kind":         s.kind,
		"container_id": containerID,
		"date":         date,
		"slot":         slot.String(),
		"resources":    touched,
	}).Info("assignment recorded")

	return &Assignment{Document: doc, Date: date, Slot: slot, Resources: touched}, nil
}

// ClearAssignment flips every present slot of containerID on asOf (default
// today) to false across all resources. It reports whether anything was cleared;
// having nothing to clear is not an error.
func (s *Service) ClearAssignment(ctx context.Context, containerID, asOf string) (bool, error) {
	containerID = strings.TrimSpace(containerID)
	if containerID == "" {
		return false, fmt.Errorf("%w: container id is required", ErrValidation)
	}
	at, err := s.resolveTime(asOf)
	if err != nil {
		return false, err
	}
	date := DateKeyOf(at)

	cleared := 0
	_, err = s.mutate(ctx, func(doc *Document) (bool, error) {
		cleared = 0
		for i := range doc.Resources {
			cleared += doc.Resources[i].Clear(date, containerID)
		}
		return cleared > 0, nil
	})
	if err != nil {
		return false, err
	}

	if cleared == 0 {
		logging.Debugf(ctx, "nothing to clear for container %s on %s in %s ledger", containerID, date, s.kind)
		return false, nil
	}
	s.observer.Cleared(s.kind, cleared)
	logging.Infof(ctx, "cleared %d slots for container %s on %s in %s ledger", cleared, containerID, date, s.kind)
	return true, nil
}

// QueryActiveToday lists the containers present today.
func (s *Service) QueryActiveToday(ctx context.Context) (ActiveReport, error) {
	return s.QueryActive(ctx, "")
}

// QueryActive lists the containers present on date (default today).
func (s *Service) QueryActive(ctx context.Context, date string) (ActiveReport, error) {
	at, err := s.resolveTime(date)
	if err != nil {
		return ActiveReport{}, err
	}
	key := DateKeyOf(at)

	doc, err := s.load(ctx)
	if err != nil {
		return ActiveReport{}, err
	}
	return ActiveReport{Date: key, ActiveContainerIDs: doc.ActiveOn(key)}, nil
}

func (s *Service) resolveTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return s.clock.Now().In(s.loc), nil
	}
	t, err := parse.Timestamp(raw, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return t, nil
}

func (s *Service) load(ctx context.Context) (*Document, error) {
	doc, err := s.repo.Find(ctx, s.kind)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no %s ledger", ErrNotFound, s.kind)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, s.aborted(ctxErr)
		}
		return nil, fmt.Errorf("%w: load %s ledger: %v", ErrPersistence, s.kind, err)
	}
	return doc, nil
}

// mutate runs a load-modify-write cycle conditioned on the document version,
// re-running fn on a fresh copy after each conflict. fn reports whether it
// changed anything; unchanged documents are not written.
func (s *Service) mutate(ctx context.Context, fn func(doc *Document) (bool, error)) (*Document, error) {
	for attempt := 0; ; attempt++ {
		doc, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		changed, err := fn(doc)
		if err != nil {
			return nil, err
		}
		if !changed {
			return doc, nil
		}

		err = s.repo.Update(ctx, doc)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, s.aborted(ctxErr)
			}
			return nil, fmt.Errorf("%w: save %s ledger: %v", ErrPersistence, s.kind, err)
		}

		s.observer.Conflict(s.kind)
		if attempt >= s.maxRetries {
			return nil, fmt.Errorf("%w: %s ledger after %d attempts", ErrConflict, s.kind, attempt+1)
		}
		logging.Warnf(ctx, "version conflict on %s ledger, retrying (attempt %d)", s.kind, attempt+1)
		if err := ctx.Err(); err != nil {
			return nil, s.aborted(err)
		}
	}
}

func (s *Service) aborted(ctxErr error) error {
	return fmt.Errorf("%w: %s ledger: %w", ErrAborted, s.kind, ctxErr)
}
