package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository honoring the version contract.
type memRepo struct {
	mu      sync.Mutex
	docs    map[Kind]*Document
	writes  int
	findErr error
	saveErr error

	// beforeUpdate runs before the version check, letting tests simulate a
	// competing writer.
	beforeUpdate func(stored *Document)
}

func newMemRepo() *memRepo {
	return &memRepo{docs: make(map[Kind]*Document)}
}

func (m *memRepo) Find(_ context.Context, kind Kind) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	doc, ok := m.docs[kind]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *memRepo) Create(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.Kind]; ok {
		return ErrAlreadyExists
	}
	doc.ID = int64(len(m.docs) + 1)
	m.docs[doc.Kind] = doc.Clone()
	return nil
}

func (m *memRepo) Update(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	stored := m.docs[doc.Kind]
	if m.beforeUpdate != nil {
		m.beforeUpdate(stored)
	}
	if stored.Version != doc.Version {
		return ErrVersionConflict
	}
	doc.Version++
	m.docs[doc.Kind] = doc.Clone()
	m.writes++
	return nil
}

type countingObserver struct {
	assigned, cleared, conflicts int
}

func (o *countingObserver) Assigned(_ Kind, n int) { o.assigned += n }
func (o *countingObserver) Cleared(_ Kind, n int)  { o.cleared += n }
func (o *countingObserver) Conflict(Kind)          { o.conflicts++ }

var today = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newSeededService(t *testing.T, kind Kind, count int, opts ...Option) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	opts = append([]Option{WithClock(ClockFunc(func() time.Time { return today }))}, opts...)
	svc := NewService(kind, repo, opts...)
	_, err := svc.Seed(context.Background(), count)
	require.NoError(t, err)
	return svc, repo
}

func TestService_Seed(t *testing.T) {
	svc := NewService(KindDoor, newMemRepo())
	ctx := context.Background()

	doc, err := svc.Seed(ctx, 3)
	require.NoError(t, err)
	require.Len(t, doc.Resources, 3)
	for i, r := range doc.Resources {
		assert.Equal(t, i, r.Index)
		assert.False(t, r.IsOccupied)
	}

	_, err = svc.Seed(ctx, 3)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = NewService(KindPit, newMemRepo()).Seed(ctx, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_MissingLedger(t *testing.T) {
	svc := NewService(KindPit, newMemRepo())
	ctx := context.Background()

	_, err := svc.RecordAssignment(ctx, AtIndex(0), "C1", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ClearAssignment(ctx, "C1", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.QueryActiveToday(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RecordAssignment_BroadcastsToFreeDoors(t *testing.T) {
	svc, repo := newSeededService(t, KindDoor, 3)
	ctx := context.Background()

	_, err := svc.SetOccupied(ctx, 1, true)
	require.NoError(t, err)

	got, err := svc.RecordAssignment(ctx, Free(), "C1", "2024-06-01T09:00:30")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, got.Resources)
	assert.Equal(t, DateKey("01/06/24"), got.Date)
	assert.Equal(t, SlotKey{ContainerID: "C1", TimeOfDay: "09:00"}, got.Slot)

	stored, err := repo.Find(ctx, KindDoor)
	require.NoError(t, err)
	slot := SlotKey{ContainerID: "C1", TimeOfDay: "09:00"}
	assert.True(t, stored.Resources[0].Daily["01/06/24"][slot])
	assert.Empty(t, stored.Resources[1].Daily["01/06/24"])
	assert.True(t, stored.Resources[2].Daily["01/06/24"][slot])
}

func TestService_RecordAssignment_NoFreeDoor(t *testing.T) {
	svc, repo := newSeededService(t, KindDoor, 1)
	ctx := context.Background()
	_, err := svc.SetOccupied(ctx, 0, true)
	require.NoError(t, err)
	writes := repo.writes

	_, err = svc.RecordAssignment(ctx, Free(), "C1", "")
	assert.ErrorIs(t, err, ErrNoFreeResource)
	assert.Equal(t, writes, repo.writes)
}

func TestService_RecordAssignment_PitByIndex(t *testing.T) {
	svc, repo := newSeededService(t, KindPit, 2)
	ctx := context.Background()

	got, err := svc.RecordAssignment(ctx, AtIndex(1), "C9", "")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got.Resources)

	stored, _ := repo.Find(ctx, KindPit)
	assert.Empty(t, stored.Resources[0].Daily)
	assert.True(t, stored.Resources[1].Daily["01/06/24"][SlotKey{ContainerID: "C9", TimeOfDay: "12:00"}])
}

func TestService_MalformedInputRejected(t *testing.T) {
	svc, repo := newSeededService(t, KindPit, 1)
	ctx := context.Background()
	writes := repo.writes

	_, err := svc.RecordAssignment(ctx, AtIndex(0), "", "2024-06-01T10:00:00")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.RecordAssignment(ctx, AtIndex(0), "   ", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.RecordAssignment(ctx, AtIndex(0), "C1", "not-a-date")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.ClearAssignment(ctx, "C1", "yesterday")
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, writes, repo.writes, "rejected input must not write")
	stored, _ := repo.Find(ctx, KindPit)
	assert.Empty(t, stored.Resources[0].Daily)
}

func TestService_SameMinuteCollapses(t *testing.T) {
	svc, repo := newSeededService(t, KindPit, 1)
	ctx := context.Background()

	_, err := svc.RecordAssignment(ctx, AtIndex(0), "C1", "2024-06-01T10:00:05")
	require.NoError(t, err)
	_, err = svc.RecordAssignment(ctx, AtIndex(0), "C1", "2024-06-01T10:00:50")
	require.NoError(t, err)

	stored, _ := repo.Find(ctx, KindPit)
	assert.Len(t, stored.Resources[0].Daily["01/06/24"], 1)
}

func TestService_ActiveTodayLifecycle(t *testing.T) {
	obs := &countingObserver{}
	svc, _ := newSeededService(t, KindPit, 1, WithObserver(obs))
	ctx := context.Background()

	_, err := svc.RecordAssignment(ctx, AtIndex(0), "C1", "2024-06-01T09:00:00")
	require.NoError(t, err)
	_, err = svc.RecordAssignment(ctx, AtIndex(0), "C2", "2024-06-01T09:05:00")
	require.NoError(t, err)
	// Re-entry later the same day yields a second slot but one active id.
	_, err = svc.RecordAssignment(ctx, AtIndex(0), "C1", "2024-06-01T11:30:00")
	require.NoError(t, err)
	_, err = svc.RecordAssignment(ctx, AtIndex(0), "C3", "2024-01-01T10:00:00")
	require.NoError(t, err)

	report, err := svc.QueryActiveToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, DateKey("01/06/24"), report.Date)
	assert.ElementsMatch(t, []string{"C1", "C2"}, report.ActiveContainerIDs)

	cleared, err := svc.ClearAssignment(ctx, "C1", "")
	require.NoError(t, err)
	assert.True(t, cleared)

	report, err = svc.QueryActiveToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C2"}, report.ActiveContainerIDs)

	past, err := svc.QueryActive(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, DateKey("01/01/24"), past.Date)
	assert.Equal(t, []string{"C3"}, past.ActiveContainerIDs)

	assert.Equal(t, 4, obs.assigned)
	assert.Equal(t, 2, obs.cleared, "both C1 slots are cleared in one call")
}

func TestService_ClearIsIdempotent(t *testing.T) {
	svc, repo := newSeededService(t, KindDoor, 2)
	ctx := context.Background()

	_, err := svc.RecordAssignment(ctx, Free(), "C1", "")
	require.NoError(t, err)

	cleared, err := svc.ClearAssignment(ctx, "C1", "")
	require.NoError(t, err)
	assert.True(t, cleared)
	writes := repo.writes

	cleared, err = svc.ClearAssignment(ctx, "C1", "")
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Equal(t, writes, repo.writes, "nothing to clear must not write")

	stored, _ := repo.Find(ctx, KindDoor)
	for _, r := range stored.Resources {
		assert.Equal(t, false, r.Daily["01/06/24"][SlotKey{ContainerID: "C1", TimeOfDay: "12:00"}])
		assert.Len(t, r.Daily["01/06/24"], 1, "cleared slots are kept")
	}
}

func TestService_ClearOnlyTargetsDate(t *testing.T) {
	svc, _ := newSeededService(t, KindPit, 1)
	ctx := context.Background()

	_, err := svc.RecordAssignment(ctx, AtIndex(0), "C1", "2024-05-31T23:59:00")
	require.NoError(t, err)

	cleared, err := svc.ClearAssignment(ctx, "C1", "")
	require.NoError(t, err)
	assert.False(t, cleared)

	cleared, err = svc.ClearAssignment(ctx, "C1", "2024-05-31")
	require.NoError(t, err)
	assert.True(t, cleared)
}

func TestService_DateKeysFollowLocation(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	// 02:00 UTC on June 2nd is still June 1st in CST.
	clock := ClockFunc(func() time.Time { return time.Date(2024, 6, 2, 2, 0, 0, 0, time.UTC) })
	svc, _ := newSeededService(t, KindPit, 1, WithClock(clock), WithLocation(loc))

	got, err := svc.RecordAssignment(context.Background(), AtIndex(0), "C1", "")
	require.NoError(t, err)
	assert.Equal(t, DateKey("01/06/24"), got.Date)
	assert.Equal(t, "20:00", got.Slot.TimeOfDay)
}

func TestService_RetriesOnVersionConflict(t *testing.T) {
	obs := &countingObserver{}
	svc, repo := newSeededService(t, KindPit, 1, WithObserver(obs))
	ctx := context.Background()

	// A competing writer lands C0 between our load and our write, once.
	competed := false
	repo.beforeUpdate = func(stored *Document) {
		if competed {
			return
		}
		competed = true
		stored.Resources[0].Assign("01/06/24", SlotKey{ContainerID: "C0", TimeOfDay: "08:00"})
		stored.Version++
	}

	_, err := svc.RecordAssignment(ctx, AtIndex(0), "C1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, obs.conflicts)

	report, err := svc.QueryActiveToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C0", "C1"}, report.ActiveContainerIDs, "the competing write is not lost")
}

func TestService_ConflictRetriesExhausted(t *testing.T) {
	svc, repo := newSeededService(t, KindPit, 1, WithMaxRetries(2))
	repo.beforeUpdate = func(stored *Document) { stored.Version++ }

	_, err := svc.RecordAssignment(context.Background(), AtIndex(0), "C1", "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestService_CancelledDuringRetry(t *testing.T) {
	svc, repo := newSeededService(t, KindDoor, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo.beforeUpdate = func(stored *Document) {
		stored.Version++
		cancel()
	}

	_, err := svc.RecordAssignment(ctx, Free(), "C1", "")
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPersistence)
}

func TestService_CancelledStoreFailure(t *testing.T) {
	svc, repo := newSeededService(t, KindDoor, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo.findErr = context.Canceled
	_, err := svc.Get(ctx)
	assert.ErrorIs(t, err, ErrAborted)
	assert.NotErrorIs(t, err, ErrPersistence)
}

func TestService_PersistenceFailure(t *testing.T) {
	svc, repo := newSeededService(t, KindDoor, 1)
	ctx := context.Background()

	repo.saveErr = errors.New("connection reset")
	_, err := svc.RecordAssignment(ctx, Free(), "C1", "")
	assert.ErrorIs(t, err, ErrPersistence)

	repo.saveErr = nil
	repo.findErr = errors.New("connection refused")
	_, err = svc.QueryActiveToday(ctx)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestService_SetOccupied(t *testing.T) {
	svc, repo := newSeededService(t, KindDoor, 2)
	ctx := context.Background()

	doc, err := svc.SetOccupied(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, doc.Resources[1].IsOccupied)
	writes := repo.writes

	_, err = svc.SetOccupied(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, writes, repo.writes, "unchanged gate is not rewritten")

	_, err = svc.SetOccupied(ctx, 5, true)
	assert.ErrorIs(t, err, ErrValidation)
}
