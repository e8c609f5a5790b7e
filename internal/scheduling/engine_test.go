package scheduling

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/apperr"
)

type fakeCatalog struct {
	sessions map[uuid.UUID]*models.Session
}

func (f *fakeCatalog) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	return f.sessions[id], nil
}

// fakeStore mirrors the pgx store's guarantees: capacity and duplicate rules
// are enforced under a lock, the way the row lock and partial unique index do
// in Postgres.
type fakeStore struct {
	mu      sync.Mutex
	catalog *fakeCatalog
	res     map[uuid.UUID]*models.Reservation
}

func newFakeStore(catalog *fakeCatalog) *fakeStore {
	return &fakeStore{catalog: catalog, res: make(map[uuid.UUID]*models.Reservation)}
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.res[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) FindActive(_ context.Context, userID, sessionID uuid.UUID) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.res {
		if r.UserID == userID && r.SessionID == sessionID && r.Status != models.ReservationCancelled {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) countConfirmedLocked(sessionID uuid.UUID) int {
	count := 0
	for _, r := range s.res {
		if r.SessionID == sessionID && r.Status == models.ReservationConfirmed {
			count++
		}
	}
	return count
}

func (s *fakeStore) CountConfirmed(_ context.Context, sessionID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countConfirmedLocked(sessionID), nil
}

func (s *fakeStore) ConfirmedSessions(_ context.Context, userID uuid.UUID) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Session
	for _, r := range s.res {
		if r.UserID == userID && r.Status == models.ReservationConfirmed {
			if sess := s.catalog.sessions[r.SessionID]; sess != nil {
				list = append(list, *sess)
			}
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartsAt.Before(list[j].StartsAt) })
	return list, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Reservation
	for _, r := range s.res {
		if r.UserID == userID {
			list = append(list, *r)
		}
	}
	return list, nil
}

func (s *fakeStore) Create(_ context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Status == models.ReservationConfirmed {
		sess := s.catalog.sessions[r.SessionID]
		if sess != nil && sess.Capacity != nil && s.countConfirmedLocked(r.SessionID) >= *sess.Capacity {
			return apperr.New(apperr.KindCapacityExceeded, "session is full")
		}
	}
	for _, existing := range s.res {
		if existing.UserID == r.UserID && existing.SessionID == r.SessionID && existing.Status != models.ReservationCancelled {
			return apperr.New(apperr.KindAlreadyReserved, "reservation already exists for this session")
		}
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	s.res[r.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.ReservationStatus) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.res[id]
	if !ok {
		return nil, nil
	}
	if status == models.ReservationConfirmed && r.Status != models.ReservationConfirmed {
		sess := s.catalog.sessions[r.SessionID]
		if sess != nil && sess.Capacity != nil && s.countConfirmedLocked(r.SessionID) >= *sess.Capacity {
			return nil, apperr.New(apperr.KindCapacityExceeded, "session is full")
		}
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.res, id)
	return nil
}

func at(hour, minute int) time.Time {
	return time.Date(2026, time.September, 14, hour, minute, 0, 0, time.UTC)
}

func newSession(title string, category models.SessionCategory, start, end time.Time, capacity *int) *models.Session {
	return &models.Session{
		ID:       uuid.New(),
		Title:    title,
		Category: category,
		StartsAt: start,
		EndsAt:   end,
		Capacity: capacity,
		Status:   models.SessionScheduled,
	}
}

func intPtr(n int) *int { return &n }

func newTestEngine(sessions ...*models.Session) (*Engine, *fakeStore) {
	catalog := &fakeCatalog{sessions: make(map[uuid.UUID]*models.Session)}
	for _, s := range sessions {
		catalog.sessions[s.ID] = s
	}
	store := newFakeStore(catalog)
	return NewEngine(catalog, store, nil), store
}

func TestCreateReservation_SessionNotFound(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.CreateReservation(context.Background(), uuid.New(), uuid.New(), models.ReservationConfirmed)
	require.Error(t, err)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateReservation_InvalidDesiredStatus(t *testing.T) {
	s := newSession("Go Workshop", models.CategoryWorkshop, at(9, 0), at(10, 0), nil)
	engine, _ := newTestEngine(s)

	_, err := engine.CreateReservation(context.Background(), uuid.New(), s.ID, models.ReservationCancelled)
	require.Error(t, err)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateReservation_Duplicate(t *testing.T) {
	s := newSession("Go Workshop", models.CategoryWorkshop, at(9, 0), at(10, 0), nil)
	engine, _ := newTestEngine(s)
	user := uuid.New()

	_, err := engine.CreateReservation(context.Background(), user, s.ID, models.ReservationWaitlisted)
	require.NoError(t, err)

	_, err = engine.CreateReservation(context.Background(), user, s.ID, models.ReservationConfirmed)
	require.Error(t, err)
	require.Equal(t, apperr.KindAlreadyReserved, apperr.KindOf(err))
}

func TestCreateReservation_CapacityExceeded(t *testing.T) {
	s := newSession("Keynote", models.CategoryTalk, at(9, 0), at(10, 0), intPtr(1))
	engine, _ := newTestEngine(s)

	_, err := engine.CreateReservation(context.Background(), uuid.New(), s.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	_, err = engine.CreateReservation(context.Background(), uuid.New(), s.ID, models.ReservationConfirmed)
	require.Error(t, err)
	require.Equal(t, apperr.KindCapacityExceeded, apperr.KindOf(err))
}

func TestCreateReservation_WaitlistBypassesCapacityAndOverlap(t *testing.T) {
	full := newSession("Keynote", models.CategoryTalk, at(9, 0), at(10, 0), intPtr(1))
	overlapping := newSession("Panel", models.CategoryPanel, at(9, 30), at(10, 30), nil)
	engine, _ := newTestEngine(full, overlapping)
	user := uuid.New()

	_, err := engine.CreateReservation(context.Background(), uuid.New(), full.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	_, err = engine.CreateReservation(context.Background(), user, overlapping.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	// Waitlisting on a full, overlapping session succeeds: the gates only
	// guard entry into confirmed.
	r, err := engine.CreateReservation(context.Background(), user, full.ID, models.ReservationWaitlisted)
	require.NoError(t, err)
	require.Equal(t, models.ReservationWaitlisted, r.Status)
}

func TestOverlap_BoundaryTouchIsNotAConflict(t *testing.T) {
	morning := newSession("Morning Talk", models.CategoryTalk, at(9, 0), at(10, 0), nil)
	next := newSession("Next Talk", models.CategoryTalk, at(10, 0), at(11, 0), nil)
	engine, _ := newTestEngine(morning, next)
	user := uuid.New()

	_, err := engine.CreateReservation(context.Background(), user, morning.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	// Back-to-back sessions must be permitted.
	_, err = engine.CreateReservation(context.Background(), user, next.ID, models.ReservationConfirmed)
	require.NoError(t, err)
}

func TestOverlap_Conflict(t *testing.T) {
	morning := newSession("Morning Talk", models.CategoryTalk, at(9, 0), at(10, 0), nil)
	clashing := newSession("Clashing Panel", models.CategoryPanel, at(9, 30), at(10, 30), nil)
	engine, _ := newTestEngine(morning, clashing)
	user := uuid.New()

	_, err := engine.CreateReservation(context.Background(), user, morning.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	_, err = engine.CreateReservation(context.Background(), user, clashing.ID, models.ReservationConfirmed)
	require.Error(t, err)
	require.Equal(t, apperr.KindScheduleConflict, apperr.KindOf(err))

	var de *apperr.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, "Morning Talk", de.Detail)
}

func TestOverlap_ShowcaseDemoExempt(t *testing.T) {
	cases := []struct {
		name   string
		first  models.SessionCategory
		second models.SessionCategory
	}{
		{"showcase then demo", models.CategoryShowcase, models.CategoryDemo},
		{"demo then showcase", models.CategoryDemo, models.CategoryShowcase},
		{"mixed case labels", models.SessionCategory("Showcase"), models.SessionCategory("DEMO")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newSession("Expo Floor", tc.first, at(9, 0), at(10, 0), nil)
			b := newSession("Product Demo", tc.second, at(9, 30), at(10, 30), nil)
			engine, _ := newTestEngine(a, b)
			user := uuid.New()

			_, err := engine.CreateReservation(context.Background(), user, a.ID, models.ReservationConfirmed)
			require.NoError(t, err)
			_, err = engine.CreateReservation(context.Background(), user, b.ID, models.ReservationConfirmed)
			require.NoError(t, err)
		})
	}
}

func TestOverlap_TwoDemosStillConflict(t *testing.T) {
	a := newSession("Demo A", models.CategoryDemo, at(9, 0), at(10, 0), nil)
	b := newSession("Demo B", models.CategoryDemo, at(9, 30), at(10, 30), nil)
	engine, _ := newTestEngine(a, b)
	user := uuid.New()

	_, err := engine.CreateReservation(context.Background(), user, a.ID, models.ReservationConfirmed)
	require.NoError(t, err)
	_, err = engine.CreateReservation(context.Background(), user, b.ID, models.ReservationConfirmed)
	require.Error(t, err)
	require.Equal(t, apperr.KindScheduleConflict, apperr.KindOf(err))
}

func TestUpdateReservation_OwnershipRequired(t *testing.T) {
	s := newSession("Talk", models.CategoryTalk, at(9, 0), at(10, 0), nil)
	engine, _ := newTestEngine(s)
	owner := uuid.New()

	r, err := engine.CreateReservation(context.Background(), owner, s.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	_, err = engine.UpdateReservation(context.Background(), uuid.New(), r.ID, models.ReservationCancelled)
	require.Error(t, err)
	require.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestUpdateReservation_ConfirmRechecksGates(t *testing.T) {
	s := newSession("Keynote", models.CategoryTalk, at(9, 0), at(10, 0), intPtr(1))
	engine, _ := newTestEngine(s)
	user := uuid.New()

	waiting, err := engine.CreateReservation(context.Background(), user, s.ID, models.ReservationWaitlisted)
	require.NoError(t, err)
	_, err = engine.CreateReservation(context.Background(), uuid.New(), s.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	_, err = engine.UpdateReservation(context.Background(), user, waiting.ID, models.ReservationConfirmed)
	require.Error(t, err)
	require.Equal(t, apperr.KindCapacityExceeded, apperr.KindOf(err))
}

func TestUpdateReservation_LeavingConfirmedNeverRechecks(t *testing.T) {
	// Two overlapping confirmed reservations can exist if the overlap was
	// created while one was exempt or data predates the rule; moving either
	// out of confirmed must always succeed.
	full := newSession("Keynote", models.CategoryTalk, at(9, 0), at(10, 0), intPtr(1))
	engine, _ := newTestEngine(full)
	user := uuid.New()

	r, err := engine.CreateReservation(context.Background(), user, full.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	updated, err := engine.UpdateReservation(context.Background(), user, r.ID, models.ReservationWaitlisted)
	require.NoError(t, err)
	require.Equal(t, models.ReservationWaitlisted, updated.Status)

	updated, err = engine.UpdateReservation(context.Background(), user, r.ID, models.ReservationCancelled)
	require.NoError(t, err)
	require.Equal(t, models.ReservationCancelled, updated.Status)
}

func TestDeleteReservation(t *testing.T) {
	s := newSession("Talk", models.CategoryTalk, at(9, 0), at(10, 0), intPtr(1))
	engine, store := newTestEngine(s)
	owner := uuid.New()

	r, err := engine.CreateReservation(context.Background(), owner, s.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	require.Error(t, engine.DeleteReservation(context.Background(), uuid.New(), r.ID))
	require.NoError(t, engine.DeleteReservation(context.Background(), owner, r.ID))

	err = engine.DeleteReservation(context.Background(), owner, r.ID)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.Empty(t, store.res)
}

func TestCheckConflicts_PreviewDoesNotPersist(t *testing.T) {
	morning := newSession("Morning Talk", models.CategoryTalk, at(9, 0), at(10, 0), nil)
	clashing := newSession("Clashing Panel", models.CategoryPanel, at(9, 30), at(10, 30), nil)
	engine, store := newTestEngine(morning, clashing)
	user := uuid.New()

	_, err := engine.CreateReservation(context.Background(), user, morning.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	report, err := engine.CheckConflicts(context.Background(), user, clashing.ID)
	require.NoError(t, err)
	require.True(t, report.HasConflicts)
	require.Len(t, report.Conflicts, 1)
	require.Equal(t, "Morning Talk", report.Conflicts[0].Title)
	require.Len(t, store.res, 1)

	report, err = engine.CheckConflicts(context.Background(), uuid.New(), clashing.ID)
	require.NoError(t, err)
	require.False(t, report.HasConflicts)
	require.Empty(t, report.Conflicts)
}

func TestLastSeatScenario(t *testing.T) {
	s := newSession("Session X", models.CategoryWorkshop, at(9, 0), at(10, 0), intPtr(1))
	engine, _ := newTestEngine(s)
	userA := uuid.New()
	userB := uuid.New()

	rA, err := engine.CreateReservation(context.Background(), userA, s.ID, models.ReservationConfirmed)
	require.NoError(t, err)

	_, err = engine.CreateReservation(context.Background(), userB, s.ID, models.ReservationConfirmed)
	require.Equal(t, apperr.KindCapacityExceeded, apperr.KindOf(err))

	require.NoError(t, engine.DeleteReservation(context.Background(), userA, rA.ID))

	_, err = engine.CreateReservation(context.Background(), userB, s.ID, models.ReservationConfirmed)
	require.NoError(t, err)
}

func TestConcurrentConfirms_NeverExceedCapacity(t *testing.T) {
	const capacity = 3
	const attempts = 24

	s := newSession("Hot Session", models.CategoryWorkshop, at(9, 0), at(10, 0), intPtr(capacity))
	engine, store := newTestEngine(s)

	var wg sync.WaitGroup
	var successes int32
	var successMu sync.Mutex
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateReservation(context.Background(), uuid.New(), s.ID, models.ReservationConfirmed)
			if err == nil {
				successMu.Lock()
				successes++
				successMu.Unlock()
			}
		}()
	}
	wg.Wait()

	count, err := store.CountConfirmed(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, capacity, count)
	require.EqualValues(t, capacity, successes)
}
