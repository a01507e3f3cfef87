package candidates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memStore struct {
	mu           sync.Mutex
	candidates   map[uuid.UUID]*db.Candidate
	applicants   map[uuid.UUID]int
	jobOwners    map[uuid.UUID]uuid.UUID
	decrementErr error
	reconciled   int64
}

func newMemStore() *memStore {
	return &memStore{
		candidates: make(map[uuid.UUID]*db.Candidate),
		applicants: make(map[uuid.UUID]int),
		jobOwners:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *memStore) CreateCandidate(_ context.Context, in *db.CandidateCreateInput) (*db.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &db.Candidate{
		ID: uuid.New(), UserID: in.UserID, JobID: in.JobID, Name: in.Name, Email: in.Email,
		Phone: in.Phone, Status: in.Status, Rating: in.Rating, ResumeURL: in.ResumeURL,
	}
	s.candidates[c.ID] = c
	return c, nil
}

func (s *memStore) GetCandidate(_ context.Context, userID, id uuid.UUID) (*db.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) ListCandidatesByJob(_ context.Context, userID, jobID uuid.UUID) ([]db.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Candidate
	for _, c := range s.candidates {
		if c.UserID == userID && c.JobID != nil && *c.JobID == jobID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *memStore) UpdateCandidateStatus(_ context.Context, userID, id uuid.UUID, status db.CandidateStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	c.Status = status
	return true, nil
}

func (s *memStore) UpdateCandidateRating(_ context.Context, userID, id uuid.UUID, rating int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	c.Rating = rating
	return true, nil
}

func (s *memStore) DeleteCandidate(_ context.Context, userID, id uuid.UUID) (*uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok || c.UserID != userID {
		return nil, false, nil
	}
	delete(s.candidates, id)
	return c.JobID, true, nil
}

func (s *memStore) DecrementApplicants(_ context.Context, userID, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decrementErr != nil {
		return s.decrementErr
	}
	if owner, ok := s.jobOwners[jobID]; ok && owner != userID {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if s.applicants[jobID] > 0 {
		s.applicants[jobID]--
	}
	return nil
}

func (s *memStore) ReconcileApplicantCounts(_ context.Context) (int64, error) {
	return s.reconciled, nil
}

func (s *memStore) applicantsFor(jobID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applicants[jobID]
}

type stubResolver struct {
	mu    sync.Mutex
	calls int
	res   resolver.Resolution
}

func (r *stubResolver) Resolve(_ context.Context, _ uuid.UUID, _ string) resolver.Resolution {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.res
}

func seed(t *testing.T, l *Lifecycle, userID uuid.UUID, jobID *uuid.UUID, resumeURL *string) *db.Candidate {
	t.Helper()
	c, err := l.Create(context.Background(), userID, &CreateInput{
		JobID: jobID, Name: "Ada Lovelace", Email: "ada@example.com", ResumeURL: resumeURL,
	})
	require.NoError(t, err)
	return c
}

func TestCreate(t *testing.T) {
	userID := uuid.New()
	jobID := uuid.New()
	store := newMemStore()
	l := New(store, nil, zap.NewNop())

	t.Run("defaults", func(t *testing.T) {
		c := seed(t, l, userID, &jobID, nil)
		assert.Equal(t, db.StatusNew, c.Status)
		assert.Equal(t, 0, c.Rating)
		assert.Equal(t, 0, store.applicantsFor(jobID), "create must not touch the counter")
	})

	t.Run("ai rating", func(t *testing.T) {
		rating := 7
		c, err := l.Create(context.Background(), userID, &CreateInput{Name: "Grace", Email: "grace@example.com", AIRating: &rating})
		require.NoError(t, err)
		assert.Equal(t, 7, c.Rating)
	})

	t.Run("invalid", func(t *testing.T) {
		rating := 11
		_, err := l.Create(context.Background(), userID, &CreateInput{Name: "X", Email: "not-an-email", AIRating: &rating})
		var vErr *ValidationError
		assert.True(t, errors.As(err, &vErr))
	})
}

func TestUpdateStatus_AnyTransition(t *testing.T) {
	userID := uuid.New()
	l := New(newMemStore(), nil, nil)
	c := seed(t, l, userID, nil, nil)

	// Hired back to New is allowed; there is no transition table.
	for _, status := range []db.CandidateStatus{db.StatusHired, db.StatusNew, db.StatusRejected, db.StatusOffer} {
		require.NoError(t, l.UpdateStatus(context.Background(), userID, c.ID, status))
		v, err := l.Get(context.Background(), userID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, status, v.Status)
	}
}

func TestUpdateStatus_Errors(t *testing.T) {
	userID := uuid.New()
	l := New(newMemStore(), nil, nil)
	c := seed(t, l, userID, nil, nil)

	var vErr *ValidationError
	require.True(t, errors.As(l.UpdateStatus(context.Background(), userID, c.ID, "Ghosted"), &vErr))
	assert.Equal(t, "status", vErr.Field)

	var nfErr *NotFoundError
	require.True(t, errors.As(l.UpdateStatus(context.Background(), userID, uuid.New(), db.StatusOffer), &nfErr))

	// another user's candidate is not visible
	require.True(t, errors.As(l.UpdateStatus(context.Background(), uuid.New(), c.ID, db.StatusOffer), &nfErr))
}

func TestUpdateRating(t *testing.T) {
	userID := uuid.New()
	l := New(newMemStore(), nil, nil)
	c := seed(t, l, userID, nil, nil)

	tests := []struct {
		rating  int
		wantErr bool
	}{
		{rating: -1, wantErr: true},
		{rating: 0},
		{rating: 10},
		{rating: 11, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("rating %d", tt.rating), func(t *testing.T) {
			err := l.UpdateRating(context.Background(), userID, c.ID, tt.rating)
			if tt.wantErr {
				var vErr *ValidationError
				assert.True(t, errors.As(err, &vErr))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		rating int
		want   Band
	}{
		{0, BandLow}, {4, BandLow}, {5, BandMedium}, {7, BandMedium}, {8, BandHigh}, {10, BandHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.rating), "rating %d", tt.rating)
	}
}

func TestGet_Enriched(t *testing.T) {
	userID := uuid.New()
	jobID := uuid.New()
	res := &stubResolver{res: resolver.Resolution{Kind: resolver.KindDirect, JobID: &jobID, JobTitle: "SRE"}}
	l := New(newMemStore(), res, nil)

	url := "https://files.example.com/" + uuid.NewString() + "/cv.pdf"
	c := seed(t, l, userID, &jobID, &url)

	v, err := l.Get(context.Background(), userID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "SRE", v.Application.JobTitle)
	assert.Equal(t, BandLow, v.Band)

	missing, err := l.Get(context.Background(), userID, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByJob_EnrichesEachCandidate(t *testing.T) {
	userID := uuid.New()
	jobID := uuid.New()
	res := &stubResolver{res: resolver.Resolution{Kind: resolver.KindViaApplication, JobTitle: "PM", Denormalized: true}}
	l := New(newMemStore(), res, nil)

	url := "/" + uuid.NewString()
	for i := 0; i < 20; i++ {
		seed(t, l, userID, &jobID, &url)
	}
	seed(t, l, userID, &jobID, nil)

	views, err := l.ListByJob(context.Background(), userID, jobID)
	require.NoError(t, err)
	require.Len(t, views, 21)
	assert.Equal(t, 20, res.calls, "candidates without a resume are not resolved")

	unresolved := 0
	for _, v := range views {
		if v.Application.Kind == resolver.KindUnresolved {
			unresolved++
		} else {
			assert.Equal(t, "PM", v.Application.JobTitle)
		}
	}
	assert.Equal(t, 1, unresolved)
}

func TestDelete_CounterInvariantUnderConcurrency(t *testing.T) {
	const n, m = 12, 7
	userID := uuid.New()
	jobID := uuid.New()
	store := newMemStore()
	l := New(store, nil, nil)

	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = seed(t, l, userID, &jobID, nil).ID
	}
	store.applicants[jobID] = n

	var wg sync.WaitGroup
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			ok, err := l.Delete(context.Background(), userID, id, nil)
			assert.NoError(t, err)
			assert.True(t, ok)
		}(ids[i])
	}
	wg.Wait()

	assert.Equal(t, n-m, store.applicantsFor(jobID))
}

func TestDelete_OwnerJobMustMatchRow(t *testing.T) {
	userID := uuid.New()
	rowJob := uuid.New()
	callerJob := uuid.New()
	store := newMemStore()
	l := New(store, nil, nil)

	c := seed(t, l, userID, &rowJob, nil)
	store.applicants[rowJob] = 1
	store.applicants[callerJob] = 1

	ok, err := l.Delete(context.Background(), userID, c.ID, &callerJob)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "job_id", vErr.Field)
	assert.False(t, ok)

	kept, _ := store.GetCandidate(context.Background(), userID, c.ID)
	assert.NotNil(t, kept, "rejected delete leaves the row")
	assert.Equal(t, 1, store.applicantsFor(callerJob))
	assert.Equal(t, 1, store.applicantsFor(rowJob))

	ok, err = l.Delete(context.Background(), userID, c.ID, &rowJob)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, store.applicantsFor(rowJob))
}

func TestDelete_OwnerJobUsedWhenRowHasNoJob(t *testing.T) {
	userID := uuid.New()
	jobID := uuid.New()
	store := newMemStore()
	store.jobOwners[jobID] = userID
	store.applicants[jobID] = 2
	l := New(store, nil, nil)

	c := seed(t, l, userID, nil, nil)
	ok, err := l.Delete(context.Background(), userID, c.ID, &jobID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.applicantsFor(jobID))
}

// A caller cannot lower another user's counter through its own candidate.
func TestDelete_CannotDecrementAnotherUsersJob(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	bobJob := uuid.New()
	store := newMemStore()
	store.jobOwners[bobJob] = bob
	store.applicants[bobJob] = 1
	l := New(store, nil, nil)

	c := seed(t, l, alice, nil, nil)
	ok, err := l.Delete(context.Background(), alice, c.ID, &bobJob)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.applicantsFor(bobJob))
}

func TestDelete_NotFound(t *testing.T) {
	store := newMemStore()
	jobID := uuid.New()
	store.applicants[jobID] = 3
	l := New(store, nil, nil)

	ok, err := l.Delete(context.Background(), uuid.New(), uuid.New(), &jobID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, store.applicantsFor(jobID), "no row deleted, no decrement")
}

func TestDelete_FloorsAtZero(t *testing.T) {
	userID := uuid.New()
	jobID := uuid.New()
	store := newMemStore()
	l := New(store, nil, nil)

	c := seed(t, l, userID, &jobID, nil)
	ok, err := l.Delete(context.Background(), userID, c.ID, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, store.applicantsFor(jobID))
}

func TestDelete_DriftWarningIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	userID := uuid.New()
	jobID := uuid.New()
	store := newMemStore()
	store.decrementErr = errors.New("deadlock detected")
	l := New(store, nil, zap.New(core))

	c := seed(t, l, userID, &jobID, nil)
	ok, err := l.Delete(context.Background(), userID, c.ID, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	entries := logs.FilterMessage("Applicant counter drift").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, jobID.String(), fields["job_id"])
	assert.Contains(t, fields["error"], "deadlock detected")
}

func TestReconcileApplicantCounts(t *testing.T) {
	store := newMemStore()
	store.reconciled = 2
	n, err := New(store, nil, nil).ReconcileApplicantCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
