package form

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
)

type memoryRepository struct {
	mu    sync.Mutex
	byKey map[string]Signup
	err   error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{byKey: make(map[string]Signup)}
}

func (r *memoryRepository) Insert(_ context.Context, s *Signup) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", false, r.err
	}
	if existing, ok := r.byKey[s.IdempotencyKey]; ok {
		return existing.ID, false, nil
	}
	r.byKey[s.IdempotencyKey] = *s
	return s.ID, true, nil
}

type memoryGuard struct {
	mu       sync.Mutex
	holders  map[string]string
	released []string
	err      error
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{holders: make(map[string]string)}
}

func (g *memoryGuard) Claim(_ context.Context, key, submissionID string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", false, g.err
	}
	if holder, ok := g.holders[key]; ok {
		return holder, false, nil
	}
	g.holders[key] = submissionID
	return submissionID, true, nil
}

func (g *memoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.holders, key)
	g.released = append(g.released, key)
	return nil
}

func storeSubmission(id string) Submission {
	p := testPayload()
	return Submission{ID: id, FormName: "early_access_form", Payload: p, IdempotencyKey: p.Fingerprint("early_access_form")}
}

func TestStoreEndpoint_RepeatedSubmissionIsAcknowledged(t *testing.T) {
	repo := newMemoryRepository()
	e := NewStoreEndpoint(repo, newMemoryGuard(), logger.NopLogger())

	first, err := e.Submit(context.Background(), storeSubmission("sub-1"))
	require.NoError(t, err)
	second, err := e.Submit(context.Background(), storeSubmission("sub-2"))
	require.NoError(t, err)

	assert.Equal(t, "sub-1", first.SubmissionID)
	assert.Equal(t, "sub-1", second.SubmissionID)
	assert.True(t, second.Success)
	assert.Len(t, repo.byKey, 1)
	assert.Equal(t, "Acme", repo.byKey[storeSubmission("").IdempotencyKey].Company)
}

func TestStoreEndpoint_RepositoryDedupesWithoutGuard(t *testing.T) {
	repo := newMemoryRepository()
	e := NewStoreEndpoint(repo, nil, logger.NopLogger())

	_, err := e.Submit(context.Background(), storeSubmission("sub-1"))
	require.NoError(t, err)
	second, err := e.Submit(context.Background(), storeSubmission("sub-2"))
	require.NoError(t, err)

	assert.Equal(t, "sub-1", second.SubmissionID)
	assert.Len(t, repo.byKey, 1)
}

func TestStoreEndpoint_GuardOutageFallsBackToRepository(t *testing.T) {
	repo := newMemoryRepository()
	guard := newMemoryGuard()
	guard.err = errors.New("redis down")
	e := NewStoreEndpoint(repo, guard, logger.NopLogger())

	outcome, err := e.Submit(context.Background(), storeSubmission("sub-1"))

	require.NoError(t, err)
	assert.Equal(t, "sub-1", outcome.SubmissionID)
}

func TestStoreEndpoint_InsertFailureReleasesKey(t *testing.T) {
	repo := newMemoryRepository()
	repo.err = errors.New("connection refused")
	guard := newMemoryGuard()
	e := NewStoreEndpoint(repo, guard, logger.NopLogger())

	_, err := e.Submit(context.Background(), storeSubmission("sub-1"))

	require.Error(t, err)
	assert.True(t, apperrors.IsServiceUnavailable(err))
	assert.Len(t, guard.released, 1)
	assert.Empty(t, guard.holders)
}
