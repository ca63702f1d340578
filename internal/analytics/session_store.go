package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"microsite/internal/constants"
	"microsite/pkg/metrics"
)

var ErrSessionNotFound = errors.New("page session not found")

// PageSession tracks one page view for scroll depth and time on page.
type PageSession struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	MaxScrollDepth int       `json:"max_scroll_depth"`
	Milestones     []int     `json:"milestones"`
	Page           Page      `json:"page"`
}

func (s *PageSession) reported(milestone int) bool {
	for _, m := range s.Milestones {
		if m == milestone {
			return true
		}
	}
	return false
}

type SessionStore interface {
	Save(ctx context.Context, session *PageSession) error
	Get(ctx context.Context, id string) (*PageSession, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	session   PageSession
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process, for single-instance deployments.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memoryEntry
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Save(_ context.Context, session *PageSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *session
	cp.Milestones = append([]int(nil), session.Milestones...)
	m.sessions[session.ID] = memoryEntry{session: cp, expiresAt: m.now().Add(m.ttl)}
	metrics.SetActivePageSessions(len(m.sessions))
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*PageSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok || m.now().After(entry.expiresAt) {
		return nil, ErrSessionNotFound
	}
	cp := entry.session
	cp.Milestones = append([]int(nil), entry.session.Milestones...)
	return &cp, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	metrics.SetActivePageSessions(len(m.sessions))
	return nil
}

// Prune drops expired sessions and returns how many were removed.
func (m *MemorySessionStore) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, entry := range m.sessions {
		if now.After(entry.expiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	metrics.SetActivePageSessions(len(m.sessions))
	return removed
}

// RunPruner prunes every interval until ctx is done.
func (m *MemorySessionStore) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune()
		}
	}
}

// RedisSessionStore shares sessions between service instances.
type RedisSessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSessionStore(client redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return constants.CacheKeyPrefixSession + id
}

func (r *RedisSessionStore) Save(ctx context.Context, session *PageSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (*PageSession, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session PageSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
