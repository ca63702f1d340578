package form

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"microsite/internal/constants"
	"microsite/internal/logger"
	"microsite/pkg/metrics"
)

// Signup is a persisted early access submission.
type Signup struct {
	ID             string
	FormName       string
	Company        string
	Email          string
	Phone          string
	Budget         string
	Message        string
	Payload        Payload
	IdempotencyKey string
	SessionID      string
	CreatedAt      time.Time
}

func signupFrom(sub Submission) Signup {
	return Signup{
		ID:             sub.ID,
		FormName:       sub.FormName,
		Company:        sub.Payload["company"],
		Email:          sub.Payload["email"],
		Phone:          sub.Payload["phone"],
		Budget:         sub.Payload["budget"],
		Message:        sub.Payload["message"],
		Payload:        sub.Payload,
		IdempotencyKey: sub.IdempotencyKey,
		SessionID:      sub.SessionID,
	}
}

type Repository interface {
	// Insert stores s unless a signup with the same idempotency key exists,
	// and returns the id of the stored row either way.
	Insert(ctx context.Context, s *Signup) (id string, created bool, err error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, s *Signup) (string, bool, error) {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.IncDatabaseQuery(constants.ServiceName, "postgres", "insert_signup", status)
		metrics.ObserveDatabaseQueryDuration(constants.ServiceName, "postgres", "insert_signup", time.Since(start))
	}()

	payload, err := json.Marshal(s.Payload)
	if err != nil {
		status = "error"
		return "", false, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO signups (id, form_name, company, email, phone, budget, message, payload, idempotency_key, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`

	var id string
	err = r.db.QueryRowContext(ctx, query,
		s.ID, s.FormName, s.Company, s.Email, s.Phone, s.Budget, s.Message,
		payload, s.IdempotencyKey, s.SessionID, s.CreatedAt,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		status = "error"
		return "", false, fmt.Errorf("failed to insert signup: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM signups WHERE idempotency_key = $1`, s.IdempotencyKey,
	).Scan(&id)
	if err != nil {
		status = "error"
		return "", false, fmt.Errorf("failed to load existing signup: %w", err)
	}
	status = "duplicate"
	return id, false, nil
}

// IdempotencyGuard remembers which submission claimed an idempotency key.
type IdempotencyGuard interface {
	// Claim records submissionID for key unless the key is already held, in
	// which case it returns the holder.
	Claim(ctx context.Context, key, submissionID string) (holder string, claimed bool, err error)
	Release(ctx context.Context, key string) error
}

type RedisIdempotency struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisIdempotency(client redis.Cmdable, ttl time.Duration) *RedisIdempotency {
	return &RedisIdempotency{client: client, ttl: ttl}
}

func idempotencyKey(key string) string {
	return constants.CacheKeyPrefixIdempotency + key
}

func (g *RedisIdempotency) Claim(ctx context.Context, key, submissionID string) (string, bool, error) {
	ok, err := g.client.SetNX(ctx, idempotencyKey(key), submissionID, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if ok {
		return submissionID, true, nil
	}

	holder, err := g.client.Get(ctx, idempotencyKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// expired between SetNX and Get
			return g.Claim(ctx, key, submissionID)
		}
		return "", false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	return holder, false, nil
}

func (g *RedisIdempotency) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, idempotencyKey(key)).Err()
}

// StoreEndpoint persists submissions to the signup repository. A repeated
// identical submission is acknowledged with the original submission id.
type StoreEndpoint struct {
	repo   Repository
	guard  IdempotencyGuard
	logger logger.Logger
}

// NewStoreEndpoint builds a store endpoint. guard may be nil, in which case
// the repository's unique idempotency key alone prevents duplicates.
func NewStoreEndpoint(repo Repository, guard IdempotencyGuard, log logger.Logger) *StoreEndpoint {
	return &StoreEndpoint{repo: repo, guard: guard, logger: log}
}

func (e *StoreEndpoint) Name() string {
	return constants.EndpointStore
}

func (e *StoreEndpoint) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	if e.guard != nil {
		holder, claimed, err := e.guard.Claim(ctx, sub.IdempotencyKey, sub.ID)
		if err != nil {
			e.logger.WarnwCtx(ctx, "Idempotency guard unavailable, relying on database", "error", err)
		} else if !claimed {
			e.logger.InfowCtx(ctx, "Duplicate submission acknowledged", "submission_id", holder)
			return Outcome{Success: true, Message: MsgSubmissionSuccess, SubmissionID: holder}, nil
		}
	}

	signup := signupFrom(sub)
	id, created, err := e.repo.Insert(ctx, &signup)
	if err != nil {
		if e.guard != nil {
			if relErr := e.guard.Release(context.WithoutCancel(ctx), sub.IdempotencyKey); relErr != nil {
				e.logger.WarnwCtx(ctx, "Failed to release idempotency key", "error", relErr)
			}
		}
		e.logger.ErrorwCtx(ctx, "Failed to store signup", "error", err)
		return Outcome{}, ErrServerUnavailable.WithCause(err)
	}
	if !created {
		e.logger.InfowCtx(ctx, "Duplicate submission acknowledged", "submission_id", id)
	}

	return Outcome{Success: true, Message: MsgSubmissionSuccess, SubmissionID: id}, nil
}
