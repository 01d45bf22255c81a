package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/visaprep/internal/config"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres writes records to the interviews table.
type Postgres struct {
	db  execer
	now func() time.Time
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool, now: time.Now}
}

const insertInterview = `
	INSERT INTO interviews (id, session_id, user_name, email, transcript, analysis, question_count, answered, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (p *Postgres) Save(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = p.now().UTC()
	}
	_, err := p.db.Exec(ctx, insertInterview,
		uuid.New(),
		rec.SessionID,
		rec.UserName,
		rec.Email,
		rec.Transcript,
		rec.Analysis,
		rec.QuestionCount,
		rec.Answered,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert interview for session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
