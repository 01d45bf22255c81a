// Package archive keeps a durable record of finalized interviews.
package archive

import (
	"context"
	"time"
)

// Record is one finalized interview.
type Record struct {
	SessionID     string
	UserName      string
	Email         string
	Transcript    string
	Analysis      string
	QuestionCount int
	Answered      int
	CreatedAt     time.Time
}

type Archive interface {
	Save(ctx context.Context, rec Record) error
}

// Noop discards records. Used when no database is configured.
type Noop struct{}

func (Noop) Save(context.Context, Record) error { return nil }
