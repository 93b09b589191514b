package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/insight/pkg/pagination"
)

// System defines the public contract for job persistence.
type System interface {
	// Save writes the whole job record. Records already in a terminal state
	// are never rewritten; saving over one fails with ErrTerminal.
	Save(ctx context.Context, job *Job) error
	Find(ctx context.Context, id uuid.UUID) (*Job, error)
	ListByUser(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResult[Job], error)
	// Active returns jobs that are pending or processing and younger than window.
	// Older unfinished jobs are considered abandoned.
	Active(ctx context.Context, window time.Duration) ([]Job, error)
}
