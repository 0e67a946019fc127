package proof

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/adhera-labs/adhera-backend/pkg/enums"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

// resolveTimeout bounds a single out-of-band resolution run.
const resolveTimeout = time.Minute

// Queue schedules immediate, non-blocking proof resolution for fresh
// entitlements. A failed or interrupted run is not retried here; the
// backfill job picks the row up again later.
type Queue struct {
	resolver *Resolver
	logg     *logger.Logger
}

// NewQueue builds the scheduler around a resolver.
func NewQueue(resolver *Resolver, logg *logger.Logger) *Queue {
	return &Queue{resolver: resolver, logg: logg}
}

// Schedule runs one resolution attempt in the background.
func (q *Queue) Schedule(kind enums.TransactionKind, entitlementID uuid.UUID, sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		ctx = q.logg.WithSessionID(ctx, sessionID)
		if _, err := q.resolver.ResolveForEntitlement(ctx, kind, entitlementID); err != nil {
			q.logg.Warn(ctx, "scheduled proof resolution failed; backfill job will retry")
		}
	}()
}
