package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/adhera-labs/adhera-backend/internal/proof"
	"github.com/adhera-labs/adhera-backend/pkg/db/models"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
	"github.com/adhera-labs/adhera-backend/pkg/metrics"
)

const (
	defaultBackfillBatch    = 50
	defaultBackfillAttempts = 10
)

// proofResolver runs one idempotent resolution attempt for an entitlement.
type proofResolver interface {
	ResolveForEntitlement(ctx context.Context, kind enums.TransactionKind, id uuid.UUID) (*proof.Resolution, error)
}

type pendingProofReader interface {
	ListMembershipsMissingProof(ctx context.Context, maxAttempts, limit int) ([]models.Membership, error)
	ListTrainingsMissingProof(ctx context.Context, maxAttempts, limit int) ([]models.TrainingPurchase, error)
}

// ProofBackfillJobParams configures the proof backfill job.
type ProofBackfillJobParams struct {
	Logger      *logger.Logger
	Repo        pendingProofReader
	Resolver    proofResolver
	Metrics     *metrics.JobMetrics
	BatchSize   int
	MaxAttempts int
}

// NewProofBackfillJob builds the job that retries proof resolution for
// entitlements still missing a payment document.
func NewProofBackfillJob(params ProofBackfillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("resolver required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBackfillBatch
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultBackfillAttempts
	}
	return &proofBackfillJob{
		logg:        params.Logger,
		repo:        params.Repo,
		resolver:    params.Resolver,
		metrics:     params.Metrics,
		batch:       batch,
		maxAttempts: maxAttempts,
	}, nil
}

type proofBackfillJob struct {
	logg        *logger.Logger
	repo        pendingProofReader
	resolver    proofResolver
	metrics     *metrics.JobMetrics
	batch       int
	maxAttempts int
}

func (j *proofBackfillJob) Name() string { return "proof-backfill" }

func (j *proofBackfillJob) Run(ctx context.Context) error {
	memberships, err := j.repo.ListMembershipsMissingProof(ctx, j.maxAttempts, j.batch)
	if err != nil {
		return fmt.Errorf("list memberships missing proof: %w", err)
	}
	trainings, err := j.repo.ListTrainingsMissingProof(ctx, j.maxAttempts, j.batch)
	if err != nil {
		return fmt.Errorf("list trainings missing proof: %w", err)
	}
	j.metrics.SetBacklog(j.Name(), len(memberships)+len(trainings))

	var errs error
	resolved := 0
	for i := range memberships {
		if j.resolveOne(ctx, enums.TransactionKindMembership, memberships[i].ID, memberships[i].CheckoutSessionID, &errs) {
			resolved++
		}
	}
	for i := range trainings {
		if j.resolveOne(ctx, enums.TransactionKindTraining, trainings[i].ID, trainings[i].CheckoutSessionID, &errs) {
			resolved++
		}
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(memberships) + len(trainings),
		"resolved":   resolved,
	})
	j.logg.Info(reportCtx, "proof backfill loop complete")
	return errs
}

// resolveOne reports whether a proof document was attached this pass.
// Exhaustion is terminal but not an error; the resolver already marked
// the row so it drops out of the next scan.
func (j *proofBackfillJob) resolveOne(ctx context.Context, kind enums.TransactionKind, id uuid.UUID, sessionID string, errs *error) bool {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"kind":                kind,
		"entitlement_id":      id,
		"checkout_session_id": sessionID,
	})
	resolution, err := j.resolver.ResolveForEntitlement(logCtx, kind, id)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("resolve %s %s: %w", kind, id, err))
		return false
	}
	if resolution.Proof == nil {
		if resolution.Exhausted {
			j.logg.Warn(logCtx, "proof attempts exhausted; manual remediation needed")
		}
		return false
	}
	return true
}
