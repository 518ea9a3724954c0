package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/models"
	"github.com/photoproos/studio_backend/utils"
	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const recurringRunnerHandler = "recurring_runner"

type RecurringRunFailure struct {
	OrganizationId     string `json:"organization_id"`
	RecurringInvoiceId int    `json:"recurring_invoice_id"`
	Error              string `json:"error"`
}

// RecurringRunSummary counts materialized cycles. Skipped covers cycles that were already invoiced
// and agreements another worker held.
type RecurringRunSummary struct {
	AsOf     time.Time             `json:"as_of"`
	Due      int                   `json:"due"`
	Created  int                   `json:"created"`
	Skipped  int                   `json:"skipped"`
	Failed   int                   `json:"failed"`
	Failures []RecurringRunFailure `json:"failures,omitempty"`

	mu sync.Mutex
}

func (s *RecurringRunSummary) add(created, skipped int, failure *RecurringRunFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Created += created
	s.Skipped += skipped
	if failure != nil {
		s.Failed++
		s.Failures = append(s.Failures, *failure)
	}
}

type RecurringInvoiceRunner struct {
	DB          *gorm.DB
	Logger      *logrus.Logger
	Concurrency int
	MaxCatchUp  int
	BatchSize   int
	LockTTL     time.Duration

	// running guards against overlapping cron ticks inside one process.
	running sync.Mutex
}

func NewRecurringInvoiceRunner(db *gorm.DB, logger *logrus.Logger) *RecurringInvoiceRunner {
	return &RecurringInvoiceRunner{
		DB:          db,
		Logger:      logger,
		Concurrency: config.RecurringRunnerConcurrency(),
		MaxCatchUp:  config.RecurringMaxCatchUp(),
		BatchSize:   500,
		LockTTL:     2 * time.Minute,
	}
}

// Schedule registers the runner on a cron spec (6 fields, seconds first). The caller starts and stops the cron.
func (r *RecurringInvoiceRunner) Schedule(c *cron.Cron, spec string) error {
	return c.AddFunc(spec, func() {
		summary, err := r.Run(context.Background(), time.Now().UTC())
		if err != nil {
			if !errors.Is(err, ErrRunnerLockNotAcquired) {
				config.LogError(r.Logger, "RecurringInvoiceRunner", "Schedule", "scheduled run", spec, err)
			}
			return
		}
		r.logSummary(summary)
	})
}

// Run materializes every cycle due on or before asOf across all organizations.
func (r *RecurringInvoiceRunner) Run(ctx context.Context, asOf time.Time) (*RecurringRunSummary, error) {
	if !r.running.TryLock() {
		return nil, ErrRunnerLockNotAcquired
	}
	defer r.running.Unlock()

	ctx, span := otel.Tracer("workflow").Start(ctx, "RecurringInvoiceRunner.Run")
	defer span.End()

	db := r.DB
	if db == nil {
		db = config.GetDB()
	}
	summary := &RecurringRunSummary{AsOf: utils.ToDate(asOf)}

	work := func() error {
		due, err := models.ListDueRecurringInvoices(ctx, asOf, r.BatchSize)
		if err != nil {
			return err
		}
		summary.Due = len(due)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(r.Concurrency, 1))
		for _, item := range due {
			item := item
			g.Go(func() error {
				r.runOne(gctx, item, asOf, summary)
				return nil
			})
		}
		return g.Wait()
	}

	var err error
	if config.IsMySQL(db) {
		// GET_LOCK belongs to one connection, hold it on a pinned one for the whole run
		err = db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
			if err := AcquireRecurringRunnerLock(conn, 0); err != nil {
				return err
			}
			defer ReleaseRecurringRunnerLock(conn)
			return work()
		})
	} else {
		err = work()
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("recurring.due", summary.Due),
		attribute.Int("recurring.created", summary.Created),
		attribute.Int("recurring.skipped", summary.Skipped),
		attribute.Int("recurring.failed", summary.Failed),
	)
	return summary, nil
}

func (r *RecurringInvoiceRunner) runOne(ctx context.Context, item models.DueRecurringInvoice, asOf time.Time, summary *RecurringRunSummary) {
	lockKey := fmt.Sprintf("lock:recurring:%d", item.ID)
	lock, err := utils.ObtainLock(ctx, lockKey, r.LockTTL, "RecurringInvoiceRunner", "runOne")
	if errors.Is(err, redislock.ErrNotObtained) {
		summary.add(0, 1, nil)
		return
	}
	// any other Redis failure falls back to the row lock taken by materialize
	if lock != nil {
		defer lock.Release(context.Background())
	}

	orgCtx := utils.SetOrganizationIdInContext(ctx, item.OrganizationId)
	db := config.GetDB().WithContext(orgCtx)
	cycle := item.NextRunDate
	catchUp := max(r.MaxCatchUp, 1)

	for i := 0; i < catchUp && !cycle.After(utils.ToDate(asOf)); i++ {
		key := fmt.Sprintf("%d:%s", item.ID, cycle.Format(utils.DateLayout))
		skip, err := BeginIdempotency(db, item.OrganizationId, recurringRunnerHandler, key)
		if err != nil {
			if errors.Is(err, ErrIdempotencyInProgress) {
				summary.add(0, 1, nil)
				return
			}
			r.fail(summary, item, err)
			return
		}
		if skip {
			// an earlier run already finished this cycle
			summary.add(0, 1, nil)
			return
		}

		result, err := models.MaterializeRecurringInvoice(orgCtx, item.OrganizationId, item.ID, asOf)
		if err != nil {
			_ = MarkIdempotencyFailed(db, item.OrganizationId, recurringRunnerHandler, key, err)
			switch {
			case errors.Is(err, models.ErrRecurringInvoiceNotDue):
			case errors.Is(err, utils.ErrInvalidState), errors.Is(err, utils.ErrConcurrencyConflict):
				// paused, deactivated or advanced by someone else since it was listed
				summary.add(0, 1, nil)
			default:
				r.fail(summary, item, err)
			}
			return
		}
		if err := MarkIdempotencySucceeded(db, item.OrganizationId, recurringRunnerHandler, key); err != nil {
			config.LogError(r.Logger, "RecurringInvoiceRunner", "runOne", "mark idempotency", key, err)
		}

		if result.Created {
			summary.add(1, 0, nil)
		} else {
			summary.add(0, 1, nil)
		}
		cycle = result.RecurringInvoice.NextRunDate
	}
}

func (r *RecurringInvoiceRunner) fail(summary *RecurringRunSummary, item models.DueRecurringInvoice, err error) {
	config.LogError(r.Logger, "RecurringInvoiceRunner", "runOne", "materialize", item.ID, err)
	summary.add(0, 0, &RecurringRunFailure{
		OrganizationId:     item.OrganizationId,
		RecurringInvoiceId: item.ID,
		Error:              err.Error(),
	})
}

func (r *RecurringInvoiceRunner) logSummary(s *RecurringRunSummary) {
	if r.Logger == nil || s == nil {
		return
	}
	entry := r.Logger.WithFields(logrus.Fields{
		"field":   "RecurringInvoiceRunner",
		"as_of":   s.AsOf.Format(utils.DateLayout),
		"due":     s.Due,
		"created": s.Created,
		"skipped": s.Skipped,
		"failed":  s.Failed,
	})
	if s.Failed > 0 {
		entry.Error("recurring run finished with failures")
		return
	}
	entry.Info("recurring run finished")
}
