// Package loadtest drives concurrent create calls against a Target and
// aggregates latency, throughput and error statistics.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
)

// Target is the create path under test.  *service.Service satisfies it
// directly; the gRPC client satisfies it remotely.
type Target interface {
	Create(ctx context.Context, u model.User) (*model.User, error)
}

// Deleter is implemented by targets that can remove what a run created.
type Deleter interface {
	Delete(ctx context.Context, id int64) error
}

// Config sizes a run.
type Config struct {
	// Workers is the number of concurrent callers.
	Workers int
	// RequestsPerWorker is the number of creates each caller performs.
	RequestsPerWorker int
	// Cleanup deletes every created user once the run is aggregated.
	// It requires the target to implement Deleter.
	Cleanup bool
}

func (c Config) validate() error {
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.RequestsPerWorker < 0 {
		return errors.New("requests per worker must not be negative")
	}
	return nil
}

// Harness runs load against a single Target.
type Harness struct {
	target Target
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Harness for target.  A nil logger disables logging.
func New(target Target, cfg Config, logger *zap.Logger) (*Harness, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{target: target, cfg: cfg, logger: logger, now: time.Now}, nil
}

// workerResult is what a single worker hands back at the barrier.
type workerResult struct {
	succeeded int
	failed    int
	total     time.Duration
	min       time.Duration
	max       time.Duration
	created   []int64
}

func (r *workerResult) record(d time.Duration) {
	if r.succeeded == 0 || d < r.min {
		r.min = d
	}
	if d > r.max {
		r.max = d
	}
	r.succeeded++
	r.total += d
}

// Run starts the configured number of workers, waits for all of them,
// and returns the aggregate Report.  Individual create failures are
// counted, never returned.  Cancelling ctx stops workers between
// iterations; the Report then covers the iterations that ran.
func (h *Harness) Run(ctx context.Context) (Report, error) {
	runID := strings.SplitN(uuid.NewString(), "-", 2)[0]
	var counter atomic.Int64
	results := make([]workerResult, h.cfg.Workers)

	h.logger.Info("load run starting",
		zap.String("run", runID),
		zap.Int("workers", h.cfg.Workers),
		zap.Int("requests_per_worker", h.cfg.RequestsPerWorker))

	var g errgroup.Group
	start := h.now()
	for w := 0; w < h.cfg.Workers; w++ {
		w := w
		g.Go(func() error {
			results[w] = h.work(ctx, runID, &counter)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := h.now().Sub(start)

	report := aggregate(h.cfg.Workers, results, elapsed)
	h.logger.Info("load run finished",
		zap.String("run", runID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.Elapsed),
		zap.Float64("throughput", report.Throughput))

	if h.cfg.Cleanup {
		h.cleanup(results)
	}
	return report, ctx.Err()
}

func (h *Harness) work(ctx context.Context, runID string, counter *atomic.Int64) workerResult {
	var res workerResult
	for i := 0; i < h.cfg.RequestsPerWorker; i++ {
		if ctx.Err() != nil {
			return res
		}
		u := Payload(runID, counter.Add(1))

		begin := h.now()
		created, err := h.target.Create(ctx, u)
		d := h.now().Sub(begin)
		if err != nil {
			res.failed++
			h.logger.Warn("create failed", zap.String("email", u.Email), zap.Error(err))
			continue
		}
		res.record(d)
		if h.cfg.Cleanup && created != nil {
			res.created = append(res.created, created.ID)
		}
	}
	return res
}

// cleanup removes users created by the run.  Errors are logged and
// otherwise ignored.
func (h *Harness) cleanup(results []workerResult) {
	d, ok := h.target.(Deleter)
	if !ok {
		h.logger.Warn("cleanup requested but target cannot delete")
		return
	}
	ctx := context.Background()
	removed := 0
	for _, r := range results {
		for _, id := range r.created {
			if err := d.Delete(ctx, id); err != nil {
				h.logger.Debug("cleanup delete failed", zap.Int64("id", id), zap.Error(err))
				continue
			}
			removed++
		}
	}
	h.logger.Info("cleanup finished", zap.Int("removed", removed))
}

// Payload synthesizes the n-th user of a run.  n comes from a shared
// atomic counter, so payloads are unique within a run regardless of
// clock resolution; runID keeps runs against one store apart.
func Payload(runID string, n int64) model.User {
	return model.User{
		Name:  fmt.Sprintf("LoadUser-%d", n),
		Email: fmt.Sprintf("loaduser%d-%s@test.com", n, runID),
		Age:   20 + int(n%30),
	}
}
