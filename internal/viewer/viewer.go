// Package viewer owns the load chain and the interactive operations of the
// county map: factor selection, layer styling, and county detail lookup.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/county-factor-map/internal/dataset"
	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/geometry"
	"github.com/couchcryptid/county-factor-map/internal/observability"
)

// ErrNotReady is returned by operations that need the loaded data before
// the load chain has completed.
var ErrNotReady = errors.New("county data is not loaded yet")

// Opener fetches a resource by location.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Sources names the two input resources.
type Sources struct {
	Dataset  string
	Geometry string
}

// Snapshot is the immutable result of a completed load chain.
type Snapshot struct {
	Table *dataset.Table
	Layer *geometry.Layer
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithLabels replaces the built-in factor label table.
func WithLabels(labels *domain.LabelTable) Option {
	return func(v *Viewer) { v.labels = labels }
}

// WithBuckets replaces the built-in factor categories.
func WithBuckets(buckets []domain.Bucket) Option {
	return func(v *Viewer) { v.buckets = buckets }
}

// WithAttempts sets how many times each resource load is tried.
func WithAttempts(n int) Option {
	return func(v *Viewer) {
		if n > 0 {
			v.attempts = n
		}
	}
}

// WithBackoff overrides the retry delays between load attempts.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(v *Viewer) {
		v.initialBackoff = initial
		v.maxBackoff = maxDelay
	}
}

// WithPublisher sends interaction events to p.
func WithPublisher(p domain.EventPublisher) Option {
	return func(v *Viewer) { v.publisher = p }
}

// WithGeocoder enables place search.
func WithGeocoder(g domain.Geocoder) Option {
	return func(v *Viewer) { v.geocoder = g }
}

// Viewer loads the county data and serves the interactive operations.
type Viewer struct {
	opener  Opener
	sources Sources
	logger  *slog.Logger
	metrics *observability.Metrics

	labels    *domain.LabelTable
	buckets   []domain.Bucket
	publisher domain.EventPublisher
	geocoder  domain.Geocoder

	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	state   State
	snap    atomic.Pointer[Snapshot]
	loadErr atomic.Pointer[error]
}

// New creates a Viewer that reads its inputs through opener.
func New(opener Opener, sources Sources, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Viewer {
	v := &Viewer{
		opener:         opener,
		sources:        sources,
		logger:         logger,
		metrics:        metrics,
		labels:         domain.DefaultLabels(),
		buckets:        domain.DefaultBuckets(),
		publisher:      domain.NopPublisher{},
		attempts:       1,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// State exposes the shared view state.
func (v *Viewer) State() *State { return &v.state }

// Labels is the label table used for display text.
func (v *Viewer) Labels() *domain.LabelTable { return v.labels }

// Snapshot returns the loaded data, or false before the load chain completes.
func (v *Viewer) Snapshot() (*Snapshot, bool) {
	s := v.snap.Load()
	return s, s != nil
}

// CheckReadiness returns nil once dataset and geometry are both loaded.
func (v *Viewer) CheckReadiness(_ context.Context) error {
	if v.snap.Load() != nil {
		return nil
	}
	if errp := v.loadErr.Load(); errp != nil {
		return fmt.Errorf("load failed: %w", *errp)
	}
	return errors.New("dataset and geometry are not loaded yet")
}

// Load runs the load chain: the dataset is fetched and fully indexed before
// the geometry is requested. The snapshot is published only when both have
// succeeded. Each resource is retried with exponential backoff.
func (v *Viewer) Load(ctx context.Context) error {
	v.logger.Info("load started", "dataset", v.sources.Dataset, "geometry", v.sources.Geometry)

	table, err := withRetry(ctx, v, "dataset", v.loadDataset)
	if err != nil {
		return v.fail(err)
	}

	layer, err := withRetry(ctx, v, "geometry", v.loadGeometry)
	if err != nil {
		return v.fail(err)
	}

	v.snap.Store(&Snapshot{Table: table, Layer: layer})
	v.loadErr.Store(nil)
	v.metrics.Ready.Set(1)

	cov := Coverage(table, layer)
	v.logger.Info("load complete",
		"records", table.Len(),
		"features", layer.Len(),
		"factors", len(table.Factors()),
		"matched_records", cov.MatchedRecords,
		"unmatched_records", len(cov.UnmatchedRecords),
		"unmatched_features", cov.UnmatchedFeatures,
	)
	return nil
}

func (v *Viewer) fail(err error) error {
	v.loadErr.Store(&err)
	v.metrics.Ready.Set(0)
	return err
}

// withRetry runs fn up to v.attempts times, sleeping with backoff between
// failures. It returns the last error once attempts are exhausted or ctx ends.
func withRetry[T any](ctx context.Context, v *Viewer, resource string, fn func(context.Context) (T, error)) (T, error) {
	backoff := v.initialBackoff
	var zero T

	for attempt := 1; ; attempt++ {
		start := time.Now()
		out, err := fn(ctx)
		if err == nil {
			v.metrics.LoadDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
			return out, nil
		}

		v.metrics.LoadFailures.WithLabelValues(resource).Inc()
		if ctx.Err() != nil {
			return zero, fmt.Errorf("load %s: %w", resource, ctx.Err())
		}
		if attempt >= v.attempts {
			v.logger.Error("load failed", "resource", resource, "attempts", attempt, "error", err)
			return zero, fmt.Errorf("load %s: %w", resource, err)
		}

		v.logger.Warn("load attempt failed, retrying", "resource", resource,
			"attempt", attempt, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return zero, fmt.Errorf("load %s: %w", resource, ctx.Err())
		}
		backoff = nextBackoff(backoff, v.maxBackoff)
	}
}

func (v *Viewer) loadDataset(ctx context.Context) (*dataset.Table, error) {
	rc, err := v.opener.Open(ctx, v.sources.Dataset)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	table, err := dataset.Parse(rc, dataset.FormatFromPath(v.sources.Dataset))
	if err != nil {
		return nil, err
	}

	stats := table.Stats()
	v.metrics.DatasetRows.WithLabelValues("indexed").Add(float64(stats.Indexed))
	v.metrics.DatasetRows.WithLabelValues("skipped").Add(float64(stats.Skipped))
	v.metrics.DatasetRows.WithLabelValues("duplicate").Add(float64(stats.Duplicates))
	if stats.Skipped > 0 {
		v.logger.Debug("dataset rows skipped without a join key", "skipped", stats.Skipped)
	}
	v.logger.Info("dataset loaded", "rows", stats.Rows, "records", table.Len(),
		"skipped", stats.Skipped, "duplicates", stats.Duplicates)
	return table, nil
}

func (v *Viewer) loadGeometry(ctx context.Context) (*geometry.Layer, error) {
	rc, err := v.opener.Open(ctx, v.sources.Geometry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	layer, err := geometry.Decode(rc)
	if err != nil {
		return nil, err
	}

	v.metrics.GeometryFeatures.WithLabelValues("joined").Add(float64(layer.Len() - layer.Unjoined()))
	v.metrics.GeometryFeatures.WithLabelValues("unjoined").Add(float64(layer.Unjoined()))
	v.logger.Info("geometry loaded", "features", layer.Len(), "unjoined", layer.Unjoined())
	return layer, nil
}
