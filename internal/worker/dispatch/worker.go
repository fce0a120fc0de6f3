package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/crashfeed/reporter/internal/dal/interfaces/ireportrepo"
	"github.com/crashfeed/reporter/internal/service/models/report"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// DeliveryClient sends one serialized payload to a destination.
type DeliveryClient interface {
	Send(ctx context.Context, payload string, dest report.Destination) bool
}

// Signal gates delivery attempts on connectivity.
type Signal interface {
	IsOnline() bool
	ForceOfflineFor(d time.Duration)
}

// Worker drains pending reports to their destinations under a
// connectivity-aware retry policy. It runs as a single goroutine; all
// repository mutations are serialized through its loop, so no locking is
// needed beyond the message channel itself.
type Worker struct {
	repoFactory   func() (ireportrepo.IReportRepository, error)
	clientFactory func() DeliveryClient
	signal        Signal

	repo        ireportrepo.IReportRepository
	client      DeliveryClient
	defaultDest report.Destination
	configured  bool

	processDelay    time.Duration
	offlineCooldown time.Duration
	retention       time.Duration
}

// option is a function that configures the Worker.
type option func(*Worker)

// NewWorker creates a new dispatch worker. The repository and delivery
// client are instantiated lazily when the first Configure message arrives.
func NewWorker(
	repoFactory func() (ireportrepo.IReportRepository, error),
	clientFactory func() DeliveryClient,
	sig Signal,
	opts ...option,
) *Worker {
	processDelayMs := viper.GetInt("dispatch.process_delay_ms")
	if processDelayMs == 0 {
		processDelayMs = 50
	}

	offlineCooldownSeconds := viper.GetInt("dispatch.offline_cooldown_seconds")
	if offlineCooldownSeconds == 0 {
		offlineCooldownSeconds = 30
	}

	retentionHours := viper.GetInt("dispatch.retention_hours")
	if retentionHours == 0 {
		retentionHours = 24
	}

	w := &Worker{
		repoFactory:     repoFactory,
		clientFactory:   clientFactory,
		signal:          sig,
		processDelay:    time.Duration(processDelayMs) * time.Millisecond,
		offlineCooldown: time.Duration(offlineCooldownSeconds) * time.Second,
		retention:       time.Duration(retentionHours) * time.Hour,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WithProcessDelay sets the pause applied before handling each message.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithProcessDelay(d time.Duration) option {
	return func(w *Worker) {
		w.processDelay = d
	}
}

// WithOfflineCooldown sets the forced-offline window imposed after a
// failed send.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOfflineCooldown(d time.Duration) option {
	return func(w *Worker) {
		w.offlineCooldown = d
	}
}

// WithRetention sets the maximum age a record may reach before it is
// discarded on a failed send.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRetention(d time.Duration) option {
	return func(w *Worker) {
		w.retention = d
	}
}

// Run consumes messages from inbox until a Shutdown message arrives, the
// channel is closed or ctx is cancelled.
func (w *Worker) Run(ctx context.Context, inbox <-chan Message) {
	slog.Info("Dispatch worker started",
		"process_delay", w.processDelay,
		"offline_cooldown", w.offlineCooldown,
		"retention", w.retention,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatch worker shutting down")

			return
		case msg, ok := <-inbox:
			if !ok {
				slog.Info("Dispatch inbox closed")

				return
			}

			// Brief pause so we do not contend with submitters still
			// holding storage locks. Not required for correctness.
			if w.processDelay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.processDelay):
				}
			}

			if terminal := w.handle(ctx, msg); terminal {
				return
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg Message) (terminal bool) {
	switch m := msg.(type) {
	case Shutdown:
		w.drainAll(ctx)
		slog.Info("Dispatch worker stopped")

		return true
	case Configure:
		w.configure(ctx, m)
	case Submit:
		w.submit(ctx, m.Record)
	}

	return false
}

// configure wires the worker's collaborators exactly once, then drains
// every destination left over from previous runs.
func (w *Worker) configure(ctx context.Context, m Configure) {
	if w.configured {
		slog.Warn("Ignoring repeated configuration message")

		return
	}
	w.configured = true

	w.client = w.clientFactory()
	w.defaultDest = report.Destination{Endpoint: m.Endpoint, APIKey: m.APIKey}

	if m.PersistenceEnabled {
		repo, err := w.repoFactory()
		if err != nil {
			slog.Error("Failed to open report repository", "error", err)
		} else {
			w.repo = repo
		}
	}

	slog.Info("Dispatch worker configured",
		"endpoint", m.Endpoint,
		"persistence", m.PersistenceEnabled,
	)

	w.drainAll(ctx)
}

// submit persists the record before any delivery attempt, then drains its
// destination. Without a repository the record is sent once, best effort.
func (w *Worker) submit(ctx context.Context, rec report.Record) {
	if rec.Destination.Endpoint == "" {
		rec.Destination = w.defaultDest
	}

	if w.repo == nil {
		slog.Error("Report repository not configured, attempting direct send",
			"endpoint", rec.Destination.Endpoint,
		)

		client := w.client
		if client == nil {
			client = w.clientFactory()
		}
		if !client.Send(ctx, rec.Payload, rec.Destination) {
			slog.Error("Direct send failed, report lost", "endpoint", rec.Destination.Endpoint)
		}

		return
	}

	stored, err := w.repo.Add(ctx, rec)
	if err != nil {
		slog.Error("Failed to persist report", "error", err)

		return
	}

	w.drainDestination(ctx, stored.Destination)
}

// drainAll drains every destination with pending records, then garbage
// collects destinations left empty.
func (w *Worker) drainAll(ctx context.Context) {
	if w.repo == nil {
		return
	}

	ctx, span := otel.Tracer("dispatch").Start(ctx, "dispatch.full_drain")
	defer span.End()

	dests, err := w.repo.ListDestinations(ctx)
	if err != nil {
		slog.Error("Failed to list destinations", "error", err)

		return
	}

	for _, dest := range dests {
		w.drainDestination(ctx, dest)
	}

	if err := w.repo.PurgeUnusedDestinations(ctx); err != nil {
		slog.Error("Failed to purge unused destinations", "error", err)
	}
}

// drainDestination attempts delivery for every queued record of one
// destination, oldest first, stopping at the first halt so ordering is
// preserved across passes.
func (w *Worker) drainDestination(ctx context.Context, dest report.Destination) {
	records, err := w.repo.ListForDestination(ctx, dest)
	if err != nil {
		slog.Error("Failed to list pending reports", "endpoint", dest.Endpoint, "error", err)

		return
	}

	for _, rec := range records {
		if !w.trySend(ctx, rec) {
			return
		}
	}
}

// trySend applies the per-record send policy and reports whether draining
// of the record's destination may continue.
func (w *Worker) trySend(ctx context.Context, rec report.Record) bool {
	if !w.signal.IsOnline() {
		return false
	}

	if w.client.Send(ctx, rec.Payload, rec.Destination) {
		if err := w.repo.Remove(ctx, rec); err != nil {
			slog.Error("Failed to remove delivered report", "report_id", rec.ID, "error", err)
		}

		return true
	}

	// The endpoint refused us while the network looked fine. Back off
	// before hammering it again.
	if w.signal.IsOnline() {
		w.signal.ForceOfflineFor(w.offlineCooldown)
	}

	if time.Since(rec.CreatedAt) > w.retention {
		slog.Warn("Discarding report past retention cutoff",
			"report_id", rec.ID,
			"created_at", rec.CreatedAt,
		)
		if err := w.repo.Remove(ctx, rec); err != nil {
			slog.Error("Failed to remove expired report", "report_id", rec.ID, "error", err)
		}
	}

	return false
}
