package reportersvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/crashfeed/reporter/internal/service/models/report"
	"github.com/crashfeed/reporter/internal/worker/dispatch"
	"github.com/spf13/viper"
)

// ErrStartup reports that the dispatch worker could not be started.
var ErrStartup = errors.New("reporter startup failed")

// Config holds the bootstrap parameters forwarded to the dispatch worker.
type Config struct {
	Endpoint           string
	APIKey             string
	PersistenceEnabled bool
}

// Service is the caller-facing handle for the dispatch pipeline. The
// worker runs on its own goroutine; the only link between them is the
// inbox channel, so the caller never blocks on delivery.
type Service struct {
	inbox  chan dispatch.Message
	cancel context.CancelFunc
	done   chan struct{}

	disposeTimeout time.Duration

	mu       sync.Mutex
	disposed bool
}

// Start validates the configuration, spawns the dispatch worker goroutine
// and delivers the initial configuration message. The returned handle is
// ready for submissions immediately.
func Start(worker *dispatch.Worker, cfg Config) (*Service, error) {
	if worker == nil {
		return nil, fmt.Errorf("%w: nil worker", ErrStartup)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrStartup)
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("%w: invalid endpoint: %v", ErrStartup, err)
	}

	inboxSize := viper.GetInt("dispatch.inbox_size")
	if inboxSize == 0 {
		inboxSize = 128
	}

	disposeTimeoutSeconds := viper.GetInt("dispatch.dispose_timeout_seconds")
	if disposeTimeoutSeconds == 0 {
		disposeTimeoutSeconds = 5
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		inbox:          make(chan dispatch.Message, inboxSize),
		cancel:         cancel,
		done:           make(chan struct{}),
		disposeTimeout: time.Duration(disposeTimeoutSeconds) * time.Second,
	}

	go func() {
		defer close(s.done)
		worker.Run(ctx, s.inbox)
	}()

	s.inbox <- dispatch.Configure{
		Endpoint:           cfg.Endpoint,
		APIKey:             cfg.APIKey,
		PersistenceEnabled: cfg.PersistenceEnabled,
	}

	return s, nil
}

// Submit enqueues a record for delivery. It never blocks on delivery; when
// the inbox is full or the service is already disposed the record is
// dropped with an error log.
func (s *Service) Submit(rec report.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		slog.Error("Report submitted after dispose, dropping")

		return
	}

	select {
	case s.inbox <- dispatch.Submit{Record: rec}:
	default:
		slog.Error("Dispatch inbox full, dropping report")
	}
}

// Dispose sends the shutdown sentinel, waits for the worker's final drain
// and forcibly cancels it if it does not stop in time. Calling Dispose
// more than once is a no-op.
func (s *Service) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()

		return
	}
	s.disposed = true

	select {
	case s.inbox <- dispatch.Shutdown{}:
	default:
		slog.Warn("Dispatch inbox full, skipping final drain")
	}
	close(s.inbox)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(s.disposeTimeout):
		slog.Warn("Dispatch worker did not stop in time, terminating")
		s.cancel()
		<-s.done
	}

	s.cancel()
}
