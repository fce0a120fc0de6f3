package connectivity

import (
	"net"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Signal reports whether the network is currently reachable and supports a
// temporary forced-offline override used as a circuit breaker after a
// failed send.
type Signal struct {
	mu           sync.Mutex
	offlineUntil time.Time
	lastProbe    time.Time
	lastOnline   bool

	probeAddr    string
	probeTimeout time.Duration
	cacheFor     time.Duration
	dial         func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// option is a function that configures the Signal.
type option func(*Signal)

// NewSignal creates a new connectivity signal.
func NewSignal(opts ...option) *Signal {
	probeAddr := viper.GetString("connectivity.probe_address")
	if probeAddr == "" {
		probeAddr = "1.1.1.1:53"
	}

	probeTimeoutMs := viper.GetInt("connectivity.probe_timeout_ms")
	if probeTimeoutMs == 0 {
		probeTimeoutMs = 1000
	}

	cacheMs := viper.GetInt("connectivity.cache_ms")
	if cacheMs == 0 {
		cacheMs = 5000
	}

	s := &Signal{
		probeAddr:    probeAddr,
		probeTimeout: time.Duration(probeTimeoutMs) * time.Millisecond,
		cacheFor:     time.Duration(cacheMs) * time.Millisecond,
		dial:         net.DialTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithDialer sets the dial function used for reachability probes.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDialer(dial func(network, addr string, timeout time.Duration) (net.Conn, error)) option {
	return func(s *Signal) {
		s.dial = dial
	}
}

// WithProbeCache sets how long a probe result is reused before re-probing.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithProbeCache(d time.Duration) option {
	return func(s *Signal) {
		s.cacheFor = d
	}
}

// IsOnline reports the current connectivity state. An active offline
// override wins over the probe result.
func (s *Signal) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Before(s.offlineUntil) {
		return false
	}

	if now.Sub(s.lastProbe) < s.cacheFor {
		return s.lastOnline
	}

	conn, err := s.dial("tcp", s.probeAddr, s.probeTimeout)
	if err == nil {
		_ = conn.Close()
	}

	s.lastProbe = now
	s.lastOnline = err == nil

	return s.lastOnline
}

// ForceOfflineFor imposes an offline state for the given duration even if
// the underlying probe reports online. A shorter override never truncates
// a longer one already in effect.
func (s *Signal) ForceOfflineFor(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(s.offlineUntil) {
		s.offlineUntil = until
	}
}
