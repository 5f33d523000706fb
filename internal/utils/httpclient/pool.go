// Package httpclient pools pre-configured HTTP clients for outbound
// provider calls: registry lookups, document extraction and the SMS
// gateway. Pooling keeps transports (and their idle connections) warm
// across requests instead of rebuilding them per call.
package httpclient

import (
	"net/http"
	"sync"
	"time"
)

// Config tunes the clients a pool hands out.
type Config struct {
	Timeout             time.Duration
	PoolSize            int
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultConfig suits the provider APIs this service talks to: registry
// and extraction calls carry their own context deadlines below the client
// timeout, SMS gateway calls rely on it.
func DefaultConfig() Config {
	return Config{
		Timeout:             20 * time.Second,
		PoolSize:            12,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Pool hands out HTTP clients and takes them back after the call.
type Pool struct {
	clients chan *http.Client
	factory func() *http.Client
	mu      sync.RWMutex
	closed  bool
}

// New creates a pre-populated pool.
func New(cfg Config) *Pool {
	if cfg.PoolSize <= 0 {
		cfg = DefaultConfig()
	}

	pool := &Pool{
		clients: make(chan *http.Client, cfg.PoolSize),
		factory: func() *http.Client {
			return &http.Client{
				Timeout: cfg.Timeout,
				Transport: &http.Transport{
					MaxIdleConns:        cfg.MaxIdleConns,
					MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
					IdleConnTimeout:     cfg.IdleConnTimeout,
				},
			}
		},
	}

	for i := 0; i < cfg.PoolSize; i++ {
		pool.clients <- pool.factory()
	}

	return pool
}

// Get retrieves a client. An empty or closed pool yields a fresh client
// rather than blocking the provider call.
func (p *Pool) Get() *http.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return p.factory()
	}

	select {
	case client := <-p.clients:
		return client
	default:
		return p.factory()
	}
}

// Put returns a client to the pool; surplus clients are discarded.
func (p *Pool) Put(client *http.Client) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	select {
	case p.clients <- client:
	default:
	}
}

// Close shuts the pool down. Clients handed out earlier keep working.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	close(p.clients)
}

var (
	shared     *Pool
	sharedOnce sync.Once
)

// Shared returns the process-wide pool used by the provider clients.
func Shared() *Pool {
	sharedOnce.Do(func() {
		shared = New(DefaultConfig())
	})
	return shared
}
