package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/icesealed/wyvern/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client writes EC telemetry to an InfluxDB v2 server. Writes are
// batched and non-blocking; failures surface through the SetOnError
// callback, never through the write calls. Safe for concurrent use.
type Client struct {
	cc     influxdb2.Client
	writer api.WriteAPI

	closed atomic.Bool

	errMu   sync.Mutex
	onError func(err error)
}

// Connect builds a client for the configured server and proves it
// answers a ping before returning. FlushInterval is in seconds;
// zero-valued batch settings fall back to the defaults.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushInterval
	}

	cc := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batch)).
			SetFlushInterval(uint(flush)*1000))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	ok, err := cc.Ping(ctx)
	if err != nil {
		cc.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !ok {
		cc.Close()
		return nil, fmt.Errorf("%w: server reports unhealthy", ErrConnectionFailed)
	}

	c := &Client{
		cc:     cc,
		writer: cc.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.drainWriteErrors(c.writer.Errors())
	return c, nil
}

// drainWriteErrors forwards async batch failures to the registered
// callback. The channel closes when the client closes.
func (c *Client) drainWriteErrors(errs <-chan error) {
	for err := range errs {
		c.errMu.Lock()
		cb := c.onError
		c.errMu.Unlock()
		if cb != nil {
			cb(err)
		}
	}
}

// SetOnError registers the callback invoked for asynchronous write
// failures.
func (c *Client) SetOnError(cb func(err error)) {
	c.errMu.Lock()
	c.onError = cb
	c.errMu.Unlock()
}

// IsConnected reports whether the client is open. It reflects Close
// having been called, not live server reachability; HealthCheck pings.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// HealthCheck pings the server, bounded by pingTimeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ok, err := c.cc.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb health check failed: server reports unhealthy")
	}
	return nil
}

// Flush blocks until buffered points are written. No-op after Close.
func (c *Client) Flush() {
	if c.writer == nil || c.closed.Load() {
		return
	}
	c.writer.Flush()
}

// Close flushes pending writes and shuts the client down.
func (c *Client) Close() error {
	if c.cc == nil || c.closed.Swap(true) {
		return nil
	}
	c.writer.Flush()
	c.cc.Close()
	return nil
}
