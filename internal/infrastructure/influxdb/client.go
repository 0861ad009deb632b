package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/pixelpanel/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// Default batching, used when the configured values are not positive.
const (
	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client writes device telemetry to one bucket.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Write operations are non-blocking and batched; failures surface
//     through the SetOnError callback and the Stats counters.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	open      atomic.Bool
	closeOnce sync.Once

	points      atomic.Uint64
	writeErrors atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Stats counts points handed to the write API and batches it failed to send.
type Stats struct {
	Points      uint64 `json:"points"`
	WriteErrors uint64 `json:"write_errors"`
	Bucket      string `json:"bucket"`
}

// Connect opens the telemetry sink for sensor and sysinfo points.
//
// It performs the following setup:
//  1. Creates the client with token authentication and batch settings
//  2. Pings the server within defaultConnectTimeout
//  3. Starts the non-blocking write API for cfg.Org and cfg.Bucket
//  4. Drains async write errors into the Stats counters and SetOnError
//
// Parameters:
//   - cfg: the influxdb section of the service config
//
// Returns:
//   - *Client: open client; writes never block the caller
//   - error: ErrDisabled when cfg.Enabled is false, or wraps
//     ErrConnectionFailed when the ping fails
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	// #nosec G115 -- both values are positive
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(positiveOr(cfg.BatchSize, defaultBatchSize))).
		SetFlushInterval(uint(positiveOr(cfg.FlushInterval, defaultFlushInterval)) * millisecondsPerSecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}
	c.open.Store(true)

	go c.handleWriteErrors(c.writeAPI.Errors())

	return c, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return errors.New("server not healthy")
	}
	return nil
}

// handleWriteErrors drains async write errors until the write API closes.
func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.writeErrors.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes pending points and closes the client. Safe to call twice.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.writeAPI.Flush()
		c.client.Close()
	})
	return nil
}

// HealthCheck pings the server for /health.
//
// Parameters:
//   - ctx: deadline for the ping
//
// Returns:
//   - error: ErrNotConnected after Close, otherwise the ping result
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open. It does not ping.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// SetOnError sets a callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are sent. No-op after Close.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}

// Stats returns the write counters.
func (c *Client) Stats() Stats {
	return Stats{
		Points:      c.points.Load(),
		WriteErrors: c.writeErrors.Load(),
		Bucket:      c.cfg.Bucket,
	}
}
