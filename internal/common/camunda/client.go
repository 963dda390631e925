// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"sync"
	"time"

	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/common/metrics"
	"weekly-intake/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler is implemented by every worker package's Handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
}

// Client owns the Zeebe gRPC connection and the job workers opened on it.
type Client struct {
	client  zbc.Client
	config  *ClientConfig
	obs     *observability.Observability
	logger  logger.Logger
	mu      sync.Mutex
	workers []worker.JobWorker
}

// NewClient dials the gateway and verifies it answers a topology request
// within ConnectionTimeout.
func NewClient(config *ClientConfig, obs *observability.Observability, log logger.Logger) (*Client, error) {
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = 10 * time.Second
	}
	if obs == nil {
		obs = observability.NewNoop()
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{
		client: zeebeClient,
		config: config,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"component": "zeebe"}),
	}, nil
}

// Register opens a job worker for taskType. Every handled job is timed.
func (c *Client) Register(taskType string, maxJobsActive int, timeout time.Duration, handler JobHandler) {
	jobWorker := c.client.NewJobWorker().
		JobType(taskType).
		Handler(c.instrument(taskType, handler)).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Open()

	c.mu.Lock()
	c.workers = append(c.workers, jobWorker)
	c.mu.Unlock()

	c.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": maxJobsActive,
		"timeoutMs":     timeout.Milliseconds(),
	})
}

func (c *Client) instrument(taskType string, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		handler.Handle(client, job)
		elapsed := time.Since(start)

		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		c.obs.RecordJob(context.Background(), taskType, elapsed)
	}
}

// HealthCheck performs a topology request against the Zeebe broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// Close stops every registered worker, waiting for in-flight jobs, then
// releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	workers := c.workers
	c.workers = nil
	c.mu.Unlock()

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	c.logger.Info("workers stopped", map[string]interface{}{"count": len(workers)})
	return c.client.Close()
}
