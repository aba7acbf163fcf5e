package amqpdriver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
)

type (
	// managementClient talks to the broker's management HTTP API. Queue
	// enumeration and non-destructive reads go through here; a circuit
	// breaker keeps a flapping management plane from being hammered.
	managementClient struct {
		client         *resty.Client
		circuitBreaker *gobreaker.CircuitBreaker
		vhost          string
		logger         infrastructure.Logger
	}

	managedQueue struct {
		Name      string `json:"name"`
		VHost     string `json:"vhost"`
		Messages  int64  `json:"messages"`
		Durable   bool   `json:"durable"`
		AutoDel   bool   `json:"auto_delete"`
		Exclusive bool   `json:"exclusive"`
	}

	retrievedMessage struct {
		Payload         string            `json:"payload"`
		PayloadBytes    int64             `json:"payload_bytes"`
		PayloadEncoding string            `json:"payload_encoding"`
		Redelivered     bool              `json:"redelivered"`
		Properties      messageProperties `json:"properties"`
	}

	messageProperties struct {
		MessageID     string         `json:"message_id"`
		CorrelationID string         `json:"correlation_id"`
		Priority      uint8          `json:"priority"`
		Timestamp     int64          `json:"timestamp"`
		ReplyTo       string         `json:"reply_to"`
		DeliveryMode  uint8          `json:"delivery_mode"`
		Headers       map[string]any `json:"headers"`
	}

	getMessagesRequest struct {
		Count    int    `json:"count"`
		AckMode  string `json:"ackmode"`
		Encoding string `json:"encoding"`
	}
)

const (
	ackModePeek    = "ack_requeue_true"
	ackModeReceive = "ack_requeue_false"
)

func newManagementClient(cfg config.DriverConfig, logger infrastructure.Logger) *managementClient {
	client := resty.New()

	client.SetBaseURL(fmt.Sprintf("http://%s:%d", cfg.Host, cfg.ManagementPort)).
		SetBasicAuth(cfg.Username, cfg.Password).
		SetTimeout(cfg.ConnectTimeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetHeader("Accept", "application/json")

	cbSettings := gobreaker.Settings{
		Name:        "amqp-management",
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info().
				Str("name", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &managementClient{
		client:         client,
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		vhost:          cfg.VirtualHost,
		logger:         logger,
	}
}

func (c *managementClient) listQueues(ctx context.Context, endpoint string) ([]managedQueue, error) {
	result, err := c.execute(ctx, endpoint, func() (any, error) {
		var queues []managedQueue

		resp, err := c.client.R().
			SetContext(ctx).
			SetResult(&queues).
			ForceContentType("application/json").
			Get("/api/queues/" + url.PathEscape(c.vhost))
		if err != nil {
			return nil, err
		}
		if err := c.checkStatus(resp, c.vhost); err != nil {
			return nil, err
		}

		return queues, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]managedQueue), nil
}

func (c *managementClient) queueInfo(ctx context.Context, endpoint, name string) (*managedQueue, error) {
	result, err := c.execute(ctx, endpoint, func() (any, error) {
		var queue managedQueue

		resp, err := c.client.R().
			SetContext(ctx).
			SetResult(&queue).
			ForceContentType("application/json").
			Get(fmt.Sprintf("/api/queues/%s/%s", url.PathEscape(c.vhost), url.PathEscape(name)))
		if err != nil {
			return nil, err
		}
		if err := c.checkStatus(resp, name); err != nil {
			return nil, err
		}

		return &queue, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*managedQueue), nil
}

// getMessages reads up to count messages. ackModePeek requeues them in place;
// ackModeReceive removes them from the queue.
func (c *managementClient) getMessages(ctx context.Context, endpoint, name string, count int, ackMode string) ([]retrievedMessage, error) {
	result, err := c.execute(ctx, endpoint, func() (any, error) {
		var messages []retrievedMessage

		resp, err := c.client.R().
			SetContext(ctx).
			SetBody(getMessagesRequest{Count: count, AckMode: ackMode, Encoding: "auto"}).
			SetResult(&messages).
			ForceContentType("application/json").
			Post(fmt.Sprintf("/api/queues/%s/%s/get", url.PathEscape(c.vhost), url.PathEscape(name)))
		if err != nil {
			return nil, err
		}
		if err := c.checkStatus(resp, name); err != nil {
			return nil, err
		}

		return messages, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]retrievedMessage), nil
}

func (c *managementClient) execute(ctx context.Context, endpoint string, call func() (any, error)) (any, error) {
	result, err := c.circuitBreaker.Execute(call)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.NewDomainError(
				"CIRCUIT_BREAKER_OPEN",
				"management API temporarily unavailable due to repeated failures",
				http.StatusServiceUnavailable,
				err,
			)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}

		return nil, domain.NewTransientError(endpoint, err)
	}

	return result, nil
}

func (c *managementClient) checkStatus(resp *resty.Response, resource string) error {
	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusNotFound:
		return domain.NewQueueNotFoundError(resource)
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return domain.NewAccessError(resource, fmt.Errorf("management API returned %d", resp.StatusCode()))
	default:
		return fmt.Errorf("management API returned %d: %s", resp.StatusCode(), resp.String())
	}
}

func timestampFromEpoch(epoch int64) time.Time {
	if epoch <= 0 {
		return time.Time{}
	}

	return time.Unix(epoch, 0).UTC()
}
