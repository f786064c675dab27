package backend

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Client implements the wizard's ports against the delivery backend REST API
// (recipients, couriers, optimizer, assignments).
//
// It coordinates:
//   - Bearer authentication
//   - Retry with exponential backoff for idempotent calls
//   - A circuit breaker shared by every call
//
// The client is safe for concurrent use.
type Client struct {
	session     *http.Client
	baseURL     string
	token       string
	breaker     *gobreaker.CircuitBreaker
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
}

type Options struct {
	BaseURL string
	Token   string
	// HTTPClient defaults to a client with a timeout long enough for CVRP solves.
	HTTPClient *http.Client
	Logger     *zap.Logger
	// MaxAttempts and Backoff tune doWithRetry; zero values use 4 and 200ms.
	MaxAttempts int
	Backoff     time.Duration
	// OnBreakerChange is called on circuit breaker transitions.
	OnBreakerChange func(name, to string)
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("backend base url is empty")
	}

	c := &Client{
		session:     opts.HTTPClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		token:       opts.Token,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
	}
	if c.session == nil {
		c.session = &http.Client{Timeout: 90 * time.Second}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 4
	}
	if c.backoff <= 0 {
		c.backoff = 200 * time.Millisecond
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "delivery-backend",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Client errors are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if opts.OnBreakerChange != nil {
				opts.OnBreakerChange(name, to.String())
			}
		},
	})

	return c, nil
}
