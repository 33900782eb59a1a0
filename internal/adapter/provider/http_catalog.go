// Package provider supplies threat catalogs from outside the process.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/solhaga/threatlens/internal/adapter/loader"
	"github.com/solhaga/threatlens/internal/adapter/telemetry"
	"github.com/solhaga/threatlens/internal/core/domain"
)

// HTTPCatalogSource fetches a catalog document (JSON or YAML) from a remote
// URL. Long-running deployments refresh their catalog through it, so fetches
// are retried with exponential backoff and guarded by a circuit breaker to
// avoid hammering a feed that is down.
type HTTPCatalogSource struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	url     string
	config  HTTPCatalogConfig
}

// HTTPCatalogConfig holds retry and circuit breaker settings.
type HTTPCatalogConfig struct {
	MaxFailures     uint32
	CircuitTimeout  time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultHTTPCatalogConfig returns the default retry/breaker settings.
func DefaultHTTPCatalogConfig() HTTPCatalogConfig {
	return HTTPCatalogConfig{
		MaxFailures:     5,
		CircuitTimeout:  30 * time.Second,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// NewHTTPCatalogSource creates a catalog source for the given URL.
func NewHTTPCatalogSource(client *http.Client, url string, config HTTPCatalogConfig) *HTTPCatalogSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	settings := gobreaker.Settings{
		Name:        "catalog-feed",
		MaxRequests: 1,
		Timeout:     config.CircuitTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				telemetry.RecordCatalogFetchError("circuit_open")
			}
		},
	}

	return &HTTPCatalogSource{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		url:     url,
		config:  config,
	}
}

func (s *HTTPCatalogSource) Name() string {
	return fmt.Sprintf("http-catalog(%s)", s.url)
}

// FetchCatalog downloads and parses the remote catalog. Transient transport
// failures and 5xx responses are retried; parse and validation failures are
// permanent, since retrying the same malformed document cannot help.
func (s *HTTPCatalogSource) FetchCatalog(ctx context.Context) (*domain.Catalog, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetchWithRetry(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			telemetry.RecordCatalogFetchError("circuit_open")
			return nil, fmt.Errorf("catalog feed circuit breaker is open: %w", err)
		}
		return nil, err
	}
	return result.(*domain.Catalog), nil
}

func (s *HTTPCatalogSource) fetchWithRetry(ctx context.Context) (*domain.Catalog, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.config.InitialInterval
	expBackoff.MaxInterval = s.config.MaxInterval
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0

	retryBackoff := backoff.WithContext(backoff.WithMaxRetries(expBackoff, s.config.MaxRetries), ctx)

	var catalog *domain.Catalog

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build catalog request: %w", err))
		}

		resp, err := s.client.Do(req)
		if err != nil {
			telemetry.RecordCatalogFetchError("connection")
			return err // Retry
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			telemetry.RecordCatalogFetchError("server_error")
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status) // Retry
		}
		if resp.StatusCode != http.StatusOK {
			telemetry.RecordCatalogFetchError("http_error")
			return backoff.Permanent(fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			telemetry.RecordCatalogFetchError("connection")
			return err // Retry
		}

		catalog, err = loader.ParseCatalog(body)
		if err != nil {
			telemetry.RecordCatalogFetchError("parse")
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(operation, retryBackoff); err != nil {
		return nil, fmt.Errorf("catalog fetch failed after retries: %w", err)
	}

	return catalog, nil
}
