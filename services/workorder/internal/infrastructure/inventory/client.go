package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/autofix-platform/autofix/pkg/errors"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
	"github.com/autofix-platform/autofix/pkg/resilience"
	"github.com/autofix-platform/autofix/pkg/tenant"

	"github.com/autofix-platform/autofix/services/workorder/internal/application"
)

const (
	defaultTimeout = 3 * time.Second
	breakerName    = "inventory-client"
)

// checkOutcome separates business answers from transport failures so that a
// 404 for an unknown SKU does not count against the circuit breaker
type checkOutcome struct {
	availability *application.Availability
	businessErr  error
}

// Client calls the inventory service's HTTP API. All calls run through a
// circuit breaker; when the breaker is open or the call times out the caller
// gets ErrInventoryUnavailable and decides how to degrade.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

// NewClient creates a new inventory Client
func NewClient(baseURL string, m *metrics.Metrics, logger *logging.Logger) *Client {
	breaker := resilience.NewCircuitBreaker(
		resilience.DefaultCircuitBreakerConfig(breakerName),
		logger.Logger,
		func(name string, state int) {
			m.SetCircuitBreakerState(name, state)
			if state == 2 {
				m.RecordCircuitBreakerTrip(name)
			}
		},
	)

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: breaker,
		logger:  logger,
	}
}

type availabilityResponse struct {
	SKU        string `json:"sku"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
	Reserved   int    `json:"reserved"`
	Sufficient bool   `json:"sufficient"`
}

// CheckAvailability asks the inventory service whether sku can cover
// quantity. An unknown SKU propagates as a not-found AppError so the caller
// can reject the line outright instead of treating it as an outage.
func (c *Client) CheckAvailability(ctx context.Context, sku string, quantity int) (*application.Availability, error) {
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.fetchAvailability(ctx, sku, quantity)
	})
	if err != nil {
		c.logger.WithContext(ctx).Warn("Inventory availability check failed",
			"sku", sku, "error", err)
		return nil, fmt.Errorf("%w: %v", application.ErrInventoryUnavailable, err)
	}

	outcome := result.(checkOutcome)
	if outcome.businessErr != nil {
		return nil, outcome.businessErr
	}
	return outcome.availability, nil
}

func (c *Client) fetchAvailability(ctx context.Context, sku string, quantity int) (checkOutcome, error) {
	endpoint := fmt.Sprintf("%s/api/v1/products/%s/availability?quantity=%d",
		c.baseURL, url.PathEscape(sku), quantity)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return checkOutcome{}, fmt.Errorf("failed to build availability request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Tenant-ID", tenant.FromContextOrDefault(ctx))

	resp, err := c.http.Do(req)
	if err != nil {
		return checkOutcome{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body availabilityResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return checkOutcome{}, fmt.Errorf("failed to decode availability response: %w", err)
		}
		return checkOutcome{availability: &application.Availability{
			SKU:        body.SKU,
			Requested:  body.Requested,
			Available:  body.Available,
			Sufficient: body.Sufficient,
		}}, nil

	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return checkOutcome{businessErr: apperrors.ErrNotFoundWithID("product", sku)}, nil

	default:
		io.Copy(io.Discard, resp.Body)
		return checkOutcome{}, fmt.Errorf("inventory service returned status %d", resp.StatusCode)
	}
}

var _ application.AvailabilityChecker = (*Client)(nil)
