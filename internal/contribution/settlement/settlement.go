// Package settlement calls the external payment rail that actually moves
// money. The engine never retries settlements on its own: an unknown outcome
// is surfaced as a timeout so the caller can reconcile with the idempotency
// key instead of double-charging.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"fecguard/internal/contribution/ports"
	"fecguard/pkg/platform/circuit"
	"fecguard/pkg/platform/sentinel"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultProbeInterval = 30 * time.Second
)

// HTTPGateway settles contributions against an HTTP payment collaborator.
// A circuit breaker sheds calls while the collaborator is down so requests
// fail fast instead of queueing on a dead rail. While the circuit is open,
// one probe call per probe interval is let through to detect recovery.
type HTTPGateway struct {
	baseURL       string
	httpClient    *http.Client
	breaker       *circuit.Breaker
	probeInterval time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	lastProbe time.Time
}

// Option configures an HTTPGateway.
type Option func(*HTTPGateway)

// WithLogger sets the logger used for settlement outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(g *HTTPGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTimeout overrides the per-call settlement timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *HTTPGateway) {
		if timeout > 0 {
			g.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *HTTPGateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(breaker *circuit.Breaker) Option {
	return func(g *HTTPGateway) {
		if breaker != nil {
			g.breaker = breaker
		}
	}
}

// WithProbeInterval sets how often an open circuit lets a probe call through.
func WithProbeInterval(interval time.Duration) Option {
	return func(g *HTTPGateway) {
		if interval > 0 {
			g.probeInterval = interval
		}
	}
}

// NewHTTPGateway constructs a settlement gateway for the given collaborator URL.
func NewHTTPGateway(baseURL string, opts ...Option) (*HTTPGateway, error) {
	if baseURL == "" {
		return nil, errors.New("settlement: base URL is required")
	}
	g := &HTTPGateway{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		breaker:       circuit.New("settlement"),
		probeInterval: defaultProbeInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

type settleRequest struct {
	DonorID        string `json:"donor_id"`
	CampaignID     string `json:"campaign_id"`
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

type settleResponse struct {
	TransactionCode string `json:"transaction_code"`
	Status          string `json:"status"`
}

// Settle submits the payment and returns the collaborator's declared outcome.
// Returns sentinel.ErrTimeout when the outcome is unknown and
// sentinel.ErrUnavailable when the collaborator declared failure.
func (g *HTTPGateway) Settle(ctx context.Context, req ports.SettlementRequest) (*ports.SettlementResult, error) {
	if g.breaker.IsOpen() && !g.allowProbe() {
		g.logger.WarnContext(ctx, "settlement circuit open, call shed",
			"idempotency_key", req.IdempotencyKey)
		return nil, sentinel.ErrUnavailable
	}

	payload, err := json.Marshal(settleRequest{
		DonorID:        req.DonorID.String(),
		CampaignID:     req.CampaignID.String(),
		Amount:         req.Amount.String(),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal settlement request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/settlements", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build settlement request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		g.recordFailure(ctx)
		if isTimeout(err) {
			// The payment may or may not have gone through. The caller must
			// reconcile with the idempotency key, never blind-retry.
			g.logger.WarnContext(ctx, "settlement outcome unknown",
				"idempotency_key", req.IdempotencyKey, "error", err)
			return nil, sentinel.ErrTimeout
		}
		g.logger.WarnContext(ctx, "settlement unreachable",
			"idempotency_key", req.IdempotencyKey, "error", err)
		return nil, sentinel.ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// A declined payment is a collaborator decision, not an outage. It
		// does not count toward opening the circuit.
		g.logger.WarnContext(ctx, "settlement declined",
			"idempotency_key", req.IdempotencyKey, "status", resp.StatusCode)
		return nil, sentinel.ErrUnavailable
	}

	var body settleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		g.recordFailure(ctx)
		return nil, fmt.Errorf("decode settlement response: %w", err)
	}
	if body.TransactionCode == "" {
		g.recordFailure(ctx)
		return nil, fmt.Errorf("settlement response missing transaction code: %w", sentinel.ErrUnavailable)
	}

	g.recordSuccess(ctx)
	return &ports.SettlementResult{
		TransactionCode: body.TransactionCode,
		Status:          body.Status,
	}, nil
}

// allowProbe grants at most one call per probe interval while the circuit
// is open.
func (g *HTTPGateway) allowProbe() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if now.Sub(g.lastProbe) < g.probeInterval {
		return false
	}
	g.lastProbe = now
	return true
}

func (g *HTTPGateway) recordFailure(ctx context.Context) {
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.ErrorContext(ctx, "settlement circuit opened", "breaker", g.breaker.Name())
	}
}

func (g *HTTPGateway) recordSuccess(ctx context.Context) {
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "settlement circuit closed", "breaker", g.breaker.Name())
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
