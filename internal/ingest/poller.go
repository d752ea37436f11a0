package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/types"
)

const (
	defaultTake        = 10
	defaultPollTimeout = 5 * time.Second
	maxBatchBodyBytes  = 8 << 20
	pollUserAgent      = "alert-dispatcher/v1"
)

// BatchHandler processes one batch of decoded alerts.
type BatchHandler func(ctx context.Context, alerts []types.AlertRecord) error

// PollerConfig configures a Poller.
type PollerConfig struct {
	// URL is the alerts API base; batches are read from {URL}/alerts?take={Take}.
	URL            string
	Take           int
	TimeoutSeconds int
}

// Poller pulls alert batches from the alerts API.
type Poller struct {
	httpClient *http.Client
	logger     *zap.Logger
	endpoint   string
}

// NewPoller creates a Poller. Returns an error if the URL is invalid.
func NewPoller(logger *zap.Logger, cfg PollerConfig) (*Poller, error) {
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("source URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("source URL must include a host")
	}

	take := cfg.Take
	if take <= 0 {
		take = defaultTake
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultPollTimeout
	}

	u = u.JoinPath("alerts")
	u.RawQuery = url.Values{"take": []string{strconv.Itoa(take)}}.Encode()

	return &Poller{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("poller"),
		endpoint:   u.String(),
	}, nil
}

// Endpoint returns the URL batches are read from.
func (p *Poller) Endpoint() string { return p.endpoint }

// Fetch reads one batch. Any retrieval failure is logged and yields an empty
// batch; undecodable elements are logged and skipped.
func (p *Poller) Fetch(ctx context.Context) []types.AlertRecord {
	body, err := p.get(ctx)
	if err != nil {
		ingestRecordsTotal.WithLabelValues(sourcePoll, "fetch_error").Inc()
		p.logger.Error("Failed to fetch alerts", zap.String("url", p.endpoint), zap.Error(err))
		return nil
	}

	alerts, decodeErrs, err := DecodeBatch(body)
	if err != nil {
		ingestRecordsTotal.WithLabelValues(sourcePoll, "fetch_error").Inc()
		p.logger.Error("Alerts API returned an unreadable batch", zap.Error(err))
		return nil
	}
	for _, de := range decodeErrs {
		ingestRecordsTotal.WithLabelValues(sourcePoll, "decode_error").Inc()
		p.logger.Warn("Skipping undecodable alert", zap.Int("index", de.Index), zap.Error(de.Err))
	}
	ingestRecordsTotal.WithLabelValues(sourcePoll, "ok").Add(float64(len(alerts)))

	p.logger.Debug("Fetched alerts", zap.Int("count", len(alerts)), zap.Int("skipped", len(decodeErrs)))
	return alerts
}

func (p *Poller) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", pollUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("alerts API returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBatchBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// Run fetches a batch immediately and then every interval, handing each
// non-empty batch to handle. Handler errors are logged and polling
// continues. Run returns when ctx is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration, handle BatchHandler) error {
	p.logger.Info("Polling alerts API",
		zap.String("url", p.endpoint),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if alerts := p.Fetch(ctx); len(alerts) > 0 {
			if err := handle(ctx, alerts); err != nil {
				p.logger.Error("Batch handler failed", zap.Int("size", len(alerts)), zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
