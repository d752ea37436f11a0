package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcity/dispatcher/internal/types"
)

const (
	defaultHTTPTimeout = 5 * time.Second
	defaultUserAgent   = "alert-dispatcher/v1"
	maxErrorBodyBytes  = 512
)

// HTTPSenderConfig holds the configuration for creating an HTTPSender.
type HTTPSenderConfig struct {
	// BaseURL receives POST {BaseURL}/dispatch/{entityId}.
	BaseURL string
	// EntityURLs overrides the endpoint for individual entities.
	EntityURLs         map[string]string
	TimeoutSeconds     int
	InsecureSkipVerify bool
	// AuthToken is sent as a bearer token when set.
	AuthToken string
	UserAgent string
}

// HTTPSender implements Sender with one HTTP POST per call.
type HTTPSender struct {
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
	entityURLs map[types.EntityID]string
	authToken  string
	userAgent  string
}

// NewHTTPSender creates an HTTPSender. Returns an error if any URL is invalid.
func NewHTTPSender(logger *zap.Logger, cfg HTTPSenderConfig) (*HTTPSender, error) {
	if cfg.BaseURL == "" && len(cfg.EntityURLs) == 0 {
		return nil, fmt.Errorf("base URL or entity URLs are required")
	}
	if cfg.BaseURL != "" {
		if err := ValidateURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("base URL: %w", err)
		}
	}
	overrides := make(map[types.EntityID]string, len(cfg.EntityURLs))
	for entity, raw := range cfg.EntityURLs {
		if strings.TrimSpace(entity) == "" {
			return nil, fmt.Errorf("entity URL override has a blank entity id")
		}
		if err := ValidateURL(raw); err != nil {
			return nil, fmt.Errorf("URL for entity %s: %w", entity, err)
		}
		overrides[types.EntityID(entity)] = raw
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user-configured
		logger.Warn("Responder TLS certificate verification is disabled, this is insecure",
			zap.String("base_url", RedactURL(cfg.BaseURL)))
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &HTTPSender{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:     logger.Named("http-sender"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		entityURLs: overrides,
		authToken:  cfg.AuthToken,
		userAgent:  ua,
	}, nil
}

// Name implements Sender.
func (s *HTTPSender) Name() string { return "http" }

// EndpointFor returns the delivery URL for entity.
func (s *HTTPSender) EndpointFor(entity types.EntityID) (string, error) {
	if u, ok := s.entityURLs[entity]; ok {
		return u, nil
	}
	if s.baseURL == "" {
		return "", fmt.Errorf("no endpoint configured for entity %s", entity)
	}
	return s.baseURL + "/dispatch/" + url.PathEscape(string(entity)), nil
}

// Send implements Sender. It performs a single POST without retries.
func (s *HTTPSender) Send(ctx context.Context, entity types.EntityID, payload DispatchPayload) (int, error) {
	endpoint, err := s.EndpointFor(entity)
	if err != nil {
		return 0, &DeliveryError{Entity: entity, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, &DeliveryError{Entity: entity, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, &DeliveryError{Entity: entity, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Dispatch-ID", uuid.NewString())
	if payload.CorrelationID != "" {
		req.Header.Set("X-Correlation-ID", payload.CorrelationID)
	}
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, &DeliveryError{Entity: entity, Err: err}
	}
	defer func() {
		// Drain and close body to reuse connections.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	derr := &DeliveryError{Entity: entity, StatusCode: resp.StatusCode}
	if msg := strings.TrimSpace(string(snippet)); msg != "" {
		derr.Err = fmt.Errorf("%s", msg)
	}
	s.logger.Debug("Responder rejected dispatch",
		zap.String("entity", string(entity)),
		zap.String("url", RedactURL(endpoint)),
		zap.Int("status", resp.StatusCode),
	)
	return resp.StatusCode, derr
}

// ValidateURL checks that raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

// RedactURL masks credentials in a URL for safe logging.
// It redacts userinfo passwords and query parameter values.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.RawQuery == "" {
		return u.Redacted()
	}
	q := u.Query()
	for key := range q {
		q.Set(key, "REDACTED")
	}
	u.RawQuery = q.Encode()
	return u.Redacted()
}
