// Package client provides the upstream HTTP client for the VWorld WFS API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"wfs-proxy/internal/config"
	"wfs-proxy/internal/metrics"
	"wfs-proxy/internal/model"
)

// ErrBodyTooLarge is returned when the upstream body exceeds upstream.max_body_bytes.
var ErrBodyTooLarge = errors.New("upstream response body too large")

// keyParamPattern matches the credential query parameter in URLs embedded in strings.
var keyParamPattern = regexp.MustCompile(`([?&]key=)[^&\s"]*`)

// RedactKey masks the value of the key query parameter in s.
func RedactKey(s string) string {
	return keyParamPattern.ReplaceAllString(s, "${1}[REDACTED]")
}

// WFSClient performs single-shot GETs against the upstream WFS.
type WFSClient struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewWFSClient creates a WFSClient with connection pooling and the configured timeout.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewWFSClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *WFSClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &WFSClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Upstream.Timeout(),
		},
		userAgent:    cfg.Upstream.UserAgent,
		maxBodyBytes: cfg.Upstream.MaxBodyBytes,
		logger:       logger.With("component", "wfs_client"),
		metrics:      m,
	}
}

// Fetch issues exactly one GET to target and reads the whole body. It never
// retries. Failures are reported through the result's Outcome, not an error
// return, so callers can switch on the kind.
func (c *WFSClient) Fetch(ctx context.Context, target *url.URL, accept string) *model.UpstreamResult {
	redacted := RedactKey(target.String())
	res := &model.UpstreamResult{URL: redacted}

	c.logger.Debug("upstream request", "url", redacted, "accept", accept)

	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(res.Outcome.String()).Observe(time.Since(start).Seconds())
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		res.Outcome = model.OutcomeTransportError
		res.Err = fmt.Errorf("build upstream request: %w", err)
		return res
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		res.Outcome = classify(err)
		res.Err = fmt.Errorf("upstream request: %w", err)
		c.logger.Warn("upstream request failed",
			"outcome", res.Outcome.String(),
			"err", RedactKey(err.Error()),
		)
		return res
	}
	defer func() { _ = resp.Body.Close() }()

	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	}

	body, err := c.readBody(resp.Body)
	if err != nil {
		res.Outcome = classify(err)
		res.Err = err
		return res
	}

	res.Outcome = model.OutcomeOK
	res.StatusCode = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")
	res.Body = body
	return res
}

// readBody reads the whole body, bounded by maxBodyBytes when it is positive.
func (c *WFSClient) readBody(r io.Reader) ([]byte, error) {
	bounded := c.maxBodyBytes > 0
	if bounded {
		r = io.LimitReader(r, c.maxBodyBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if bounded && int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: exceeds %s", ErrBodyTooLarge, humanize.IBytes(uint64(c.maxBodyBytes)))
	}
	return body, nil
}

// classify separates timeouts from every other transport failure.
func classify(err error) model.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.OutcomeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return model.OutcomeTimeout
	}
	return model.OutcomeTransportError
}
