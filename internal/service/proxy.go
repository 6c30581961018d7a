// Package service implements the WFS proxy translation: parameter merging,
// credential injection, the upstream call and response normalization.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"wfs-proxy/internal/client"
	"wfs-proxy/internal/config"
	"wfs-proxy/internal/metrics"
	"wfs-proxy/internal/model"
)

const (
	paramKey    = "key"
	paramDomain = "domain"

	mimeJSON = "application/json"

	// nonJSONContentLimit is how many characters of a non-JSON body are echoed back.
	nonJSONContentLimit = 500
)

// Client-facing messages.
const (
	msgTimeout          = "Request timeout"
	msgNonJSON          = "Non-JSON response from VWorld"
	msgClientGone       = "client disconnected"
	msgResponseTooLarge = "upstream response too large"
)

// allowedUpstreamHosts restricts which hosts the proxy will send the key to.
var allowedUpstreamHosts = map[string]bool{
	"api.vworld.kr": true,
}

// Fetcher performs the single upstream GET.
type Fetcher interface {
	Fetch(ctx context.Context, target *url.URL, accept string) *model.UpstreamResult
}

// ProxyService handles the forwarding logic for WFS requests.
type ProxyService struct {
	client  Fetcher
	vworld  config.VWorldConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	baseURL *url.URL
}

// NewProxyService creates a ProxyService. The metrics parameter may be nil.
func NewProxyService(c *client.WFSClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	if !allowedUpstreamHosts[u.Hostname()] {
		return nil, fmt.Errorf("upstream host %q is not in the allowlist", u.Hostname())
	}

	return newProxyService(c, cfg, logger, m, u), nil
}

// NewProxyServiceForTest creates a ProxyService without host allowlist validation.
// This is intended only for tests that use httptest servers on localhost.
func NewProxyServiceForTest(c Fetcher, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	return newProxyService(c, cfg, logger, m, u), nil
}

func newProxyService(c Fetcher, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, u *url.URL) *ProxyService {
	return &ProxyService{
		client:  c,
		vworld:  cfg.VWorld,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		baseURL: u,
	}
}

// Forward rewrites the inbound query, performs the upstream call and returns the
// normalized response. It always returns a response; failures are encoded as
// error envelopes with the matching status code.
func (s *ProxyService) Forward(ctx context.Context, query url.Values) *model.ProxyResponse {
	params := MergeParams(query, s.vworld)
	wantJSON := WantsJSON(params)

	s.logger.Info("wfs request",
		"request", params["REQUEST"],
		"typename", params["TYPENAME"],
		"want_json", wantJSON,
	)

	res := s.client.Fetch(ctx, s.buildUpstreamURL(params), acceptFor(wantJSON))

	var resp *model.ProxyResponse
	switch res.Outcome {
	case model.OutcomeTimeout:
		resp = &model.ProxyResponse{
			StatusCode: http.StatusGatewayTimeout,
			Envelope:   model.ErrorEnvelope{Error: msgTimeout},
		}
	case model.OutcomeTransportError:
		resp = s.transportFailure(res)
	default:
		resp = Normalize(res, wantJSON)
	}

	s.record(res, resp, wantJSON)
	return resp
}

func (s *ProxyService) transportFailure(res *model.UpstreamResult) *model.ProxyResponse {
	msg := client.RedactKey(res.Err.Error())
	s.logger.Error("wfs proxy error", "err", msg, "url", res.URL)

	switch {
	case errors.Is(res.Err, context.Canceled):
		msg = msgClientGone
	case errors.Is(res.Err, client.ErrBodyTooLarge):
		msg = msgResponseTooLarge
	}

	return &model.ProxyResponse{
		StatusCode: http.StatusBadGateway,
		Envelope: model.TransportErrorEnvelope{
			Error:    msg,
			Upstream: s.baseURL.String(),
			URL:      res.URL,
		},
	}
}

// record updates the per-kind response counter.
func (s *ProxyService) record(res *model.UpstreamResult, resp *model.ProxyResponse, wantJSON bool) {
	if s.metrics == nil {
		return
	}
	kind := res.Outcome.String()
	if res.Outcome == model.OutcomeOK {
		switch {
		case isJSON(res.ContentType):
			kind = "passthrough"
		case wantJSON:
			kind = "forced_json"
		default:
			kind = "non_json"
		}
	}
	s.metrics.ProxyResponses.WithLabelValues(kind).Inc()
}

func (s *ProxyService) buildUpstreamURL(params model.QueryParams) *url.URL {
	u := *s.baseURL
	u.RawQuery = params.Values().Encode()
	return &u
}

// MergeParams flattens the inbound query (last occurrence wins) and injects the
// server credential. key is always overwritten; domain is overwritten unless the
// server allows callers to bring their own and one was supplied.
func MergeParams(query url.Values, creds config.VWorldConfig) model.QueryParams {
	params := make(model.QueryParams, len(query)+2)
	for k, vals := range query {
		if len(vals) == 0 {
			continue
		}
		params[k] = vals[len(vals)-1]
	}

	params[paramKey] = creds.APIKey
	if !creds.AllowClientDomain || params[paramDomain] == "" {
		params[paramDomain] = creds.Domain
	}
	return params
}

// WantsJSON reports whether the caller explicitly asked for JSON output via
// OUTPUT or output.
func WantsJSON(params model.QueryParams) bool {
	for _, name := range []string{"OUTPUT", "output"} {
		if v, ok := params[name]; ok && strings.EqualFold(strings.TrimSpace(v), mimeJSON) {
			return true
		}
	}
	return false
}

func acceptFor(wantJSON bool) string {
	if wantJSON {
		return mimeJSON
	}
	return "*/*"
}

// Normalize turns a completed upstream response into what the client receives.
//
// JSON from upstream passes through with status 200. Non-JSON with explicit JSON
// intent is relabelled as JSON without inspection, keeping the upstream status.
// Anything else is wrapped in a NonJSONEnvelope carrying the upstream status and
// the first 500 characters of the body.
func Normalize(res *model.UpstreamResult, wantJSON bool) *model.ProxyResponse {
	switch {
	case isJSON(res.ContentType):
		return &model.ProxyResponse{
			StatusCode:  http.StatusOK,
			ContentType: res.ContentType,
			Body:        res.Body,
		}
	case wantJSON:
		return &model.ProxyResponse{
			StatusCode:  res.StatusCode,
			ContentType: mimeJSON,
			Body:        res.Body,
		}
	default:
		return &model.ProxyResponse{
			StatusCode: res.StatusCode,
			Envelope: model.NonJSONEnvelope{
				Error:   msgNonJSON,
				Status:  res.StatusCode,
				Content: truncate(string(res.Body), nonJSONContentLimit),
			},
		}
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), mimeJSON)
}

// truncate returns at most n characters (runes) of s.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
