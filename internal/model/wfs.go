// Package model defines shared types for the proxy.
package model

import "net/url"

// QueryParams is a flattened query: one value per parameter name.
type QueryParams map[string]string

// Values converts the params back to url.Values for encoding.
func (p QueryParams) Values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// Outcome classifies how an upstream call ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTimeout
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// UpstreamResult is the outcome of a single upstream GET.
// StatusCode, ContentType and Body are only meaningful when Outcome is OutcomeOK.
type UpstreamResult struct {
	Outcome     Outcome
	StatusCode  int
	ContentType string
	Body        []byte

	// URL is the attempted upstream URL with the credential redacted.
	URL string
	Err error
}

// ProxyResponse is what the handler writes back to the client. Exactly one of
// Body or Envelope is set.
type ProxyResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Envelope    any
}

// ErrorEnvelope is the minimal error body.
type ErrorEnvelope struct {
	Error string `json:"error"`
}

// NonJSONEnvelope wraps an upstream payload that was not JSON.
type NonJSONEnvelope struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Content string `json:"content"`
}

// TransportErrorEnvelope reports an upstream call that never produced a response.
type TransportErrorEnvelope struct {
	Error    string `json:"error"`
	Upstream string `json:"upstream"`
	URL      string `json:"url"`
}

// ConfigStatus is the public capability check. It never carries the key.
type ConfigStatus struct {
	Configured bool   `json:"configured"`
	Domain     string `json:"domain"`
}
