// Package gateway forwards finalized form data to external HTTP
// endpoints and normalizes the outcome into an Envelope. Transport
// failures are captured in the envelope rather than returned as errors,
// so presentation layers always receive a uniform object. Exactly one
// outbound call is made per Forward invocation; retry, backoff, and
// circuit breaking are deliberately left to the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/session"
)

const (
	// DefaultTimeoutSeconds applies when a request does not specify its
	// own timeout.
	DefaultTimeoutSeconds = 30
	// MaxTimeoutSeconds bounds the per-request timeout a caller may ask
	// for.
	MaxTimeoutSeconds = 300

	defaultUserAgent = "go-formflow gateway/1.0.0"
)

// Request describes a single forwarding call. Body carries the
// finalized value mapping; for GET it is flattened into query
// parameters, for every other method it is sent as a JSON body.
type Request struct {
	URL            string            `json:"api_url"`
	Method         string            `json:"method"`
	Body           session.ValueMap  `json:"data,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	TimeoutSeconds int               `json:"timeout,omitempty"`
}

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// Validate checks the request for caller mistakes: missing or
// non-HTTP(S) URLs, methods outside the allowed set, and timeouts out
// of range. A zero timeout is valid and means "use the default".
func (r Request) Validate() error {
	if err := validateURL(r.URL); err != nil {
		return err
	}
	if _, ok := allowedMethods[r.method()]; !ok {
		return fmt.Errorf("gateway: unsupported method %q", r.Method)
	}
	if r.TimeoutSeconds < 0 || r.TimeoutSeconds > MaxTimeoutSeconds {
		return fmt.Errorf("gateway: timeout must be between 1 and %d seconds, got %d", MaxTimeoutSeconds, r.TimeoutSeconds)
	}
	return nil
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("gateway: url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("gateway: invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway: url must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("gateway: url %q has no host", raw)
	}
	return nil
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(r.Method)
}

// Forwarder performs outbound calls on behalf of the form flow. The
// zero value is not usable; construct with NewForwarder.
type Forwarder struct {
	client         *http.Client
	userAgent      string
	defaultTimeout time.Duration
	probeTimeout   time.Duration
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient replaces the transport used for outbound calls. The
// client is cloned per call so its timeout can be adjusted without
// mutating the caller's instance.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Forwarder) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent overrides the User-Agent header attached to every
// outbound call unless the request supplies its own.
func WithUserAgent(agent string) Option {
	return func(f *Forwarder) {
		if agent != "" {
			f.userAgent = agent
		}
	}
}

// WithTimeout sets the timeout applied to requests that do not carry
// their own.
func WithTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.defaultTimeout = d
		}
	}
}

// WithProbeTimeout adjusts the short timeout used by the endpoint
// probes (CheckEndpoint, Inspect, TestConnection).
func WithProbeTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.probeTimeout = d
		}
	}
}

// NewForwarder builds a Forwarder with the default transport and
// header set.
func NewForwarder(opts ...Option) *Forwarder {
	f := &Forwarder{
		client:         &http.Client{},
		userAgent:      defaultUserAgent,
		defaultTimeout: DefaultTimeoutSeconds * time.Second,
		probeTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward performs exactly one outbound HTTP call and reports the
// outcome as an Envelope. The returned error is non-nil only for caller
// mistakes (invalid request, canceled context); transport failures and
// non-2xx statuses are folded into the envelope with Success=false.
func (f *Forwarder) Forward(ctx context.Context, r Request) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	if err := r.Validate(); err != nil {
		return Envelope{}, err
	}

	req, err := f.buildRequest(ctx, r)
	if err != nil {
		return Envelope{}, err
	}

	timeout := f.requestTimeout(r)
	client := f.perCallClient(timeout)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		elapsed := time.Since(start).Seconds()
		if errors.Is(err, context.Canceled) {
			return Envelope{}, ctx.Err()
		}
		if isTimeout(err) {
			return transportFailure(fmt.Sprintf("request timed out after %ds", int(timeout.Seconds())), elapsed), nil
		}
		return transportFailure(fmt.Sprintf("request failed: %v", err), elapsed), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return transportFailure(fmt.Sprintf("reading response body: %v", err), elapsed), nil
	}

	env := Envelope{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       decodeBody(resp.Header.Get("Content-Type"), raw),
		Elapsed:    elapsed,
	}
	if !env.Success {
		env.ErrMessage = fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
	}
	return env, nil
}

func (f *Forwarder) buildRequest(ctx context.Context, r Request) (*http.Request, error) {
	method := r.method()

	var body io.Reader
	target := r.URL
	if method == http.MethodGet {
		if len(r.Body) > 0 {
			withQuery, err := appendQuery(r.URL, r.Body)
			if err != nil {
				return nil, err
			}
			target = withQuery
		}
	} else if len(r.Body) > 0 {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("gateway: encoding request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: building request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (f *Forwarder) requestTimeout(r Request) time.Duration {
	if r.TimeoutSeconds > 0 {
		return time.Duration(r.TimeoutSeconds) * time.Second
	}
	return f.defaultTimeout
}

// perCallClient clones the base client so the request timeout never
// leaks into other callers, and disables redirect following so the
// "exactly one outbound call" contract holds: a 3xx comes back as-is in
// the envelope.
func (f *Forwarder) perCallClient(timeout time.Duration) *http.Client {
	clone := *f.client
	clone.Timeout = timeout
	clone.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &clone
}

// appendQuery flattens the value map into the URL's query string.
// Scalars keep their natural text form; nested maps and sequences are
// carried as compact JSON so no information is dropped.
func appendQuery(rawURL string, values session.ValueMap) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("gateway: invalid url %q: %w", rawURL, err)
	}
	q := u.Query()
	for key, value := range values {
		q.Set(key, queryValue(value))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func queryValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

// decodeBody interprets the response payload by declared content type:
// JSON decodes to its structured shape, text comes through verbatim,
// and anything else is preserved as base64.
func decodeBody(contentType string, raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json") || strings.Contains(ct, "+json"):
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return string(raw)
		}
		return decoded
	case strings.HasPrefix(ct, "text/"):
		return string(raw)
	default:
		return base64.StdEncoding.EncodeToString(raw)
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
