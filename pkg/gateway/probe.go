package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-formflow/pkg/session"
)

// EndpointInfo summarizes what an OPTIONS probe learned about an
// endpoint. Reachable mirrors CheckEndpoint: any response below 500
// counts, because a 404 or 405 still proves the host is there.
type EndpointInfo struct {
	URL            string            `json:"url"`
	StatusCode     int               `json:"status_code,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	AllowedMethods []string          `json:"allowed_methods,omitempty"`
	Reachable      bool              `json:"reachable"`
	ErrMessage     string            `json:"error_message,omitempty"`
}

// ConnectionTest reports the outcome of a low-stakes trial call made
// with TestConnection.
type ConnectionTest struct {
	Success      bool    `json:"success"`
	StatusCode   int     `json:"status_code,omitempty"`
	Elapsed      float64 `json:"execution_time,omitempty"`
	ResponseSize int     `json:"response_size,omitempty"`
	ContentType  string  `json:"content_type,omitempty"`
	ErrMessage   string  `json:"error_message,omitempty"`
}

// CheckEndpoint reports whether the endpoint answers a HEAD request
// with anything below 500. Transport failures yield false without an
// error; the error return is reserved for invalid input.
func (f *Forwarder) CheckEndpoint(ctx context.Context, rawURL string) (bool, error) {
	resp, err := f.probe(ctx, http.MethodHead, rawURL)
	if err != nil {
		return false, err
	}
	if resp == nil {
		return false, nil
	}
	resp.Body.Close()
	return resp.StatusCode < 500, nil
}

// Inspect probes the endpoint with OPTIONS and collects its advertised
// capabilities. Transport failures are folded into the result so the
// caller always has a complete EndpointInfo to display.
func (f *Forwarder) Inspect(ctx context.Context, rawURL string) (EndpointInfo, error) {
	info := EndpointInfo{URL: rawURL}

	resp, err := f.probe(ctx, http.MethodOptions, rawURL)
	if err != nil {
		return info, err
	}
	if resp == nil {
		info.ErrMessage = "endpoint unreachable"
		return info, nil
	}
	defer resp.Body.Close()

	info.StatusCode = resp.StatusCode
	info.Headers = flattenHeaders(resp.Header)
	info.AllowedMethods = parseAllow(resp.Header.Get("Allow"))
	info.Reachable = resp.StatusCode < 500
	return info, nil
}

// TestConnection makes one short-timeout forwarding call with sample
// data and summarizes the result. It never returns a transport error;
// failures show up as Success=false with a message.
func (f *Forwarder) TestConnection(ctx context.Context, rawURL, method string, sample session.ValueMap) (ConnectionTest, error) {
	env, err := f.Forward(ctx, Request{
		URL:            rawURL,
		Method:         method,
		Body:           sample,
		TimeoutSeconds: int(f.probeTimeout.Seconds()),
	})
	if err != nil {
		return ConnectionTest{}, err
	}
	if env.Failed() {
		return ConnectionTest{ErrMessage: env.ErrMessage}, nil
	}
	return ConnectionTest{
		Success:      env.Success,
		StatusCode:   env.StatusCode,
		Elapsed:      env.Elapsed,
		ResponseSize: bodySize(env.Body),
		ContentType:  env.Headers["Content-Type"],
		ErrMessage:   env.ErrMessage,
	}, nil
}

// probe issues a single short-timeout request. A nil response with a
// nil error means the endpoint could not be reached; the error return
// is reserved for invalid input or a canceled context.
func (f *Forwarder) probe(ctx context.Context, method, rawURL string) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: building probe request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.perCallClient(f.probeTimeout).Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, nil
	}
	return resp, nil
}

func parseAllow(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	methods := make([]string, 0, len(parts))
	for _, part := range parts {
		if m := strings.ToUpper(strings.TrimSpace(part)); m != "" {
			methods = append(methods, m)
		}
	}
	return methods
}

func bodySize(body any) int {
	switch v := body.(type) {
	case nil:
		return 0
	case string:
		return len(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return len(encoded)
	}
}
