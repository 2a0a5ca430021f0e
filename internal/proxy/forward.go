package proxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mockforge/core/internal/apierrors"
	"github.com/mockforge/core/internal/model"
)

// allowedMethods is the exact set spec.md §4.6 permits forwarding.
var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// hopByHopHeaders are stripped from both the forwarded request and the
// upstream's response, per RFC 7230 §6.1.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Rewrite maps a wildcard prefix like "/api/*" onto an upstream base
// URL, stripping the matched prefix before forwarding.
type Rewrite struct {
	PathPrefix string // e.g. "/api/"
	Upstream   string // e.g. "http://backend.internal"
}

// strip returns the upstream-relative path after removing PathPrefix,
// and whether path matched this rewrite at all.
func (r Rewrite) strip(path string) (string, bool) {
	if !strings.HasPrefix(path, r.PathPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(path, r.PathPrefix)
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest, true
}

// Forwarder sends a ProtocolRequest to a configured upstream.
type Forwarder struct {
	Client        *http.Client
	Rewrites      []Rewrite
	DefaultUpstream string
	AddHeaders    map[string]string
	RemoveHeaders []string
}

// NewForwarder builds a Forwarder with a bounded-timeout HTTP client,
// matching the "no retries, bad-gateway on failure" contract from
// spec.md §4.6.
func NewForwarder(defaultUpstream string, rewrites []Rewrite) *Forwarder {
	return &Forwarder{
		Client:          &http.Client{Timeout: 30 * time.Second},
		Rewrites:        rewrites,
		DefaultUpstream: defaultUpstream,
	}
}

// Response is the upstream's reply, already stripped of hop-by-hop
// headers.
type Response struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// Forward sends req upstream and returns its response. Non-forwardable
// methods and upstream transport failures both surface as typed
// apierrors; there is no retry.
func (f *Forwarder) Forward(ctx context.Context, req *model.ProtocolRequest) (*Response, error) {
	if !allowedMethods[strings.ToUpper(req.Method)] {
		return nil, apierrors.NewInvalidArgumentError("unsupported method for proxy passthrough: "+req.Method, nil)
	}

	target, path := f.resolveUpstream(req.Path)
	u, err := url.Parse(target)
	if err != nil {
		return nil, apierrors.NewInternalError("invalid upstream URL", err)
	}
	u.Path = path
	u.RawQuery = encodeQuery(req.Query)

	var body io.Reader
	if len(req.Body.Bytes) > 0 {
		body = bytes.NewReader(req.Body.Bytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, apierrors.NewInternalError("build proxy request", err)
	}
	copyHeaders(httpReq.Header, req.Headers)
	for k, v := range f.AddHeaders {
		httpReq.Header.Set(k, v)
	}
	for _, k := range f.RemoveHeaders {
		httpReq.Header.Del(k)
	}
	stripHopByHop(httpReq.Header)

	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return nil, apierrors.NewUpstreamError("proxy passthrough failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.NewUpstreamError("reading upstream response", err)
	}

	headers := map[string][]string{}
	for k, vs := range resp.Header {
		if hopByHopHeaders[k] {
			continue
		}
		headers[k] = vs
	}

	return &Response{Status: resp.StatusCode, Headers: headers, Body: respBody}, nil
}

// resolveUpstream applies the first matching wildcard rewrite, falling
// back to the default upstream with the path unchanged.
func (f *Forwarder) resolveUpstream(path string) (upstream, rewrittenPath string) {
	for _, r := range f.Rewrites {
		if rest, ok := r.strip(path); ok {
			return r.Upstream, rest
		}
	}
	return f.DefaultUpstream, path
}

func copyHeaders(dst http.Header, src map[string][]string) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func stripHopByHop(h http.Header) {
	for k := range hopByHopHeaders {
		h.Del(k)
	}
}

func encodeQuery(query map[string][]string) string {
	v := url.Values{}
	for k, vs := range query {
		for _, val := range vs {
			v.Add(k, val)
		}
	}
	return v.Encode()
}
