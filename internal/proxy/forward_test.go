package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/mockforge/core/internal/apierrors"
	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/proxy/mocks"
)

func TestForwardRewritesWildcardPrefixAndStripsHopByHop(t *testing.T) {
	var gotPath string
	var gotConnection string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotConnection = r.Header.Get("Connection")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	f := NewForwarder("http://unused.invalid", []Rewrite{{PathPrefix: "/api/", Upstream: upstream.URL}})

	req := &model.ProtocolRequest{
		Method:  http.MethodGet,
		Path:    "/api/widgets",
		Headers: map[string][]string{"Connection": {"close"}},
	}

	resp, err := f.Forward(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/widgets" {
		t.Fatalf("expected stripped path /widgets, got %q", gotPath)
	}
	if gotConnection != "" {
		t.Fatalf("expected Connection header stripped before forwarding, got %q", gotConnection)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if _, ok := resp.Headers["Connection"]; ok {
		t.Fatal("expected Connection stripped from response headers")
	}
	if _, ok := resp.Headers["X-Upstream"]; !ok {
		t.Fatal("expected non-hop-by-hop response header preserved")
	}
}

func TestForwardFallsBackToDefaultUpstream(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	f := NewForwarder(upstream.URL, nil)
	req := &model.ProtocolRequest{Method: http.MethodGet, Path: "/anything"}

	if _, err := f.Forward(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/anything" {
		t.Fatalf("expected unmodified path, got %q", gotPath)
	}
}

func TestForwardRejectsDisallowedMethod(t *testing.T) {
	f := NewForwarder("http://unused.invalid", nil)
	req := &model.ProtocolRequest{Method: "TRACE", Path: "/x"}

	if _, err := f.Forward(context.Background(), req); err == nil {
		t.Fatal("expected error for disallowed method")
	}
}

func TestForwardReturnsUpstreamErrorOnTransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rt := mocks.NewMockRoundTripper(ctrl)
	rt.EXPECT().RoundTrip(gomock.Any()).Return(nil, errors.New("connection refused"))

	f := NewForwarder("http://upstream.invalid", nil)
	f.Client = &http.Client{Transport: rt}

	req := &model.ProtocolRequest{Method: http.MethodGet, Path: "/widgets"}

	_, err := f.Forward(context.Background(), req)
	if err == nil {
		t.Fatal("expected upstream error")
	}
	if !apierrors.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %T: %v", err, err)
	}
	if got := apierrors.Code(err); got != http.StatusBadGateway {
		t.Fatalf("expected bad gateway status, got %d", got)
	}
}

func TestRewriteStrip(t *testing.T) {
	r := Rewrite{PathPrefix: "/api/", Upstream: "http://backend"}

	rest, ok := r.strip("/api/widgets/1")
	if !ok || rest != "/widgets/1" {
		t.Fatalf("expected match with rest /widgets/1, got %q ok=%v", rest, ok)
	}

	if _, ok := r.strip("/other"); ok {
		t.Fatal("expected no match for non-prefixed path")
	}
}
