package model

import "testing"

func TestProtocolRequestHeaderCaseInsensitive(t *testing.T) {
	r := &ProtocolRequest{Headers: map[string][]string{"X-Foo-Bar": {"value"}}}

	got, ok := r.Header("x-foo-bar")
	if !ok || got != "value" {
		t.Fatalf("Header(x-foo-bar) = %q, %v; want value, true", got, ok)
	}

	got, ok = r.Header("X-FOO-BAR")
	if !ok || got != "value" {
		t.Fatalf("Header(X-FOO-BAR) = %q, %v; want value, true", got, ok)
	}
}

func TestProtocolRequestQueryParam(t *testing.T) {
	r := &ProtocolRequest{Query: map[string][]string{"a": {"1", "2"}}}
	got, ok := r.QueryParam("a")
	if !ok || got != "1" {
		t.Fatalf("QueryParam(a) = %q, %v; want 1, true", got, ok)
	}
	if _, ok := r.QueryParam("missing"); ok {
		t.Fatalf("QueryParam(missing) should report false")
	}
}

func TestProtocolRequestNilSafe(t *testing.T) {
	var r *ProtocolRequest
	if _, ok := r.Header("x"); ok {
		t.Fatal("nil request Header should report false")
	}
	if _, ok := r.QueryParam("x"); ok {
		t.Fatal("nil request QueryParam should report false")
	}
}
