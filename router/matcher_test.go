package router

import (
	"regexp"
	"testing"
)

func TestExactMatcher(t *testing.T) {
	m := NewExact("/health")
	if _, _, ok := m.Match("/health"); !ok {
		t.Fatalf("expected match")
	}
	if _, _, ok := m.Match("/healthz"); ok {
		t.Fatalf("expected no match")
	}
	if _, _, ok := m.Match("health"); ok {
		t.Fatalf("expected non-absolute path to be rejected")
	}
}

func TestParameterizedMatcherRepeatedName(t *testing.T) {
	m := NewParameterized("/repos/{owner}/{owner}")
	if _, _, ok := m.Match("/repos/foo/bar"); ok {
		t.Fatalf("expected mismatched back-reference to fail")
	}
	params, _, ok := m.Match("/repos/foo/foo")
	if !ok {
		t.Fatalf("expected matching back-reference to succeed")
	}
	if params["owner"] != "foo" {
		t.Fatalf("expected owner=foo, got %v", params)
	}
}

func TestParameterizedMatcherColonStyle(t *testing.T) {
	m := NewParameterized("/users/:id/posts/:postID")
	params, _, ok := m.Match("/users/42/posts/7")
	if !ok {
		t.Fatalf("expected match")
	}
	if params["id"] != "42" || params["postID"] != "7" {
		t.Fatalf("unexpected params: %v", params)
	}
}

func TestPrefixMatcher(t *testing.T) {
	m := NewPrefix("/static/")
	if _, _, ok := m.Match("/static/css/app.css"); !ok {
		t.Fatalf("expected prefix match")
	}
	if _, _, ok := m.Match("/other"); ok {
		t.Fatalf("expected no match outside prefix")
	}
}

func TestRegexMatcherNamedGroups(t *testing.T) {
	re := regexp.MustCompile(`^/files/(?P<name>[^/]+)\.txt$`)
	m := NewRegex(re)
	params, _, ok := m.Match("/files/report.txt")
	if !ok {
		t.Fatalf("expected regex match")
	}
	if params["name"] != "report" {
		t.Fatalf("expected name=report, got %v", params)
	}
}

func TestRegexWithPrefixMatcher(t *testing.T) {
	re := regexp.MustCompile(`^/(?P<id>\d+)$`)
	m := NewRegexWithPrefix("/api/v1", re)
	params, reported, ok := m.Match("/api/v1/42")
	if !ok {
		t.Fatalf("expected match")
	}
	if params["id"] != "42" {
		t.Fatalf("expected id=42, got %v", params)
	}
	if reported != "/api/v1/42" {
		t.Fatalf("expected reported path to be original, got %s", reported)
	}
}
