package whttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestSendHTTPRequestQueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("engine") != "google_events" || r.URL.Query().Get("q") != "Events in Providence, RI" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("keep") != "1" {
			t.Errorf("existing query parameter dropped: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing custom header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{
		URL:     srv.URL + "/search.json?keep=1",
		Query:   url.Values{"engine": {"google_events"}, "q": {"Events in Providence, RI"}},
		Headers: []WHTTPHeader{{Name: "Authorization", Value: "Bearer k"}},
	}, NewClient(Options{Timeout: time.Second}))
	if err != nil {
		t.Fatalf("SendHTTPRequest: %v", err)
	}
	if !res.OK() || res.BodyString != `{"ok":true}` || res.ResponseLength != 11 {
		t.Fatalf("unexpected response: %#v", res)
	}
}

func TestSendHTTPRequestPostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %s", r.Header.Get("Content-Type"))
		}
		b, _ := io.ReadAll(r.Body)
		w.Write(b)
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{
		URL:    srv.URL,
		Method: http.MethodPost,
		Body:   []byte(`{"a":1}`),
	}, NewClient(Options{}))
	if err != nil {
		t.Fatalf("SendHTTPRequest: %v", err)
	}
	if res.BodyString != `{"a":1}` {
		t.Fatalf("echoed body = %q", res.BodyString)
	}
}

func TestSendHTTPRequestErrorPage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html><head><title>\n502 Bad Gateway\n</title></head></html>"))
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, NewClient(Options{Retries: 0}))
	if err != nil {
		t.Fatalf("SendHTTPRequest: %v", err)
	}
	if res.OK() || res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if res.HTTPTitle != "502 Bad Gateway" {
		t.Fatalf("title = %q", res.HTTPTitle)
	}
	if got := res.Describe(); got != "status 502 (502 Bad Gateway)" {
		t.Fatalf("Describe() = %q", got)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestSendHTTPRequestRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient(Options{Retries: 2})
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = time.Millisecond

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, client)
	if err != nil {
		t.Fatalf("SendHTTPRequest: %v", err)
	}
	if !res.OK() || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("status = %d after %d calls", res.StatusCode, calls)
	}
}

func TestSendHTTPRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, NewClient(Options{Timeout: 20 * time.Millisecond}))
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestNewClientProxy(t *testing.T) {
	var hits int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Host != "events.invalid" {
			t.Errorf("proxy got host %q", r.URL.Host)
		}
		w.Write([]byte("proxied"))
	}))
	defer proxy.Close()

	proxyURL, _ := url.Parse(proxy.URL)
	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: "http://events.invalid/search"}, NewClient(Options{Timeout: time.Second, Proxy: proxyURL}))
	if err != nil {
		t.Fatalf("SendHTTPRequest: %v", err)
	}
	if res.BodyString != "proxied" || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("request did not go through the proxy: %#v", res)
	}
}
