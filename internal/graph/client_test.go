package graph

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

type staticTokens struct{ token string }

func (s staticTokens) Token(ctx context.Context) (string, error) { return s.token, nil }

type failingTokens struct{}

func (failingTokens) Token(ctx context.Context) (string, error) {
	return "", errors.New("not logged in")
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(staticTokens{token: "tok-123"}, 0)
	c.SetBaseURL(srv.URL)
	return c
}

func TestCallAPIEnvelope(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{"value":[{"id":"1"}]}`))
	})

	res, err := c.CallAPI(context.Background(), "/me/messages", RequestOptions{})
	if err != nil {
		t.Fatalf("CallAPI: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/me/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if len(res.Content) != 1 || res.Content[0].Type != "text" {
		t.Fatalf("envelope = %+v", res)
	}
	if res.Content[0].Text != `{"value":[{"id":"1"}]}` {
		t.Errorf("payload = %q", res.Content[0].Text)
	}
}

func TestCallAPIQueryAndBody(t *testing.T) {
	var gotQuery url.Values
	var gotContentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"new"}`))
	})

	q := url.Values{}
	q.Set("$top", "5")
	_, err := c.CallAPI(context.Background(), "/me/events", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"subject": "standup"},
		Query:  q,
	})
	if err != nil {
		t.Fatalf("CallAPI: %v", err)
	}
	if gotQuery.Get("$top") != "5" {
		t.Errorf("query = %v", gotQuery)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestCallAPIEmptyBodyBecomesEmptyObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	res, err := c.CallAPI(context.Background(), "/me/messages/1", RequestOptions{Method: http.MethodDelete})
	if err != nil {
		t.Fatalf("CallAPI: %v", err)
	}
	if res.Content[0].Text != "{}" {
		t.Errorf("payload = %q, want {}", res.Content[0].Text)
	}
}

func TestCallAPIErrorDecoding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"ItemNotFound","message":"The item was not found"}}`))
	})

	_, err := c.CallAPI(context.Background(), "/me/messages/nope", RequestOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != 404 || apiErr.Code != "ItemNotFound" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestCallAPIErrorPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream broke"))
	})

	_, err := c.CallAPI(context.Background(), "/me", RequestOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != 502 || apiErr.Message != "upstream broke" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestCallAPIGetCache(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"value":[]}`))
	})

	for i := 0; i < 3; i++ {
		if _, err := c.CallAPI(context.Background(), "/me/messages", RequestOptions{}); err != nil {
			t.Fatalf("CallAPI #%d: %v", i, err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hits = %d, want 1 (GETs should be cached)", n)
	}

	// POSTs bypass the cache.
	if _, err := c.CallAPI(context.Background(), "/me/messages", RequestOptions{Method: http.MethodPost, Body: map[string]any{}}); err != nil {
		t.Fatalf("POST: %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("upstream hits = %d, want 2", n)
	}
}

func TestCallAPITokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached upstream despite token failure")
	}))
	defer srv.Close()

	c := NewClient(failingTokens{}, 0)
	c.SetBaseURL(srv.URL)

	_, err := c.CallAPI(context.Background(), "/me", RequestOptions{})
	if err == nil {
		t.Fatal("expected token acquisition error")
	}
}

func TestCallAPIRawBody(t *testing.T) {
	var gotBody string
	var gotContentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"id":"up"}`))
	})

	_, err := c.CallAPI(context.Background(), "/me/drive/root:/a.txt:/content", RequestOptions{
		Method:      http.MethodPut,
		RawBody:     []byte("hello"),
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("CallAPI: %v", err)
	}
	if gotBody != "hello" || gotContentType != "text/plain" {
		t.Errorf("body = %q, content-type = %q", gotBody, gotContentType)
	}
}
