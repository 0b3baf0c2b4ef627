package delivery_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"courier/internal/delivery"
	"courier/internal/queue"
	"courier/internal/services"
)

func TestHTTPSenderSendsStoredRequest(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotAuth   string
		gotType   string
		gotBody   []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Request-Id", "abc123")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	sender := delivery.NewHTTPSender(5 * time.Second)
	resp, err := sender.Do(context.Background(), &queue.Request{
		URL:    server.URL + "/v1/items",
		Method: "POST",
		Headers: map[string]string{
			"Authorization": "Bearer token",
			"Content-Type":  "application/json",
		},
		Body: []byte(`{"v":1}`),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if gotMethod != "POST" || gotPath != "/v1/items" {
		t.Errorf("server saw %s %s", gotMethod, gotPath)
	}
	if gotAuth != "Bearer token" || gotType != "application/json" {
		t.Errorf("headers not forwarded: auth=%q type=%q", gotAuth, gotType)
	}
	if string(gotBody) != `{"v":1}` {
		t.Errorf("server saw body %q", gotBody)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") != "abc123" {
		t.Errorf("response header missing: %v", resp.Header)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestHTTPSenderErrorResponsesAreStillResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := delivery.NewHTTPSender(5 * time.Second)
	resp, err := sender.Do(context.Background(), &queue.Request{URL: server.URL, Method: "GET"})
	if err != nil {
		t.Fatalf("Do returned error for a 500: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
}

func TestHTTPSenderTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	sender := delivery.NewHTTPSender(time.Second)
	resp, err := sender.Do(context.Background(), &queue.Request{URL: url, Method: "GET"})
	if resp != nil {
		t.Errorf("resp = %+v, want nil", resp)
	}
	if !errors.Is(err, services.ErrNetwork) {
		t.Errorf("err = %v, want network failure", err)
	}
}

func TestHTTPSenderTruncatesOversizedBody(t *testing.T) {
	oversized := strings.Repeat("x", 300<<10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, oversized)
	}))
	defer server.Close()

	sender := delivery.NewHTTPSender(5 * time.Second)
	resp, err := sender.Do(context.Background(), &queue.Request{URL: server.URL, Method: "GET"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(resp.Body) != 256<<10 {
		t.Errorf("Body length = %d, want capped at %d", len(resp.Body), 256<<10)
	}
}

func TestHTTPSenderRejectsNilRequest(t *testing.T) {
	sender := delivery.NewHTTPSender(time.Second)
	if _, err := sender.Do(context.Background(), nil); !errors.Is(err, services.ErrValidation) {
		t.Errorf("err = %v, want validation failure", err)
	}
}
