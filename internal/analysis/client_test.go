package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/sakif/datachat/internal/apperror"
)

func TestAnalyze(t *testing.T) {
	var received Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("path = %q, want /analyze", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Response{
			Answer: "the mean age is 31.4",
			Code:   "df['age'].mean()",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.Analyze(context.Background(), Request{
		FilePath: "/uploads/user_1/1_people.csv",
		Schema:   Schema{Columns: []string{"name", "age"}},
		Question: "what is the mean age?",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if resp.Answer != "the mean age is 31.4" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.Code != "df['age'].mean()" {
		t.Errorf("Code = %q", resp.Code)
	}
	if received.Question != "what is the mean age?" {
		t.Errorf("upstream saw question %q", received.Question)
	}
	if len(received.Schema.Columns) != 2 {
		t.Errorf("upstream saw schema %v", received.Schema.Columns)
	}
}

func TestAnalyze_Non2xxIsNotAnUpstreamKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Analyze(context.Background(), Request{Question: "q"})
	if err == nil {
		t.Fatal("Analyze() succeeded against a 500")
	}
	// A semantic failure from a REACHABLE service is neither a timeout nor
	// an unavailability — it surfaces as a generic internal error.
	if errors.Is(err, apperror.ErrUpstreamTimeout) || errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Errorf("500 response mapped to an upstream transport kind: %v", err)
	}
}

func TestAnalyze_ConnectionRefused(t *testing.T) {
	// Port 1 on localhost is never listening; the dial fails immediately.
	client := NewClient("http://127.0.0.1:1")

	_, err := client.Analyze(context.Background(), Request{Question: "q"})
	if !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Errorf("Analyze() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}

	if err := NewClient("http://127.0.0.1:1").Health(context.Background()); !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Errorf("Health() against a dead port: error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestTranslateTransportError(t *testing.T) {
	refused := &url.Error{
		Op:  "Post",
		URL: "http://localhost:8001/analyze",
		Err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
	}
	deadline := &url.Error{
		Op:  "Post",
		URL: "http://localhost:8001/analyze",
		Err: context.DeadlineExceeded,
	}

	if err := translateTransportError(deadline); !errors.Is(err, apperror.ErrUpstreamTimeout) {
		t.Errorf("deadline mapped to %v, want ErrUpstreamTimeout", err)
	}
	if err := translateTransportError(refused); !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Errorf("refused mapped to %v, want ErrUpstreamUnavailable", err)
	}

	// The two kinds must never cross
	if err := translateTransportError(deadline); errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Error("deadline also matches ErrUpstreamUnavailable")
	}

	if err := translateTransportError(errors.New("mystery")); errors.Is(err, apperror.ErrUpstreamTimeout) ||
		errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Errorf("unknown error mapped to an upstream kind: %v", err)
	}
}
