package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestDocIntel(t *testing.T, handler http.HandlerFunc) (*DocIntelClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewDocIntelClient(DocIntelConfig{
		Endpoint:   server.URL + "/",
		APIKey:     "di-key",
		RateLimit:  1000,
		Retries:    2,
		RetryDelay: time.Millisecond,
	})
	return client, server
}

func TestDocIntelSubmit(t *testing.T) {
	t.Run("async operation", func(t *testing.T) {
		var gotBody string
		client, server := newTestDocIntel(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Fatalf("unexpected method: %s", r.Method)
			}
			if r.URL.Path != "/formrecognizer/documentModels/prebuilt-document:analyze" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			if v := r.URL.Query().Get("api-version"); v != DocIntelDefaultAPIVersion {
				t.Fatalf("api-version = %q", v)
			}
			if r.Header.Get("Ocp-Apim-Subscription-Key") != "di-key" {
				t.Fatalf("missing key header")
			}
			if r.Header.Get("Content-Type") != "application/pdf" {
				t.Fatalf("Content-Type = %q", r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)

			w.Header().Set("Operation-Location", "http://"+r.Host+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
		})

		sub, err := client.Submit(context.Background(), []byte("%PDF-1.7"), "")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if sub.IsImmediate() {
			t.Fatal("expected async submission")
		}
		if sub.OperationURL != server.URL+"/operations/1" {
			t.Errorf("OperationURL = %q", sub.OperationURL)
		}
		if gotBody != "%PDF-1.7" {
			t.Errorf("body = %q", gotBody)
		}
	})

	t.Run("immediate result", func(t *testing.T) {
		client, _ := newTestDocIntel(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"content":"Heat 123"}`))
		})

		sub, err := client.Submit(context.Background(), []byte("%PDF"), "application/pdf")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if !sub.IsImmediate() {
			t.Fatal("expected immediate submission")
		}
		if string(sub.Result) != `{"content":"Heat 123"}` {
			t.Errorf("Result = %s", sub.Result)
		}
	})

	t.Run("forbidden is not retried", func(t *testing.T) {
		var calls atomic.Int64
		client, _ := newTestDocIntel(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":"AuthenticationFailed","message":"Public access is disabled. Please configure private endpoint."}}`))
		})

		_, err := client.Submit(context.Background(), []byte("%PDF"), "")
		var fe *ForbiddenError
		if !errors.As(err, &fe) {
			t.Fatalf("error = %v, want *ForbiddenError", err)
		}
		if fe.Message != "Public access is disabled. Please configure private endpoint." {
			t.Errorf("Message = %q", fe.Message)
		}
		if len(fe.Hints) == 0 {
			t.Error("expected remediation hints")
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int64
		client, _ := newTestDocIntel(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Operation-Location", "http://example.test/operations/9")
			w.WriteHeader(http.StatusAccepted)
		})

		sub, err := client.Submit(context.Background(), []byte("%PDF"), "")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if sub.OperationURL != "http://example.test/operations/9" {
			t.Errorf("OperationURL = %q", sub.OperationURL)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("retries exhausted", func(t *testing.T) {
		var calls atomic.Int64
		client, _ := newTestDocIntel(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal di-key failure"))
		})

		_, err := client.Submit(context.Background(), []byte("%PDF"), "")
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("error = %v, want *TransportError", err)
		}
		if te.StatusCode != http.StatusInternalServerError || te.Op != "submit" {
			t.Errorf("TransportError = %+v", te)
		}
		if strings.Contains(te.Preview, "di-key") {
			t.Errorf("preview leaked the key: %q", te.Preview)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int64
		client, _ := newTestDocIntel(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"InvalidRequest"}}`))
		})

		_, err := client.Submit(context.Background(), []byte("%PDF"), "")
		var te *TransportError
		if !errors.As(err, &te) || te.StatusCode != http.StatusBadRequest {
			t.Fatalf("error = %v, want 400 TransportError", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})
}

func TestDocIntelPoll(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus string
		wantResult string
		wantCode   string
	}{
		{
			name:       "running",
			body:       `{"status":"running"}`,
			wantStatus: StatusRunning,
		},
		{
			name:       "succeeded with analyzeResult",
			body:       `{"status":"Succeeded","analyzeResult":{"content":"Heat 123"}}`,
			wantStatus: StatusSucceeded,
			wantResult: `{"content":"Heat 123"}`,
		},
		{
			name:       "succeeded without analyzeResult",
			body:       `{"status":"succeeded","content":"whole body"}`,
			wantStatus: StatusSucceeded,
			wantResult: `{"status":"succeeded","content":"whole body"}`,
		},
		{
			name:       "failed",
			body:       `{"status":"failed","error":{"code":"InvalidContent","message":"The file is corrupted."}}`,
			wantStatus: StatusFailed,
			wantCode:   "InvalidContent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestDocIntel(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				if r.Header.Get("Ocp-Apim-Subscription-Key") != "di-key" {
					t.Fatalf("missing key header")
				}
				_, _ = w.Write([]byte(tt.body))
			})

			status, err := client.Poll(context.Background(), server.URL+"/operations/1")
			if err != nil {
				t.Fatalf("Poll() error = %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			if string(status.Result) != tt.wantResult {
				t.Errorf("Result = %s, want %s", status.Result, tt.wantResult)
			}
			if status.ErrorCode != tt.wantCode {
				t.Errorf("ErrorCode = %q, want %q", status.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestDocIntelAnalyzeURL(t *testing.T) {
	client := NewDocIntelClient(DocIntelConfig{
		Endpoint:   "https://example.cognitiveservices.azure.com/",
		ModelID:    "prebuilt-layout",
		APIVersion: "2024-02-29-preview",
	})
	want := "https://example.cognitiveservices.azure.com/formrecognizer/documentModels/prebuilt-layout:analyze?api-version=2024-02-29-preview"
	if got := client.AnalyzeURL(); got != want {
		t.Errorf("AnalyzeURL() = %q\nwant %q", got, want)
	}
}
