package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_RecordsDurationAndCount(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	requestsVal := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/health", "200"))
	if requestsVal < 1 {
		t.Errorf("expected http_requests_total >= 1, got %f", requestsVal)
	}

	durationCount := testutil.CollectAndCount(httpRequestDuration)
	if durationCount == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMetricsMiddleware_DifferentStatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())

	r.Post("/predict/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("outcome") {
		case "invalid":
			w.WriteHeader(http.StatusBadRequest)
		case "fail":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte("{}"))
		}
	})

	tests := []struct {
		query          string
		expectedStatus string
	}{
		{"", "200"},
		{"?outcome=invalid", "400"},
		{"?outcome=fail", "500"},
	}

	for _, tc := range tests {
		t.Run(tc.expectedStatus, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/predict/"+tc.query, http.NoBody)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/predict/", tc.expectedStatus))
			if val < 1 {
				t.Errorf("expected requests_total with status %s >= 1, got %f", tc.expectedStatus, val)
			}
		})
	}
}

func TestMetricsMiddleware_PredictAliasSharesSeries(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	h := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) }
	r.Post("/predict", h)
	r.Post("/predict/", h)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/predict/", "202"))
	for _, p := range []string{"/predict", "/predict/"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", p, http.NoBody))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/predict/", "202"))

	if after-before != 2 {
		t.Errorf("expected both paths under one series, delta=%f", after-before)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/predict", "/predict/"},
		{"/predict/", "/predict/"},
		{"/health", "/health"},
		{"/", "/"},
	}

	for _, tc := range tests {
		result := normalizePath(tc.input)
		if result != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	Register()
	Register() // idempotent

	PredictionsTotal.WithLabelValues("Tomato_healthy").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "plantclf_predictions_total") {
		t.Error("expected plantclf_predictions_total in scrape output")
	}
}
