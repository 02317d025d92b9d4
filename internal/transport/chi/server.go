// Package chi is the HTTP service layer: upload handling, routing and JSON error mapping.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/plantclf/internal/domain"
	logpkg "github.com/kailas-cloud/plantclf/internal/logger"
	healthuc "github.com/kailas-cloud/plantclf/internal/usecase/health"
)

// UploadField is the multipart form field carrying the image.
const UploadField = "file"

const rootMessage = "Plant Classification API - Use /predict/ endpoint"

// Predictor runs the inference pipeline on one upload.
type Predictor interface {
	Predict(ctx context.Context, filename string, data []byte) (domain.Prediction, error)
}

// HealthChecker reports service health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	predictor      Predictor
	health         HealthChecker
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxUploadBytes <= 0 disables the body limit.
func NewServer(predictor Predictor, health HealthChecker, maxUploadBytes int64, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		predictor:      predictor,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidFileFormat, http.StatusBadRequest, "Invalid file format"),
		bodyTooLargeHandler,
		inferenceErrorHandler,
	}
	return s
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: rootMessage})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	resp := healthResponse{
		Status:      string(report.Status),
		ModelLoaded: report.ModelLoaded,
	}
	if len(report.Checks) > 0 {
		resp.Checks = make(map[string]string, len(report.Checks))
		for k, v := range report.Checks {
			resp.Checks[k] = string(v)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Predict handles POST /predict/ with a multipart "file" part.
func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		if r.ContentLength > s.maxUploadBytes {
			s.handleDomainError(w, r, &http.MaxBytesError{Limit: s.maxUploadBytes})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		if s.handleDomainError(w, r, err) {
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, missingFieldResponse(UploadField))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}

	pred, err := s.predictor.Predict(r.Context(), header.Filename, data)
	if err != nil {
		if s.handleDomainError(w, r, err) {
			return
		}
		s.writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, predictionResponse{
		Class:          pred.Class,
		Confidence:     pred.Confidence,
		AllPredictions: pred.All,
	})
}

// writeJSON marshals before committing the status so encoding failures still yield a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(detailResponse{Detail: err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func sentinelHandler(sentinel error, status int, detail string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeDetail(w, status, detail)
		return true
	}
}

func bodyTooLargeHandler(w http.ResponseWriter, err error) bool {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return false
	}
	writeDetail(w, http.StatusRequestEntityTooLarge, err.Error())
	return true
}

// inferenceErrorHandler surfaces the raw failure message as the 500 detail.
func inferenceErrorHandler(w http.ResponseWriter, err error) bool {
	if _, ok := domain.IsInferenceError(err); !ok {
		return false
	}
	writeDetail(w, http.StatusInternalServerError, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) bool {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			logpkg.FromContext(r.Context()).Warn("Request failed", zap.Error(err))
			return true
		}
	}
	return false
}

func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logpkg.FromContext(r.Context()).Error("Internal error", zap.Error(err))
	writeDetail(w, http.StatusInternalServerError, err.Error())
}
