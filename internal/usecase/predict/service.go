package predict

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/plantclf/internal/domain"
	"github.com/kailas-cloud/plantclf/internal/metrics"
)

// Pipeline stages reported in InferenceError and metrics.
const (
	StageValidate    = "validate"
	StageDecode      = "decode"
	StageClassify    = "classify"
	StagePostprocess = "postprocess"
)

// Service runs one upload through validation, preprocessing, the classifier and postprocessing.
type Service struct {
	pre        Preprocessor
	classifier domain.Classifier
	labels     domain.Labels
	logger     *zap.Logger
}

// New creates a Service. All dependencies are loaded once at startup and shared across requests.
func New(pre Preprocessor, classifier domain.Classifier, labels domain.Labels, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pre:        pre,
		classifier: classifier,
		labels:     labels,
		logger:     logger,
	}
}

// Predict classifies one uploaded image.
// A filename without an accepted extension yields domain.ErrInvalidFileFormat without touching the bytes.
// Every later failure is returned as *domain.InferenceError carrying the underlying message.
func (s *Service) Predict(ctx context.Context, filename string, data []byte) (domain.Prediction, error) {
	if !domain.IsAllowedFilename(filename) {
		metrics.InferenceErrorsTotal.WithLabelValues(StageValidate).Inc()
		return domain.Prediction{}, domain.ErrInvalidFileFormat
	}

	input, err := s.pre.Prepare(data)
	if err != nil {
		return domain.Prediction{}, s.fail(StageDecode, filename, err)
	}

	start := time.Now()
	probs, err := s.classifier.Classify(ctx, input)
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Prediction{}, s.fail(StageClassify, filename, err)
	}

	pred, err := domain.NewPrediction(s.labels, probs)
	if err != nil {
		return domain.Prediction{}, s.fail(StagePostprocess, filename, err)
	}

	metrics.PredictionsTotal.WithLabelValues(pred.Class).Inc()
	s.logger.Debug("Prediction complete",
		zap.String("filename", filename),
		zap.String("class", pred.Class),
		zap.Float32("confidence", pred.Confidence),
	)
	return pred, nil
}

func (s *Service) fail(stage, filename string, err error) error {
	metrics.InferenceErrorsTotal.WithLabelValues(stage).Inc()
	s.logger.Warn("Prediction failed",
		zap.String("stage", stage),
		zap.String("filename", filename),
		zap.Error(err),
	)
	return domain.NewInferenceError(stage, err)
}
