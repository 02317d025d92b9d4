package health

import "context"

// Status represents the aggregated health status.
type Status string

// Healthy is the only status the service reports once it is serving.
const Healthy Status = "healthy"

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
// ModelLoaded mirrors artifact presence on disk, not whether the in-memory classifier works.
// Checks holds optional components only and is empty when none are configured.
type Report struct {
	Status      Status
	ModelLoaded bool
	Checks      map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	artifact ArtifactChecker
	cache    CachePinger
}

// New creates a Service. cache can be nil.
func New(artifact ArtifactChecker, cache CachePinger) *Service {
	return &Service{artifact: artifact, cache: cache}
}

// Check runs health checks. A failing cache shows up in Checks and never changes Status.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	loaded := s.artifact.Exists()

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = CheckError
		} else {
			checks["cache"] = CheckOK
		}
	}

	return Report{Status: Healthy, ModelLoaded: loaded, Checks: checks}
}
