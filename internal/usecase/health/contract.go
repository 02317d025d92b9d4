package health

import "context"

// ArtifactChecker reports whether the model artifact is on disk.
type ArtifactChecker interface {
	Exists() bool
}

// CachePinger checks prediction cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
