// Package provision makes sure the model artifact is on local disk before the classifier loads it.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultChunkSize is the write granularity used while streaming the artifact.
const DefaultChunkSize = 32 * 1024

const progressInterval = 5 * time.Second

// Config holds provisioner settings.
type Config struct {
	Timeout   time.Duration
	ChunkSize int
	Logger    *zap.Logger
	// Bytes counts downloaded bytes. Optional.
	Bytes prometheus.Counter
}

// Provisioner downloads the model artifact when it is missing. One attempt per call, no retry.
type Provisioner struct {
	client    *http.Client
	chunkSize int
	logger    *zap.Logger
	bytes     prometheus.Counter
}

// New creates a Provisioner.
func New(cfg Config) *Provisioner {
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		client:    &http.Client{Timeout: cfg.Timeout},
		chunkSize: chunk,
		logger:    logger,
		bytes:     cfg.Bytes,
	}
}

// EnsurePresent leaves an existing file at path untouched. Otherwise it streams url into path.
// The body goes to path+".tmp" first and is renamed on success, so path is never partially written.
func (p *Provisioner) EnsurePresent(ctx context.Context, path, url string) error {
	cleanPath := filepath.Clean(path)

	st, err := os.Stat(cleanPath)
	switch {
	case err == nil && st.Mode().IsRegular():
		p.logger.Info("Model already exists, using local copy",
			zap.String("path", cleanPath), zap.Int64("bytes", st.Size()))
		return nil
	case err == nil:
		return fmt.Errorf("model path %s is not a regular file", cleanPath)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat model %s: %w", cleanPath, err)
	}

	if url == "" {
		return fmt.Errorf("model %s is missing and no download url is configured", cleanPath)
	}

	p.logger.Info("Downloading model", zap.String("path", cleanPath))
	start := time.Now()

	written, err := p.download(ctx, url, cleanPath)
	if err != nil {
		p.logger.Error("Error downloading model", zap.String("path", cleanPath), zap.Error(err))
		return err
	}

	p.logger.Info("Model downloaded successfully",
		zap.String("path", cleanPath),
		zap.Int64("bytes", written),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (p *Provisioner) download(ctx context.Context, url, path string) (int64, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("download: HTTP %d: %s", resp.StatusCode, string(body))
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("open tmp: %w", err)
	}

	written, err := copyChunks(f, &progressReader{
		reader: resp.Body,
		total:  resp.ContentLength,
		name:   filepath.Base(path),
		logger: p.logger,
		bytes:  p.bytes,
	}, p.chunkSize)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err == nil && resp.ContentLength > 0 && written != resp.ContentLength {
		err = fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("write: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("rename: %w", err)
	}
	return written, nil
}

// copyChunks streams src into dst through a buffer of exactly chunk bytes.
// io.Copy is avoided because *os.File.ReadFrom picks its own buffer size.
func copyChunks(dst io.Writer, src io.Reader, chunk int) (int64, error) {
	buf := make([]byte, chunk)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// progressReader logs download progress and feeds the byte counter.
type progressReader struct {
	reader  io.Reader
	total   int64
	current int64
	name    string
	logger  *zap.Logger
	bytes   prometheus.Counter
	lastLog time.Time
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)

	if pr.bytes != nil && n > 0 {
		pr.bytes.Add(float64(n))
	}

	if time.Since(pr.lastLog) > progressInterval {
		pr.lastLog = time.Now()
		fields := []zap.Field{zap.String("file", pr.name), zap.Int64("bytes", pr.current)}
		if pr.total > 0 {
			fields = append(fields, zap.Float64("percent", float64(pr.current)/float64(pr.total)*100))
		}
		pr.logger.Debug("Model download progress", fields...)
	}

	return n, err //nolint:wrapcheck // io.EOF must reach the caller unwrapped
}

// Artifact is a local artifact path.
type Artifact string

// Exists reports whether the artifact is present as a regular file. It says nothing about whether the file loads.
func (a Artifact) Exists() bool {
	st, err := os.Stat(string(a))
	return err == nil && st.Mode().IsRegular()
}
