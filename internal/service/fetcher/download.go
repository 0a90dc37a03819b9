package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/oshokin/axget/internal/config"
	"github.com/oshokin/axget/internal/domain/release"
	"github.com/oshokin/axget/internal/logger"
)

// newHTTPClient builds a client honouring proxy settings from the environment.
// ConnectTimeout bounds dialing, TLS and waiting for headers; DownloadTimeout bounds the whole transfer.
func newHTTPClient(cfg *config.Config) *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: cfg.DownloadTimeout}
	}

	transport = transport.Clone()
	transport.Proxy = http.ProxyFromEnvironment
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: keepAlive,
	}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport.ResponseHeaderTimeout = cfg.ConnectTimeout

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.DownloadTimeout,
	}
}

// downloadArtifact tries every URL of the artifact in order and streams the
// first successful response into dir. The error of the last attempt is returned.
func (r *runner) downloadArtifact(ctx context.Context, artifact release.Artifact) (string, error) {
	if len(artifact.URLs) == 0 {
		return "", fmt.Errorf("%s: %w", artifact.Name, errNoURL)
	}

	target := filepath.Join(r.outputDir, artifact.Filename)

	var lastErr error

	for i, url := range artifact.URLs {
		logger.InfoKV(ctx, "Downloading artifact", "artifact", artifact.Name, "url", url, "attempt", i+1)

		written, err := r.fetch(ctx, url, target)
		if err == nil {
			logger.InfoKV(ctx, "Downloaded artifact", "path", target, "bytes", written)

			return target, nil
		}

		lastErr = err

		if contextDone(ctx) {
			break
		}

		if i < len(artifact.URLs)-1 {
			logger.WarnKV(ctx, "Download failed, trying the next location", "url", url, "error", err)
		}
	}

	return "", fmt.Errorf("%s: %w: %w", artifact.Name, release.ErrNetwork, lastErr)
}

// fetch performs one GET and streams the body to target.
// The file is created only once a success status has been received.
func (r *runner) fetch(ctx context.Context, url, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, err
	}

	response, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return 0, fmt.Errorf("%s, %s: %w", url, response.Status, errBadHTTPStatus)
	}

	outputFile, err := os.Create(filepath.Clean(target))
	if err != nil {
		return 0, err
	}

	var body io.Reader = response.Body

	if logger.Level().Enabled(zapcore.DebugLevel) {
		body = &progressReader{
			ctx:   ctx,
			r:     response.Body,
			total: response.ContentLength,
			next:  progressStep,
			start: time.Now(),
		}
	}

	written, err := io.Copy(outputFile, body)
	if err != nil {
		_ = outputFile.Close()

		return written, err
	}

	return written, outputFile.Close()
}

// progressReader logs transfer progress at debug level every progressStep bytes.
type progressReader struct {
	ctx   context.Context //nolint:containedctx // Only used for logging from Read.
	r     io.Reader
	total int64
	read  int64
	next  int64
	start time.Time
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)

	if p.read >= p.next {
		p.next += progressStep
		logger.DebugKV(p.ctx, "Download progress",
			"bytes", p.read, "total", p.total, "elapsed", time.Since(p.start).Round(time.Second).String())
	}

	return n, err
}
