package repository

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang/snappy"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/infrastructure/config"
)

// RemoteWriteExporter implements MetricsExporter against a Prometheus Remote
// Write endpoint.
type RemoteWriteExporter struct {
	url        string
	client     *http.Client
	authConfig *AuthConfig
	hostLabel  string
	retry      *RetryConfig
}

// AuthConfig holds basic authentication credentials
type AuthConfig struct {
	Username string
	Password string
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// NewRemoteWriteExporter creates an exporter from the remote write config.
func NewRemoteWriteExporter(cfg *config.RemoteWriteConfig, timeout time.Duration) (repository.MetricsExporter, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, domain.ErrExport("initialize", "remote write url is empty")
	}

	hostLabel := cfg.HostLabel
	if hostLabel == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostLabel = "unknown"
		} else {
			hostLabel = hostname
		}
	}

	var authConfig *AuthConfig
	if cfg.Username != "" && cfg.Password != "" {
		authConfig = &AuthConfig{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	return &RemoteWriteExporter{
		url:        cfg.URL,
		client:     &http.Client{Timeout: timeout},
		authConfig: authConfig,
		hostLabel:  hostLabel,
		retry:      DefaultRetryConfig(),
	}, nil
}

// SendGauge pushes one gauge sample, retrying transient failures with
// exponential backoff.
func (e *RemoteWriteExporter) SendGauge(ctx context.Context, name string, value float64, labels map[string]string) error {
	var lastErr error
	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			multiplier := 1 << uint(attempt-1)
			delay := time.Duration(float64(e.retry.BaseDelay) * float64(multiplier))
			if delay > e.retry.MaxDelay {
				delay = e.retry.MaxDelay
			}

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return domain.ErrExportWithCause("send", ctx.Err())
			}
		}

		err := e.sendOnce(ctx, name, value, labels)
		if err == nil {
			return nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return domain.ErrExportWithCause("send", err)
		}
	}

	return domain.ErrExportWithCause("send",
		fmt.Errorf("failed after %d retries: %w", e.retry.MaxRetries, lastErr))
}

func (e *RemoteWriteExporter) sendOnce(ctx context.Context, name string, value float64, labels map[string]string) error {
	allLabels := make(map[string]string, len(labels)+1)
	allLabels["host"] = e.hostLabel
	for k, v := range labels {
		allLabels[k] = v
	}

	data := encodeWriteRequest(name, value, allLabels, time.Now().UnixMilli())
	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	if e.authConfig != nil {
		auth := base64.StdEncoding.EncodeToString([]byte(e.authConfig.Username + ":" + e.authConfig.Password))
		httpReq.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote write failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// isRetryableError reports whether the error is worth another attempt.
// Server errors and network failures retry; client errors do not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if os.IsTimeout(err) {
		return true
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "status 50") {
		return true
	}
	if strings.Contains(errMsg, "status 40") {
		return false
	}

	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "timeout") {
		return true
	}

	return false
}
