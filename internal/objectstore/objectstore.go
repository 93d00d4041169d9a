// Package objectstore implements the Artifact Store Adapter: the
// leaf-most collaborator that puts and gets opaque byte blobs keyed by a
// deterministic path, grounded on the teacher's internal/infrastructure/llm
// HTTP client pattern (net/http client, retry-with-backoff, circuit
// breaker) generalized from an LLM proxy call to a PUT/GET object call.
package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/pkg/metrics"
	"github.com/juspay/airborne/pkg/retry"
)

// Store is the Artifact Store Adapter contract consumed by the file
// catalog. Key layout is assets/<org>/<app>/<file_id>/<version>/<file_name>.
type Store interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, sha256Hex string) (size int64, err error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// Download fetches an arbitrary URL (register's download-then-store
	// step) and returns its bytes plus the lower-case hex SHA-256.
	Download(ctx context.Context, url string) (data []byte, sha256Hex string, err error)
}

// HTTPStore implements Store against an S3-compatible HTTP object
// store using simple PUT/GET semantics (no multipart, matching spec.md's
// non-goal of not implementing multipart upload parsing — that belongs
// to the excluded HTTP routing layer, not this adapter).
type HTTPStore struct {
	cfg     config.ObjectStoreConfig
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.ObjectStoreMetrics
	retry   *retry.Executor
	breaker *retry.CircuitBreaker
}

// New builds an HTTPStore.
func New(cfg config.ObjectStoreConfig, m *metrics.ObjectStoreMetrics, logger *slog.Logger) *HTTPStore {
	if logger == nil {
		logger = slog.Default()
	}
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries
	return &HTTPStore{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: m,
		retry:   retry.NewExecutor(rc, isRetryableHTTPError, logger),
		breaker: retry.NewCircuitBreaker(5, 30*time.Second),
	}
}

func (s *HTTPStore) scheme() string {
	if s.cfg.UseTLS {
		return "https"
	}
	return "http"
}

func (s *HTTPStore) objectURL(bucket, key string) string {
	return fmt.Sprintf("%s://%s/%s/%s", s.scheme(), s.cfg.Endpoint, bucket, key)
}

// PutObject uploads body to bucket/key, retrying transient failures.
// The caller-supplied sha256Hex is sent as a content hash header so the
// store can reject corrupted uploads without the adapter re-reading body.
func (s *HTTPStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, sha256Hex string) (int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("objectstore: read body: %w", err)
	}

	start := time.Now()
	err = s.breaker.Call(func() error {
		return s.retry.Execute(ctx, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(bucket, key), bytes.NewReader(data))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/octet-stream")
			req.Header.Set("X-Content-Sha256", sha256Hex)
			if s.cfg.AccessKey != "" {
				req.SetBasicAuth(s.cfg.AccessKey, s.cfg.SecretKey)
			}

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return fmt.Errorf("objectstore: put %s returned %d", key, resp.StatusCode)
			}
			return nil
		})
	})

	if s.metrics != nil {
		s.metrics.ObservePut(time.Since(start), err == nil)
	}
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// GetObject retrieves bucket/key.
func (s *HTTPStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	var body io.ReadCloser
	start := time.Now()
	err := s.breaker.Call(func() error {
		return s.retry.Execute(ctx, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(bucket, key), nil)
			if err != nil {
				return err
			}
			if s.cfg.AccessKey != "" {
				req.SetBasicAuth(s.cfg.AccessKey, s.cfg.SecretKey)
			}
			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			if resp.StatusCode >= 300 {
				resp.Body.Close()
				return fmt.Errorf("objectstore: get %s returned %d", key, resp.StatusCode)
			}
			body = resp.Body
			return nil
		})
	})
	if s.metrics != nil {
		s.metrics.ObserveGet(time.Since(start), err == nil)
	}
	return body, err
}

// Download fetches url (the file catalog's register() source) and
// computes its lower-case hex SHA-256, per spec.md §4.1's checksum
// requirement.
func (s *HTTPStore) Download(ctx context.Context, url string) ([]byte, string, error) {
	var data []byte
	start := time.Now()
	err := s.retry.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("objectstore: download %s returned %d", url, resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if s.metrics != nil {
		s.metrics.ObserveDownload(time.Since(start), err == nil)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

func isRetryableHTTPError(err error) bool {
	return err != nil
}

// ErrDownload wraps any transport/HTTP failure encountered by Download.
var ErrDownload = fmt.Errorf("objectstore: download error")
