/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package keymanager

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bluele/gcache"
	"github.com/cenkalti/backoff/v4"

	"github.com/tink-crypto/paymentmethodtoken-go/paymentmethodtoken/log"
)

const cacheKey = "trusted-signing-keys"

// Manager fetches Google's trusted-signing-keys JSON document over HTTPS,
// caching the result for Config.CacheTTL and retrying transient failures
// with exponential backoff. It satisfies paymentmethodtoken.KeyFetcher.
type Manager struct {
	cfg        Config
	httpClient *http.Client
	cache      gcache.Cache
	logger     log.Logger
}

// New constructs a Manager. A zero Config is filled in via Config.Validate.
func New(cfg Config, logger log.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.New("keymanager")
	}

	m := &Manager{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}

	m.cache = gcache.New(1).LRU().Expiration(cfg.CacheTTL).Build()

	return m, nil
}

// GetTrustedSigningKeysJSON returns the current trusted-signing-keys JSON
// document, serving it from cache when the cached entry is still within
// Config.CacheTTL and fetching a fresh copy (with retry) otherwise.
func (m *Manager) GetTrustedSigningKeysJSON(ctx context.Context) (string, error) {
	if v, err := m.cache.Get(cacheKey); err == nil {
		if doc, ok := v.(string); ok {
			return doc, nil
		}
	}

	return m.fetchWithRetry(ctx)
}

// fetchWithRetry re-fetches the document directly, retrying transient HTTP
// failures with exponential backoff, and repopulates the cache on success.
func (m *Manager) fetchWithRetry(ctx context.Context) (string, error) {
	var doc string

	op := func() error {
		d, err := m.fetch(ctx)
		if err != nil {
			return err
		}

		doc = d

		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(m.cfg.MaxRetries))

	if err := backoff.Retry(op, b); err != nil {
		m.logger.Errorf("failed to fetch trusted signing keys after retries: %v", err)
		return "", fmt.Errorf("keymanager: %w", err)
	}

	_ = m.cache.Set(cacheKey, doc)

	return doc, nil
}

func (m *Manager) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.Environment.url(), nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("keymanager: failed to build request: %w", err))
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Warnf("trusted signing keys fetch attempt failed: %v", err)
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("keymanager: unexpected status %d fetching trusted signing keys", resp.StatusCode)
	}

	m.logger.Debugf("fetched trusted signing keys (%d bytes)", len(body))

	return string(body), nil
}
