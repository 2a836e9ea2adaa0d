package stakesync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/canopy-network/forkx/pkg/metrics"
	"github.com/canopy-network/forkx/pkg/retry"
	"github.com/canopy-network/forkx/pkg/stakecsv"
	"github.com/canopy-network/forkx/pkg/utils"
	"go.uber.org/zap"
)

const (
	SourceUpload = "upload"
	SourceURL    = "url"

	// maxBodyBytes caps a downloaded stake CSV.
	maxBodyBytes = 64 << 20
)

// Syncer loads block-producer stake CSVs into the stake registry, either from an
// uploaded body or by downloading from a configured URL.
type Syncer struct {
	registry db.StakeRegistry
	logger   *zap.Logger
	client   *http.Client
	url      string
	retry    retry.Config
}

type Option func(*Syncer)

// WithURL sets the remote CSV location used by Run.
func WithURL(url string) Option {
	return func(s *Syncer) { s.url = url }
}

// WithHTTPClient overrides the client used to download the CSV.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Syncer) { s.client = c }
}

// WithRetry overrides the download retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(s *Syncer) { s.retry = cfg }
}

func New(registry db.StakeRegistry, logger *zap.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		registry: registry,
		logger:   logger,
		client:   &http.Client{Timeout: 30 * time.Second},
		retry: retry.Config{
			MaxRetries:    5,
			InitialDelay:  time.Second,
			MaxDelay:      30 * time.Second,
			Multiplier:    2.0,
			JitterEnabled: true,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the configured download location, empty when remote sync is disabled.
func (s *Syncer) URL() string { return s.url }

// Import parses a stake CSV and applies it to the registry.
func (s *Syncer) Import(ctx context.Context, r io.Reader, source string) (tracker.SyncResult, error) {
	records, err := stakecsv.Parse(r)
	if err != nil {
		metrics.StakeSyncs.WithLabelValues(source, "invalid").Inc()
		return tracker.SyncResult{}, err
	}

	start := time.Now()
	result, err := s.registry.SyncStakeRecords(ctx, records)
	if err != nil {
		metrics.StakeSyncs.WithLabelValues(source, "error").Inc()
		return tracker.SyncResult{}, fmt.Errorf("sync stake records: %w", err)
	}
	metrics.StakeSyncs.WithLabelValues(source, "ok").Inc()

	s.logger.Info("Stake records synced",
		zap.String("source", source),
		zap.Int("total", result.Total),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Duration("took", time.Since(start)))

	return result, nil
}

// Run downloads the CSV from the configured URL and imports it.
func (s *Syncer) Run(ctx context.Context) (tracker.SyncResult, error) {
	if s.url == "" {
		return tracker.SyncResult{}, errors.New("stake sync url is not configured")
	}

	var body []byte
	err := retry.WithBackoff(ctx, s.retry, s.logger, "stake csv download", func() error {
		b, fetchErr := s.fetch(ctx)
		if fetchErr != nil {
			return fetchErr
		}
		body = b
		return nil
	})
	if err != nil {
		metrics.StakeSyncs.WithLabelValues(SourceURL, "error").Inc()
		return tracker.SyncResult{}, err
	}

	return s.Import(ctx, bytes.NewReader(body), SourceURL)
}

func (s *Syncer) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d from %s", resp.StatusCode, s.url)
		// Only server-side failures and throttling are worth another attempt.
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
