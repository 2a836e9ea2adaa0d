package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/canopy-network/forkx/pkg/db"
	"github.com/canopy-network/forkx/pkg/db/models/tracker"
	"github.com/canopy-network/forkx/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// UpgradeChecker classifies a commit hash. Implementations must not fail.
type UpgradeChecker interface {
	IsUpgraded(ctx context.Context, commitHash string) bool
}

// Service turns inbound payloads into stored, classified node reports.
type Service struct {
	checker  UpgradeChecker
	store    db.NodeReportStore
	logger   *zap.Logger
	validate *validator.Validate
}

func NewService(checker UpgradeChecker, store db.NodeReportStore, logger *zap.Logger) *Service {
	return &Service{
		checker:  checker,
		store:    store,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Submit decodes, validates, classifies and upserts one report. Only ErrInvalidSubmission
// and store errors are returned.
func (s *Service) Submit(ctx context.Context, body []byte) (*tracker.NodeReport, error) {
	sub, err := Decode(body)
	if err != nil {
		metrics.Submissions.WithLabelValues("invalid").Inc()
		return nil, err
	}

	report, err := s.normalize(sub)
	if err != nil {
		metrics.Submissions.WithLabelValues("invalid").Inc()
		return nil, err
	}

	report.Upgraded = s.checker.IsUpgraded(ctx, report.CommitHash)

	if err := s.store.UpsertNodeReport(ctx, report); err != nil {
		metrics.Submissions.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("store report for %s: %w", report.PeerID, err)
	}

	metrics.Submissions.WithLabelValues("accepted").Inc()
	s.logger.Debug("Node report stored",
		zap.String("peer_id", report.PeerID),
		zap.String("commit_hash", report.CommitHash),
		zap.Uint64("height", report.MaxObservedBlockHeight),
		zap.Bool("upgraded", report.Upgraded),
	)
	return report, nil
}

func (s *Service) normalize(sub *Submission) (*tracker.NodeReport, error) {
	sub.PeerID = strings.TrimSpace(sub.PeerID)
	sub.CommitHash = strings.TrimSpace(sub.CommitHash)
	sub.ChainID = strings.TrimSpace(sub.ChainID)

	if err := s.validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return nil, fmt.Errorf("%w: invalid fields: %s", ErrInvalidSubmission, strings.Join(fields, ", "))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	ts, err := time.Parse(time.RFC3339, sub.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidSubmission, err)
	}

	report := &tracker.NodeReport{
		PeerID:                 sub.PeerID,
		CommitHash:             sub.CommitHash,
		ChainID:                sub.ChainID,
		MaxObservedBlockHeight: *sub.MaxObservedBlockHeight,
		PeerCount:              *sub.PeerCount,
		Timestamp:              ts.UTC(),
	}
	if sub.BlockProducerPublicKey != nil {
		if key := strings.TrimSpace(*sub.BlockProducerPublicKey); key != "" {
			report.BlockProducerPublicKey = &key
		}
	}
	return report, nil
}
