package services

import (
	"context"
	"fmt"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/client/api"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/datapoints"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/users"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
)

// SubmissionService pushes submitted datapoints to the server. It is the
// runner behind the submission sync job type.
type SubmissionService struct {
	client     *api.Client
	datapoints datapoints.Repository
	users      users.Repository
	logger     logging.Logger
	now        func() time.Time
}

func NewSubmissionService(client *api.Client, dps datapoints.Repository, us users.Repository, logger logging.Logger) *SubmissionService {
	return &SubmissionService{
		client:     client,
		datapoints: dps,
		users:      us,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *SubmissionService) HasPendingWork(ctx context.Context, userID int64) (bool, error) {
	return s.datapoints.HasPendingSync(ctx, userID)
}

// Run drains the user's pending submissions oldest first. Each upload is
// acknowledged locally before the next one starts, so an interruption loses
// no progress: already-synced rows are skipped on the next run.
func (s *SubmissionService) Run(ctx context.Context, userID int64) error {
	uploaded := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending, err := s.datapoints.NextPendingSync(ctx, userID)
		if err != nil {
			return err
		}
		if pending == nil {
			break
		}

		dp := pending.DataPoint
		submission := &api.Submission{
			FormID:    pending.RemoteFormID,
			Name:      dp.Name,
			Geo:       dp.Geo,
			Duration:  dp.Duration,
			Submitter: dp.Submitter,
			UUID:      dp.UUID,
			Answers:   dp.Answers,
		}
		if err := s.client.UploadSubmission(ctx, submission); err != nil {
			return fmt.Errorf("failed to upload datapoint %s: %w", dp.UUID, err)
		}
		if err := s.datapoints.MarkSynced(ctx, dp.UUID, s.now()); err != nil {
			return err
		}
		uploaded++
		s.logger.Debug(ctx, "datapoint uploaded", "uuid", dp.UUID)
	}

	if uploaded > 0 {
		if err := s.users.UpdateLastSynced(ctx, userID); err != nil {
			return err
		}
		s.logger.Info(ctx, "submission sync finished", "uploaded", uploaded)
	}
	return nil
}
