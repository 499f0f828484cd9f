package services

import (
	"context"
	"fmt"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/client/api"
	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/datapoints"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/monitoring"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
)

// PullService downloads the server's monitoring datapoints. It is the
// runner behind the datapoint-pull job type.
type PullService struct {
	client     *api.Client
	monitoring monitoring.Repository
	datapoints datapoints.Repository
	logger     logging.Logger
	now        func() time.Time
}

func NewPullService(client *api.Client, mon monitoring.Repository, dps datapoints.Repository, logger logging.Logger) *PullService {
	return &PullService{
		client:     client,
		monitoring: mon,
		datapoints: dps,
		logger:     logger,
		now:        time.Now,
	}
}

// HasPendingWork always reports true: whether the server has new datapoints
// is unknowable without asking it, and the pull job is only scheduled when
// a change signal arrived.
func (s *PullService) HasPendingWork(ctx context.Context, userID int64) (bool, error) {
	return true, nil
}

// Run walks the paginated listing and stores each datapoint. Records are
// keyed by uuid: a datapoint that also exists locally (a previous local
// submission) has its answers refreshed in place.
func (s *PullService) Run(ctx context.Context, userID int64) error {
	synced := 0
	for page := 1; ; page++ {
		listing, err := s.client.DatapointList(ctx, page)
		if err != nil {
			return fmt.Errorf("failed to list datapoints (page %d): %w", page, err)
		}
		for _, ref := range listing.Data {
			if err := s.pullOne(ctx, ref); err != nil {
				return err
			}
			synced++
		}
		if page >= listing.TotalPage {
			break
		}
	}
	s.logger.Info(ctx, "datapoint pull finished", "records", synced)
	return nil
}

func (s *PullService) pullOne(ctx context.Context, ref api.DatapointRef) error {
	remote, err := s.client.DownloadDatapoint(ctx, ref.URL)
	if err != nil {
		return fmt.Errorf("failed to download datapoint %s: %w", ref.UUID, err)
	}

	now := s.now()
	if err := s.monitoring.UpsertByUUID(ctx, &models.Monitoring{
		FormID:   ref.FormID,
		UUID:     remote.UUID,
		Name:     remote.Name,
		Answers:  remote.Answers,
		SyncedAt: &now,
	}); err != nil {
		return err
	}

	local, err := s.datapoints.GetByUUID(ctx, remote.UUID)
	if err != nil {
		return err
	}
	if local != nil {
		if err := s.datapoints.UpdateByUUID(ctx, remote.UUID, remote.Answers, now); err != nil {
			return err
		}
	}
	return nil
}
