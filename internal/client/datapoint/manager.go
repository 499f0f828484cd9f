// Package datapoint drives a survey response through its lifecycle: draft,
// submitted, synced. It owns duration accounting, answer normalization and
// the enqueueing of submission sync jobs.
package datapoint

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/datapoints"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/forms"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/jobs"
	"github.com/akvo/dws-datapro-sub000/internal/common"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
)

// MinDurationMinutes is the floor applied to computed durations so reporting
// never shows a zero-duration submission.
const MinDurationMinutes = 1

type Manager struct {
	datapoints datapoints.Repository
	forms      forms.Repository
	jobs       jobs.Repository
	logger     logging.Logger
	now        func() time.Time
}

func NewManager(dps datapoints.Repository, fs forms.Repository, js jobs.Repository, logger logging.Logger) *Manager {
	return &Manager{
		datapoints: dps,
		forms:      fs,
		jobs:       js,
		logger:     logger,
		now:        time.Now,
	}
}

// SaveDraft inserts a new draft and returns its local id. The uuid is
// assigned here, once, and identifies the datapoint across the client and
// server for the rest of its life.
func (m *Manager) SaveDraft(ctx context.Context, formID, userID int64, answers models.AnswerMap) (int64, error) {
	dp := &models.DataPoint{
		FormID:    formID,
		UserID:    userID,
		Answers:   answers,
		UUID:      uuid.NewString(),
		CreatedAt: m.now(),
	}
	id, err := m.datapoints.Save(ctx, dp)
	if err != nil {
		return 0, fmt.Errorf("failed to save draft: %w", err)
	}
	m.logger.Debug(ctx, "draft saved", "id", id, "form", formID)
	return id, nil
}

// UpdateDraft rewrites the answers and accumulates the session's elapsed
// time into the stored duration. Submission and sync timestamps are left
// alone.
func (m *Manager) UpdateDraft(ctx context.Context, id int64, answers models.AnswerMap, durationDelta float64) error {
	dp, err := m.datapoints.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if dp == nil {
		return fmt.Errorf("datapoint %d: %w", id, common.ErrorNotFound)
	}
	dp.Answers = answers
	if durationDelta > 0 {
		dp.Duration += durationDelta
	}
	if err := m.datapoints.Update(ctx, dp); err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	return nil
}

// Submit marks the datapoint submitted and enqueues a sync job correlated
// by its uuid. Re-submitting an already-submitted-but-unsynced record is a
// no-op for submittedAt and never creates a second job for the same uuid.
func (m *Manager) Submit(ctx context.Context, id int64, answers models.AnswerMap, duration float64) error {
	dp, err := m.datapoints.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if dp == nil {
		return fmt.Errorf("datapoint %d: %w", id, common.ErrorNotFound)
	}

	form, err := m.forms.GetByID(ctx, dp.FormID)
	if err != nil {
		return err
	}
	if answers != nil {
		dp.Answers = answers
	}
	if form != nil {
		def, err := ParseFormDef(form.JSON)
		if err != nil {
			return err
		}
		dp.Answers = def.NormalizeAnswers(dp.Answers)
		if name := def.DisplayName(dp.Answers); name != "" {
			dp.Name = name
		}
	}

	if duration > dp.Duration {
		dp.Duration = duration
	}
	if dp.Duration < MinDurationMinutes {
		dp.Duration = MinDurationMinutes
	}

	dp.Submitted = true
	if dp.SubmittedAt == nil {
		at := m.now()
		dp.SubmittedAt = &at
	}
	if err := m.datapoints.Update(ctx, dp); err != nil {
		return fmt.Errorf("failed to submit datapoint: %w", err)
	}

	job, created, err := m.jobs.Enqueue(ctx, dp.UserID, models.JobTypeFormSubmission, dp.UUID)
	if err != nil {
		return fmt.Errorf("failed to enqueue submission job: %w", err)
	}
	if created {
		m.logger.Info(ctx, "submission job enqueued", "job", job.ID, "uuid", dp.UUID)
	} else {
		m.logger.Debug(ctx, "submission job already queued", "job", job.ID)
	}
	return nil
}

// MarkSynced records the server acknowledgment for a uuid.
func (m *Manager) MarkSynced(ctx context.Context, dpUUID string, serverTimestamp time.Time) error {
	if err := m.datapoints.MarkSynced(ctx, dpUUID, serverTimestamp); err != nil {
		return err
	}
	m.logger.Info(ctx, "datapoint synced", "uuid", dpUUID)
	return nil
}

// SessionDuration computes one edit session's contribution in whole
// minutes, floored to MinDurationMinutes.
func SessionDuration(start, end time.Time) float64 {
	minutes := end.Sub(start).Minutes()
	if minutes < MinDurationMinutes {
		return MinDurationMinutes
	}
	return float64(int64(minutes))
}
