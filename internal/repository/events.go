package repository

import (
	"context"

	"example.com/jodi/services/whatsapp/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository persists membership events
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// BulkInsert writes events in fixed-size batches using insert-and-ignore
// semantics: rows colliding on the (timestamp, group_name, user_phone_hash,
// event_type) key are skipped silently. Returns the number of rows actually
// inserted. A failing batch aborts the load and surfaces its error.
func (r *EventRepository) BulkInsert(ctx context.Context, events []models.GroupEvent, batchSize int) (int64, error) {
	var inserted int64

	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&batch)
		if res.Error != nil {
			return inserted, errors.Wrapf(res.Error, "failed to insert batch %d", start/batchSize+1)
		}

		inserted += res.RowsAffected
		log.Info().
			Int("batch", start/batchSize+1).
			Int64("inserted", res.RowsAffected).
			Int("size", len(batch)).
			Msg("Batch loaded")
	}

	return inserted, nil
}

// RunRepository persists ingest run audit records
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create records a completed run.
func (r *RunRepository) Create(ctx context.Context, run *models.IngestRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return errors.Wrap(err, "failed to record ingest run")
	}
	return nil
}
