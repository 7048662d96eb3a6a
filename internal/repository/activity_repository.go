package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

type ActivityEntry struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Action    string         `gorm:"not null;index" json:"action"`
	CameraID  *int           `json:"camera_id,omitempty"`
	Subject   string         `json:"subject"`
	Outcome   string         `gorm:"not null" json:"outcome"`
	Detail    datatypes.JSON `gorm:"type:jsonb" json:"detail,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (ActivityEntry) TableName() string {
	return "dashboard_activity"
}

type ActivityFilter struct {
	Action   string
	CameraID *int
	Limit    int
	Offset   int
}

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Record(ctx context.Context, entry *ActivityEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (r *ActivityRepository) List(ctx context.Context, filter ActivityFilter) ([]ActivityEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := r.db.WithContext(ctx).Model(&ActivityEntry{})
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.CameraID != nil {
		query = query.Where("camera_id = ?", *filter.CameraID)
	}

	var entries []ActivityEntry
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list activity entries: %w", err)
	}
	return entries, nil
}

// DeleteOlderThan prunes entries created before cutoff.
func (r *ActivityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&ActivityEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old activity entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}
