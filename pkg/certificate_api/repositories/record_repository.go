package repositories

import (
	"context"
	"errors"

	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordRepository is the single-key record store used for the issuance
// check. Put is unconditional: there is no check-and-set, so two concurrent
// issuances for a new identity may both write.
type RecordRepository interface {
	GetRecord(ctx context.Context, id string) (*models.IssuanceRecord, error)
	PutRecord(ctx context.Context, record *models.IssuanceRecord) error
}

type recordRepository struct {
	db    *gorm.DB
	table string
}

func NewRecordRepository(db *gorm.DB, table string) RecordRepository {
	return &recordRepository{db: db, table: table}
}

// GetRecord returns nil, nil when no record exists for id.
func (r *recordRepository) GetRecord(ctx context.Context, id string) (*models.IssuanceRecord, error) {
	var rec models.IssuanceRecord
	err := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutRecord upserts on id so a lost race behaves like a key-value put instead
// of failing on the primary key.
func (r *recordRepository) PutRecord(ctx context.Context, record *models.IssuanceRecord) error {
	return r.db.WithContext(ctx).
		Table(r.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(record).Error
}
