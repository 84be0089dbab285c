package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nujoom/school/core/points"
)

type studentPoints struct {
	StudentID string    `gorm:"column:student_id;primaryKey"`
	Points    int64     `gorm:"column:points;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (studentPoints) TableName() string { return "student_points" }

type summaryRepository struct {
	db *gorm.DB
}

var _ points.SummaryStore = (*summaryRepository)(nil) // interface compliance check

func NewSummaryRepository(db *gorm.DB) *summaryRepository {
	return &summaryRepository{db: db}
}

func (repo summaryRepository) boil(s points.Summary) studentPoints {
	return studentPoints{StudentID: s.OwnerID, Points: s.Points, UpdatedAt: s.UpdatedAt.UTC()}
}

func (repo summaryRepository) unboil(row studentPoints) points.Summary {
	return points.Summary{OwnerID: row.StudentID, Points: row.Points, UpdatedAt: row.UpdatedAt.UTC()}
}

func (repo summaryRepository) GetSummary(ctx context.Context, ownerID string) (points.Summary, error) {
	var row studentPoints
	err := repo.db.WithContext(ctx).Where("student_id = ?", ownerID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return points.Summary{}, points.ErrSummaryNotFound
		}
		return points.Summary{}, errors.Wrap(err, "selecting balance summary")
	}
	return repo.unboil(row), nil
}

func (repo summaryRepository) SummaryExists(ctx context.Context, ownerID string) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&studentPoints{}).Where("student_id = ?", ownerID).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "counting balance summaries")
	}
	return count > 0, nil
}

// UpsertSummary relies on ON CONFLICT so concurrent reconciliations never fail on a duplicate insert.
func (repo summaryRepository) UpsertSummary(ctx context.Context, s points.Summary) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	row := repo.boil(s)
	err := repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"points", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "upserting balance summary")
	}
	return nil
}

func (repo summaryRepository) QuerySummaries(ctx context.Context) ([]points.Summary, error) {
	var rows []studentPoints
	if err := repo.db.WithContext(ctx).Order("student_id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "selecting balance summaries")
	}
	summaries := make([]points.Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, repo.unboil(row))
	}
	return summaries, nil
}
