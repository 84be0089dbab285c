package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/nujoom/school/core/points"
)

type summaryRepository struct {
	db *DB
}

var _ points.SummaryStore = (*summaryRepository)(nil) // interface compliance check

func NewSummaryRepository(db *DB) points.SummaryStore {
	return &summaryRepository{db: db}
}

func (repo *summaryRepository) GetSummary(_ context.Context, ownerID string) (points.Summary, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultSummaryRead); err != nil {
		return points.Summary{}, err
	}
	if s, ok := repo.db.summary[ownerID]; ok {
		return s, nil
	}
	return points.Summary{}, points.ErrSummaryNotFound
}

func (repo *summaryRepository) SummaryExists(_ context.Context, ownerID string) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultSummaryRead); err != nil {
		return false, err
	}
	_, ok := repo.db.summary[ownerID]
	return ok, nil
}

func (repo *summaryRepository) UpsertSummary(_ context.Context, s points.Summary) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultSummaryWrite); err != nil {
		return err
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	repo.db.summary[s.OwnerID] = s
	return nil
}

func (repo *summaryRepository) QuerySummaries(_ context.Context) ([]points.Summary, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultSummaryRead); err != nil {
		return nil, err
	}
	summaries := make([]points.Summary, 0, len(repo.db.summary))
	for _, s := range repo.db.summary {
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].OwnerID < summaries[j].OwnerID })
	return summaries, nil
}

type summaryWriter struct {
	db *DB
}

var _ points.SummaryWriter = (*summaryWriter)(nil) // interface compliance check

func NewSummaryWriter(db *DB) points.SummaryWriter {
	return &summaryWriter{db: db}
}

func (w *summaryWriter) WriteSummary(_ context.Context, ownerID string, pts int64) error {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()

	if err := w.db.call(FaultRawWrite); err != nil {
		return err
	}
	w.db.summary[ownerID] = points.Summary{OwnerID: ownerID, Points: pts, UpdatedAt: time.Now().UTC()}
	return nil
}

// SetSummary stores a summary directly, bypassing faults and call counts.
func (db *DB) SetSummary(ownerID string, pts int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.summary[ownerID] = points.Summary{OwnerID: ownerID, Points: pts, UpdatedAt: time.Now().UTC()}
}

// Summary returns the stored summary of ownerID, if any.
func (db *DB) Summary(ownerID string) (points.Summary, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	s, ok := db.summary[ownerID]
	return s, ok
}
