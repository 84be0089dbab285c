package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
)

const rawUpsertSummaryQuery = `
INSERT INTO student_points (student_id, points, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (student_id) DO UPDATE SET points = excluded.points, updated_at = excluded.updated_at`

// summaryWriter writes balance summaries with plain SQL, without any ORM in between.
type summaryWriter struct {
	exec core.DBExecutor
}

var _ points.SummaryWriter = (*summaryWriter)(nil) // interface compliance check

func NewSummaryWriter(exec core.DBExecutor) *summaryWriter {
	return &summaryWriter{exec: exec}
}

func (w summaryWriter) WriteSummary(ctx context.Context, ownerID string, pts int64) error {
	_, err := w.exec.ExecContext(ctx, w.exec.Rebind(rawUpsertSummaryQuery), ownerID, pts, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "writing balance summary")
	}
	return nil
}
