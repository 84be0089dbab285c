package cachesvc

import (
	"context"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
)

// LogInvalidator only logs invalidations. It is used when no broker is configured.
type LogInvalidator struct {
	logger core.Logger
}

var _ points.Invalidator = (*LogInvalidator)(nil)

func NewLogInvalidator(logger core.Logger) *LogInvalidator {
	return &LogInvalidator{logger: logger}
}

func (inv *LogInvalidator) Invalidate(_ context.Context, path string) error {
	inv.logger.Info("cached view invalidated", map[string]interface{}{"path": path})
	return nil
}
