package shared

import (
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
	cachesvc "github.com/nujoom/school/services/cache"
	gormrepos "github.com/nujoom/school/storage/database/gorm"
	sqlxrepos "github.com/nujoom/school/storage/database/sqlx"
)

// NewPointsService wires the points service over the SQL stores.
// Invalidations go to Kafka when brokers are configured, to the logs otherwise.
// The returned func releases the invalidator.
func NewPointsService(
	conf *core.Config,
	sqlxDB *sqlx.DB,
	gormDB *gorm.DB,
	validate *validator.Validate,
	logger core.Logger,
) (*points.Service, func(), error) {
	messages, err := core.NewCatalog(conf.Points.DefaultLocale, points.Messages)
	if err != nil {
		return nil, nil, err
	}

	ledger := sqlxrepos.NewLedgerRepository(sqlxDB)
	calcs, err := points.CalculatorsByMethod(ledger, conf.Points.Calculators)
	if err != nil {
		return nil, nil, err
	}

	var invalidator points.Invalidator
	release := func() {}
	if len(conf.Kafka.Brokers) > 0 {
		kafkaInv := cachesvc.NewKafkaInvalidator(conf, logger)
		invalidator = kafkaInv
		release = func() {
			if err := kafkaInv.Close(); err != nil {
				logger.Error("closing invalidation writer", err)
			}
		}
	} else {
		invalidator = cachesvc.NewLogInvalidator(logger)
	}

	svc := points.NewService(points.Deps{
		Ledger:      ledger,
		Summaries:   gormrepos.NewSummaryRepository(gormDB),
		Writer:      sqlxrepos.NewSummaryWriter(sqlxDB),
		Invalidator: invalidator,
		Calculators: calcs,
		Messages:    messages,
		Validate:    validate,
		Logger:      logger,
	})
	return svc, release, nil
}
