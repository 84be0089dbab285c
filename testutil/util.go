package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
	logsvc "github.com/nujoom/school/services/logger"
)

// sqlite flavor of the goose migrations. There is no balance function, so the delegated calculator always fails.
const schema = `
CREATE TABLE points_transactions (
	id          TEXT PRIMARY KEY,
	user_id     TEXT      NOT NULL,
	points      INTEGER   NOT NULL CHECK (points >= 0),
	is_positive BOOLEAN   NOT NULL,
	category    TEXT,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX points_transactions_user_id_idx ON points_transactions (user_id);

CREATE TABLE student_points (
	student_id TEXT PRIMARY KEY,
	points     INTEGER   NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL
);`

// NewLogger returns a logger writing nowhere.
func NewLogger() core.Logger {
	conf := core.NewTestConfig()
	std := logrus.New()
	std.SetOutput(io.Discard)
	logger := logsvc.NewRollbarLogger(std, "test", conf)
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator whose errors translate with translator.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func NewCatalog(t *testing.T) *core.Catalog {
	catalog, err := core.NewCatalog("ar", points.Messages)
	if err != nil {
		t.Fatalf("NewCatalog() failed: %v", err)
	}
	return catalog
}

// NewDeps returns service dependencies around the given stores, with silent logging.
func NewDeps(t *testing.T, ledger points.Ledger, summaries points.SummaryStore) points.Deps {
	return points.Deps{
		Ledger:    ledger,
		Summaries: summaries,
		Messages:  NewCatalog(t),
		Validate:  NewValidator(core.NewTranslator()),
		Logger:    NewLogger(),
	}
}

// OpenSQLite opens an in-memory database with the points schema, wrapped for both sqlx and gorm.
func OpenSQLite(t *testing.T) (*sqlx.DB, *gorm.DB) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	// a single connection keeps a single in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err = db.Exec(schema); err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}

	gdb, err := gorm.Open(&sqlite.Dialector{Conn: db.DB}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	return db, gdb
}

func CreateTransaction(
	t *testing.T,
	ledger points.Ledger,
	ownerID string,
	pts int64,
	isPositive bool,
	category string,
	createdAt ...time.Time,
) points.Transaction {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	tx, err := ledger.CreateTransaction(context.Background(), points.Transaction{
		OwnerID:    ownerID,
		Points:     pts,
		IsPositive: isPositive,
		Category:   category,
		CreatedAt:  tstamp,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() failed: %v", err)
	}
	return tx
}
