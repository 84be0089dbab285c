package main

import (
	"context"
	"database/sql"
	"expvar"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/nujoom/school/apps/api/echo"
	"github.com/nujoom/school/apps/shared"
	"github.com/nujoom/school/core"
	logsvc "github.com/nujoom/school/services/logger"
	queuesvc "github.com/nujoom/school/services/queue"
	"github.com/nujoom/school/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	std := logsvc.NewStdLogger(conf)
	logger := logsvc.NewRollbarLogger(std, "api", conf)
	dbLogger := logsvc.NewRollbarLogger(std, "db", conf)
	queueLogger := logsvc.NewRollbarLogger(std, "queue", conf)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal("setting up database", err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	sqlxDB := database.Sqlx(db, conf)
	gormDB, err := database.Gorm(db, conf)
	if err != nil {
		dbLogger.Fatal("setting up gorm", err)
	}

	// =========================================================================
	// Initialize App

	logger.Info("Application initializing", map[string]interface{}{"version": conf.Build})
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	pointsSvc, closeInvalidator, err := shared.NewPointsService(conf, sqlxDB, gormDB, validate, logger)
	if err != nil {
		logger.Fatal("setting up points service", err)
	}
	defer closeInvalidator()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error("debug server closed", err)
		}
	}()

	// =========================================================================
	// Start Points Events Consumer

	if conf.RabbitMQ.URL != "" {
		consumer, err := queuesvc.NewConsumer(conf, pointsSvc, queueLogger)
		if err != nil {
			logger.Fatal("setting up points events consumer", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			if err := consumer.Start(ctx); err != nil {
				queueLogger.Error("consuming points events", err)
			}
		}()
		defer func() {
			cancel()
			consumer.Close()
		}()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			PointsSvc:  pointsSvc,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal("server error", err)

	case sig := <-server.ShutdownSignal():
		logger.Info("Start shutdown...", map[string]interface{}{"signal": sig.String()})

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error("could not stop server gracefully", err)

			if err = server.Close(); err != nil {
				logger.Fatal("could not force stop server", err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
