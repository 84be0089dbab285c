package main

import (
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/nujoom/school/apps/shared"
	"github.com/nujoom/school/core"
	emailsvc "github.com/nujoom/school/services/email"
	logsvc "github.com/nujoom/school/services/logger"
	"github.com/nujoom/school/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), "admin", conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	sqlxDB := database.Sqlx(db, conf)
	gormDB, err := database.Gorm(db, conf)
	if err != nil {
		logger.Fatal("setting up gorm", err)
	}

	// set up services
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	pointsSvc, closeInvalidator, err := shared.NewPointsService(conf, sqlxDB, gormDB, validate, logger)
	if err != nil {
		logger.Fatal("setting up points service", err)
	}

	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// start CLI
	cli := commandLine{
		conf:      conf,
		db:        db,
		pointsSvc: pointsSvc,
		mailSvc:   mailSvc,
		out:       os.Stdout,
	}
	err = cli.run(os.Args)

	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	closeInvalidator()
	_ = db.Close()

	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
