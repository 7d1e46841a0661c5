package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mzalendo/shule/apps/api/echo"
	"github.com/mzalendo/shule/core"
	"github.com/mzalendo/shule/core/record"
	"github.com/mzalendo/shule/core/student"
	"github.com/mzalendo/shule/core/user"
	"github.com/mzalendo/shule/services/email"
	"github.com/mzalendo/shule/services/logger"
	"github.com/mzalendo/shule/storage/database"
	"github.com/mzalendo/shule/storage/database/inmem"
	"github.com/mzalendo/shule/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	wd, err := os.Getwd()
	errAndDie(err)
	conf, err := core.NewConfig(wd)
	errAndDie(err)

	// set up services
	var logSvc core.Logger
	var mailSvc core.EmailService
	if conf.Debug {
		logSvc = logsvc.NewStdLogger(std)
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		logSvc = logsvc.NewRollbarLogger(std, conf)
		mailSvc = emailsvc.NewSendgridService(conf, logSvc)
	}

	// set up repositories; identities live in Postgres outside DEV mode
	var usrRepo user.Repository
	memDB, err := inmemdb.Open()
	errAndDie(err)
	if conf.Debug {
		usrRepo = inmemdb.NewIdentityRepository(memDB)
	} else {
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()
		errAndDie(database.Ping(db))
		usrRepo = sqlxrepos.NewIdentityRepository(db)
	}

	secrets := user.NewSecretCodeRegistry(conf)
	challenges := user.NewChallengeStore(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, secrets, challenges, conf)
	studentSvc := student.NewService(inmemdb.NewStudentRepository(memDB), usrSvc, mailSvc)
	recordSvc := record.NewService(inmemdb.NewRecordRepository(memDB))

	// start API server
	shutdown := make(chan struct{})
	app := echoapi.NewServer(conf.ServerAddress(), shutdown, &echoapi.Deps{
		Conf:       conf,
		Logger:     logSvc,
		UserSvc:    usrSvc,
		StudentSvc: studentSvc,
		RecordSvc:  recordSvc,
	})
	go app.Start()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-shutdown:
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		std.Fatalf("stopping server: %v", err)
	}
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
