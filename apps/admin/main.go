package main

import (
	"log"
	"os"

	"github.com/mzalendo/shule/core"
	"github.com/mzalendo/shule/core/user"
	"github.com/mzalendo/shule/services/email"
	"github.com/mzalendo/shule/storage/database"
	"github.com/mzalendo/shule/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	wd, err := os.Getwd()
	errAndDie(err)
	conf, err := core.NewConfig(wd)
	errAndDie(err)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Ping(db))

	usrSvc := user.NewService(
		sqlxrepos.NewIdentityRepository(db),
		emailsvc.NewConsoleService(conf),
		user.NewSecretCodeRegistry(conf),
		user.NewChallengeStore(conf),
		conf,
	)

	// start CLI
	cli := commandLine{usrSvc: usrSvc}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
