package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/directory"
	"github.com/trezcool/stipend/core/ingest"
	"github.com/trezcool/stipend/core/valuation"
	logsvc "github.com/trezcool/stipend/services/logger"
	"github.com/trezcool/stipend/storage/database"
	sqlxrepos "github.com/trezcool/stipend/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), conf)
	logger.Enable(false)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(ctx)
	cancel()
	if err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// set up services
	rules, err := valuation.LoadRules(conf.RulesFile)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading valuation rules: %v", err), err)
	}
	engine := valuation.NewEngine(rules)
	resolver := directory.NewResolver(sqlxrepos.NewDirectoryRepository(db))

	asgSvc, err := assignment.NewService(sqlxrepos.NewAssignmentRepository(db), resolver, engine, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up assignment service: %v", err), err)
	}
	pipeline, err := ingest.NewPipeline(asgSvc, resolver, engine, conf.ActiveTerm, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up ingestion pipeline: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:       db.DB,
		asgSvc:   asgSvc,
		pipeline: pipeline,
		engine:   engine,
		out:      os.Stdout,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}
