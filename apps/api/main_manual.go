package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/trezcool/stipend/apps/api/echo"
	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/directory"
	"github.com/trezcool/stipend/core/ingest"
	"github.com/trezcool/stipend/core/valuation"
	logsvc "github.com/trezcool/stipend/services/logger"
	metricsvc "github.com/trezcool/stipend/services/metrics"
	"github.com/trezcool/stipend/storage/database"
	sqlxrepos "github.com/trezcool/stipend/storage/database/sqlx"
)

// directoryCacheTTL bounds how stale a cached student or class may get.
const directoryCacheTTL = 10 * time.Minute

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close database", err)
		}
	}()

	// set up metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metricsvc.NewRecorder(reg)

	// set up rules & services
	rules, err := valuation.LoadRules(conf.RulesFile)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading valuation rules: %v", err), err)
	}
	engine := valuation.NewEngine(rules, valuation.WithFallbackRecorder(recorder))
	for _, sr := range engine.Rates.Conflicts() {
		logger.Warn("conflicting rate rule shadowed", map[string]interface{}{
			"position":        sr.Rule.Position,
			"weekly_hours":    sr.Rule.WeeklyHours,
			"education_level": sr.Rule.EducationLevel,
			"fulton_fellow":   sr.Rule.FultonFellow,
			"shadowed_amount": sr.Rule.Amount.String(),
			"winning_amount":  sr.Winner.Amount.String(),
		})
	}

	dirRepo := directory.NewCachedRepository(sqlxrepos.NewDirectoryRepository(db), directoryCacheTTL)
	resolver := directory.NewResolver(dirRepo)

	asgSvc, err := assignment.NewService(sqlxrepos.NewAssignmentRepository(db), resolver, engine, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up assignment service: %v", err), err)
	}
	pipeline, err := ingest.NewPipeline(asgSvc, resolver, engine, conf.ActiveTerm, logger, ingest.WithUploadRecorder(recorder))
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up ingestion pipeline: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("activeTerm").Set(conf.ActiveTerm)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			AssignmentSvc:  asgSvc,
			Pipeline:       pipeline,
			Metrics:        recorder,
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Validate:       validate,
			Translator:     translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
