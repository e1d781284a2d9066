package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/mode"
	"github.com/khaledhikmat/vs-detect/service/config"
	"github.com/khaledhikmat/vs-detect/service/data"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

const (
	// WARNING: this has to be bigger that the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"live":      mode.Live,
	"benchmark": mode.Benchmark,
	"profiles":  mode.Profiles,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode. A missing .env is fine.
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			lgr.Logger.Error("error loading .env file", slog.Any("error", xerrors.New(err.Error())))
			os.Exit(1)
		}
	}

	modeType := "live"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		os.Exit(2)
	}

	// Config service: env over hard-coded defaults
	cfgSvc := config.NewEnv(config.NewHardCoded())
	if file := cfgSvc.GetLogFile(); file != "" {
		lgr.Configure(lgr.Options{
			Level:      lgr.LevelFromEnv(os.Getenv("LOG_LEVEL")),
			File:       file,
			MaxBackups: 5,
			MaxAgeDays: 7,
		})
	}

	// Data service
	dataSvc := data.NewMemory()
	if path := cfgSvc.GetDBPath(); path != "" {
		sqliteSvc, err := data.NewSqlite(path)
		if err != nil {
			lgr.Logger.Error("failed to open database", slog.String("path", path), slog.Any("error", err))
			os.Exit(1)
		}
		dataSvc = sqliteSvc
	}
	defer dataSvc.Close()

	// Algorithm catalog with optional profile overrides
	catalog, err := config.Catalog(cfgSvc)
	if err != nil {
		lgr.Logger.Error("failed to load algorithm profiles", slog.Any("error", err))
		os.Exit(1)
	}

	// Inference loader
	loaderSvc, releaseLoader := mode.NewLoader(cfgSvc)
	defer releaseLoader()

	svcs := mode.Services{
		CfgSvc:    cfgSvc,
		DataSvc:   dataSvc,
		LoaderSvc: loaderSvc,
		Catalog:   catalog,
	}

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs)
	}()

	var modeErr error

	// Wait for cancellation or the mode processor
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"vs-detect context cancelled",
			slog.String("mode", modeType),
		)

	case modeErr = <-modeProcResult:
		if modeErr != nil {
			lgr.Logger.Error(
				"vs-detect mode processor failed",
				slog.String("mode", modeType),
				slog.Any("error", xerrors.New(modeErr.Error())),
			)
		}
		goto exit
	}

	// Wait for at most `waitOnShutdown` for the mode processor to drain its
	// pipeline and report late errors
	lgr.Logger.Info(
		"vs-detect is waiting for the mode processor to exit",
	)

	{
		timer := time.NewTimer(waitOnShutdown)
		defer timer.Stop()

		select {
		case <-timer.C:
			lgr.Logger.Info(
				"vs-detect shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)

		case modeErr = <-modeProcResult:
			if modeErr != nil {
				lgr.Logger.Error(
					"vs-detect mode processor failed",
					slog.Any("error", xerrors.New(modeErr.Error())),
				)
			}
		}
	}

exit:
	canxFn()
	if modeErr != nil {
		releaseLoader()
		dataSvc.Close()
		os.Exit(1)
	}
}
