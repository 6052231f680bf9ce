// Command reconcile pairs a bank feed against a general-ledger export
// and writes the reconciliation pack, or serves the same engine over
// HTTP in serve mode.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/auditflow/reconcile/internal/config"
	"github.com/auditflow/reconcile/internal/engine"
	"github.com/auditflow/reconcile/internal/loader"
	"github.com/auditflow/reconcile/internal/report"
	"github.com/auditflow/reconcile/internal/server"
	"github.com/auditflow/reconcile/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	configPath := flag.String("config", os.Getenv("RECON_CONFIG"), "path to config file (optional)")
	flag.Parse()

	mode := flag.Arg(0)
	if mode == "" {
		mode = "run"
	}

	app, engineCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(app.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	switch mode {
	case "run":
		runBatch(zapLogger, app, engineCfg)
	case "serve":
		srv, err := server.New(zapLogger, engineCfg)
		if err != nil {
			zapLogger.Fatal("failed to create server", zap.Error(err))
		}
		if err := srv.Run(app.Server.Addr()); err != nil {
			zapLogger.Fatal("server stopped", zap.Error(err))
		}
	default:
		log.Fatalf("unknown mode %q (expected run or serve)", mode)
	}
}

func runBatch(zapLogger *zap.Logger, app *config.App, engineCfg config.Engine) {
	bank, err := loader.LoadBank(app.BankFile)
	if err != nil {
		zapLogger.Fatal("failed to load bank feed", zap.Error(err))
	}
	gl, err := loader.LoadGL(app.GLFile)
	if err != nil {
		zapLogger.Fatal("failed to load GL export", zap.Error(err))
	}

	eng, err := engine.New(engineCfg, engine.WithLogger(zapLogger))
	if err != nil {
		zapLogger.Fatal("invalid engine configuration", zap.Error(err))
	}

	rep, err := eng.Reconcile(context.Background(), bank, gl)
	if err != nil {
		zapLogger.Fatal("reconciliation failed", zap.Error(err))
	}

	w := report.Writer{Dir: app.ReportDir}
	if err := w.WritePack(rep, bank, gl); err != nil {
		zapLogger.Fatal("failed to write report pack", zap.Error(err))
	}

	zapLogger.Info("reconciliation pack written",
		zap.String("dir", app.ReportDir),
		zap.Int("matched", len(rep.Results)),
		zap.Int("unmatched_bank", len(rep.UnmatchedBank)),
		zap.Int("unmatched_gl", len(rep.UnmatchedGL)),
	)
}
