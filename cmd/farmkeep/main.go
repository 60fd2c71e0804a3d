package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/farmkeep/farmkeep/auth"
	"github.com/farmkeep/farmkeep/config"
	"github.com/farmkeep/farmkeep/farm"
	"github.com/farmkeep/farmkeep/httpsrv"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("farmkeep"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	if err := run(lgr); err != nil {
		lgr.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(lgr *glog.BaseLogger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return err
	}
	defer sqldb.Close()

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return err
	}
	if err := auth.CreateSchema(ctx, db); err != nil {
		return err
	}
	if err := farm.CreateSchema(ctx, db); err != nil {
		return err
	}

	authRepo := auth.NewRepositoryManager(db)
	if err := authRepo.Validate(); err != nil {
		return err
	}
	farmRepo := farm.NewRepositoryManager(db)
	if err := farmRepo.Validate(); err != nil {
		return err
	}

	provider := auth.NewUserProvider(authRepo.Users())
	auther := auth.NewAuthenticator(provider, authRepo, cfg).
		WithLogger(lgr.GetLogger("auth"))

	svc := farm.NewService(farmRepo, authRepo.Users(),
		farm.WithLogger(lgr.GetLogger("farm")),
	)

	srv := httpsrv.New(httpsrv.Config{
		Addr:      cfg.HTTPAddr,
		Auther:    auther,
		AuthRepo:  authRepo,
		Farm:      svc,
		Validator: auther.TokenService(),
		Logger:    lgr.GetLogger("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-waitExitSignal():
		lgr.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}

func waitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
