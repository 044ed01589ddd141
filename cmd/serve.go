package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bridge-project/bridge"
	"bridge-project/channel"
	"bridge-project/config"
	"bridge-project/db"
	"bridge-project/handlers"
	"bridge-project/htlc"
	"bridge-project/ledger"
	"bridge-project/logger"
	"bridge-project/repository"
	"bridge-project/routers"
	"bridge-project/sigs"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge HTTP API on this ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString(flagConfig)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	if cfg.Log.AppLogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.AppLogFile), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting bridge server...",
		zap.String("foreign_chain", cfg.Bridge.ForeignChain),
		zap.Int("local_participant", cfg.Channel.LocalParticipant))

	// Connect to LevelDB
	ldb, err := db.NewLevelDB(cfg.LevelDB.Path)
	if err != nil {
		logger.Logger.Error("Failed to open leveldb", zap.Error(err))
		return err
	}
	defer ldb.Close()

	store := repository.NewLedgerStore(ldb, cfg.Bridge.ForeignChain)
	verifier := sigs.Secp256k1{}

	accounts := ledger.NewService(store)
	gate := bridge.NewGate(store, bridge.NewTwoThirdsQuorum(verifier), cfg.Bridge.MinStake, cfg.Bridge.EscrowAccount)
	channels := channel.NewMachine(store, verifier, channel.Config{
		LocalIndex:    cfg.Channel.LocalIndex(),
		EscrowAccount: cfg.Bridge.EscrowAccount,
		MirrorRetries: cfg.Channel.MirrorRetries,
		RetryDelay:    cfg.Channel.RetryDelay(),
	})
	htlcs := htlc.NewMachine(store, time.Now)

	h := handlers.NewHandler(accounts, gate, channels, htlcs)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Logger.Error("Server stopped", zap.Error(err))
		return err
	case <-sigCh:
	}

	logger.Logger.Info("Shutdown signal received, exiting...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
