package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"streamvault-go/internal/api"
	"streamvault-go/internal/chain"
	"streamvault-go/internal/config"
	"streamvault-go/internal/coordinator"
	"streamvault-go/internal/escrow"
	"streamvault-go/internal/safe"
	"streamvault-go/internal/storage"
	"streamvault-go/internal/streaming"
)

func logger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		panic(err)
	}
	cfg.Level.SetLevel(lvl)
	lg, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return lg
}

func main() {
	cfg := config.Load()
	lg := logger(cfg.App.LogLevel)
	defer lg.Sync()

	rpcClient := rpc.New(cfg.Chain.RPCURL)
	wsClient, err := ws.Connect(context.Background(), cfg.Chain.WSURL)
	if err != nil {
		lg.Fatal("failed to connect websocket", zap.Error(err))
	}

	feeBps := streaming.FeeBasisPoints(cfg.Chain.FeePercent)
	ledger := escrow.NewLedger(escrow.NewFeeVault(cfg.Chain.FeeReceiver, feeBps))
	engine := safe.NewEngine(lg.Named("safe"))
	builder := chain.NewInstructionBuilder(cfg.Chain.ProgramID)

	opts := []coordinator.Option{
		coordinator.WithSubmitter(chain.NewSubmitter(
			rpcClient, wsClient, chain.NewKeypairSigner(), chain.DefaultSubmitPolicy(), lg.Named("submitter"),
		)),
	}
	if cfg.App.HistoryDB != "" {
		history, err := storage.NewHistoryDB(cfg.App.HistoryDB)
		if err != nil {
			lg.Fatal("failed to open history db", zap.Error(err))
		}
		defer history.Close()
		opts = append(opts, coordinator.WithHistory(history))
	}

	coord := coordinator.New(engine, ledger, builder, lg.Named("coordinator"), opts...)
	server := api.NewServer(coord, lg.Named("api"))

	addr := fmt.Sprintf(":%d", cfg.API.Port)
	lg.Info("streamvault API listening", zap.String("addr", addr))
	log.Fatal(http.ListenAndServe(addr, server.Router()))
}
