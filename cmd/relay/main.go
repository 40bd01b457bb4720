package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bridgeRelay/internal/bridge"
	"bridgeRelay/internal/chain"
	"bridgeRelay/internal/config"
	"bridgeRelay/internal/dispatch"
	"bridgeRelay/internal/gasoracle"
	"bridgeRelay/internal/relay"
	"bridgeRelay/internal/store"
	"bridgeRelay/internal/store/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Cross-chain lock event relay",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the relay",
		RunE:  runRelay,
	}

	runCmd.Flags().String("source-name", "source", "source chain display name")
	runCmd.Flags().String("source-rpc", "", "source chain RPC URL")
	runCmd.Flags().String("dest-name", "destination", "destination chain display name")
	runCmd.Flags().String("dest-rpc", "", "destination chain RPC URL")
	runCmd.Flags().String("contract", "", "bridge contract address on the source chain")
	runCmd.Flags().Uint64("start-block", 0, "cursor seed block, 0 means latest at startup")
	runCmd.Flags().Uint64("confirmations", 0, "blocks to lag behind the chain tip")
	runCmd.Flags().Duration("poll-interval", 15*time.Second, "wait between polls")
	runCmd.Flags().Uint64("max-block-range", 2000, "blocks per log query")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC call")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("store-backend", "file", "state store backend (file, bolt, postgres)")
	runCmd.Flags().String("store", "./data/relay_state.json", "state store path (file or bolt)")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN (postgres backend)")
	runCmd.Flags().String("relay-name", "relay", "relay instance name (postgres backend)")
	runCmd.Flags().String("dead-letter", "./data/dead_letters.jsonl", "dead-letter JSONL path")
	runCmd.Flags().Int("max-dispatch-attempts", 0, "dispatch attempts before dead-lettering, 0 means unbounded")
	runCmd.Flags().String("gas-oracle-url", "", "optional gas oracle endpoint")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.SourceRPC == "" {
		return fmt.Errorf("source rpc url is required")
	}
	if cfg.DestRPC == "" {
		return fmt.Errorf("dest rpc url is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return fmt.Errorf("invalid bridge contract address: %q", cfg.ContractAddress)
	}
	contract := common.HexToAddress(cfg.ContractAddress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sourceClient, err := chain.NewClient(ctx, cfg.SourceRPC)
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.SourceName, err)
	}
	defer sourceClient.Close()

	destClient, err := chain.NewClient(ctx, cfg.DestRPC)
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.DestName, err)
	}
	defer destClient.Close()

	destChainID, err := destClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.DestName, err)
	}

	eventStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer eventStore.Close()

	decoder, err := bridge.NewLockDecoder()
	if err != nil {
		return err
	}

	var deadLetters *dispatch.DeadLetterSink
	if cfg.MaxDispatchAttempts > 0 {
		deadLetters = dispatch.NewDeadLetterSink(cfg.DeadLetterPath)
	}

	dispatcher := dispatch.NewSimulated(cfg.DestName, logger)

	processor := relay.NewProcessor(relay.ProcessorConfig{
		ExpectedDestChainID: destChainID,
		MaxDispatchAttempts: cfg.MaxDispatchAttempts,
	}, decoder, eventStore, dispatcher, deadLetters, logger)

	scanner := relay.NewScanner(sourceClient, contract, decoder.Topic0())

	var gasPricer relay.GasPricer
	if cfg.GasOracleURL != "" {
		gasPricer = gasoracle.NewClient(cfg.GasOracleURL)
	}

	runner := relay.NewRunner(relay.RunnerConfig{
		SourceName:    cfg.SourceName,
		DestName:      cfg.DestName,
		StartBlock:    cfg.StartBlock,
		Confirmations: cfg.Confirmations,
		PollInterval:  cfg.PollInterval,
		MaxBlockRange: cfg.MaxBlockRange,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
	}, sourceClient, destClient, scanner, processor, eventStore, gasPricer, logger)

	logger.Info("relay start",
		zap.String("source", cfg.SourceName),
		zap.String("dest", cfg.DestName),
		zap.String("contract", contract.Hex()),
		zap.String("dest_chain_id", destChainID.String()),
		zap.Uint64("max_block_range", cfg.MaxBlockRange),
		zap.Uint64("confirmations", cfg.Confirmations),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("store_backend", cfg.StoreBackend),
	)

	err = runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "file":
		return store.NewFileStore(cfg.StorePath), nil
	case "bolt":
		return store.NewBoltStore(cfg.StorePath), nil
	case "postgres":
		return postgres.NewStore(ctx, cfg.PGDSN, cfg.RelayName)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.StoreBackend)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
