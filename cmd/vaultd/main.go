package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"lockvault/config"
	"lockvault/core/events"
	"lockvault/core/state"
	"lockvault/native/tier"
	"lockvault/native/vault"
	"lockvault/observability/logging"
	"lockvault/observability/metrics"
	"lockvault/rpc"
	"lockvault/storage"
)

const authTokenEnv = "VAULT_RPC_TOKEN"

// slogEmitter forwards committed vault events to the structured logger.
type slogEmitter struct {
	logger *slog.Logger
}

func (e slogEmitter) Emit(evt events.Event) {
	args := make([]any, 0, 2*len(evt.Attributes()))
	for key, value := range evt.Attributes() {
		args = append(args, slog.String(key, value))
	}
	e.logger.Info(evt.EventType(), args...)
}

func logSink(cfg config.Log) io.Writer {
	if cfg.Path == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
}

func buildEngine(cfg *config.Config, manager *state.Manager) (*vault.Engine, error) {
	stakeToken, err := config.ParseAddress(cfg.Vault.StakeToken)
	if err != nil {
		return nil, err
	}
	vaultAddr, err := config.ParseAddress(cfg.Vault.VaultAddress)
	if err != nil {
		return nil, err
	}
	owner, err := config.ParseAddress(cfg.Vault.Owner)
	if err != nil {
		return nil, err
	}
	recipient, err := config.ParseAddress(cfg.Tier.FeeRecipient)
	if err != nil {
		return nil, err
	}
	lockParams, err := cfg.Vault.LockParams()
	if err != nil {
		return nil, err
	}

	// The instance identity is derived from the vault address, matching how
	// the factory registry keys deployed instances.
	var instance [32]byte
	copy(instance[:], ethcrypto.Keccak256(vaultAddr[:]))

	registry := tier.NewRegistry(owner, recipient)
	if err := registry.Assign(owner, instance, cfg.Tier.Profile()); err != nil {
		return nil, err
	}
	schedule, err := registry.Schedule(instance)
	if err != nil {
		return nil, err
	}

	engineCfg := vault.Config{
		StakeToken:    stakeToken,
		VaultAddress:  vaultAddr,
		Owner:         owner,
		DepositFeeBps: cfg.Vault.DepositFeeBps,
		Lock:          lockParams,
		Epoch:         cfg.Vault.EpochParams(),
	}
	return vault.NewEngine(engineCfg, manager, schedule), nil
}

func main() {
	configFile := flag.String("config", "./vaultd.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv("VAULT_ENV"))
	if env == "" {
		env = cfg.Log.Environment
	}
	logger := logging.Setup("vaultd", env, logSink(cfg.Log))

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager, err := state.Load(db)
	if err != nil {
		logger.Error("Failed to load vault state", slog.Any("error", err))
		os.Exit(1)
	}

	engine, err := buildEngine(cfg, manager)
	if err != nil {
		logger.Error("Failed to build vault engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetDatabase(db)
	engine.SetEmitter(slogEmitter{logger: logger})

	vaultMetrics := metrics.Vault()
	vaultMetrics.Register(prometheus.DefaultRegisterer)
	engine.SetMetrics(vaultMetrics)

	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{
				Addr:              cfg.MetricsAddress,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			logger.Info("metrics server listening", slog.String("addr", cfg.MetricsAddress))
			if err := server.ListenAndServe(); err != nil {
				logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	authToken := strings.TrimSpace(os.Getenv(authTokenEnv))
	if authToken == "" {
		authToken = cfg.RPCAuthToken
	}
	if authToken == "" {
		logger.Warn("RPC auth token not configured; mutating methods are disabled")
	}

	server := rpc.NewServer(engine, authToken, cfg.RPCRateLimitMin)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
