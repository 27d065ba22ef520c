package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/argo-bot/internal/config"
	"github.com/rxtech-lab/argo-bot/internal/events"
	"github.com/rxtech-lab/argo-bot/internal/exchange"
	"github.com/rxtech-lab/argo-bot/internal/history"
	"github.com/rxtech-lab/argo-bot/internal/ledger"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/scheduler"
	"github.com/rxtech-lab/argo-bot/internal/version"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// bot holds the long lived resources of the run command.
type bot struct {
	scheduler *scheduler.Scheduler
	history   *history.Store
	publisher events.Publisher
	logger    *logger.Logger
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithLevel(cfg.Log.ZapLevel())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b, err := newBot(cfg, scheduler.NewRecorder(registry), log)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.scheduler.Start(ctx); err != nil {
		return err
	}

	var server *http.Server

	if cfg.Metrics.Listen != "" {
		server = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           newRouter(registry, b.scheduler),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Info("Serving metrics", zap.String("listen", cfg.Metrics.Listen))

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutting down")

	b.scheduler.Stop()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Metrics server did not shut down cleanly", zap.Error(err))
		}
	}

	return nil
}

// newBot builds one market data provider shared by every account, plus an exchange client and
// scheduler context per account.
func newBot(cfg *config.Config, recorder *scheduler.Recorder, log *logger.Logger) (_ *bot, err error) {
	indicators, err := cfg.IndicatorRegistry()
	if err != nil {
		return nil, err
	}

	source, err := marketdata.NewBarSource(cfg.SourceConfig())
	if err != nil {
		return nil, err
	}

	provider := marketdata.NewIndicatorProvider(source, indicators, cfg.Market.Lookback, log)

	store, err := history.NewStore(cfg.Storage.HistoryPath, log)
	if err != nil {
		return nil, err
	}

	publisher, err := events.NewPublisher(cfg.Events, log)
	if err != nil {
		store.Close()

		return nil, err
	}

	b := &bot{history: store, publisher: publisher, logger: log}

	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	accounts := make([]*scheduler.AccountContext, 0, len(cfg.Accounts))

	for _, account := range cfg.Accounts {
		client, err := newExchange(cfg, account, provider, log)
		if err != nil {
			return nil, err
		}

		accountConfig, err := cfg.AccountConfig(account)
		if err != nil {
			return nil, err
		}

		ac, err := scheduler.NewAccount(accountConfig, scheduler.Dependencies{
			Catalog:   cfg.Catalog(),
			Provider:  provider,
			Exchange:  client,
			History:   store,
			Publisher: publisher,
			Recorder:  recorder,
			Logger:    log,
		})
		if err != nil {
			return nil, errors.Wrapf(errors.GetCode(err), err, "account %s", account.ID)
		}

		accounts = append(accounts, ac)
	}

	b.scheduler = scheduler.New(log, accounts...)

	return b, nil
}

func newExchange(cfg *config.Config, account config.Account, prices exchange.PriceSource, log *logger.Logger) (exchange.Client, error) {
	if !cfg.IsDryRun(account) {
		return exchange.NewBinance(cfg.BinanceConfig(account), log.ForAccount(account.ID))
	}

	l, err := ledger.Open(cfg.LedgerPath(account), account.InitialBalance)
	if err != nil {
		return nil, err
	}

	return exchange.NewPaperClient(l, prices, log.ForAccount(account.ID)), nil
}

func (b *bot) Close() {
	if err := b.publisher.Close(); err != nil {
		b.logger.Warn("Failed to close event publisher", zap.Error(err))
	}

	if err := b.history.Close(); err != nil {
		b.logger.Warn("Failed to close trade history", zap.Error(err))
	}
}

type healthResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Accounts []string `json:"accounts"`
}

func newRouter(gatherer prometheus.Gatherer, s *scheduler.Scheduler) *mux.Router {
	accounts := make(map[string]*scheduler.AccountContext, len(s.Accounts()))
	ids := make([]string, 0, len(s.Accounts()))

	for _, account := range s.Accounts() {
		accounts[account.ID()] = account
		ids = append(ids, account.ID())
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: version.GetVersion(), Accounts: ids})
	}).Methods(http.MethodGet)

	router.HandleFunc("/accounts/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		account, ok := accounts[mux.Vars(r)["id"]]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})

			return
		}

		if r.URL.Query().Get("period") == "daily" {
			writeJSON(w, http.StatusOK, account.DailyStats())

			return
		}

		writeJSON(w, http.StatusOK, account.Stats())
	}).Methods(http.MethodGet)

	return router
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
