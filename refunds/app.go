package refunds

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/internal/middleware"
	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/internal/sepatext"
	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/refunds/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
	_ "github.com/lib/pq"
)

// App is the refund export application: it wires the stores, the
// pipeline service and the HTTP API, and owns their lifecycle.
type App struct {
	srv    *http.Server
	wg     *sync.WaitGroup
	Addr   string
	logger *slog.Logger
	config *Config
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "refunds"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))

	// Choose repository backend: default to pg for runtime; allow mem only
	// when explicitly enabled for tests.
	var repository *Repository
	backend := getenv("REPO_BACKEND", "pg")
	allowMem := getenv("ALLOW_MEM_BACKEND_FOR_TESTS", "false") == "true"
	switch backend {
	case "pg":
		dsn := getenv("DB_DSN", "")
		if dsn == "" {
			return fmt.Errorf("DB_DSN is required for pg backend")
		}
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		if err := db.Ping(); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		repository = NewPGRepository(db)
	case "mem":
		if !allowMem {
			return fmt.Errorf("mem repository is disabled at runtime; set ALLOW_MEM_BACKEND_FOR_TESTS=true only in tests")
		}
		repository = NewRepository()
	default:
		return fmt.Errorf("unsupported REPO_BACKEND=%s", backend)
	}

	if key := getenv("REFUNDS_API_KEY", ""); key != "" {
		a.config.APIKey = key
	}
	if fee := getenv("REFUND_FEE", ""); fee != "" {
		d, err := decimal.NewFromString(fee)
		if err != nil {
			return fmt.Errorf("invalid REFUND_FEE: %w", err)
		}
		if d.IsNegative() {
			return fmt.Errorf("invalid REFUND_FEE %s: fee must not be negative", d.StringFixed(2))
		}
		a.config.RefundFee = d
	}

	service := NewService(repository, a.config, a.logger)

	api := NewAPI(service, a.config)
	api.AppendRoutes(router)

	// Health and snapshot-loading endpoints
	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repository.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Post("/dev/snapshot", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Candidates []models.RawCandidate `json:"candidates"`
			Balances   map[string]string     `json:"balances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		// balances are normalized on the way in; anything beyond the
		// refund ceiling plus the fee could never be paid out anyway
		minBalance := decimal.New(1, -2)
		maxBalance := a.config.MaximumRefund.Add(a.config.RefundFee)
		for card, raw := range body.Balances {
			balance, err := sepatext.ParseAmount(raw, minBalance, maxBalance)
			if err != nil {
				http.Error(w, fmt.Sprintf("balance for card %s: %v", card, err), http.StatusBadRequest)
				return
			}
			if err := repository.SetCardBalance(ctx, card, balance); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		inserted := 0
		for i := range body.Candidates {
			c := body.Candidates[i]
			if err := repository.InsertCandidate(ctx, &c); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			inserted++
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "{\"candidates\":%d,\"balances\":%d}", inserted, len(body.Balances))
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler: router,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	a.srv.Shutdown(context.Background())

	a.wg.Wait()

	a.logger.Info("app stopped")
}
