package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dkomarov/paperchat/internal/client/api"
	"github.com/dkomarov/paperchat/internal/client/config"
	"github.com/dkomarov/paperchat/internal/client/metrics"
	"github.com/dkomarov/paperchat/internal/client/migrations"
	"github.com/dkomarov/paperchat/internal/client/repositories/metadata"
	"github.com/dkomarov/paperchat/internal/client/session"
	"github.com/dkomarov/paperchat/internal/logging"

	_ "modernc.org/sqlite"
)

// App wires the session manager, the API client, and the interactive REPL.
type App struct {
	config  *config.Config
	manager *session.Manager
	api     api.Client
	log     logging.Logger
	db      *sql.DB
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	db, err := initDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init local database: %w", err)
	}

	mtr := metrics.New(prometheus.NewRegistry())

	store := session.NewStore(
		session.NewCookieFile(cfg.CookiePath),
		metadata.NewSQLiteRepository(db),
		log,
		session.WithCookieLifetime(cfg.CookieLifetime),
	)
	cred := session.NewCredential()

	transport := api.NewAuthTransport(http.DefaultTransport, cred, log, mtr)
	apiClient := api.NewHTTPClient(cfg.ServerEndpointURL, &http.Client{Transport: transport}, log)

	manager := session.NewManager(apiClient, store, cred, log,
		[]session.SchedulerOption{session.WithRefreshWindow(cfg.RefreshWindow)},
		session.WithMetrics(mtr),
		session.WithDebounceWindow(cfg.DebounceWindow),
		session.WithRequestTimeout(cfg.RequestTimeout),
		session.WithLoginTimeout(cfg.LoginTimeout),
		session.WithLoginRetry(cfg.LoginAttempts, cfg.LoginBackoff),
	)
	transport.BindSession(manager)

	return &App{
		config:  cfg,
		manager: manager,
		api:     apiClient,
		log:     log,
		db:      db,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// initDatabase opens the local sqlite database and applies the embedded
// migrations.
func initDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Run validates any persisted session and starts the REPL. Blocks until the
// user exits.
func (a *App) Run(ctx context.Context) {
	if state, err := a.manager.CheckAuth(ctx); err != nil {
		a.log.Warn(ctx, "startup session check failed", "error", err)
	} else if state == session.StateAuthenticated {
		if p := a.manager.Profile(); p != nil {
			fmt.Fprintf(a.out, "Welcome back, %s!\n", p.Username)
		}
	}

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))

	_ = a.db.Close()
}

func (a *App) isLoggedIn() bool {
	return a.manager.State() == session.StateAuthenticated
}

func (a *App) getStatus() string {
	if p := a.manager.Profile(); p != nil {
		return fmt.Sprintf("(%s)", p.Username)
	}
	return ""
}
