// Package app composes the backend, the caches, the projection and the
// local API from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"inkdown-client/internal/bus"
	"inkdown-client/internal/cache"
	"inkdown-client/internal/config"
	"inkdown-client/internal/gateway"
	"inkdown-client/internal/markdown"
	"inkdown-client/internal/projection"
	"inkdown-client/internal/repository"
	"inkdown-client/internal/service"
	"inkdown-client/internal/websocket"
	"inkdown-client/pkg/jwt"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Backend    gateway.Backend
	Bus        *bus.Bus
	Notes      *cache.NoteCache
	Tags       *cache.TagCache
	Projection *projection.Projection
	Manager    *websocket.Manager
	Exporter   *markdown.Exporter
	Importer   *markdown.Importer
	Router     http.Handler

	// Token is the session token minted at startup for the local API.
	Token string

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	noteRepo, tagRepo, err := a.openRepositories(ctx)
	if err != nil {
		return nil, err
	}

	tagService := service.NewTagService(tagRepo, noteRepo)
	noteService := service.NewNoteService(noteRepo, tagService)
	a.Backend = service.NewBackend(noteService, tagService)

	a.Bus = bus.New(logger)
	a.Tags = cache.NewTagCache(a.Backend, a.Bus, logger)
	a.Notes = cache.NewNoteCache(a.Backend, a.Bus, logger)
	a.Projection = projection.New(a.Notes, a.Tags)

	a.Manager = websocket.NewManager(websocket.Options{
		MaxClients:     cfg.WebSocket.MaxClients,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, logger)
	a.Bus.Subscribe("websocket", a.Manager.OnEvent)

	a.Exporter = markdown.NewExporter(a.Backend, cfg.Export.Dir, logger)
	a.Importer = markdown.NewImporter(a.Backend, a.Notes, logger)

	a.Token, err = jwt.GenerateToken(uuid.New().String(), cfg.Auth.SessionTTL, cfg.Auth.Secret)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to mint session token: %w", err)
	}

	a.Router = NewRouter(a)
	return a, nil
}

func (a *App) openRepositories(ctx context.Context) (repository.NoteRepository, repository.TagRepository, error) {
	db := a.Config.Database

	switch db.Driver {
	case config.DriverCouch:
		client, err := kivik.New("couch", db.CouchURL())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
		}
		a.closers = append(a.closers, client.Close)

		exists, err := client.DBExists(ctx, db.Name)
		if err != nil {
			a.Close()
			return nil, nil, fmt.Errorf("failed to check database existence: %w", err)
		}
		if !exists {
			if err := client.CreateDB(ctx, db.Name); err != nil {
				a.Close()
				return nil, nil, fmt.Errorf("failed to create database: %w", err)
			}
			a.Logger.Info().Str("database", db.Name).Msg("created database")
		}

		a.Logger.Info().Str("host", db.Host).Str("port", db.Port).Msg("using CouchDB backend")
		return repository.NewNoteRepository(client, db.Name), repository.NewTagRepository(client, db.Name), nil

	case config.DriverSQLite:
		sqlDB, err := repository.OpenSQLite(ctx, db.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, sqlDB.Close)

		a.Logger.Info().Str("path", db.SQLitePath).Msg("using SQLite backend")
		return repository.NewSQLiteNoteRepository(sqlDB), repository.NewSQLiteTagRepository(sqlDB), nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

// Load fills both caches. Failures stay in the caches' error slots.
func (a *App) Load(ctx context.Context) {
	a.Tags.LoadAll(ctx)
	a.Notes.LoadAll(ctx, a.Config.Cache.IncludeTrash)
}

// Run serves the local API until ctx is done, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	managerCtx, stopManager := context.WithCancel(context.Background())
	defer stopManager()
	go a.Manager.Run(managerCtx)

	a.Load(ctx)

	addr := fmt.Sprintf("%s:%s", a.Config.Server.Host, a.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", addr).Str("env", a.Config.Server.Env).Msg("starting inkdown client API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.Logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopManager()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Close waits for background reloads and releases the storage handles.
func (a *App) Close() error {
	var errs []error
	if a.Notes != nil {
		errs = append(errs, a.Notes.Wait())
	}
	if a.Tags != nil {
		errs = append(errs, a.Tags.Wait())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
