package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"surveys/internal/config"
	"surveys/internal/export"
	mcpserver "surveys/internal/mcp"
	"surveys/internal/secret"
	"surveys/internal/service"
	"surveys/internal/storage"
)

// App owns storage, services and background workers for one process.
type App struct {
	cfg *config.Config

	db       *storage.DB
	notifier *mcpserver.Notifier
	exporter *export.Pipeline

	surveys  *service.SurveyService
	sessions *service.SessionService
	settings *service.SettingsService
	janitor  *service.DraftJanitor
	watcher  *service.DefinitionWatcher
}

// New creates a new App.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Startup opens the database, builds the services and starts the janitor
// and definition watcher.
func (a *App) Startup(ctx context.Context) error {
	db, err := storage.New(a.cfg.DBPath, a.cfg.DefinitionsDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.notifier = mcpserver.NewNotifier()

	// Optional downstream export of completed submissions
	var exporter service.SubmissionExporter
	if a.cfg.ExportConfig != "" {
		exportCfg, err := export.LoadConfig(a.cfg.ExportConfig)
		if err != nil {
			return err
		}
		p, err := export.NewPipeline(ctx, exportCfg, secret.NewEnvStore())
		if err != nil {
			return fmt.Errorf("build export pipeline: %w", err)
		}
		a.exporter = p
		exporter = p
	}

	surveyStore := storage.NewSurveyStore(db)
	a.surveys = service.NewSurveyService(surveyStore, a.notifier)
	a.sessions = service.NewSessionService(service.SessionDeps{
		Surveys:     surveyStore,
		Sessions:    storage.NewSessionStore(db),
		Submissions: storage.NewSubmissionStore(db),
		Answers:     storage.NewAnswerLogStore(db, a.cfg.AnswerLogLimit),
		Exporter:    exporter,
		Emitter:     a.notifier,
	})
	a.settings = service.NewSettingsService(db)

	a.janitor = service.NewDraftJanitor(a.sessions, a.settings, a.cfg.DraftRetention, a.cfg.JanitorEvery)
	if err := a.janitor.Start(ctx); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}

	a.watcher = service.NewDefinitionWatcher(db.DataDir(), a.surveys, a.notifier)
	if a.cfg.WatchDefs {
		if err := a.watcher.Start(ctx); err != nil {
			log.Printf("[APP] definition watcher disabled: %v", err)
		}
	} else {
		a.watcher.LoadAll(ctx)
	}
	return nil
}

// MCP builds the MCP server over the app's services.
func (a *App) MCP() *mcpserver.Server {
	return mcpserver.New(mcpserver.Deps{
		Notifier: a.notifier,
		Surveys:  a.surveys,
		Sessions: a.sessions,
		Settings: a.settings,
		Janitor:  a.janitor,
	})
}

// Shutdown stops background work, lets in-flight session requests finish
// and closes every connection.
func (a *App) Shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.sessions != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		a.sessions.WaitIdle(waitCtx)
		cancel()
	}
	if a.exporter != nil {
		if err := a.exporter.Close(); err != nil {
			log.Printf("[APP] close export sinks: %v", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
