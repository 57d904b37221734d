package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"codeberg.org/snonux/translateassist/internal/cache"
	"codeberg.org/snonux/translateassist/internal/config"
	"codeberg.org/snonux/translateassist/internal/netclient"
	"codeberg.org/snonux/translateassist/internal/pipeline"
	"codeberg.org/snonux/translateassist/internal/provider"
	"codeberg.org/snonux/translateassist/internal/scheduler"
	"codeberg.org/snonux/translateassist/internal/storage"
	"codeberg.org/snonux/translateassist/internal/translation"
)

// Options tune how an App is assembled.
type Options struct {
	// DryRun swaps every network provider for the offline fakes and keeps
	// the database in memory.
	DryRun bool
	Logger *slog.Logger
}

// App owns the long lived components of one process.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	DB           *storage.DB
	Scheduler    *scheduler.Scheduler
	Cache        *cache.Cache
	Metrics      *storage.MetricsSink
	Glossary     *storage.Glossary
	History      *storage.History
	Orchestrator *pipeline.Orchestrator

	stopMaintenance context.CancelFunc
	wg              sync.WaitGroup
	closeOnce       sync.Once
}

// NewLogger returns a text logger on w at info, or debug when verbose.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// New opens storage and wires scheduler, cache, providers and the
// orchestrator. Close must be called to stop background work.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbPath := cfg.DatabasePath
	if opts.DryRun {
		dbPath = storage.MemoryPath
	}
	db, err := storage.Open(dbPath, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Metrics:  storage.NewMetricsSink(db),
		Glossary: storage.NewGlossary(db),
		History:  storage.NewHistory(db),
	}

	sched, err := scheduler.New(cfg.SchedulerConfig(),
		scheduler.WithStateStore(storage.NewCircuitStore(db)),
		scheduler.WithLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := sched.Restore(ctx); err != nil {
		logger.Warn("could not restore circuit state", "error", err)
	}
	a.Scheduler = sched

	a.Cache = cache.New(storage.NewCacheBackend(db), cfg.CacheConfig(), cache.WithLogger(logger))

	deps, err := a.providers(ctx, opts.DryRun)
	if err != nil {
		a.Close()
		return nil, err
	}
	orch, err := pipeline.New(deps, cfg.PipelineConfig())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = orch

	mctx, cancel := context.WithCancel(context.Background())
	a.stopMaintenance = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Cache.RunMaintenance(mctx)
	}()

	return a, nil
}

// providers builds the pipeline collaborators. MT and the primary
// decision are read through the cache; the escalation model is not.
func (a *App) providers(ctx context.Context, dryRun bool) (pipeline.Deps, error) {
	cfg := a.Config
	deps := pipeline.Deps{
		Metrics: a.Metrics,
		Cache:   a.Cache,
		History: a.History,
		Logger:  a.Logger,
	}

	if dryRun {
		deps.Translator = cache.NewCachedTranslator(provider.FakeTranslator{}, a.Cache, a.Metrics)
		deps.Decider = cache.NewCachedDecider(provider.FakeDecider{}, a.Cache, a.Metrics, cache.TagPrimary)
		deps.Escalator = provider.FakeDecider{Confidence: 0.97}
		deps.Examples = provider.FakeExamples{}
		deps.Glossary = provider.FakeGlossary{}
		return deps, nil
	}

	client := netclient.New(cfg.RequestTimeout, netclient.WithLogger(a.Logger))

	google := provider.NewGoogleTranslator(cfg.GoogleAPIKey, client, a.Scheduler)
	deps.Translator = cache.NewCachedTranslator(google, a.Cache, a.Metrics)

	gemini, err := provider.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel,
		provider.WithGeminiHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	if err != nil {
		return deps, err
	}
	primary := provider.NewLLMDecider("Gemini", gemini, a.Scheduler, scheduler.FastLLM, a.Logger)
	deps.Decider = cache.NewCachedDecider(primary, a.Cache, a.Metrics, cache.TagPrimary)

	capable := provider.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.RequestTimeout)
	deps.Escalator = provider.NewLLMDecider("OpenAI compatible LLM", capable, a.Scheduler, scheduler.CapableLLM, a.Logger)

	deps.Examples = provider.NewTatoebaSearcher(cfg.TatoebaURL, client, a.Logger)
	deps.Glossary = a.Glossary

	return deps, nil
}

// Request builds a pipeline request from term and the configured
// languages, persona and domains.
func (a *App) Request(term, contextText string) pipeline.Request {
	return pipeline.Request{
		Term:    term,
		Source:  a.Config.SourceLang,
		Target:  a.Config.TargetLang,
		Context: contextText,
		Persona: a.Config.Persona,
		Domains: a.Config.Domains,
	}
}

// EvictExpired removes expired cache entries.
func (a *App) EvictExpired(ctx context.Context) (int64, error) {
	return a.Cache.EvictExpired(ctx)
}

// Prune keeps the newest keep entries per cache kind; keep <= 0 uses the
// configured maximum.
func (a *App) Prune(ctx context.Context, keep int) (int64, error) {
	return a.Cache.PruneIfOversized(ctx, keep)
}

// AddGlossary stores a preferred translation.
func (a *App) AddGlossary(ctx context.Context, hit translation.GlossaryHit) error {
	return a.Glossary.Upsert(ctx, hit)
}

// Close stops maintenance, flushes metrics and closes the database.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.stopMaintenance != nil {
			a.stopMaintenance()
		}
		a.wg.Wait()
		a.Metrics.Close()
		err = a.DB.Close()
	})
	return err
}
