package main

import (
	"context"
	"fmt"
	"path/filepath"

	"parley/internal/config"
	"parley/internal/economy"
	"parley/internal/logging"
	"parley/internal/model"
	"parley/internal/orchestrator"
	"parley/internal/persona"
	"parley/internal/profile"
	"parley/internal/store"
)

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg    *config.Config
	store  *store.LocalStore
	engine *orchestrator.Engine
}

// bootstrap loads config and persisted state and assembles the engine.
// withModel=false skips the API client for commands that never generate.
func bootstrap(ctx context.Context, withModel bool) (*app, error) {
	cfg, err := config.Load(config.DefaultPath(workspace))
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}

	categories := make(map[string]bool)
	for _, c := range cfg.Logging.Categories {
		categories[c] = true
	}
	if len(categories) == 0 {
		categories = nil
	}
	if err := logging.Initialize(workspace, logging.Options{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Categories: categories,
		Level:      cfg.Logging.Level,
	}); err != nil {
		return nil, err
	}

	db, err := store.NewLocalStore(filepath.Join(workspace, ".parley", "parley.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	sessions, err := db.LoadSessions()
	if err != nil {
		return nil, err
	}
	personas, err := db.LoadPersonas()
	if err != nil {
		return nil, err
	}
	prof, err := db.LoadProfile()
	if err != nil {
		return nil, err
	}
	general, pinned, err := db.LoadMemories()
	if err != nil {
		return nil, err
	}
	econState, _, err := db.LoadEconomy()
	if err != nil {
		return nil, err
	}

	opts := orchestrator.Options{
		Persist:         db,
		Locale:          localeBase(cfg.Locale),
		EconomyConfig:   economyConfig(cfg),
		EconomyState:    econState,
		Profile:         prof,
		GeneralMemories: general,
		PinnedMemories:  pinned,
		Sessions:        sessions,
		Personas:        personas,
		PersonaDir:      filepath.Join(workspace, ".parley", "personas"),
	}

	if withModel {
		src, err := model.NewGeminiSource(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		opts.Source = src
		opts.Extractor = profile.NewModelExtractor(src)
	} else {
		opts.Source = model.NewScripted()
	}

	engine, err := orchestrator.New(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: db, engine: engine}, nil
}

// close tears the app down in dependency order.
func (a *app) close() {
	a.engine.Close()
	a.store.Close()
	logging.CloseAll()
}

// watchPersonas starts the live persona reload; nil watcher when it cannot
// start (missing dir is fine, the watcher tolerates it).
func (a *app) watchPersonas(ctx context.Context) *persona.Watcher {
	w, err := persona.NewWatcher(a.engine.PersonaRegistry())
	if err != nil {
		logger.Warn("persona watcher unavailable")
		return nil
	}
	if err := w.Start(ctx); err != nil {
		return nil
	}
	return w
}

// localeBase reduces a BCP 47 tag to its primary subtag ("en-US" -> "en").
func localeBase(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '-' || tag[i] == '_' {
			return tag[:i]
		}
	}
	return tag
}

func economyConfig(cfg *config.Config) economy.Config {
	ec := economy.DefaultConfig()
	if cfg.Economy.DailyAllotment > 0 {
		ec.DailyAllotment = cfg.Economy.DailyAllotment
	}
	if cfg.Economy.DeepThinkingSurcharge > 0 {
		ec.DeepThinkingSurcharge = cfg.Economy.DeepThinkingSurcharge
	}
	if cfg.Economy.ScientificSurcharge > 0 {
		ec.ScientificSurcharge = cfg.Economy.ScientificSurcharge
	}
	return ec
}
