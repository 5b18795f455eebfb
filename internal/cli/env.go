package cli

import (
	"context"
	"fmt"
	"io"

	"life.tape/internal/app"
	"life.tape/internal/backend"
	"life.tape/internal/logging"
	"life.tape/internal/persist"
	"life.tape/internal/state"
	"life.tape/internal/transcript"
)

// Env is everything a command needs: the started app, the optional backend
// client and the transcript processor.
type Env struct {
	Config    *Config
	Log       logging.Logger
	App       *app.App
	Backend   *backend.Client
	Processor *transcript.Processor
}

// Open builds the stores from cfg and starts the app. Without a backend URL
// the device cache is the only storage.
func Open(ctx context.Context, cfg *Config, logOut io.Writer) (*Env, error) {
	log := logging.NewText(logOut, cfg.LogLevel)

	var rules *transcript.Engine
	if cfg.RulesPath != "" {
		var err error
		if rules, err = transcript.LoadRules(cfg.RulesPath, 0); err != nil {
			return nil, err
		}
	}

	env := &Env{
		Config:    cfg,
		Log:       log,
		Processor: transcript.NewProcessor(cfg.Phrases, rules),
	}

	var storage persist.Storage = persist.NewDisk(cfg.CachePath)
	var remote state.EntryBackend
	if cfg.BackendURL != "" {
		client, err := backend.New(cfg.BackendURL, cfg.BackendKey)
		if err != nil {
			return nil, fmt.Errorf("backend: %w", err)
		}
		env.Backend = client
		remote = client
		storage = persist.NewFallback(persist.NewRemote(client), storage, log)
	}

	env.App = NewApp(storage, remote, cfg.PINCost, log, app.WithFeedback(bell{logOut}))
	if err := env.App.Start(ctx); err != nil {
		log.Warn(ctx, "started with partial state", "error", err)
	}
	return env, nil
}

// NewApp wires the four stores onto storage.
func NewApp(storage persist.Storage, remote state.EntryBackend, pinCost int, log logging.Logger, opts ...app.Option) *app.App {
	return app.New(app.Stores{
		PINs:    state.NewPINStore(storage, pinCost, log),
		User:    state.NewUserStore(storage, log),
		Entries: state.NewEntryStore(storage, remote, log),
		Theme:   state.NewThemeStore(storage, log),
	}, log, opts...)
}
