// Package app is the client root: it hydrates the stores, decides the first
// screen and keeps the PIN lock in step with the app lifecycle.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"life.tape/internal/logging"
	"life.tape/internal/pin"
	"life.tape/internal/state"
)

type Route string

const (
	RouteOnboarding      Route = "Onboarding"
	RouteTimelineBuilder Route = "TimelineBuilder"
	RouteMain            Route = "Main"
)

// Lifecycle is an app state change reported by the platform.
type Lifecycle string

const (
	Active     Lifecycle = "active"
	Inactive   Lifecycle = "inactive"
	Background Lifecycle = "background"
)

type Stores struct {
	PINs    *state.PINStore
	User    *state.UserStore
	Entries *state.EntryStore
	Theme   *state.ThemeStore
}

type App struct {
	Stores

	log      logging.Logger
	now      func() time.Time
	feedback pin.Feedback

	mu          sync.Mutex
	initialized bool
}

type Option func(*App)

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func WithFeedback(fb pin.Feedback) Option {
	return func(a *App) { a.feedback = fb }
}

func New(s Stores, log logging.Logger, opts ...Option) *App {
	if log == nil {
		log = logging.Discard()
	}
	a := &App{Stores: s, log: log, now: time.Now, feedback: pin.NopFeedback{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start hydrates every store, locks the app and loads the entries. Storage
// and network failures are logged and the app starts with what it has.
func (a *App) Start(ctx context.Context) error {
	var errs []error
	for name, hydrate := range map[string]func(context.Context) error{
		"pins":    a.PINs.Hydrate,
		"user":    a.User.Hydrate,
		"entries": a.Entries.Hydrate,
		"theme":   a.Theme.Hydrate,
	} {
		if err := hydrate(ctx); err != nil {
			a.log.Warn(ctx, "store not restored", "store", name, "error", err)
			errs = append(errs, err)
		}
	}

	a.PINs.LockApp(ctx)
	if err := a.Entries.Load(ctx); err != nil {
		errs = append(errs, err)
	}

	a.mu.Lock()
	a.initialized = true
	a.mu.Unlock()
	return errors.Join(errs...)
}

func (a *App) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

func (a *App) InitialRoute() Route {
	u := a.User.Get()
	switch {
	case !u.IsOnboarded:
		return RouteOnboarding
	case !u.HasCompletedTimeline:
		return RouteTimelineBuilder
	default:
		return RouteMain
	}
}

// NeedsPIN reports whether the PIN screen must cover every other screen.
func (a *App) NeedsPIN() bool {
	return a.Initialized() &&
		a.PINs.HasAppPIN() &&
		!a.PINs.IsAppUnlocked() &&
		a.User.Get().IsOnboarded
}

// HandleLifecycle re-locks the app around background/foreground switches.
func (a *App) HandleLifecycle(ctx context.Context, l Lifecycle) {
	switch l {
	case Background:
		a.PINs.SetLastBackgroundTime(ctx, a.now())
		a.PINs.LockApp(ctx)
	case Active:
		if a.PINs.HasAppPIN() && a.User.Get().IsOnboarded {
			a.PINs.LockApp(ctx)
		}
	}
	a.log.Debug(ctx, "lifecycle", "state", string(l), "needsPIN", a.NeedsPIN())
}

// AppPad is the keypad guarding the app: setup when no PIN exists yet.
func (a *App) AppPad() *pin.Pad {
	if !a.PINs.HasAppPIN() {
		return pin.NewPad(pin.Setup, pin.App, a.PINs, a.feedback)
	}
	return pin.NewPad(pin.Unlock, pin.App, a.PINs, a.feedback)
}

// DarkSideGate returns the keypad to show before the Dark Side, or nil when
// it is already unlocked.
func (a *App) DarkSideGate() *pin.Pad {
	if a.PINs.IsDarkSideUnlocked() && a.PINs.HasDarkSidePIN() {
		return nil
	}
	if !a.PINs.HasDarkSidePIN() {
		return pin.NewPad(pin.Setup, pin.DarkSide, a.PINs, a.feedback)
	}
	return pin.NewPad(pin.Unlock, pin.DarkSide, a.PINs, a.feedback)
}

// LeaveDarkSide locks the Dark Side again.
func (a *App) LeaveDarkSide(ctx context.Context) {
	a.PINs.LockDarkSide(ctx)
}

// CompleteOnboarding marks onboarding done, optionally with the first app PIN.
func (a *App) CompleteOnboarding(ctx context.Context, appPIN string) error {
	if appPIN != "" {
		if err := a.PINs.SetAppPIN(ctx, appPIN); err != nil {
			return err
		}
		a.PINs.UnlockApp(ctx)
	}
	a.User.SetOnboarded(ctx, true)
	return nil
}

// Logout clears the profile, both PINs and the local entries.
func (a *App) Logout(ctx context.Context) {
	a.User.Clear(ctx)
	a.PINs.ClearPINs(ctx)
	a.Entries.Clear(ctx)
	a.log.Info(ctx, "logged out")
}
