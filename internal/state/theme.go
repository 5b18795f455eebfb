package state

import (
	"context"

	"life.tape/internal/logging"
	"life.tape/internal/persist"
)

const ThemeStorageName = "life-tape-theme"

type ThemeState struct {
	IsDark bool `json:"isDark"`
}

type ThemeStore struct {
	*Store[ThemeState]
}

func NewThemeStore(storage persist.Storage, log logging.Logger) *ThemeStore {
	var p *Persistence[ThemeState]
	if storage != nil {
		p = &Persistence[ThemeState]{Name: ThemeStorageName, Storage: storage}
	}
	return &ThemeStore{Store: New(ThemeState{}, p, log)}
}

func (s *ThemeStore) Toggle(ctx context.Context) bool {
	return s.Update(ctx, func(t *ThemeState) { t.IsDark = !t.IsDark }).IsDark
}

func (s *ThemeStore) SetDark(ctx context.Context, v bool) {
	s.Update(ctx, func(t *ThemeState) { t.IsDark = v })
}
