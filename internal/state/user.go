package state

import (
	"context"
	"fmt"

	"life.tape/internal/logging"
	"life.tape/internal/persist"
)

const UserStorageName = "life-tape-user-storage"

type TitlePreference string

const (
	TitleAI     TitlePreference = "ai"
	TitleManual TitlePreference = "manual"
)

func ParseTitlePreference(s string) (TitlePreference, error) {
	switch p := TitlePreference(s); p {
	case TitleAI, TitleManual:
		return p, nil
	}
	return "", fmt.Errorf("unknown title preference %q (must be ai or manual)", s)
}

type UserState struct {
	IsOnboarded          bool            `json:"isOnboarded"`
	HasCompletedTimeline bool            `json:"hasCompletedTimeline"`
	UserID               string          `json:"userId,omitempty"`
	Email                string          `json:"email,omitempty"`
	DisplayName          string          `json:"displayName,omitempty"`
	TitlePreference      TitlePreference `json:"titlePreference"`
}

func defaultUser() UserState {
	return UserState{TitlePreference: TitleAI}
}

type UserStore struct {
	*Store[UserState]
}

func NewUserStore(storage persist.Storage, log logging.Logger) *UserStore {
	var p *Persistence[UserState]
	if storage != nil {
		p = &Persistence[UserState]{Name: UserStorageName, Storage: storage}
	}
	return &UserStore{Store: New(defaultUser(), p, log)}
}

func (s *UserStore) SetOnboarded(ctx context.Context, v bool) {
	s.Update(ctx, func(u *UserState) { u.IsOnboarded = v })
}

func (s *UserStore) SetTimelineCompleted(ctx context.Context, v bool) {
	s.Update(ctx, func(u *UserState) { u.HasCompletedTimeline = v })
}

func (s *UserStore) SetUser(ctx context.Context, id, email, displayName string) {
	s.Update(ctx, func(u *UserState) {
		u.UserID = id
		u.Email = email
		u.DisplayName = displayName
	})
}

func (s *UserStore) SetTitlePreference(ctx context.Context, p TitlePreference) error {
	if _, err := ParseTitlePreference(string(p)); err != nil {
		return err
	}
	s.Update(ctx, func(u *UserState) { u.TitlePreference = p })
	return nil
}

// Clear resets the profile to its defaults.
func (s *UserStore) Clear(ctx context.Context) {
	s.Reset(ctx)
}
