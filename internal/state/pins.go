package state

import (
	"context"
	"encoding/json"
	"time"

	"life.tape/internal/logging"
	"life.tape/internal/persist"
	"life.tape/internal/pin"
)

const PINStorageName = "life-tape-pin-storage"

// PINState holds bcrypt digests of the two PINs and the unlock flags.
type PINState struct {
	AppPIN             string `json:"appPIN,omitempty"`
	DarkSidePIN        string `json:"darkSidePIN,omitempty"`
	IsAppUnlocked      bool   `json:"isAppUnlocked"`
	IsDarkSideUnlocked bool   `json:"isDarkSideUnlocked"`
	LastBackgroundTime int64  `json:"lastBackgroundTime,omitempty"` // unix millis
}

// only the secrets are persisted
type pinSnapshot struct {
	AppPIN      *string `json:"appPIN"`
	DarkSidePIN *string `json:"darkSidePIN"`
}

var _ pin.Keeper = (*PINStore)(nil)

type PINStore struct {
	*Store[PINState]
	cost int
}

// NewPINStore creates the PIN store. cost is the bcrypt cost for new PINs,
// <= 0 for the default.
func NewPINStore(storage persist.Storage, cost int, log logging.Logger) *PINStore {
	var p *Persistence[PINState]
	if storage != nil {
		p = &Persistence[PINState]{
			Name:    PINStorageName,
			Storage: storage,
			Partialize: func(s PINState) any {
				return pinSnapshot{AppPIN: optional(s.AppPIN), DarkSidePIN: optional(s.DarkSidePIN)}
			},
			Merge: func(cur PINState, raw json.RawMessage) (PINState, error) {
				var snap pinSnapshot
				if err := json.Unmarshal(raw, &snap); err != nil {
					return cur, err
				}
				cur.AppPIN = deref(snap.AppPIN)
				cur.DarkSidePIN = deref(snap.DarkSidePIN)
				return cur, nil
			},
		}
	}
	return &PINStore{Store: New(PINState{}, p, log), cost: cost}
}

func (s *PINStore) SetAppPIN(ctx context.Context, p string) error {
	digest, err := pin.Digest(p, s.cost)
	if err != nil {
		return err
	}
	s.Update(ctx, func(st *PINState) { st.AppPIN = digest })
	return nil
}

func (s *PINStore) SetDarkSidePIN(ctx context.Context, p string) error {
	digest, err := pin.Digest(p, s.cost)
	if err != nil {
		return err
	}
	s.Update(ctx, func(st *PINState) { st.DarkSidePIN = digest })
	return nil
}

func (s *PINStore) UnlockApp(ctx context.Context) {
	s.Update(ctx, func(st *PINState) { st.IsAppUnlocked = true })
}

// LockApp clears both unlock flags.
func (s *PINStore) LockApp(ctx context.Context) {
	s.Update(ctx, func(st *PINState) {
		st.IsAppUnlocked = false
		st.IsDarkSideUnlocked = false
	})
}

func (s *PINStore) UnlockDarkSide(ctx context.Context) {
	s.Update(ctx, func(st *PINState) { st.IsDarkSideUnlocked = true })
}

func (s *PINStore) LockDarkSide(ctx context.Context) {
	s.Update(ctx, func(st *PINState) { st.IsDarkSideUnlocked = false })
}

func (s *PINStore) VerifyAppPIN(attempt string) bool {
	return pin.Verify(s.Get().AppPIN, attempt)
}

func (s *PINStore) VerifyDarkSidePIN(attempt string) bool {
	return pin.Verify(s.Get().DarkSidePIN, attempt)
}

func (s *PINStore) HasAppPIN() bool      { return s.Get().AppPIN != "" }
func (s *PINStore) HasDarkSidePIN() bool { return s.Get().DarkSidePIN != "" }

func (s *PINStore) IsAppUnlocked() bool      { return s.Get().IsAppUnlocked }
func (s *PINStore) IsDarkSideUnlocked() bool { return s.Get().IsDarkSideUnlocked }

// SetLastBackgroundTime records when the app went to the background. The
// zero time clears it.
func (s *PINStore) SetLastBackgroundTime(ctx context.Context, t time.Time) {
	var ms int64
	if !t.IsZero() {
		ms = t.UnixMilli()
	}
	s.Update(ctx, func(st *PINState) { st.LastBackgroundTime = ms })
}

// ClearPINs removes both secrets and locks everything.
func (s *PINStore) ClearPINs(ctx context.Context) {
	s.Update(ctx, func(st *PINState) {
		st.AppPIN = ""
		st.DarkSidePIN = ""
		st.IsAppUnlocked = false
		st.IsDarkSideUnlocked = false
	})
}

// pin.Keeper

func (s *PINStore) Verify(t pin.Target, attempt string) bool {
	if t == pin.DarkSide {
		return s.VerifyDarkSidePIN(attempt)
	}
	return s.VerifyAppPIN(attempt)
}

func (s *PINStore) Commit(ctx context.Context, t pin.Target, p string) error {
	if t == pin.DarkSide {
		return s.SetDarkSidePIN(ctx, p)
	}
	return s.SetAppPIN(ctx, p)
}

func (s *PINStore) Unlock(ctx context.Context, t pin.Target) {
	if t == pin.DarkSide {
		s.UnlockDarkSide(ctx)
		return
	}
	s.UnlockApp(ctx)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
