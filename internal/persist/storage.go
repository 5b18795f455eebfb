// Package persist provides the key-value storages the client state stores
// write their snapshots to.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/peterbourgon/diskv/v3"

	"life.tape/internal/backend"
	"life.tape/internal/logging"
)

var ErrNoItem = errors.New("persist: no item")

// Storage is an async key-value store of JSON snapshots.
type Storage interface {
	GetItem(ctx context.Context, name string) ([]byte, error)
	SetItem(ctx context.Context, name string, value []byte) error
	RemoveItem(ctx context.Context, name string) error
}

var (
	_ Storage = (*Remote)(nil)
	_ Storage = (*Disk)(nil)
	_ Storage = (*Memory)(nil)
	_ Storage = (*Fallback)(nil)
)

// StateBackend is the app_state surface of the remote service.
type StateBackend interface {
	GetState(ctx context.Context, key string) (json.RawMessage, error)
	UpsertState(ctx context.Context, key string, value json.RawMessage) error
	DeleteState(ctx context.Context, key string) error
}

// Remote stores items as rows of the app_state table.
type Remote struct {
	backend StateBackend
}

func NewRemote(b StateBackend) *Remote {
	return &Remote{backend: b}
}

func (r *Remote) GetItem(ctx context.Context, name string) ([]byte, error) {
	v, err := r.backend.GetState(ctx, name)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, ErrNoItem
	}
	if err != nil {
		return nil, fmt.Errorf("remote get %s: %w", name, err)
	}
	return v, nil
}

func (r *Remote) SetItem(ctx context.Context, name string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("remote set %s: value is not json", name)
	}
	if err := r.backend.UpsertState(ctx, name, value); err != nil {
		return fmt.Errorf("remote set %s: %w", name, err)
	}
	return nil
}

func (r *Remote) RemoveItem(ctx context.Context, name string) error {
	if err := r.backend.DeleteState(ctx, name); err != nil && !errors.Is(err, backend.ErrNotFound) {
		return fmt.Errorf("remote remove %s: %w", name, err)
	}
	return nil
}

// Disk is the on-device cache, one file per item under a base directory.
type Disk struct {
	d *diskv.Diskv
}

func NewDisk(basePath string) *Disk {
	return &Disk{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: func(name string) *diskv.PathKey { return &diskv.PathKey{FileName: name} },
		InverseTransform:  func(pk *diskv.PathKey) string { return pk.FileName },
		CacheSizeMax:      1024 * 1024, // 1MB
	})}
}

func (d *Disk) GetItem(ctx context.Context, name string) ([]byte, error) {
	v, err := d.d.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoItem
	}
	if err != nil {
		return nil, fmt.Errorf("disk get %s: %w", name, err)
	}
	return v, nil
}

func (d *Disk) SetItem(ctx context.Context, name string, value []byte) error {
	if err := d.d.Write(name, value); err != nil {
		return fmt.Errorf("disk set %s: %w", name, err)
	}
	return nil
}

func (d *Disk) RemoveItem(ctx context.Context, name string) error {
	if !d.d.Has(name) {
		return nil
	}
	if err := d.d.Erase(name); err != nil {
		return fmt.Errorf("disk remove %s: %w", name, err)
	}
	return nil
}

type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) GetItem(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[name]
	if !ok {
		return nil, ErrNoItem
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) SetItem(ctx context.Context, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[name] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) RemoveItem(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, name)
	return nil
}

// Fallback writes to both storages and reads from the primary first.
// Primary errors are logged and only returned when the secondary fails too.
type Fallback struct {
	Primary   Storage
	Secondary Storage
	Log       logging.Logger
}

func NewFallback(primary, secondary Storage, log logging.Logger) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary, Log: log}
}

func (f *Fallback) GetItem(ctx context.Context, name string) ([]byte, error) {
	v, err := f.Primary.GetItem(ctx, name)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNoItem) {
		f.Log.Warn(ctx, "primary storage read failed", "name", name, "error", err)
	}

	v, err2 := f.Secondary.GetItem(ctx, name)
	if err2 != nil {
		if errors.Is(err2, ErrNoItem) && !errors.Is(err, ErrNoItem) {
			return nil, err
		}
		return nil, err2
	}
	return v, nil
}

func (f *Fallback) SetItem(ctx context.Context, name string, value []byte) error {
	return f.both(ctx, "write", name, func(s Storage) error {
		return s.SetItem(ctx, name, value)
	})
}

func (f *Fallback) RemoveItem(ctx context.Context, name string) error {
	return f.both(ctx, "remove", name, func(s Storage) error {
		return s.RemoveItem(ctx, name)
	})
}

func (f *Fallback) both(ctx context.Context, op, name string, fn func(Storage) error) error {
	errPrimary := fn(f.Primary)
	if errPrimary != nil {
		f.Log.Warn(ctx, "primary storage "+op+" failed", "name", name, "error", errPrimary)
	}
	if err := fn(f.Secondary); err != nil {
		if errPrimary != nil {
			return errors.Join(errPrimary, err)
		}
		return err
	}
	return nil
}
