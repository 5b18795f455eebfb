package state

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"life.tape/internal/logging"
	"life.tape/internal/models"
	"life.tape/internal/persist"
)

const EntriesStorageName = "life-tape-entries-storage"

// EntryBackend is the entries table of the remote service.
type EntryBackend interface {
	ListEntries(ctx context.Context, filter models.EntryFilter) ([]models.Entry, error)
	InsertEntry(ctx context.Context, e models.Entry) (*models.Entry, error)
	UpdateEntry(ctx context.Context, id string, patch models.EntryPatch) (*models.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// EntryState is the entry collection plus the scratch state of the recording
// screen. Only Entries is persisted.
type EntryState struct {
	Entries             []models.Entry `json:"entries"`
	IsRecording         bool           `json:"isRecording"`
	IsListening         bool           `json:"isListening"`
	WakeWordDetected    bool           `json:"wakeWordDetected"`
	CurrentTag          string         `json:"currentTag,omitempty"`
	RecordingTranscript string         `json:"recordingTranscript,omitempty"`
}

type entrySnapshot struct {
	Entries []models.Entry `json:"entries"`
}

// EntryStore applies every mutation locally first and then tries the
// remote write. Remote failures are logged and the local state is kept.
type EntryStore struct {
	*Store[EntryState]
	remote EntryBackend
	log    logging.Logger
}

// NewEntryStore creates the store. remote may be nil for local-only use.
func NewEntryStore(storage persist.Storage, remote EntryBackend, log logging.Logger) *EntryStore {
	if log == nil {
		log = logging.Discard()
	}

	var p *Persistence[EntryState]
	if storage != nil {
		p = &Persistence[EntryState]{
			Name:    EntriesStorageName,
			Storage: storage,
			Partialize: func(s EntryState) any {
				return entrySnapshot{Entries: s.Entries}
			},
			Merge: func(cur EntryState, raw json.RawMessage) (EntryState, error) {
				var snap entrySnapshot
				if err := json.Unmarshal(raw, &snap); err != nil {
					return cur, err
				}
				if snap.Entries != nil {
					cur.Entries = snap.Entries
				}
				return cur, nil
			},
		}
	}
	return &EntryStore{
		Store:  New(EntryState{}, p, log),
		remote: remote,
		log:    log,
	}
}

func (s *EntryStore) Entries() []models.Entry {
	return s.Get().Entries
}

func (s *EntryStore) Find(id string) (models.Entry, bool) {
	for _, e := range s.Get().Entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.Entry{}, false
}

// Load merges the remote entries into the local ones, newest first. The
// remote copy wins for ids present on both sides; entries only this device
// has are kept. On failure the local entries are kept and the error is
// returned.
func (s *EntryStore) Load(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	entries, err := s.remote.ListEntries(ctx, models.EntryFilter{})
	if err != nil {
		s.log.Warn(ctx, "failed to load entries", "error", err)
		return err
	}
	s.Update(ctx, func(st *EntryState) {
		var localOnly int
		st.Entries, localOnly = mergeEntries(entries, st.Entries)
		if localOnly > 0 {
			s.log.Debug(ctx, "kept entries missing remotely", "count", localOnly)
		}
	})
	return nil
}

// mergeEntries returns remote plus the local entries whose id remote lacks,
// sorted by createdAt descending.
func mergeEntries(remote, local []models.Entry) ([]models.Entry, int) {
	out := make([]models.Entry, 0, len(remote)+len(local))
	seen := make(map[string]bool, len(remote))
	for _, e := range remote {
		seen[e.ID] = true
		out = append(out, e)
	}
	var localOnly int
	for _, e := range local {
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
			localOnly++
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, localOnly
}

// Add prepends e locally and inserts it remotely.
func (s *EntryStore) Add(ctx context.Context, e models.Entry) {
	s.Update(ctx, func(st *EntryState) {
		next := make([]models.Entry, 0, len(st.Entries)+1)
		next = append(next, e)
		st.Entries = append(next, st.Entries...)
	})

	if s.remote != nil {
		if _, err := s.remote.InsertEntry(ctx, e); err != nil {
			s.log.Warn(ctx, "remote insert failed", "id", e.ID, "error", err)
		}
	}
}

// UpdateEntry merges patch into the entry with id. It reports whether the entry
// was present locally; the remote update is attempted either way.
func (s *EntryStore) UpdateEntry(ctx context.Context, id string, patch models.EntryPatch) bool {
	found := false
	s.Update(ctx, func(st *EntryState) {
		next := make([]models.Entry, len(st.Entries))
		copy(next, st.Entries)
		for i := range next {
			if next[i].ID == id {
				patch.Apply(&next[i])
				found = true
			}
		}
		st.Entries = next
	})

	if s.remote != nil {
		if _, err := s.remote.UpdateEntry(ctx, id, patch); err != nil {
			s.log.Warn(ctx, "remote update failed", "id", id, "error", err)
		}
	}
	return found
}

// Delete removes the entry with id locally and remotely.
func (s *EntryStore) Delete(ctx context.Context, id string) bool {
	found := false
	s.Update(ctx, func(st *EntryState) {
		next := make([]models.Entry, 0, len(st.Entries))
		for _, e := range st.Entries {
			if e.ID == id {
				found = true
				continue
			}
			next = append(next, e)
		}
		st.Entries = next
	})

	if s.remote != nil {
		if err := s.remote.DeleteEntry(ctx, id); err != nil {
			s.log.Warn(ctx, "remote delete failed", "id", id, "error", err)
		}
	}
	return found
}

// Clear empties the local collection only.
func (s *EntryStore) Clear(ctx context.Context) {
	s.Update(ctx, func(st *EntryState) { st.Entries = []models.Entry{} })
}

// recording screen state, not persisted

func (s *EntryStore) StartRecording(ctx context.Context) {
	s.apply(ctx, func(st *EntryState) { st.IsRecording = true }, false)
}

func (s *EntryStore) StopRecording(ctx context.Context) {
	s.apply(ctx, func(st *EntryState) {
		st.IsRecording = false
		st.IsListening = false
		st.WakeWordDetected = false
	}, false)
}

func (s *EntryStore) SetListening(ctx context.Context, v bool) {
	s.apply(ctx, func(st *EntryState) { st.IsListening = v }, false)
}

func (s *EntryStore) SetWakeWordDetected(ctx context.Context, v bool) {
	s.apply(ctx, func(st *EntryState) { st.WakeWordDetected = v }, false)
}

func (s *EntryStore) SetCurrentTag(ctx context.Context, tag string) {
	s.apply(ctx, func(st *EntryState) { st.CurrentTag = tag }, false)
}

func (s *EntryStore) SetTranscript(ctx context.Context, t string) {
	s.apply(ctx, func(st *EntryState) { st.RecordingTranscript = t }, false)
}

// EditPatch builds the patch saved from the entry detail screen: the title
// is trimmed and uppercased, the transcript trimmed and an empty tag clears
// the tag.
func EditPatch(title, transcript, tag string) models.EntryPatch {
	title = strings.ToUpper(strings.TrimSpace(title))
	transcript = strings.TrimSpace(transcript)
	tag = strings.TrimSpace(tag)
	return models.EntryPatch{
		Title:      &title,
		Transcript: &transcript,
		Tag:        &tag,
	}
}
