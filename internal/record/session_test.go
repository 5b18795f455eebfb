package record

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"life.tape/internal/audio"
	"life.tape/internal/models"
	"life.tape/internal/state"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeSource struct {
	capture Capture
	started int
	stopped int
	err     error
}

func (f *fakeSource) Start(ctx context.Context) error {
	f.started++
	return f.err
}

func (f *fakeSource) Stop(ctx context.Context) (Capture, error) {
	f.stopped++
	return f.capture, nil
}

type fakeUploader struct {
	uploaded []byte
	err      error
}

func (f *fakeUploader) CreateAudioUpload(ctx context.Context, ext string) (*audio.Upload, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &audio.Upload{Key: "k." + ext, UploadURL: "https://put", AudioURI: "s3://tapes/k." + ext}, nil
}

func (f *fakeUploader) UploadAudio(ctx context.Context, uploadURL string, data []byte) error {
	f.uploaded = data
	return nil
}

type fixture struct {
	clock   *clock
	source  *fakeSource
	entries *state.EntryStore
	session *Session
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		clock:   &clock{t: time.Date(2025, 5, 1, 20, 0, 0, 0, time.UTC)},
		source:  &fakeSource{},
		entries: state.NewEntryStore(nil, nil, nil),
	}
	opts.Source = f.source
	opts.Entries = f.entries
	opts.Now = f.clock.now
	f.session = NewSession(opts)
	return f
}

func TestSession_WakeToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	require.NoError(t, f.session.Listen(ctx))
	assert.Equal(t, Listening, f.session.State())
	assert.True(t, f.entries.Get().IsListening)

	e, err := f.session.Feed(ctx, "what a day")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, Listening, f.session.State())

	e, err = f.session.Feed(ctx, "okay life tape work")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, Recording, f.session.State())
	assert.True(t, f.entries.Get().IsRecording)
	assert.True(t, f.entries.Get().WakeWordDetected)
	assert.Equal(t, "work", f.entries.Get().CurrentTag)

	f.clock.advance(3 * time.Second)
	_, err = f.session.Feed(ctx, "shipped the release")
	require.NoError(t, err)

	f.clock.advance(2 * time.Second)
	e, err = f.session.Feed(ctx, "end tape")
	require.NoError(t, err)
	require.NotNil(t, e)

	assert.Equal(t, "shipped the release", e.Transcript)
	assert.Equal(t, "work", e.Tag)
	assert.False(t, e.IsDarkSide)
	assert.Equal(t, "SHIPPED RELEASE STORY MOMENT MEMORY", e.Title)
	assert.Equal(t, 5, e.Duration)
	assert.Equal(t, f.clock.t.UnixMilli(), e.CreatedAt)
	assert.NotEmpty(t, e.ID)

	assert.Equal(t, Standby, f.session.State())
	assert.False(t, f.entries.Get().IsRecording)
	assert.Empty(t, f.entries.Get().CurrentTag)
	require.Len(t, f.entries.Entries(), 1)
	assert.Equal(t, e.ID, f.entries.Entries()[0].ID)
	assert.Equal(t, 1, f.source.started)
	assert.Equal(t, 1, f.source.stopped)
}

func TestSession_SingleUtterance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	require.NoError(t, f.session.Listen(ctx))

	e, err := f.session.Feed(ctx, "life tape real talk I feel anxious today end tape")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "I feel anxious today", e.Transcript)
	assert.True(t, e.IsDarkSide)
}

func TestSession_SilenceTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	require.NoError(t, f.session.Start(ctx))

	_, err := f.session.Feed(ctx, "thinking about the trip")
	require.NoError(t, err)

	f.clock.advance(4 * time.Second)
	e, err := f.session.Tick(ctx)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, time.Second, f.session.SilenceRemaining())

	f.clock.advance(time.Second)
	e, err = f.session.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "thinking about the trip", e.Transcript)
	assert.Equal(t, Standby, f.session.State())
}

func TestSession_EmptyRecording(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	require.NoError(t, f.session.Start(ctx))

	e, err := f.session.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Voice entry recorded successfully", e.Transcript)
}

func TestSession_ManualTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{
		TitlePreference: func() state.TitlePreference { return state.TitleManual },
	})

	require.NoError(t, f.session.Start(ctx))
	e, err := f.session.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MY UNTITLED VOICE ENTRY", e.Title)

	require.NoError(t, f.session.Start(ctx))
	f.session.SetTitle("beach day")
	e, err = f.session.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BEACH DAY", e.Title)
}

func TestSession_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	require.NoError(t, f.session.Start(ctx))
	_, _ = f.session.Feed(ctx, "never mind")

	f.session.Cancel(ctx)
	assert.Equal(t, Standby, f.session.State())
	assert.Empty(t, f.entries.Entries())
	assert.Equal(t, 1, f.source.stopped)
}

func TestSession_Busy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	require.NoError(t, f.session.Start(ctx))

	assert.ErrorIs(t, f.session.Start(ctx), ErrBusy)
	assert.ErrorIs(t, f.session.Listen(ctx), ErrBusy)
}

func TestSession_SourceError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.source.err = errors.New("microphone permission required")

	assert.ErrorContains(t, f.session.Start(ctx), "microphone permission required")
	assert.Equal(t, Standby, f.session.State())
}

func TestSession_UploadsAudio(t *testing.T) {
	ctx := context.Background()

	t.Run("uploaded", func(t *testing.T) {
		up := &fakeUploader{}
		f := newFixture(t, Options{Uploader: up})
		f.source.capture = Capture{URI: "file:///tmp/a.m4a", Data: []byte("aac"), Duration: 3 * time.Second}

		require.NoError(t, f.session.Start(ctx))
		e, err := f.session.Stop(ctx)
		require.NoError(t, err)
		assert.Equal(t, "s3://tapes/k.m4a", e.AudioURI)
		assert.Equal(t, 3, e.Duration)
		assert.Equal(t, []byte("aac"), up.uploaded)
	})

	t.Run("upload failure keeps local uri", func(t *testing.T) {
		f := newFixture(t, Options{Uploader: &fakeUploader{err: errors.New("503")}})
		f.source.capture = Capture{URI: "file:///tmp/a.m4a", Data: []byte("aac")}

		require.NoError(t, f.session.Start(ctx))
		e, err := f.session.Stop(ctx)
		require.NoError(t, err)
		assert.Equal(t, "file:///tmp/a.m4a", e.AudioURI)
	})
}

func TestSession_Run(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	require.NoError(t, f.session.Listen(ctx))

	lines := make(chan string, 3)
	lines <- "life tape idea"
	lines <- "a podcast about maps"
	lines <- "end tape"
	close(lines)

	var saved []models.Entry
	require.NoError(t, f.session.Run(ctx, lines, time.Hour, func(e models.Entry) { saved = append(saved, e) }))
	require.Len(t, saved, 1)
	assert.Equal(t, "idea", saved[0].Tag)
	assert.Equal(t, "a podcast about maps", saved[0].Transcript)
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "take.m4a")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	c := &clock{t: time.Unix(0, 0)}
	src := &FileSource{Path: path, Now: c.now}
	require.NoError(t, src.Start(ctx))
	c.advance(7 * time.Second)

	capture, err := src.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file://"+path, capture.URI)
	assert.Equal(t, []byte("data"), capture.Data)
	assert.Equal(t, "m4a", capture.Ext)
	assert.Equal(t, 7*time.Second, capture.Duration)
}
