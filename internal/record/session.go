// Package record drives one recording from the wake phrase to a saved entry.
package record

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"life.tape/internal/audio"
	"life.tape/internal/crypto"
	"life.tape/internal/logging"
	"life.tape/internal/models"
	"life.tape/internal/state"
	"life.tape/internal/transcript"
)

const SilenceTimeout = 5 * time.Second

var ErrBusy = errors.New("record: a recording is already in progress")

type State int

const (
	Standby State = iota
	Listening
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return "standby"
	}
}

// Capture is what the microphone produced.
type Capture struct {
	URI      string
	Data     []byte
	Ext      string
	Duration time.Duration
}

// Source is the microphone.
type Source interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (Capture, error)
}

// Entries receives finished entries and mirrors the recording flags.
type Entries interface {
	Add(ctx context.Context, e models.Entry)
	StartRecording(ctx context.Context)
	StopRecording(ctx context.Context)
	SetListening(ctx context.Context, v bool)
	SetWakeWordDetected(ctx context.Context, v bool)
	SetCurrentTag(ctx context.Context, tag string)
	SetTranscript(ctx context.Context, t string)
}

// Uploader moves recordings to the backend's audio storage.
type Uploader interface {
	CreateAudioUpload(ctx context.Context, ext string) (*audio.Upload, error)
	UploadAudio(ctx context.Context, uploadURL string, data []byte) error
}

type Options struct {
	Processor *transcript.Processor
	Source    Source
	Entries   Entries
	// Uploader is optional. Without it the entry keeps the local audio URI.
	Uploader Uploader
	// TitlePreference defaults to state.TitleAI.
	TitlePreference func() state.TitlePreference
	SilenceTimeout  time.Duration
	Now             func() time.Time
	Log             logging.Logger
}

type Session struct {
	mu   sync.Mutex
	opts Options

	state       State
	buf         strings.Builder
	started     time.Time
	lastSpeech  time.Time
	manualTitle string
}

func NewSession(opts Options) *Session {
	if opts.Processor == nil {
		opts.Processor = transcript.NewProcessor(transcript.Phrases{}, nil)
	}
	if opts.SilenceTimeout <= 0 {
		opts.SilenceTimeout = SilenceTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	if opts.TitlePreference == nil {
		opts.TitlePreference = func() state.TitlePreference { return state.TitleAI }
	}
	return &Session{opts: opts}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript is the raw text captured so far.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// SetTitle sets the title used when the user prefers manual titles.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualTitle = strings.TrimSpace(title)
}

// Listen enters standby listening for the wake phrase.
func (s *Session) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Standby && s.state != Listening {
		return ErrBusy
	}
	s.state = Listening
	s.opts.Entries.SetListening(ctx, true)
	return nil
}

// Start begins recording without waiting for the wake phrase.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Recording || s.state == Processing {
		return ErrBusy
	}
	return s.startLocked(ctx, "")
}

func (s *Session) startLocked(ctx context.Context, text string) error {
	if err := s.opts.Source.Start(ctx); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	now := s.opts.Now()
	s.state = Recording
	s.started = now
	s.lastSpeech = now
	s.buf.Reset()
	s.buf.WriteString(text)

	s.opts.Entries.StartRecording(ctx)
	s.opts.Entries.SetWakeWordDetected(ctx, text != "")
	s.opts.Entries.SetTranscript(ctx, text)
	s.opts.Log.Debug(ctx, "recording started")
	return nil
}

// Feed consumes recognized speech. While listening, the wake phrase starts a
// recording; while recording, the end phrase finishes it. The entry is
// returned when the recording finished.
func (s *Session) Feed(ctx context.Context, text string) (*models.Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Listening:
		p := s.opts.Processor
		if !p.HasWake(text) {
			return nil, nil
		}
		// drop whatever was said before the wake phrase
		rest := p.AfterWake(text)
		text = strings.TrimSpace(p.Phrases().Wake + " " + rest)
		if err := s.startLocked(ctx, text); err != nil {
			return nil, err
		}
		if tag := p.DetectTag(text); tag != "" {
			s.opts.Entries.SetCurrentTag(ctx, tag)
		}
		if p.HasEnd(rest) {
			return s.finishLocked(ctx)
		}
		return nil, nil

	case Recording:
		if s.buf.Len() > 0 {
			s.buf.WriteByte(' ')
		}
		s.buf.WriteString(text)
		s.lastSpeech = s.opts.Now()
		s.opts.Entries.SetTranscript(ctx, s.buf.String())
		if tag := s.opts.Processor.DetectTag(s.buf.String()); tag != "" {
			s.opts.Entries.SetCurrentTag(ctx, tag)
		}
		if s.opts.Processor.HasEnd(text) {
			return s.finishLocked(ctx)
		}
	}
	return nil, nil
}

// Tick finishes a recording after the silence timeout.
func (s *Session) Tick(ctx context.Context) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording || s.opts.Now().Sub(s.lastSpeech) < s.opts.SilenceTimeout {
		return nil, nil
	}
	s.opts.Log.Debug(ctx, "silence timeout")
	return s.finishLocked(ctx)
}

// SilenceRemaining is the time left before Tick stops the recording.
func (s *Session) SilenceRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording {
		return 0
	}
	return max(0, s.opts.SilenceTimeout-s.opts.Now().Sub(s.lastSpeech))
}

// Stop finishes the recording now.
func (s *Session) Stop(ctx context.Context) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording {
		return nil, nil
	}
	return s.finishLocked(ctx)
}

// Cancel discards the recording and returns to standby.
func (s *Session) Cancel(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Recording {
		if _, err := s.opts.Source.Stop(ctx); err != nil {
			s.opts.Log.Warn(ctx, "stop source", "error", err)
		}
	}
	s.resetLocked(ctx)
}

func (s *Session) resetLocked(ctx context.Context) {
	s.state = Standby
	s.buf.Reset()
	s.manualTitle = ""
	s.opts.Entries.StopRecording(ctx)
	s.opts.Entries.SetCurrentTag(ctx, "")
	s.opts.Entries.SetTranscript(ctx, "")
}

func (s *Session) finishLocked(ctx context.Context) (*models.Entry, error) {
	s.state = Processing
	defer s.resetLocked(ctx)

	capture, err := s.opts.Source.Stop(ctx)
	if err != nil {
		return nil, fmt.Errorf("stop recording: %w", err)
	}

	now := s.opts.Now()
	res := s.opts.Processor.Process(s.buf.String())

	duration := capture.Duration
	if duration <= 0 {
		duration = now.Sub(s.started)
	}

	e := models.Entry{
		ID:         crypto.GenerateEntryID(now),
		Transcript: res.Transcript,
		Title:      s.title(res.Transcript),
		Tag:        res.Tag,
		IsDarkSide: res.IsDarkSide,
		CreatedAt:  now.UnixMilli(),
		Duration:   int(math.Round(duration.Seconds())),
		AudioURI:   s.store(ctx, capture),
	}

	s.opts.Entries.Add(ctx, e)
	s.opts.Log.Info(ctx, "entry saved", "id", e.ID, "darkSide", e.IsDarkSide, "tag", e.Tag)
	return &e, nil
}

func (s *Session) title(text string) string {
	if s.opts.TitlePreference() == state.TitleManual {
		if s.manualTitle != "" {
			return strings.ToUpper(s.manualTitle)
		}
		return transcript.UntitledTitle
	}
	return transcript.Title(text)
}

// store uploads the capture when possible and returns the URI to save.
func (s *Session) store(ctx context.Context, c Capture) string {
	if s.opts.Uploader == nil || len(c.Data) == 0 {
		return c.URI
	}

	ext := c.Ext
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(c.URI), ".")
	}
	up, err := s.opts.Uploader.CreateAudioUpload(ctx, ext)
	if err != nil {
		s.opts.Log.Warn(ctx, "audio upload unavailable", "error", err)
		return c.URI
	}
	if err := s.opts.Uploader.UploadAudio(ctx, up.UploadURL, c.Data); err != nil {
		s.opts.Log.Warn(ctx, "audio upload failed", "error", err)
		return c.URI
	}
	return up.AudioURI
}

// Run feeds lines into the session and ticks it until ctx is done or lines
// is closed, calling saved for each finished entry.
func (s *Session) Run(ctx context.Context, lines <-chan string, tick time.Duration, saved func(models.Entry)) error {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	handle := func(e *models.Entry, err error) error {
		if err != nil {
			return err
		}
		if e != nil && saved != nil {
			saved(*e)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			s.Cancel(context.WithoutCancel(ctx))
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return handle(s.Stop(ctx))
			}
			if err := handle(s.Feed(ctx, line)); err != nil {
				return err
			}
		case <-ticker.C:
			if err := handle(s.Tick(ctx)); err != nil {
				return err
			}
		}
	}
}

// FileSource stands in for a microphone: the recording is an existing audio
// file, or nothing when Path is empty. Duration is the wall time between
// Start and Stop.
type FileSource struct {
	Path string
	Now  func() time.Time

	started time.Time
}

func (f *FileSource) Start(ctx context.Context) error {
	if f.Now == nil {
		f.Now = time.Now
	}
	f.started = f.Now()
	return nil
}

func (f *FileSource) Stop(ctx context.Context) (Capture, error) {
	c := Capture{Duration: f.Now().Sub(f.started)}
	if f.Path == "" {
		return c, nil
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return c, fmt.Errorf("read recording: %w", err)
	}
	c.URI = "file://" + f.Path
	c.Data = data
	c.Ext = strings.TrimPrefix(filepath.Ext(f.Path), ".")
	return c, nil
}
