package pin

import (
	"context"
)

type Mode int

const (
	Unlock Mode = iota
	Setup
)

type Target int

const (
	App Target = iota
	DarkSide
)

func (t Target) String() string {
	if t == DarkSide {
		return "dark side"
	}
	return "app"
}

type Status int

const (
	Locked Status = iota
	AwaitingConfirmation
	Unlocked
)

func (s Status) String() string {
	switch s {
	case AwaitingConfirmation:
		return "awaiting confirmation"
	case Unlocked:
		return "unlocked"
	default:
		return "locked"
	}
}

// Keeper owns the stored secrets and unlock flags.
type Keeper interface {
	Verify(t Target, attempt string) bool
	Commit(ctx context.Context, t Target, pin string) error
	Unlock(ctx context.Context, t Target)
}

// Feedback is the device haptics.
type Feedback interface {
	Success()
	Error()
}

type NopFeedback struct{}

func (NopFeedback) Success() {}
func (NopFeedback) Error()   {}

// Pad is the 6-digit keypad. It never locks out: wrong entries clear the
// buffer and the user may retry indefinitely.
type Pad struct {
	mode     Mode
	target   Target
	keeper   Keeper
	feedback Feedback

	status Status
	buf    []byte
	first  string
	err    error
}

func NewPad(mode Mode, target Target, k Keeper, fb Feedback) *Pad {
	if fb == nil {
		fb = NopFeedback{}
	}
	return &Pad{mode: mode, target: target, keeper: k, feedback: fb}
}

func (p *Pad) Mode() Mode     { return p.mode }
func (p *Pad) Target() Target { return p.target }
func (p *Pad) Status() Status { return p.status }
func (p *Pad) Entered() int   { return len(p.buf) }
func (p *Pad) Err() error     { return p.err }
func (p *Pad) Done() bool     { return p.status == Unlocked }

// Prompt returns the title and subtitle shown above the dots.
func (p *Pad) Prompt() (title, subtitle string) {
	switch {
	case p.status == AwaitingConfirmation:
		return "Confirm PIN", "Enter the same 6 digits again"
	case p.mode == Setup && p.target == DarkSide:
		return "Secure Your Dark Side", "Create a separate 6-digit PIN to protect your private entries"
	case p.mode == Setup:
		return "Secure Your Story", "Create a 6-digit PIN to protect your Life Tape"
	case p.target == DarkSide:
		return "Enter Dark Side", "Enter your Dark Side PIN to access private entries"
	default:
		return "Welcome Back", "Enter your PIN to unlock Life Tape"
	}
}

// Press appends a digit. When the sixth digit lands the entry is checked and
// the returned error, if any, is ErrIncorrect or ErrMismatch.
func (p *Pad) Press(ctx context.Context, digit byte) (Status, error) {
	if p.status == Unlocked || digit < '0' || digit > '9' || len(p.buf) >= Length {
		return p.status, nil
	}
	p.err = nil
	p.buf = append(p.buf, digit)
	if len(p.buf) < Length {
		return p.status, nil
	}

	entered := string(p.buf)
	p.buf = p.buf[:0]

	switch {
	case p.mode == Unlock:
		if !p.keeper.Verify(p.target, entered) {
			return p.fail(ErrIncorrect)
		}
		p.keeper.Unlock(ctx, p.target)
		return p.succeed()

	case p.status == Locked:
		p.first = entered
		p.status = AwaitingConfirmation
		return p.status, nil

	default:
		if entered != p.first {
			return p.fail(ErrMismatch)
		}
		if err := p.keeper.Commit(ctx, p.target, entered); err != nil {
			p.err = err
			p.feedback.Error()
			return p.status, err
		}
		p.keeper.Unlock(ctx, p.target)
		p.first = ""
		return p.succeed()
	}
}

// Enter presses every digit of s in turn.
func (p *Pad) Enter(ctx context.Context, s string) (Status, error) {
	var err error
	for i := 0; i < len(s); i++ {
		if _, err = p.Press(ctx, s[i]); err != nil {
			return p.status, err
		}
	}
	return p.status, err
}

func (p *Pad) Delete() {
	if n := len(p.buf); n > 0 {
		p.buf = p.buf[:n-1]
	}
}

// Reset clears the buffer and, in setup, discards the first entry.
func (p *Pad) Reset() {
	p.buf = p.buf[:0]
	p.first = ""
	p.err = nil
	if p.status != Unlocked {
		p.status = Locked
	}
}

func (p *Pad) succeed() (Status, error) {
	p.status = Unlocked
	p.feedback.Success()
	return p.status, nil
}

func (p *Pad) fail(err error) (Status, error) {
	p.err = err
	p.feedback.Error()
	return p.status, err
}
