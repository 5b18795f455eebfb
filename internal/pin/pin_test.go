package pin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"12345a", false},
		{"１２３４５６", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.in))
		})
	}
}

func TestVerify(t *testing.T) {
	stored, err := Digest("246810", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, Verify(stored, "246810"))
	assert.False(t, Verify(stored, "246811"))
	assert.False(t, Verify(stored, "24681"))
	assert.False(t, Verify("", "246810"))
}

func TestDigest_RejectsBadFormat(t *testing.T) {
	_, err := Digest("12ab56", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrFormat)
}

type fakeKeeper struct {
	pins     map[Target]string
	unlocked map[Target]bool
}

func newFakeKeeper() *fakeKeeper {
	return &fakeKeeper{pins: map[Target]string{}, unlocked: map[Target]bool{}}
}

func (k *fakeKeeper) Verify(t Target, attempt string) bool {
	p, ok := k.pins[t]
	return ok && p == attempt
}

func (k *fakeKeeper) Commit(ctx context.Context, t Target, pin string) error {
	k.pins[t] = pin
	return nil
}

func (k *fakeKeeper) Unlock(ctx context.Context, t Target) {
	k.unlocked[t] = true
}

type countingFeedback struct {
	success, errors int
}

func (f *countingFeedback) Success() { f.success++ }
func (f *countingFeedback) Error()   { f.errors++ }

func TestPad_Unlock(t *testing.T) {
	ctx := context.Background()
	k := newFakeKeeper()
	k.pins[App] = "111111"
	fb := &countingFeedback{}
	p := NewPad(Unlock, App, k, fb)

	status, err := p.Enter(ctx, "123456")
	assert.ErrorIs(t, err, ErrIncorrect)
	assert.Equal(t, Locked, status)
	assert.Equal(t, 0, p.Entered())
	assert.Equal(t, 1, fb.errors)
	assert.False(t, k.unlocked[App])

	// retries are unlimited
	for i := 0; i < 10; i++ {
		_, err = p.Enter(ctx, "000000")
		assert.ErrorIs(t, err, ErrIncorrect)
	}

	status, err = p.Enter(ctx, "111111")
	require.NoError(t, err)
	assert.Equal(t, Unlocked, status)
	assert.True(t, k.unlocked[App])
	assert.False(t, k.unlocked[DarkSide])
	assert.Equal(t, 1, fb.success)
}

func TestPad_Setup(t *testing.T) {
	ctx := context.Background()
	k := newFakeKeeper()
	p := NewPad(Setup, DarkSide, k, nil)

	status, err := p.Enter(ctx, "135790")
	require.NoError(t, err)
	assert.Equal(t, AwaitingConfirmation, status)
	title, _ := p.Prompt()
	assert.Equal(t, "Confirm PIN", title)

	status, err = p.Enter(ctx, "135791")
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Equal(t, AwaitingConfirmation, status)
	assert.Equal(t, 0, p.Entered())
	assert.Empty(t, k.pins)

	status, err = p.Enter(ctx, "135790")
	require.NoError(t, err)
	assert.Equal(t, Unlocked, status)
	assert.Equal(t, "135790", k.pins[DarkSide])
	assert.True(t, k.unlocked[DarkSide])
}

func TestPad_DeleteAndReset(t *testing.T) {
	ctx := context.Background()
	p := NewPad(Setup, App, newFakeKeeper(), nil)

	_, _ = p.Enter(ctx, "123")
	p.Delete()
	assert.Equal(t, 2, p.Entered())

	_, _ = p.Enter(ctx, "3456")
	assert.Equal(t, AwaitingConfirmation, p.Status())

	p.Reset()
	assert.Equal(t, Locked, p.Status())
	assert.Equal(t, 0, p.Entered())

	p.Delete()
	assert.Equal(t, 0, p.Entered())
}

func TestPad_IgnoresNonDigits(t *testing.T) {
	p := NewPad(Unlock, App, newFakeKeeper(), nil)
	_, err := p.Press(context.Background(), 'x')
	require.NoError(t, err)
	assert.Equal(t, 0, p.Entered())
}

func TestPad_Prompt(t *testing.T) {
	title, _ := NewPad(Unlock, App, nil, nil).Prompt()
	assert.Equal(t, "Welcome Back", title)
	title, _ = NewPad(Unlock, DarkSide, nil, nil).Prompt()
	assert.Equal(t, "Enter Dark Side", title)
	title, _ = NewPad(Setup, App, nil, nil).Prompt()
	assert.Equal(t, "Secure Your Story", title)
	title, _ = NewPad(Setup, DarkSide, nil, nil).Prompt()
	assert.Equal(t, "Secure Your Dark Side", title)
}
