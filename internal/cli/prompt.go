package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"life.tape/internal/pin"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Prompter reads answers and PINs. PINs are read without echo when the
// input is a terminal.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}
	return p
}

// Line prints prompt and reads one trimmed line. A final line without a
// newline is returned as is.
func (p *Prompter) Line(prompt string) (string, error) {
	if prompt != "" {
		if _, err := fmt.Fprint(p.out, prompt); err != nil {
			return "", err
		}
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Secret is Line without echo on a terminal.
func (p *Prompter) Secret(prompt string) (string, error) {
	if !p.isTerm {
		return p.Line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Confirm asks a yes/no question, defaulting to no.
func (p *Prompter) Confirm(question string) (bool, error) {
	answer, err := p.Line(question + " [y/N] ")
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Lines streams the remaining input line by line until EOF or ctx is done.
func (p *Prompter) Lines(ctx context.Context) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for {
			line, err := p.in.ReadString('\n')
			if line = strings.TrimSpace(line); line != "" {
				select {
				case ch <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// Unlock drives pad with PINs typed at the prompt until it opens. Wrong PINs
// are reported and asked again, as many times as the user likes.
func (p *Prompter) Unlock(ctx context.Context, pad *pin.Pad) error {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	red := color.New(color.FgRed)

	for !pad.Done() {
		title, subtitle := pad.Prompt()
		_, _ = bold.Fprintln(p.out, title)
		_, _ = faint.Fprintln(p.out, subtitle)

		entered, err := p.Secret("PIN: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("no PIN entered")
			}
			return err
		}
		if !pin.Valid(entered) {
			_, _ = red.Fprintf(p.out, "A PIN is %d digits.\n", pin.Length)
			continue
		}
		if _, err := pad.Enter(ctx, entered); err != nil {
			if errors.Is(err, pin.ErrIncorrect) || errors.Is(err, pin.ErrMismatch) {
				_, _ = red.Fprintln(p.out, err.Error())
				continue
			}
			return err
		}
	}
	return nil
}

// bell rings the terminal on a rejected PIN.
type bell struct{ w io.Writer }

func (bell) Success() {}

func (b bell) Error() { fmt.Fprint(b.w, "\a") }
