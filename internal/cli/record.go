package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"life.tape/internal/models"
	"life.tape/internal/record"
	"life.tape/internal/state"
)

// RecordOptions configure one listening session.
type RecordOptions struct {
	AudioPath string
	Title     string
	Now       bool
	Silence   time.Duration
}

func addRecord(topLevel *cobra.Command, r *runtime) {
	o := &RecordOptions{}

	cmd := &cobra.Command{
		Use:     "record",
		Aliases: []string{"listen"},
		Short:   "Listen for the wake phrase and turn speech into entries.",
		Long: `Listen for the wake phrase and turn speech into entries.

Speech arrives as lines of text on stdin, typically piped from a speech
recognizer. "life tape" starts an entry, "end tape" or a few seconds of
silence finishes it. Listening continues until the input ends.`,
		Example: `
echo "life tape work shipped the release today end tape" | lifetape record
my-recognizer --stream | lifetape record --audio take.m4a
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runRecord(ctx, r, env, o, cmd)
		},
	}
	cmd.Flags().StringVar(&o.AudioPath, "audio", "",
		"Audio file holding the recording, uploaded with the entry.")
	cmd.Flags().StringVar(&o.Title, "title", "",
		"Title for the first entry when titles are set manually.")
	cmd.Flags().BoolVar(&o.Now, "now", false,
		"Start recording immediately instead of waiting for the wake phrase.")
	cmd.Flags().DurationVar(&o.Silence, "silence", record.SilenceTimeout,
		"Finish a recording after this much silence.")
	topLevel.AddCommand(cmd)
}

func runRecord(ctx context.Context, r *runtime, env *Env, o *RecordOptions, cmd *cobra.Command) error {
	opts := record.Options{
		Processor: env.Processor,
		Source:    &record.FileSource{Path: o.AudioPath},
		Entries:   env.App.Entries,
		TitlePreference: func() state.TitlePreference {
			return env.App.User.Get().TitlePreference
		},
		SilenceTimeout: o.Silence,
		Log:            env.Log,
	}
	if env.Backend != nil {
		opts.Uploader = env.Backend
	}
	session := record.NewSession(opts)
	session.SetTitle(o.Title)

	out := cmd.OutOrStdout()
	faint := color.New(color.Faint)
	saved := color.New(color.FgGreen)

	if o.Now {
		if err := session.Start(ctx); err != nil {
			return err
		}
		_, _ = faint.Fprintln(out, "Recording...")
	} else {
		if err := session.Listen(ctx); err != nil {
			return err
		}
		_, _ = faint.Fprintf(out, "Listening for %q...\n", env.Processor.Phrases().Wake)
	}

	var count int
	err := session.Run(ctx, r.prompt.Lines(ctx), 0, func(e models.Entry) {
		count++
		where := "timeline"
		if e.IsDarkSide {
			where = "Dark Side"
		}
		_, _ = saved.Fprintf(out, "Saved %q to your %s", e.Title, where)
		if e.Tag != "" {
			_, _ = saved.Fprintf(out, " as %s", tagLabel(e.Tag))
		}
		_, _ = fmt.Fprintln(out)
		if err := session.Listen(ctx); err != nil {
			env.Log.Warn(ctx, "resume listening", "error", err)
		}
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	if count == 0 {
		_, _ = faint.Fprintln(out, "Nothing recorded.")
	}
	return nil
}
