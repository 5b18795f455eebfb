package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"life.tape/internal/audio"
	"life.tape/internal/models"
	"life.tape/internal/state"
	"life.tape/internal/timeline"
)

// enterDarkSide asks for the Dark Side PIN, or for a new one when none is
// set, unless the Dark Side is already open.
func (r *runtime) enterDarkSide(ctx context.Context, env *Env) error {
	if pad := env.App.DarkSideGate(); pad != nil {
		return r.prompt.Unlock(ctx, pad)
	}
	return nil
}

func addTimeline(topLevel *cobra.Command, r *runtime) {
	o := &ListOptions{}

	cmd := &cobra.Command{
		Use:     "timeline",
		Aliases: []string{"ls", "list"},
		Short:   "Show your timeline.",
		Example: `
lifetape timeline
lifetape timeline --tag work --order oldest
lifetape timeline --search "coffee"
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			q, err := o.Query(timeline.Timeline)
			if err != nil {
				return err
			}
			entries := timeline.Apply(env.App.Entries.Entries(), q)

			pp := &PrettyPrint{Out: cmd.OutOrStdout(), ShowID: o.ShowID}
			pp.TitleWithCount("Your Timeline", len(entries))
			pp.Timeline(entries)
			return nil
		},
	}
	addListArgs(cmd, o)
	topLevel.AddCommand(cmd)
}

func addDarkSide(topLevel *cobra.Command, r *runtime) {
	o := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "darkside",
		Short: "Show your private Dark Side entries.",
		Long: `Show your private Dark Side entries.

The Dark Side has its own PIN. The first visit asks you to create it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			q, err := o.Query(timeline.DarkSide)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := r.enterDarkSide(ctx, env); err != nil {
				return err
			}
			defer env.App.LeaveDarkSide(ctx)

			entries := timeline.Apply(env.App.Entries.Entries(), q)
			pp := &PrettyPrint{Out: cmd.OutOrStdout(), ShowID: o.ShowID}
			pp.TitleWithCount("Dark Side", len(entries))
			pp.Timeline(entries)
			return nil
		},
	}
	addListArgs(cmd, o)
	topLevel.AddCommand(cmd)
}

func addTags(topLevel *cobra.Command, r *runtime) {
	var dark bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the tags used on your timeline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			side := timeline.Timeline
			if dark {
				ctx := cmd.Context()
				if err := r.enterDarkSide(ctx, env); err != nil {
					return err
				}
				defer env.App.LeaveDarkSide(ctx)
				side = timeline.DarkSide
			}
			pp := &PrettyPrint{Out: cmd.OutOrStdout()}
			pp.Tags(timeline.UniqueTags(env.App.Entries.Entries(), side))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dark, "darkside", false, "List the Dark Side tags instead.")
	topLevel.AddCommand(cmd)
}

// entryCommand loads the entry named by the first argument, opening the Dark
// Side first when the entry lives there.
func (r *runtime) entryCommand(cmd *cobra.Command, id string) (*Env, models.Entry, func(), error) {
	env, err := r.load(cmd, gateUnlocked)
	if err != nil {
		return nil, models.Entry{}, nil, err
	}
	e, err := findEntry(env.App.Entries.Entries(), id)
	if err != nil {
		return nil, models.Entry{}, nil, err
	}
	done := func() {}
	if e.IsDarkSide {
		ctx := cmd.Context()
		if err := r.enterDarkSide(ctx, env); err != nil {
			return nil, models.Entry{}, nil, err
		}
		done = func() { env.App.LeaveDarkSide(ctx) }
	}
	return env, e, done, nil
}

func addShow(topLevel *cobra.Command, r *runtime) {
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one entry with its full transcript.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, e, done, err := r.entryCommand(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			pp := &PrettyPrint{Out: cmd.OutOrStdout()}
			pp.Entry(e)
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

func addEdit(topLevel *cobra.Command, r *runtime) {
	var title, text, tag string

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change the title, transcript or tag of an entry.",
		Example: `
lifetape edit 1718000000000-k3j9x0a1b --title "morning run"
lifetape edit 1718000000000 --tag ""
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("title") && !flags.Changed("transcript") && !flags.Changed("tag") {
				return errors.New("nothing to change: use --title, --transcript or --tag")
			}
			env, e, done, err := r.entryCommand(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			if !flags.Changed("title") {
				title = e.Title
			}
			if !flags.Changed("transcript") {
				text = e.Transcript
			}
			if !flags.Changed("tag") {
				tag = e.Tag
			}
			patch := state.EditPatch(title, text, strings.TrimPrefix(tag, "#"))
			if !env.App.Entries.UpdateEntry(cmd.Context(), e.ID, patch) {
				return fmt.Errorf("no entry %q", e.ID)
			}

			updated, _ := env.App.Entries.Find(e.ID)
			pp := &PrettyPrint{Out: cmd.OutOrStdout()}
			pp.Entry(updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title.")
	cmd.Flags().StringVar(&text, "transcript", "", "New transcript.")
	cmd.Flags().StringVar(&tag, "tag", "", "New tag, empty to remove it.")
	topLevel.AddCommand(cmd)
}

func addDelete(topLevel *cobra.Command, r *runtime) {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete an entry.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, e, done, err := r.entryCommand(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			if !yes {
				ok, err := r.prompt.Confirm(fmt.Sprintf("Delete %q?", e.Title))
				if err != nil || !ok {
					return err
				}
			}
			if !env.App.Entries.Delete(cmd.Context(), e.ID) {
				return fmt.Errorf("no entry %q", e.ID)
			}
			_, _ = color.New(color.Faint).Fprintf(cmd.OutOrStdout(), "Deleted %s\n", e.ID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation.")
	topLevel.AddCommand(cmd)
}

func addAudio(topLevel *cobra.Command, r *runtime) {
	cmd := &cobra.Command{
		Use:   "audio ID",
		Short: "Print a link to the recording of an entry.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, e, done, err := r.entryCommand(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			if e.AudioURI == "" {
				return fmt.Errorf("entry %s has no recording", e.ID)
			}
			_, key, err := audio.ParseURI(e.AudioURI)
			if err != nil {
				// a recording that never left this device
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), e.AudioURI)
				return nil
			}
			if env.Backend == nil {
				return errors.New("no backend configured: set backend.url")
			}
			url, err := env.Backend.AudioURL(cmd.Context(), key)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
