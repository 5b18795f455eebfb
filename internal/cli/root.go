// Package cli is the lifetape command line: the screens of the journal as
// cobra commands over the client stores.
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"life.tape/internal/app"
)

// Opener builds the environment for one invocation.
type Opener func(ctx context.Context, configFile string, logOut io.Writer) (*Env, error)

// OpenFromConfig loads the config file and opens the environment it names.
func OpenFromConfig(ctx context.Context, configFile string, logOut io.Writer) (*Env, error) {
	cfg, err := LoadConfig(viper.New(), configFile)
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg, logOut)
}

// runtime is shared by every command of one invocation.
type runtime struct {
	open       Opener
	configFile string

	env    *Env
	prompt *Prompter
}

type gate int

const (
	// gateNone opens the stores without any checks.
	gateNone gate = iota
	// gateUnlocked requires onboarding and, when set, the app PIN.
	gateUnlocked
)

// load opens the environment once per invocation and applies g.
func (r *runtime) load(cmd *cobra.Command, g gate) (*Env, error) {
	ctx := cmd.Context()
	if r.env == nil {
		env, err := r.open(ctx, r.configFile, cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		r.env = env
		r.prompt = NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	if g == gateNone {
		return r.env, nil
	}

	a := r.env.App
	if a.InitialRoute() == app.RouteOnboarding {
		return nil, errors.New("life tape is not set up yet, run `lifetape onboard` first")
	}
	if a.NeedsPIN() {
		if err := r.prompt.Unlock(ctx, a.AppPad()); err != nil {
			return nil, err
		}
	}
	return r.env, nil
}

// close reports the end of the invocation as the app going to background.
func (r *runtime) close(cmd *cobra.Command) {
	if r.env != nil {
		r.env.App.HandleLifecycle(cmd.Context(), app.Background)
	}
}

// New returns the lifetape root command.
func New() *cobra.Command {
	return NewWithOpener(OpenFromConfig)
}

// NewWithOpener returns the root command using open to build the environment.
func NewWithOpener(open Opener) *cobra.Command {
	r := &runtime{open: open}

	topLevel := &cobra.Command{
		Use:   "lifetape",
		Short: "A voice journal: speak, and it becomes your timeline.",
		Long: `Life Tape turns what you say into journal entries.

Say "life tape" to start a recording and "end tape" to finish it. Say a tag
like "work" or "family" right after the wake phrase to tag the entry, and say
"real talk" to keep it on the PIN-protected Dark Side.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	topLevel.PersistentFlags().StringVar(&r.configFile, "config", os.Getenv(envPrefix+"_CONFIG"),
		"Config file (default is .lifetape.yaml in the working directory or $HOME).")

	addCommands(topLevel, r)
	closeAfterRun(topLevel, r)
	return topLevel
}

// closeAfterRun wraps every RunE so the invocation ends in the background
// even when the command fails. cobra skips post-run hooks after an error.
func closeAfterRun(cmd *cobra.Command, r *runtime) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			defer r.close(cmd)
			return run(cmd, args)
		}
	}
	for _, c := range cmd.Commands() {
		closeAfterRun(c, r)
	}
}

func addCommands(topLevel *cobra.Command, r *runtime) {
	addOnboard(topLevel, r)
	addRecord(topLevel, r)
	addTimeline(topLevel, r)
	addDarkSide(topLevel, r)
	addTags(topLevel, r)
	addShow(topLevel, r)
	addEdit(topLevel, r)
	addDelete(topLevel, r)
	addAudio(topLevel, r)
	addPIN(topLevel, r)
	addPrefs(topLevel, r)
	addTheme(topLevel, r)
	addLogout(topLevel, r)
}
