package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"life.tape/internal/app"
	"life.tape/internal/pin"
	"life.tape/internal/state"
)

func addOnboard(topLevel *cobra.Command, r *runtime) {
	var name, email string
	var noPIN bool

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Set up Life Tape: your profile and the PIN that protects it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateNone)
			if err != nil {
				return err
			}
			a := env.App
			ctx := cmd.Context()
			if a.InitialRoute() != app.RouteOnboarding {
				return errors.New("already set up, use `lifetape logout` to start over")
			}

			if !noPIN {
				if err := r.prompt.Unlock(ctx, a.AppPad()); err != nil {
					return err
				}
			}
			if err := a.CompleteOnboarding(ctx, ""); err != nil {
				return err
			}
			if name != "" || email != "" {
				a.User.SetUser(ctx, uuid.NewString(), email, name)
			}
			a.User.SetTimelineCompleted(ctx, true)

			_, _ = color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(),
				`All set. Say "life tape" to start your first entry.`)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Your display name.")
	cmd.Flags().StringVar(&email, "email", "", "Your email address.")
	cmd.Flags().BoolVar(&noPIN, "no-pin", false, "Do not protect the app with a PIN.")
	topLevel.AddCommand(cmd)
}

func addPIN(topLevel *cobra.Command, r *runtime) {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Change your PINs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "app",
		Short: "Set a new app PIN.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			pad := pin.NewPad(pin.Setup, pin.App, env.App.PINs, bell{cmd.ErrOrStderr()})
			if err := r.prompt.Unlock(cmd.Context(), pad); err != nil {
				return err
			}
			_, _ = color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "App PIN updated.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "darkside",
		Short: "Set a new Dark Side PIN.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if env.App.PINs.HasDarkSidePIN() {
				// the current PIN first
				if err := r.enterDarkSide(ctx, env); err != nil {
					return err
				}
				defer env.App.LeaveDarkSide(ctx)
			}
			pad := pin.NewPad(pin.Setup, pin.DarkSide, env.App.PINs, bell{cmd.ErrOrStderr()})
			if err := r.prompt.Unlock(ctx, pad); err != nil {
				return err
			}
			_, _ = color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Dark Side PIN updated.")
			return nil
		},
	})

	topLevel.AddCommand(cmd)
}

func addPrefs(topLevel *cobra.Command, r *runtime) {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show your preferences.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			u := env.App.User.Get()
			theme := "light"
			if env.App.Theme.Get().IsDark {
				theme = "dark"
			}
			out := cmd.OutOrStdout()
			if u.DisplayName != "" {
				_, _ = fmt.Fprintf(out, "name:   %s\n", u.DisplayName)
			}
			if u.Email != "" {
				_, _ = fmt.Fprintf(out, "email:  %s\n", u.Email)
			}
			_, _ = fmt.Fprintf(out, "titles: %s\n", u.TitlePreference)
			_, _ = fmt.Fprintf(out, "theme:  %s\n", theme)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "titles ai|manual",
		Short:     "Choose between generated and hand-written entry titles.",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{string(state.TitleAI), string(state.TitleManual)},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			p, err := state.ParseTitlePreference(args[0])
			if err != nil {
				return err
			}
			return env.App.User.SetTitlePreference(cmd.Context(), p)
		},
	})

	topLevel.AddCommand(cmd)
}

func addTheme(topLevel *cobra.Command, r *runtime) {
	cmd := &cobra.Command{
		Use:       "theme [dark|light]",
		Short:     "Switch between the dark and light theme.",
		Long:      "Switch between the dark and light theme. Without an argument the theme is toggled.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"dark", "light"},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var dark bool
			if len(args) == 0 {
				dark = env.App.Theme.Toggle(ctx)
			} else {
				switch args[0] {
				case "dark":
					dark = true
				case "light":
				default:
					return fmt.Errorf("unknown theme %q (must be dark or light)", args[0])
				}
				env.App.Theme.SetDark(ctx, dark)
			}
			if dark {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "theme: dark")
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "theme: light")
			}
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

func addLogout(topLevel *cobra.Command, r *runtime) {
	var yes bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget your profile, PINs and the entries on this device.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := r.load(cmd, gateUnlocked)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := r.prompt.Confirm("Log out and clear this device?")
				if err != nil || !ok {
					return err
				}
			}
			env.App.Logout(cmd.Context())
			_, _ = color.New(color.Faint).Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation.")
	topLevel.AddCommand(cmd)
}
