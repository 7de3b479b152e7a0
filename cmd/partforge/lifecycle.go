package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/partforge/partforge/internal/config"
	"github.com/partforge/partforge/internal/engine"
	"github.com/partforge/partforge/internal/logging"
	"github.com/partforge/partforge/internal/step"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newStepCommand builds the pull/build/stage/prime subcommands, which all
// share the same plan-then-execute flow against a different target step.
func newStepCommand(v *viper.Viper, name string) *cobra.Command {
	target := stepFor(name)
	return &cobra.Command{
		Use:   name + " [part]...",
		Short: "Run the lifecycle up to " + name,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, v, target, args)
		},
	}
}

func stepFor(name string) step.Step {
	switch name {
	case "pull":
		return step.Pull
	case "build":
		return step.Build
	case "stage":
		return step.Stage
	default:
		return step.Prime
	}
}

func loadEngine(cmd *cobra.Command, v *viper.Viper) (*engine.Engine, error) {
	for _, name := range []string{"file", "work-dir", "target-arch", "debug"} {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = v.BindPFlag(name, f)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{Debug: v.GetBool("debug")})
	if err != nil {
		return nil, err
	}

	return engine.New(cfg, nil, nil, nil, logger)
}

func runLifecycle(cmd *cobra.Command, v *viper.Viper, target step.Step, partNames []string) error {
	eng, err := loadEngine(cmd, v)
	if err != nil {
		return err
	}

	preferUpdate, _ := cmd.Flags().GetBool("update")

	actions, err := eng.Plan(target, partNames, preferUpdate)
	if err != nil {
		return err
	}

	planOnly, _ := cmd.Flags().GetBool("plan-only")
	if planOnly {
		printPlan(cmd, actions)
		return nil
	}

	_, err = eng.Run(cmd.Context(), target, partNames, preferUpdate)
	return err
}

// printPlan renders the plan-only output per spec.md §6.2: "<Verb>
// <part_name>[ (<reason>)]", one per line, via tablewriter when attached to
// a terminal and colorized with fatih/color, falling back to plain lines
// for pipes/redirects.
func printPlan(cmd *cobra.Command, actions []step.Action) {
	showSkipped, _ := cmd.Flags().GetBool("show-skipped")
	noColor, _ := cmd.Flags().GetBool("no-color")

	out := cmd.OutOrStdout()
	tty := false
	if f, ok := out.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			tty = true
		}
	}

	verbColor := func(k step.ActionKind) *color.Color {
		switch k {
		case step.Run, step.Update:
			return color.New(color.FgYellow)
		case step.Rerun:
			return color.New(color.FgRed)
		case step.Skip:
			return color.New(color.FgHiBlack)
		default:
			return color.New()
		}
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"action", "part", "reason"})
	table.SetAutoWrapText(false)
	any := false
	for _, a := range actions {
		if a.Kind == step.Skip && !showSkipped {
			continue
		}
		any = true
		verb := a.Verb()
		if !noColor {
			verb = verbColor(a.Kind).Sprint(verb)
		}
		if !tty {
			line := verb + " " + a.PartName
			if a.Reason != "" {
				line += " (" + a.Reason + ")"
			}
			fmt.Fprintln(out, line)
			continue
		}
		table.Append([]string{verb, a.PartName, a.Reason})
	}
	if any {
		if tty {
			table.Render()
		}
		return
	}
	fmt.Fprintln(out, "nothing to do")
}

func newCleanCommand(v *viper.Viper) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "clean [part]...",
		Short: "Remove persisted state and on-disk artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd, v)
			if err != nil {
				return err
			}
			return eng.Clean(stepFor(target), args)
		},
	}
	cmd.Flags().StringVar(&target, "step", "pull", "earliest step to clean (pull, build, stage, prime)")
	return cmd
}
