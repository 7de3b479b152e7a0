package main

import (
	"os"

	"github.com/partforge/partforge/internal/step"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// buildVersion is set at release time via -ldflags; defaults to "dev".
var buildVersion = "dev"

// NewRootCommand constructs partforge's root Cobra command and wires its
// global flags into a shared viper.Viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTFORGE")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "partforge",
		Short:         "Execute a parts lifecycle: pull, build, stage, prime",
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running with no subcommand primes, matching spec.md §6.2's
		// "prime (default)".
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, v, step.Prime, args)
		},
	}

	root.PersistentFlags().StringP("file", "f", "parts.yaml", "parts specification file")
	root.PersistentFlags().String("work-dir", "", "work directory (default: $PARTFORGE_WORK_DIR or ./parts_work)")
	root.PersistentFlags().String("target-arch", "", "target architecture (default: amd64)")
	root.PersistentFlags().Bool("plan-only", false, "print the planned actions and exit without executing")
	root.PersistentFlags().Bool("show-skipped", false, "include SKIP actions in --plan-only output")
	root.PersistentFlags().Bool("update", false, "request UPDATE actions instead of RERUN where valid")
	root.PersistentFlags().Bool("no-color", false, "disable colorized plan-only output")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	_ = v.BindPFlag("file", root.PersistentFlags().Lookup("file"))
	_ = v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag("work-dir", root.PersistentFlags().Lookup("work-dir"))
	_ = v.BindPFlag("target-arch", root.PersistentFlags().Lookup("target-arch"))

	v.SetConfigName(".partforge")
	v.SetConfigType("yaml")
	if cwd, err := os.Getwd(); err == nil {
		v.AddConfigPath(cwd)
	}
	_ = v.ReadInConfig() // absent config file is not an error

	root.AddCommand(newStepCommand(v, "pull"))
	root.AddCommand(newStepCommand(v, "build"))
	root.AddCommand(newStepCommand(v, "stage"))
	root.AddCommand(newStepCommand(v, "prime"))
	root.AddCommand(newCleanCommand(v))
	root.AddCommand(newCallbackCommand())

	return root
}
