// Command partforge drives a parts specification through PULL, BUILD,
// STAGE and PRIME (spec.md §6.2). Built on spf13/cobra + spf13/pflag, the
// way bartekus-stagecraft's cortex CLI and jmylchreest-tvarr compose their
// own root command.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/partforge/partforge/internal/ctxsignal"
	"github.com/partforge/partforge/internal/errs"
)

func main() {
	ctx, cancel := ctxsignal.WithInterrupt(context.Background())
	defer cancel()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		var ec errs.ExitCoder
		if errors.As(err, &ec) {
			fmt.Fprintf(os.Stderr, "partforge: %v\n", err)
			os.Exit(ec.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "partforge: %v\n", err)
		os.Exit(errs.ExitOSError)
	}
}
