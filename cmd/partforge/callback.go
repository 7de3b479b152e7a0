package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newCallbackCommand implements the scriptlet control-API re-entry mode
// (spec.md §9's "small companion binary"): `partforge callback <function>
// [json-args]` writes one call onto $PARTFORGE_CALL_FIFO and blocks on
// $PARTFORGE_FEEDBACK_FIFO for the engine's acknowledgement or error.
func newCallbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "callback <function> [json-args]",
		Short:  "Invoke a step action from within a scriptlet (internal)",
		Hidden: true,
		Args:   cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			function := args[0]
			var callArgs map[string]interface{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &callArgs); err != nil {
					return fmt.Errorf("parsing callback args: %w", err)
				}
			}

			callPath := os.Getenv("PARTFORGE_CALL_FIFO")
			feedbackPath := os.Getenv("PARTFORGE_FEEDBACK_FIFO")
			if callPath == "" || feedbackPath == "" {
				return fmt.Errorf("callback: PARTFORGE_CALL_FIFO/PARTFORGE_FEEDBACK_FIFO not set; not running inside a scriptlet")
			}

			payload, err := json.Marshal(map[string]interface{}{"function": function, "args": callArgs})
			if err != nil {
				return err
			}

			callFIFO, err := os.OpenFile(callPath, os.O_WRONLY, 0)
			if err != nil {
				return err
			}
			if _, err := callFIFO.Write(append(payload, '\n')); err != nil {
				callFIFO.Close()
				return err
			}
			callFIFO.Close()

			feedbackFIFO, err := os.OpenFile(feedbackPath, os.O_RDONLY, 0)
			if err != nil {
				return err
			}
			defer feedbackFIFO.Close()
			line, err := bufio.NewReader(feedbackFIFO).ReadString('\n')
			if err != nil {
				return err
			}
			if line != "\n" {
				return fmt.Errorf("%s", line)
			}
			return nil
		},
	}
}
