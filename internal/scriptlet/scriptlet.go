// Package scriptlet runs user shell fragments ("scriptlets") with a
// FIFO-mediated control-API back channel that lets the scriptlet invoke the
// engine's built-in step actions (spec.md §4.9, §6.6). Grounded on
// craft_parts/executor/scriptlets.py; FIFOs are created with
// golang.org/x/sys/unix.Mkfifo the way distr1-distri reaches for the unix
// package directly elsewhere (internal/build/userns.go).
package scriptlet

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/partforge/partforge/internal/errs"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// Call is one control-API invocation read off the call FIFO.
type Call struct {
	Function string                 `json:"function"`
	Args     map[string]interface{} `json:"args"`
}

// Dispatcher handles one decoded Call, returning an error to abort the
// scriptlet with that message written back over the feedback FIFO.
type Dispatcher func(Call) error

var validFunctions = map[string]bool{"pull": true, "build": true, "stage": true, "prime": true}

// Run executes `set -e` followed by script via `/bin/sh -c` in the given
// cwd, passing env through the process environment, and services the
// control-API FIFOs until the process exits.
func Run(name, script string, env map[string]string, cwd string, dispatch Dispatcher) error {
	tmpDir, err := os.MkdirTemp("", "partforge-scriptlet-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	callPath := filepath.Join(tmpDir, "call_fifo")
	feedbackPath := filepath.Join(tmpDir, "feedback_fifo")
	if err := unix.Mkfifo(callPath, 0o600); err != nil {
		return xerrors.Errorf("mkfifo %s: %w", callPath, err)
	}
	if err := unix.Mkfifo(feedbackPath, 0o600); err != nil {
		return xerrors.Errorf("mkfifo %s: %w", feedbackPath, err)
	}

	// Both FIFOs are opened RDWR so that writers never block waiting for a
	// reader to show up (spec.md §4.9 step 1).
	callFIFO, err := os.OpenFile(callPath, os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer callFIFO.Close()
	feedbackFIFO, err := os.OpenFile(feedbackPath, os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer feedbackFIFO.Close()

	self, err := os.Executable()
	if err != nil {
		self = "partforge"
	}

	fullEnv := os.Environ()
	for k, v := range env {
		fullEnv = append(fullEnv, k+"="+v)
	}
	fullEnv = append(fullEnv,
		"PARTFORGE_CALL_FIFO="+callPath,
		"PARTFORGE_FEEDBACK_FIFO="+feedbackPath,
		"PARTFORGE_INTERPRETER="+self,
	)

	body := "set -e\n" + script
	cmd := exec.Command("/bin/sh", "-c", body)
	cmd.Dir = cwd
	cmd.Env = fullEnv
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return xerrors.Errorf("starting scriptlet %q: %w", name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// The engine polls the call FIFO roughly every 100ms while the
	// scriptlet is alive (spec.md §4.9 step 4); in Go that polling loop is
	// a dedicated reader goroutine feeding a channel, rather than a
	// blocking read interleaved with a timer on the same goroutine.
	lines := make(chan string)
	readErrs := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(callFIFO)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				lines <- line
			}
			if err != nil {
				readErrs <- err
				return
			}
		}
	}()

	for {
		select {
		case waitErr := <-done:
			if waitErr != nil {
				if exitErr, ok := waitErr.(*exec.ExitError); ok {
					return errs.ScriptletRunError(name, exitErr.ExitCode())
				}
				return errs.ScriptletRunError(name, -1)
			}
			return nil
		case line := <-lines:
			if handleErr := handleLine(name, line, dispatch, feedbackFIFO); handleErr != nil {
				feedbackFIFO.WriteString(handleErr.Error() + "\n")
				cmd.Process.Kill()
				<-done
				return handleErr
			}
		case <-readErrs:
			// Call FIFO closed/errored; fall back to waiting on the
			// scriptlet process itself.
			waitErr := <-done
			if waitErr != nil {
				if exitErr, ok := waitErr.(*exec.ExitError); ok {
					return errs.ScriptletRunError(name, exitErr.ExitCode())
				}
				return errs.ScriptletRunError(name, -1)
			}
			return nil
		case <-time.After(100 * time.Millisecond):
			// idle tick, matching the original's polling cadence
		}
	}
}

func handleLine(scriptletName, line string, dispatch Dispatcher, feedback *os.File) error {
	var call Call
	if err := json.Unmarshal([]byte(line), &call); err != nil {
		return errs.InternalError("%q scriptlet called a function with invalid json: %s", scriptletName, line)
	}
	if call.Function == "" {
		return errs.InternalError("%q scriptlet missing attribute \"function\"", scriptletName)
	}
	if !validFunctions[call.Function] {
		return errs.InvalidControlAPICall(call.Function)
	}
	if dispatch != nil {
		if err := dispatch(call); err != nil {
			return fmt.Errorf("%s: %w", call.Function, err)
		}
	}
	_, err := feedback.WriteString("\n")
	return err
}
