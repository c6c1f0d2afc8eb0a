// Package wakey_probe runs the system ping binary against an operator supplied host.
package wakey_probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	wakey_log "wakey-bot/wakey/log"
)

const (
	DefaultBinary = "ping"

	// Count is the number of echo requests per probe.
	Count = 5
)

type Result struct {
	Output    string
	Succeeded bool
}

// Runner launches the probe binary directly with an argument vector. The
// target is one argv element after "--", so it is never seen by a shell nor
// parsed as an option.
type Runner struct {
	Binary string
	Logger *wakey_log.Logger
}

func NewRunner(logger *wakey_log.Logger) *Runner {
	return &Runner{
		Binary: DefaultBinary,
		Logger: logger,
	}
}

func (r *Runner) getLogger() *wakey_log.Logger {
	if r.Logger == nil {
		return wakey_log.Discard()
	}
	return r.Logger
}

// Args returns the argument vector passed to the probe binary.
func Args(target string) []string {
	return []string{"-c", strconv.Itoa(Count), "--", target}
}

// Run returns an error only when the probe could not be started or did not
// exit normally. A probe that ran and reported the host unreachable is a
// Result with Succeeded false; its output is stderr, or stdout when stderr
// is empty.
func (r *Runner) Run(ctx context.Context, target string) (Result, error) {
	logger := r.getLogger()
	binary := r.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, Args(target)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Info("Sending ping to %q", target)
	err := cmd.Run()
	if err == nil {
		logger.Info("ping succeeded.")
		return Result{Output: stdout.String(), Succeeded: true}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || !exitErr.Exited() {
		logger.Error("Could not execute ping command: %v", err)
		return Result{}, fmt.Errorf("execute %s: %w", binary, err)
	}

	output := stderr.String()
	if output == "" {
		output = stdout.String()
	}
	logger.Error("Ping unsuccessful (exit %d): %s", exitErr.ExitCode(), output)

	return Result{Output: output, Succeeded: false}, nil
}
