package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// CommandRunner executes a single shell command with an explicit environment.
// The production implementation shells out; tests inject fakes.
type CommandRunner interface {
	RunCommand(ctx context.Context, command string, env pipeline.Env, dir string, output io.Writer) error
}

// ShellRunner runs commands through `sh -c`. The entry's merged environment
// is appended after the inherited process environment so overrides win while
// PATH and friends keep working.
type ShellRunner struct {
	// Shell overrides the interpreter, default "sh".
	Shell string
}

func (s ShellRunner) RunCommand(ctx context.Context, command string, env pipeline.Env, dir string, output io.Writer) error {
	shell := s.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env.Environ()...)
	if output == nil {
		output = io.Discard
	}
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("command %q: %w", truncateCommand(command), err)
	}
	return nil
}

// truncateCommand keeps error strings readable for long scripts.
func truncateCommand(c string) string {
	c = strings.TrimSpace(c)
	if len(c) > 80 {
		return c[:77] + "..."
	}
	return c
}
