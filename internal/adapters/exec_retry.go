package adapters

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"tagmigrate/internal/shared"
)

const defaultCommandRetries = 2
const defaultCommandRetryDelay = 5 * time.Second

// commandRunner executes external version-control commands with bounded
// retries. Remote source-repository calls in particular can fail
// transiently.
type commandRunner struct {
	Dir        string
	Env        []string
	Retries    int
	RetryDelay time.Duration
}

func newCommandRunner(dir string) commandRunner {
	return commandRunner{
		Dir:        dir,
		Retries:    defaultCommandRetries,
		RetryDelay: defaultCommandRetryDelay,
	}
}

// run retries on failure up to the configured attempt count.
func (r commandRunner) run(ctx context.Context, name string, args ...string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Str("command", name).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("retrying failed command")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.RetryDelay):
			}
		}
		output, err := r.execute(ctx, name, args)
		if err == nil {
			return output, nil
		}
		lastErr = err
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("%s failed after %d attempts", name, r.Retries+1)).
		WithCause(lastErr)
}

// runOnce executes without retries. State-changing commands must not be
// replayed blindly after a partial failure.
func (r commandRunner) runOnce(ctx context.Context, name string, args ...string) (string, error) {
	return r.execute(ctx, name, args)
}

func (r commandRunner) execute(ctx context.Context, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debug().Str("command", name).Strs("args", args).Msg("executing")
	if err := cmd.Run(); err != nil {
		return "", shared.CommandError(stderr.Bytes(), err)
	}
	return stdout.String(), nil
}
