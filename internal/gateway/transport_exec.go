package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"tipbridge/internal/custom_err"
)

// ExecTransport runs `<binary> <args...> <operation>` per call, writing the request as JSON to stdin
// and reading the reply envelope from stdout.
type ExecTransport struct {
	binary string
	args   []string
	dir    string
}

func NewExecTransport(binary string, args []string, dir string) *ExecTransport {
	return &ExecTransport{binary: binary, args: args, dir: dir}
}

func (t *ExecTransport) Do(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	args := append(append([]string{}, t.args...), string(req.Operation()))
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Dir = t.dir
	cmd.Stdin = bytes.NewReader(body)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("exec %s: %w", req.Operation(), ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		var pathErr *fs.PathError
		switch {
		case errors.As(err, &exitErr):
			// engine scripts may still print an error envelope before exiting non-zero
			if stdout.Len() > 0 {
				return stdout.Bytes(), nil
			}
			return nil, fmt.Errorf("%w: exit %d: %s", custom_err.ErrProtocol, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		case errors.Is(err, exec.ErrNotFound), errors.As(err, &pathErr):
			return nil, fmt.Errorf("%w: %v", custom_err.ErrConnection, err)
		default:
			return nil, fmt.Errorf("exec %s: %w", req.Operation(), err)
		}
	}
	return stdout.Bytes(), nil
}
