// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pdiddy/doc-improver/pkg/types"
)

const defaultTimeout = 2 * time.Minute

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

var defaultExec executor = osExecutor{}

// pandoc wraps the external conversion tool. Each invocation is stateless
// given its inputs; concurrency safety comes from per-session working
// directories, not from locking here.
type pandoc struct {
	bin     string
	timeout time.Duration
	exec    executor
}

func newPandoc(cfg types.ConversionConfig, exec executor) (*pandoc, error) {
	bin := cfg.PandocPath
	if bin == "" {
		bin = "pandoc"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("conversion tool %q not found on PATH: %w", bin, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &pandoc{bin: bin, timeout: timeout, exec: exec}, nil
}

// run invokes the tool inside dir with a timeout, returning stdout. Tool
// failures come back as conversion errors carrying the tool's diagnostic.
func (p *pandoc) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stdout, stderr, err := p.exec.Run(ctx, dir, p.bin, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, types.Ef(types.KindConversionError, "conversion tool timed out after %s", p.timeout)
		}
		return nil, types.E(types.KindConversionError, diagnostic(stderr), err)
	}
	return stdout, nil
}

// diagnostic condenses tool stderr into a single safe message line.
func diagnostic(stderr []byte) string {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return "conversion tool failed"
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	const maxLen = 300
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return "conversion tool failed: " + msg
}
