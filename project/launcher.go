// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package project

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Launcher re-invokes the current executable with --recursive-process
// to compile a single contract out-of-process, spawning the current
// executable with --recursive-process and piping its input and output.
// Executable defaults to os.Executable() at call time; tests
// override it to point at a stand-in binary instead of re-execing the
// test binary itself.
type Launcher struct {
	// Executable overrides the binary Call spawns. Empty means the
	// currently running executable, resolved lazily so callers never
	// have to touch os.Executable themselves.
	Executable string
}

// Call spawns Executable (or the running binary) with "--recursive-process
// path", writes input to its stdin, and returns its stdout. A non-zero
// exit is a fatal error for this one contract; sibling contracts are
// unaffected by the caller.
func (l *Launcher) Call(ctx context.Context, path string, input []byte) ([]byte, error) {
	executable := l.Executable
	if executable == "" {
		resolved, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("project: resolving current executable: %w", err)
		}
		executable = resolved
	}

	cmd := exec.CommandContext(ctx, executable, "--recursive-process", path)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("project: %q subprocess failed for %q: %w\nstdout: %s\nstderr: %s",
			executable, path, err, stdout.String(), stderr.String())
	}

	return stdout.Bytes(), nil
}
