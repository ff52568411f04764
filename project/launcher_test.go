// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package project

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

// scriptExecutable writes a tiny shell script that ignores its
// arguments and runs body against stdin, returning its path. Launcher
// always appends "--recursive-process <path>" itself, so the stand-in
// binary here must not care what argv it was given.
func scriptExecutable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLauncherCallRoundTripsStdinToStdout(t *testing.T) {
	l := &Launcher{Executable: scriptExecutable(t, "cat")}
	out, err := l.Call(context.Background(), "a.sol:A", []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte("hello")) {
		t.Fatalf("got %q", out)
	}
}

func TestLauncherCallReportsNonZeroExit(t *testing.T) {
	l := &Launcher{Executable: scriptExecutable(t, "exit 1")}
	if _, err := l.Call(context.Background(), "a.sol:A", nil); err == nil {
		t.Fatal("expected an error")
	}
}
