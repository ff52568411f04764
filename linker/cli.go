// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linker

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v2"
)

// Flag names for the linker CLI surface. cmd/ethirc wires
// these into its own urfave/cli/v2 app alongside the compiler's flags;
// CLI.Run enforces the "exclusive with all compilation flags other than
// --target" rule itself so cmd/ethirc doesn't have to know the details.
const (
	FlagLink         = "link"
	FlagLibraries    = "libraries"
	FlagStandardJSON = "standard-json"
)

// Flags returns the urfave/cli/v2 flags the linker surface needs.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: FlagLink, Usage: "run the linker over one or more bytecode files"},
		&cli.StringSliceFlag{Name: FlagLibraries, Usage: "<path>:<name>=<address> library to resolve, repeatable"},
		&cli.StringFlag{Name: FlagStandardJSON, Usage: "read bytecode paths and libraries from a Standard-JSON-shaped linker input file instead of positional arguments"},
	}
}

// standardJSONInput is the minimal Standard-JSON-shaped document the
// `--link --standard-json` mode reads: bytecode keyed by path, plus the
// same library argument strings --libraries accepts. It is deliberately
// narrower than standardjson.Input, which describes the full compiler
// request; the linker-only entry point has no use for sources or
// output selection.
type standardJSONInput struct {
	Bytecodes map[string]string `json:"bytecodes"`
	Libraries []string          `json:"libraries,omitempty"`
}

// CLI wires the linker's Link/ParseLibraries pipeline into the
// `--link` surface on top of a concrete Backend.
type CLI struct {
	Backend Backend
	Stdout  *os.File // defaults to os.Stdout when nil
}

func (c *CLI) stdout() *os.File {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

// Run executes the linker surface given an already-parsed cli.Context.
// It is the Action cmd/ethirc's "--link" branch dispatches to, and it
// rejects any set flag other than the linker's own and --target.
func (c *CLI) Run(ctx *cli.Context) error {
	for _, name := range ctx.LocalFlagNames() {
		switch name {
		case FlagLink, FlagLibraries, FlagStandardJSON, "target":
		default:
			return fmt.Errorf("linker: --%s cannot be combined with --%s", name, FlagLink)
		}
	}

	bytecodes := make(map[string][]byte)
	var libraryArgs []string

	if sj := ctx.String(FlagStandardJSON); sj != "" {
		data, err := os.ReadFile(sj)
		if err != nil {
			return fmt.Errorf("linker: reading %q: %w", sj, err)
		}
		var input standardJSONInput
		if err := json.Unmarshal(data, &input); err != nil {
			return fmt.Errorf("linker: parsing %q: %w", sj, err)
		}
		for path, hexBytes := range input.Bytecodes {
			decoded, err := hex.DecodeString(strings.TrimPrefix(hexBytes, "0x"))
			if err != nil {
				return fmt.Errorf("linker: %q: decoding bytecode: %w", path, err)
			}
			bytecodes[path] = decoded
		}
		libraryArgs = input.Libraries
	} else {
		for _, path := range ctx.Args().Slice() {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("linker: reading %q: %w", path, err)
			}
			decoded, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(string(data), "0x")))
			if err != nil {
				return fmt.Errorf("linker: %q: decoding bytecode: %w", path, err)
			}
			bytecodes[path] = decoded
		}
		libraryArgs = ctx.StringSlice(FlagLibraries)
	}

	libraries, err := ParseLibraries(libraryArgs)
	if err != nil {
		return err
	}

	out, err := Link(bytecodes, libraries, c.Backend)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("linker: encoding output: %w", err)
	}
	_, err = c.stdout().Write(append(encoded, '\n'))
	return err
}
