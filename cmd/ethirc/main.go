// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ethirc drives the translation pipeline end to end: it reads a
// Standard-JSON compilation request, decomposes and specializes each
// contract's legacy assembly, lowers the result through a backend, and
// writes the enriched Standard-JSON response. It also exposes the
// linker's standalone `--link` surface and the `--recursive-process`
// subprocess entry point used for per-contract isolation.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ethir-go/ethirc/block"
	"github.com/ethir-go/ethirc/entry"
	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/internal/bigtag"
	"github.com/ethir-go/ethirc/interp"
	"github.com/ethir-go/ethirc/linker"
	"github.com/ethir-go/ethirc/nativeentry"
	"github.com/ethir-go/ethirc/object"
	"github.com/ethir-go/ethirc/project"
	"github.com/ethir-go/ethirc/specializer"
	"github.com/ethir-go/ethirc/standardjson"
)

const (
	flagTarget           = "target"
	flagNative           = "native"
	flagRecursiveProcess = "recursive-process"
	flagWorkers          = "workers"
)

func main() {
	log := logrus.New()

	app := &cli.App{
		Name:  "ethirc",
		Usage: "lowers EVM legacy assembly into a specialized Ethereal IR block graph",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: flagTarget, Value: "evm", Usage: "backend target: evm or eravm"},
			&cli.BoolFlag{Name: flagNative, Usage: "use the JIT-assembled entry dispatch stub where available (eravm only)"},
			&cli.BoolFlag{Name: flagRecursiveProcess, Usage: "internal: compile the single contract named by the first argument, reading its input from stdin"},
			&cli.IntFlag{Name: flagWorkers, Value: runtime.NumCPU(), Usage: "maximum number of contracts compiled concurrently"},
		}, linker.Flags()...),
		Action: func(ctx *cli.Context) error {
			return run(ctx, log)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("ethirc failed")
		os.Exit(1)
	}
}

func run(ctx *cli.Context, log *logrus.Logger) error {
	if ctx.Bool(flagRecursiveProcess) {
		return runRecursiveProcess(ctx)
	}
	if ctx.Bool(linker.FlagLink) {
		return runLink(ctx)
	}
	return runCompile(ctx, log)
}

// parseTarget resolves the --target flag into the entry.Target,
// rejecting --native outside the one backend that implements it.
func parseTarget(ctx *cli.Context) (entry.Target, error) {
	switch ctx.String(flagTarget) {
	case "evm", "":
		if ctx.Bool(flagNative) {
			return 0, fmt.Errorf("ethirc: --native has no effect on the evm target")
		}
		return entry.EVM, nil
	case "eravm":
		return entry.EraVM, nil
	default:
		return 0, fmt.Errorf("ethirc: unknown --target %q", ctx.String(flagTarget))
	}
}

// backends bundles the entry.Backend that actually lowers and invokes
// code with the interp.Backend that always backs it (interp implements
// object.Backend and linker.Backend too; nativeentry only wraps the
// entry-dispatch half, so Assemble/Link/UndefinedReferences always go
// straight to interp regardless of --native).
type backends struct {
	entry.Backend
	interp *interp.Backend
}

func backendFor(target entry.Target, native bool) backends {
	base := interp.NewBackend()
	if target == entry.EraVM && native {
		return backends{Backend: nativeentry.NewBackend(base), interp: base}
	}
	return backends{Backend: base, interp: base}
}

// runLink implements the §6 "Linker CLI surface": --link is exclusive
// with every compilation flag besides --target, which the linker never
// reads but accepts silently so a single invocation line can carry it
// without branching.
func runLink(ctx *cli.Context) error {
	target, err := parseTarget(ctx)
	if err != nil {
		return err
	}
	backend := backendFor(target, ctx.Bool(flagNative))

	linkerCLI := &linker.CLI{Backend: backend.interp}
	return linkerCLI.Run(ctx)
}

// runRecursiveProcess is the child side of project.Launcher: it reads
// one contract's decoded legacy assembly from stdin as JSON, compiles
// it, and writes the resulting bytecode to stdout. The parent process
// never interprets this payload itself; it only pipes bytes.
func runRecursiveProcess(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		return fmt.Errorf("ethirc: --recursive-process requires a contract path argument")
	}

	var req recursiveRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return fmt.Errorf("ethirc: reading recursive-process input: %w", err)
	}

	target, err := parseTarget(ctx)
	if err != nil {
		return err
	}
	backend := backendFor(target, ctx.Bool(flagNative))

	resp, err := compileOne(ctx.Args().First(), req, target, backend.Backend)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(resp)
}

// recursiveRequest is the JSON shape a Launcher.Call sends to a child
// --recursive-process invocation: the already-decoded legacy assembly
// for both segments.
type recursiveRequest struct {
	Deploy  []evmasm.Instruction `json:"deploy"`
	Runtime []evmasm.Instruction `json:"runtime,omitempty"`
}

type recursiveResponse struct {
	Deploy  string `json:"deploy"`
	Runtime string `json:"runtime,omitempty"`
}

// specializeContract decomposes both segments and specializes them
// against a single merged block map, so a Deploy-segment jump whose tag
// exceeds u32::MAX resolves directly into the Runtime block graph.
func specializeContract(deployInstrs, runtimeInstrs []evmasm.Instruction) (deployResult, runtimeResult *specializer.Result, err error) {
	deployBlocks, deployOrder, err := block.Decompose(evmasm.Deploy, deployInstrs)
	if err != nil {
		return nil, nil, fmt.Errorf("decomposing deploy segment: %w", err)
	}

	all := make(map[block.Key]*block.Block, len(deployBlocks))
	for k, v := range deployBlocks {
		all[k] = v
	}
	next := block.Next(deployOrder)

	var runtimeBlocks map[block.Key]*block.Block
	var runtimeOrder []block.Key
	if len(runtimeInstrs) > 0 {
		runtimeBlocks, runtimeOrder, err = block.Decompose(evmasm.Runtime, runtimeInstrs)
		if err != nil {
			return nil, nil, fmt.Errorf("decomposing runtime segment: %w", err)
		}
		for k, v := range runtimeBlocks {
			all[k] = v
		}
		for k, v := range block.Next(runtimeOrder) {
			next[k] = v
		}
	}

	deployEntry := block.Key{Segment: evmasm.Deploy, Tag: bigtag.FromUint64(0)}
	deployResult = specializer.Specialize(specializer.Input{Blocks: all, Next: next, Entry: deployEntry})
	if !deployResult.OK() {
		return nil, nil, fmt.Errorf("specializing deploy segment: %v", deployResult.Errors)
	}

	if len(runtimeInstrs) > 0 {
		runtimeEntry := block.Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(0)}
		runtimeResult = specializer.Specialize(specializer.Input{Blocks: all, Next: next, Entry: runtimeEntry})
		if !runtimeResult.OK() {
			return nil, nil, fmt.Errorf("specializing runtime segment: %v", runtimeResult.Errors)
		}
	}

	return deployResult, runtimeResult, nil
}

func compileOne(identifier string, req recursiveRequest, target entry.Target, backend entry.Backend) (*recursiveResponse, error) {
	deployResult, runtimeResult, err := specializeContract(req.Deploy, req.Runtime)
	if err != nil {
		return nil, fmt.Errorf("ethirc: %q: %w", identifier, err)
	}

	c := entry.Contract{Identifier: identifier, Deploy: deployResult, Runtime: runtimeResult}
	if err := entry.Lower(c, target, backend); err != nil {
		return nil, fmt.Errorf("ethirc: %q: %w", identifier, err)
	}

	deployBytecode, err := backend.Invoke(identifier, true)
	if err != nil {
		return nil, fmt.Errorf("ethirc: %q: invoking deploy segment: %w", identifier, err)
	}
	resp := &recursiveResponse{Deploy: hex.EncodeToString(deployBytecode)}

	if runtimeResult != nil {
		runtimeBytecode, err := backend.Invoke(identifier, false)
		if err != nil {
			return nil, fmt.Errorf("ethirc: %q: invoking runtime segment: %w", identifier, err)
		}
		resp.Runtime = hex.EncodeToString(runtimeBytecode)
	}
	return resp, nil
}

// runCompile implements the default compilation mode: read a
// Standard-JSON request from --standard-json, decode each contract's
// legacyAssembly, run it through the worker pool, and write the
// enriched Standard-JSON response to stdout.
func runCompile(ctx *cli.Context, log *logrus.Logger) error {
	path := ctx.String(linker.FlagStandardJSON)
	if path == "" {
		return cli.ShowAppHelp(ctx)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ethirc: reading %q: %w", path, err)
	}
	input, err := standardjson.Decode(data)
	if err != nil {
		return err
	}

	target, err := parseTarget(ctx)
	if err != nil {
		return err
	}
	backend := backendFor(target, ctx.Bool(flagNative))
	compile := project.NewEntryCompileFunc(target, backend.Backend)

	cfg := project.Config{Workers: ctx.Int(flagWorkers), Target: target}
	pool, err := project.New(context.Background(), cfg, 256, compile)
	if err != nil {
		return err
	}
	pool.SetLogger(log)

	contracts, err := buildContracts(input)
	if err != nil {
		return err
	}

	results, err := pool.Run(contracts)
	if err != nil {
		return err
	}

	out := standardjson.NewOutput()
	for id, res := range results {
		if isFactoryDependencyIdentifier(id) {
			// a synthesized factory-dependency sub-contract, never a
			// named entry of the original Standard-JSON input: it only
			// exists to be hashed into its creator's factory_dependencies.
			continue
		}
		path, name := splitIdentifier(id)
		if res.Err != nil {
			out.Errors = append(out.Errors, standardjson.OutputError{
				Severity:           "error",
				Message:            res.Err.Error(),
				ContractIdentifier: id,
			})
			continue
		}
		out.Put(path, name, contractOutputFrom(res, contracts[id], results))
	}

	encoded, err := standardjson.Encode(out)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(encoded, '\n'))
	return err
}

// factoryDependencySeparator joins a creator's identifier to a nested
// sub-assembly's .data key to synthesize that sub-contract's own
// project.Contract identifier. It is never valid inside a Standard-JSON
// path or contract name, so isFactoryDependencyIdentifier can tell the
// two apart without tracking a separate set.
const factoryDependencySeparator = "#"

func isFactoryDependencyIdentifier(id string) bool {
	return strings.Contains(id, factoryDependencySeparator)
}

// buildContracts decodes every contract's legacyAssembly into a
// project.Contract, keyed by "path:name" exactly as standardjson.Output
// and object identifiers are. Contracts with no evm.legacyAssembly
// entry (the Yul/ir_optimized pipeline, out of scope here) are
// skipped rather than erroring the whole run. Every nested factory-
// created sub-contract assembly found along the way becomes its own
// project.Contract, keyed by its creator's identifier plus
// factoryDependencySeparator and its .data key, and is recorded as a
// Dependencies entry on the creator so the pool's dependency-barrier
// scheduling compiles it first.
func buildContracts(input *standardjson.Input) (map[string]*project.Contract, error) {
	out := make(map[string]*project.Contract, len(input.Contracts))
	for path, byName := range input.Contracts {
		for name, ci := range byName {
			if len(ci.EVM.LegacyAssembly) == 0 {
				continue
			}
			id := path + ":" + name

			deployInstrs, runtimeInstrs, deps, err := decodeLegacyAssembly(ci.EVM.LegacyAssembly)
			if err != nil {
				return nil, fmt.Errorf("ethirc: %q: %w", id, err)
			}

			dependencies, err := addFactoryDependencies(out, id, deps)
			if err != nil {
				return nil, err
			}

			deployResult, runtimeResult, err := specializeContract(deployInstrs, runtimeInstrs)
			if err != nil {
				return nil, fmt.Errorf("ethirc: %q: %w", id, err)
			}

			all := make([]evmasm.Instruction, 0, len(deployInstrs)+len(runtimeInstrs))
			all = append(all, deployInstrs...)
			all = append(all, runtimeInstrs...)

			out[id] = &project.Contract{
				Identifier:   id,
				Dependencies: dependencies,
				Source:       entry.Contract{Identifier: id, Deploy: deployResult, Runtime: runtimeResult},
				Warnings:     evmasm.DetectWarnings(all),
			}
		}
	}
	return out, nil
}

// addFactoryDependencies specializes every nested sub-contract in deps,
// registers it into out under its synthesized identifier, and returns
// the creator's Dependencies list in .data-key order.
func addFactoryDependencies(out map[string]*project.Contract, creatorID string, deps map[string]factoryDependency) ([]string, error) {
	if len(deps) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(deps))
	for key := range deps {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dependencies := make([]string, 0, len(keys))
	for _, key := range keys {
		dep := deps[key]
		depID := creatorID + factoryDependencySeparator + key

		deployResult, runtimeResult, err := specializeContract(dep.Deploy, dep.Runtime)
		if err != nil {
			return nil, fmt.Errorf("ethirc: %q: factory dependency %q: %w", creatorID, key, err)
		}

		all := make([]evmasm.Instruction, 0, len(dep.Deploy)+len(dep.Runtime))
		all = append(all, dep.Deploy...)
		all = append(all, dep.Runtime...)

		out[depID] = &project.Contract{
			Identifier: depID,
			Source:     entry.Contract{Identifier: depID, Deploy: deployResult, Runtime: runtimeResult},
			Warnings:   evmasm.DetectWarnings(all),
		}
		dependencies = append(dependencies, depID)
	}
	return dependencies, nil
}

func splitIdentifier(id string) (path, name string) {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == ':' {
			return id[:i], id[i+1:]
		}
	}
	return id, ""
}

// contractOutputFrom builds the enriched Standard-JSON entry for a
// successfully compiled contract. Failed contracts never reach here;
// runCompile records them as OutputError entries instead: errors are
// reported per contract, not folded into its bytecode fields.
//
// Hash is object.Object.Keccak256() over the contract's own deploy
// bytecode, and FactoryDeps maps each declared dependency's own
// deploy-bytecode hash, hex-encoded, to that dependency's synthesized
// identifier; a dependency with no result or a failed one is left
// out: solc's
// legacyAssembly data items carry no fully-qualified contract name of
// their own (DESIGN.md notes this as a scope limitation), so the
// synthesized identifier is the most specific name available.
func contractOutputFrom(res project.Result, c *project.Contract, results map[string]project.Result) *standardjson.ContractOutput {
	out := &standardjson.ContractOutput{
		EVM: standardjson.ContractEVMOutput{
			Bytecode: standardjson.ContractBytecode{Object: hex.EncodeToString(res.Deploy)},
		},
		Hash: hex.EncodeToString(hashOf(res.Deploy)),
	}

	if c == nil || len(c.Dependencies) == 0 {
		return out
	}

	out.FactoryDeps = make(map[string]string, len(c.Dependencies))
	for _, depID := range c.Dependencies {
		dep, ok := results[depID]
		if !ok || dep.Err != nil {
			continue
		}
		out.FactoryDeps[hex.EncodeToString(hashOf(dep.Deploy))] = depID
	}
	return out
}

// hashOf computes the factory-dependency identifier and Standard-JSON
// "hash" field for a contract's deploy bytecode.
func hashOf(bytecode []byte) []byte {
	h := (&object.Object{Bytecode: bytecode}).Keccak256()
	return h[:]
}
