// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package project orchestrates compiling every contract of a
// compilation unit concurrently, honoring the factory-dependency
// partial order: a contract that CREATEs another cannot finish
// compiling until that dependency already has. It runs a
// dependency-satisfied worklist that reschedules itself after every
// completion, using
// golang.org/x/sync/errgroup for the worker pool and
// github.com/hashicorp/golang-lru/v2 to cache already-compiled
// contracts across repeated Run calls in long-lived processes (a
// language server, a batch driver watching several compilation units).
package project

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethir-go/ethirc/entry"
	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/object"
)

// Contract is one unit of work: the specialized block graph entry.Lower
// expects, the identifiers of the factory dependencies (contracts it
// CREATEs) that must finish compiling first, and the suppressible
// warnings (§7) already detected against its source instructions.
type Contract struct {
	Identifier   string
	Dependencies []string
	Source       entry.Contract
	Warnings     []evmasm.Warning
}

// Result is the outcome of compiling one Contract: either Deploy/
// Runtime bytecode, or Err naming why compilation did not complete
// (including a failed dependency, which is treated as this contract's
// own failure rather than silently dropping it from the output).
// Warnings carries the Contract's detected warnings through for
// aggregated reporting once the whole run has resolved.
type Result struct {
	Identifier string
	Deploy     []byte
	Runtime    []byte
	Warnings   []evmasm.Warning
	Err        error
}

// Config configures a Pool's worker execution. Workers caps the number
// of contracts compiled concurrently (0 or less means unlimited; New
// only calls errgroup.SetLimit for a positive value). WorkerStackSize
// mirrors the original
// implementation's WORKER_THREAD_STACK_SIZE: Go exposes no
// per-goroutine stack reservation, since goroutine stacks already grow
// on demand, so this instead raises the process-wide ceiling
// debug.SetMaxStack enforces to at least this size as each worker
// starts. Target
// names the backend the Pool's CompileFunc was built to lower against;
// Pool itself does not dispatch on it, but carries it so callers need
// not thread the same value through two separate constructors.
type Config struct {
	Workers         int
	WorkerStackSize int
	Target          entry.Target
}

// DefaultWorkerStackSize is the goroutine stack ceiling New installs
// when a Config leaves WorkerStackSize at zero.
const DefaultWorkerStackSize = 16 << 20

// CompileFunc performs the actual lowering and codegen for one
// contract, given the already-resolved results of its dependencies.
type CompileFunc func(ctx context.Context, c *Contract, dependencies map[string]Result) (Result, error)

// NewEntryCompileFunc adapts entry.Lower and backend.Invoke into a
// CompileFunc: it lowers c.Source into backend under target, then
// invokes the deploy segment (and the runtime segment, if present) to
// obtain concrete bytecode.
func NewEntryCompileFunc(target entry.Target, backend entry.Backend) CompileFunc {
	return func(ctx context.Context, c *Contract, dependencies map[string]Result) (Result, error) {
		if err := entry.Lower(c.Source, target, backend); err != nil {
			return Result{}, err
		}
		deploy, err := backend.Invoke(c.Identifier, true)
		if err != nil {
			return Result{}, fmt.Errorf("project: %q: invoking deploy segment: %w", c.Identifier, err)
		}
		res := Result{Identifier: c.Identifier, Deploy: deploy}
		if c.Source.Runtime != nil {
			runtime, err := backend.Invoke(c.Identifier, false)
			if err != nil {
				return Result{}, fmt.Errorf("project: %q: invoking runtime segment: %w", c.Identifier, err)
			}
			res.Runtime = runtime
		}
		return res, nil
	}
}

// Pool runs CompileFunc over a batch of Contracts with bounded
// concurrency, resolving the dependency partial order automatically.
type Pool struct {
	compile CompileFunc
	group   *errgroup.Group
	ctx     context.Context
	cache   *lru.Cache[string, Result]
	log     *logrus.Logger
	cfg     Config

	mu      sync.Mutex
	pending map[string]*Contract
	results map[string]Result
}

// SetLogger installs the structured logger Pool reports per-contract
// compilation outcomes through (§5, §7 warning accumulation). A nil
// logger (the default) disables this reporting entirely.
func (p *Pool) SetLogger(log *logrus.Logger) { p.log = log }

// New returns a Pool configured by cfg, caching up to cacheSize compiled
// results by identifier across calls to Run. A zero cfg.WorkerStackSize
// installs DefaultWorkerStackSize.
func New(ctx context.Context, cfg Config, cacheSize int, compile CompileFunc) (*Pool, error) {
	cache, err := lru.New[string, Result](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("project: building result cache: %w", err)
	}
	if cfg.WorkerStackSize <= 0 {
		cfg.WorkerStackSize = DefaultWorkerStackSize
	}
	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		group.SetLimit(cfg.Workers)
	}
	return &Pool{compile: compile, group: group, ctx: groupCtx, cache: cache, cfg: cfg}, nil
}

// runWithStack raises the process-wide goroutine stack ceiling to at
// least size via debug.SetMaxStack before running fn. debug.SetMaxStack
// applies process-wide rather than per-goroutine, so this call is
// idempotent and safe to issue once per worker launch.
func runWithStack(size int, fn func()) {
	if size > 0 {
		if prev := debug.SetMaxStack(size); prev > size {
			debug.SetMaxStack(prev)
		}
	}
	fn()
}

// Run compiles every contract in contracts, blocking until all of them
// (and everything they depend on, transitively) have finished, and
// returns every Result keyed by identifier. A dependency cycle leaves
// its members permanently pending; Run reports that as an error rather
// than hanging forever.
func (p *Pool) Run(contracts map[string]*Contract) (map[string]Result, error) {
	p.mu.Lock()
	p.pending = make(map[string]*Contract, len(contracts))
	for id, c := range contracts {
		p.pending[id] = c
	}
	p.results = make(map[string]Result, len(contracts))
	p.mu.Unlock()

	p.scheduleReady()

	if err := p.group.Wait(); err != nil {
		return p.results, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) > 0 {
		stuck := make([]string, 0, len(p.pending))
		for id := range p.pending {
			stuck = append(stuck, id)
		}
		return p.results, fmt.Errorf("project: unresolved dependency cycle among %v", stuck)
	}
	p.printWarningsLocked()
	return p.results, nil
}

// printWarningsLocked reports each compiled contract's suppressible §7
// warning categories through the logrus sink, one aggregated line per
// contract, after the whole run has resolved rather than interleaved
// with per-contract compile logging. Callers must hold p.mu.
func (p *Pool) printWarningsLocked() {
	if p.log == nil {
		return
	}
	for id, res := range p.results {
		if res.Err != nil || len(res.Warnings) == 0 {
			continue
		}
		obj := &object.Object{Identifier: id, Warnings: res.Warnings}
		p.log.WithFields(logrus.Fields{
			"contract": id,
			"stage":    "warnings",
		}).Warn(strings.Join(obj.SortedWarningCategories(), ", "))
	}
}

// scheduleReady moves every pending contract whose dependencies have
// all resolved onto the worker pool, and is called again after each
// completion so newly unblocked contracts get picked up without a
// separate scheduler goroutine.
func (p *Pool) scheduleReady() {
	p.mu.Lock()
	var ready []*Contract
	for id, c := range p.pending {
		if p.dependenciesResolvedLocked(c) {
			ready = append(ready, c)
			delete(p.pending, id)
		}
	}
	p.mu.Unlock()

	for _, c := range ready {
		c := c
		p.group.Go(func() error {
			runWithStack(p.cfg.WorkerStackSize, func() { p.evaluate(c) })
			return nil
		})
	}
}

func (p *Pool) dependenciesResolvedLocked(c *Contract) bool {
	for _, dep := range c.Dependencies {
		if _, ok := p.results[dep]; !ok {
			return false
		}
	}
	return true
}

// evaluate compiles a single contract, assuming its dependencies are
// already resolved, then stores the result and re-runs the scheduler.
func (p *Pool) evaluate(c *Contract) {
	if cached, ok := p.cache.Get(c.Identifier); ok {
		p.storeResult(c.Identifier, cached)
		return
	}

	p.mu.Lock()
	deps := make(map[string]Result, len(c.Dependencies))
	for _, dep := range c.Dependencies {
		deps[dep] = p.results[dep]
	}
	p.mu.Unlock()

	for name, dep := range deps {
		if dep.Err != nil {
			p.storeResult(c.Identifier, Result{
				Identifier: c.Identifier,
				Err:        fmt.Errorf("project: %q: dependency %q failed: %w", c.Identifier, name, dep.Err),
			})
			return
		}
	}

	start := time.Now()
	res, err := p.compile(p.ctx, c, deps)
	if err != nil {
		res = Result{Identifier: c.Identifier, Err: err}
	} else {
		res.Identifier = c.Identifier
		res.Warnings = c.Warnings
	}
	if p.log != nil {
		entry := p.log.WithFields(logrus.Fields{
			"contract": c.Identifier,
			"stage":    "compile",
			"duration": time.Since(start),
		})
		if res.Err != nil {
			entry.WithError(res.Err).Error("contract compilation failed")
		} else {
			entry.Debug("contract compiled")
		}
	}
	p.cache.Add(c.Identifier, res)
	p.storeResult(c.Identifier, res)
}

func (p *Pool) storeResult(id string, res Result) {
	p.mu.Lock()
	p.results[id] = res
	p.mu.Unlock()
	p.scheduleReady()
}
