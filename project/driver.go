package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// debug gates stderr tracing of contract state transitions.
var debug = false

// Compile resolves path to a finished ContractBuild. It is reentrant and
// safe for concurrent use: the first caller to find a contract in Source
// state performs its compilation; every other caller for the same path
// observes Waiter then Build, and never re-runs the work. A contract's
// own compilation may itself call Compile to resolve a factory
// dependency; this is safe because the dependency graph is acyclic and
// each path's state transition is independent of any other path's.
//
// Every Waiter's condition variable shares the project's own mu as its
// Locker, rather than a private per-waiter mutex: Cond.Wait requires the
// state check and the wait to happen under the same lock the broadcaster
// uses when it mutates state, or a waiter can miss the wakeup between
// checking state and calling Wait. Sharing mu gives that for free, the
// same way the broadcaster already holds mu while installing Build.
//
// ctx is threaded through to compileContract but Wait itself is not
// interrupted by ctx.Done: a true dependency cycle blocks forever, and
// the driver deliberately carries no timeout semantics.
func (p *Project) Compile(ctx context.Context, path string) (*ContractBuild, error) {
	p.mu.Lock()
	for {
		state, ok := p.contracts[path]
		if !ok {
			p.mu.Unlock()
			return nil, fmt.Errorf("%s: %w", path, ErrMissingDependency)
		}

		switch st := state.(type) {
		case sourceState:
			waiter := waiterState{cond: sync.NewCond(&p.mu)}
			p.contracts[path] = waiter
			p.mu.Unlock()

			if debug {
				fmt.Fprintf(os.Stderr, "project: %s: source -> waiter\n", path)
			}
			build, err := p.compileContract(ctx, path, st.contract)

			p.mu.Lock()
			if err != nil {
				p.contracts[path] = errorState{err: err}
			} else {
				p.contracts[path] = buildState{build: build}
			}
			if debug {
				fmt.Fprintf(os.Stderr, "project: %s: waiter -> %T\n", path, p.contracts[path])
			}
			waiter.cond.Broadcast()
			p.mu.Unlock()

			return build, err

		case waiterState:
			st.cond.Wait() // atomically unlocks mu, reacquires before returning
			// loop: re-read state, now Build or errorState

		case buildState:
			p.mu.Unlock()
			return st.build, nil

		case errorState:
			p.mu.Unlock()
			return nil, st.err

		default:
			p.mu.Unlock()
			return nil, fmt.Errorf("%s: unknown contract state %T", path, state)
		}
	}
}

// CompileAll submits every contract path to a goroutine pool and collects
// the results. One contract's failure does not
// stop contracts already running; every per-contract error is
// joined into the returned error, and builds holds every contract that did
// succeed.
func (p *Project) CompileAll(ctx context.Context) (map[string]*ContractBuild, error) {
	paths := p.Paths()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		builds = make(map[string]*ContractBuild, len(paths))
		errs   []error
	)
	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			build, err := p.Compile(ctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				return
			}
			builds[path] = build
		}(path)
	}
	wg.Wait()

	return builds, errors.Join(errs...)
}
