// Package execq provides a distributed job queue for shell-command jobs.
// Producers submit commands, a pool of workers claims and executes them
// exactly once, and clients query or cancel jobs by identifier.
//
// The core of execq is the atomic state-transition protocol governing a
// job's life cycle inside a shared store: a FIFO pending queue plus a keyed
// record store, mutated only through compound atomic operations (submit,
// claim, cancel, complete). Every store backend guarantees that the
// queue mutation and the record mutation of one transition execute as a
// single indivisible unit per job id, so a claim and a cancel racing on the
// same pending job always produce exactly one winner.
//
// # Quick Start
//
//	eng, err := engine.New(memory.New())
//	if err != nil {
//	    return err
//	}
//
//	j, err := eng.Submit(ctx, "echo hello")
//
//	executor := worker.NewExecutor(eng, nil, 5, slog.Default())
//	pool := worker.NewPool(eng, executor,
//	    worker.WithPoolConcurrency(4),
//	    worker.WithPollInterval(time.Second),
//	)
//	pool.Start(ctx)
//
// # Architecture
//
// execq is a library first; the execqd daemon in cmd wires it into a
// service. The job package defines the model and the store contract, the
// engine package implements the transition protocol on top of any store,
// and the worker package runs commands. Store backends exist for memory,
// Redis (Lua-scripted transitions), Postgres, SQLite, and MongoDB.
//
// All job IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers — so concurrent submission can never collide.
package execq
