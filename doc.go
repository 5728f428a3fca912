// doc.go - package documentation for ertrace
//
// Package ertrace implements error return tracing: every function that
// creates, re-tags or forwards an error appends one statically known
// Location to a chain owned by that error. The chain shows the path from the
// origin of a failure to the place it was handled, at a fraction of the cost
// of capturing stacks. It is designed to be:
//   - Cheap on the error path (one pooled node per event, no stack walks)
//   - Interoperable with the stdlib (errors.Is/As/Join, fmt.Formatter)
//   - Explicit about memory (pick a reclaiming or a bounded pool)
//
// # Recording Events
//
//	err := ertrace.New("NotFound")          // origin: trace starts here
//	err  = ertrace.Wrap(err, "LoadUser")    // re-tag: takes the trace over
//	err  = ertrace.Forward(err)             // pass through: appends "=>"
//	ertrace.Eprint(err)                     // render to stderr
//
// Wrap moves the trace out of the inner error, so exactly one error owns the
// nodes at any time and TraceOf always returns the outermost trace.
//
// # Pools
//
//	+-------------------+----------------------------+---------------------------------+
//	| Strategy          | Memory                     | Old events                      |
//	+-------------------+----------------------------+---------------------------------+
//	| FreeListPool      | grows on demand, reclaims  | exact until Release             |
//	| ArenaPool (ring)  | fixed, power-of-two slots  | overwritten after a full lap    |
//	+-------------------+----------------------------+---------------------------------+
//
// Both are lock-free; arena acquisition is a single atomic add. A trace
// returns all of its nodes in one operation, on (*Error).Release or, with
// auto-release enabled, once the error becomes unreachable.
//
// # Process-wide Pool
//
// Package-level New/Wrap/Forward draw from Default(). Call Init (or
// InitArena) once at startup to choose the strategy; otherwise the first use
// installs one from ERTRACE_POOL, ERTRACE_ARENA_CAPACITY and
// ERTRACE_AUTO_RELEASE. Tracer binds an explicit pool instead.
//
// # Output
//
//	error return trace:
//	0: NotFound at store/user.go:41:0 in example.com/store
//	1: LoadUser at api/user.go:88:0 in example.com/api
//	2: => at main.go:12:0 in main
//
// Columns are 0 for locations resolved at run time; NewLocation accepts an
// exact column for generated code.
package ertrace
