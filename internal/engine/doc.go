// Package engine implements the cascading delete engine.
//
// A delete request runs in two passes over one transaction:
//
//  1. Collection: for every entry of the root spec, in declaration order,
//     one SELECT captures the ids the entry will delete together with the
//     ids along its path. Entries naming another spec descend into it per
//     collected row. Rows are grouped into column sets, one per parent.
//     Nothing is deleted during collection.
//  2. Execution: the collected tables are flattened into a plan of steps.
//     Each step runs inside its own savepoint; steps of a sub-spec run
//     inside the savepoint of their container step. A constraint failure
//     rolls back to the innermost SOFT step on the stack and skips the
//     rest of its subtree. Without a SOFT step the failure is fatal.
//
// Deleted ids are tracked per open savepoint. Only ids that reach the base
// frame are reported and published as events.
//
// The engine is single threaded per request. An Engine is immutable and
// may serve concurrent requests, each with its own State and transaction.
package engine
