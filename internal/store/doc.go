// Package store provides the SQLite-backed relational executor the delete
// engine runs against.
//
// A delete request holds one Transaction for its whole lifetime: the
// collection pass and the execution pass share it, and steps nest inside
// it through named savepoints. Foreign keys are enforced and declared
// without ON DELETE actions, so a delete that would orphan a row fails with
// a ConstraintError instead of cascading behind the engine's back.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema version 1 is the imaging model declared in schema.sql and in the
// default catalog of package specs.
package store
