// Package ir provides the shared types of the cascading delete engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. Specs, entries and the object
// catalog are compiled into these types by package compiler and are treated
// as immutable afterwards; id tuples, column sets and reports are produced
// per request by package engine.
//
// Key design constraints:
//   - Row identifiers are int64 everywhere
//   - Tuples are typed (IDTuple), never untyped slices of any
//   - All JSON tags use snake_case
//   - Collection order is first-seen order, never map order
package ir
