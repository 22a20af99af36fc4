// Package query provides an immutable query specification consumed by the
// authorization engine's scoper and executed by the platform's data services.
//
// A Spec is a conjunction of clauses; each clause is a disjunction of field
// equality conditions. Every builder method returns a new Spec, so the same
// base query can be scoped differently for concurrent callers without
// aliasing.
package query
