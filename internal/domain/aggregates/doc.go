// Package aggregates defines domain-facing aggregate contracts.
//
// Contracts avoid persistence/transport details and describe the write
// boundaries where version invariants must hold atomically.
package aggregates
