// Package primitives provides the zero-dependency building blocks of the
// component runtime: tree traversal and content versioning.
//
// Core invariants:
// - Walk visits a parent before its children (pre) and after them (post)
// - Siblings are visited in the order the children function returns them
// - ComputeVersion is deterministic for equal content
package primitives
