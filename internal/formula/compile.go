package formula

// Compilable is the contract a rule-compilation layer (hierarchical, ID,
// no-compilation) would need to satisfy to plug into the chase without
// the chase depending on which compilation strategy is in use. No
// production implementation exists in this repository: nothing here
// consumes a compilation layer, so the contract is documented and left
// unimplemented rather than backed by speculative machinery (see
// DESIGN.md).
type Compilable interface {
	// IsMoreSpecificThan reports whether the receiver's matches are a
	// subset of other's for every possible Data source (CQ containment).
	IsMoreSpecificThan(other Compilable) bool
	// Unfold expands one level of compilation, returning the rules it
	// stands for in the uncompiled rule base.
	Unfold() []*Rule
	// IsCompatible reports whether the receiver can be combined with
	// other in the same compiled rule base (e.g. same compilation
	// strategy, non-overlapping predicate ownership).
	IsCompatible(other Compilable) bool
}
