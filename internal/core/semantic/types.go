// Package semantic implements the Semantic Index (spec.md §4.5): the
// one-shot per-module derivation of the scope tree, place/symbol/member
// tables, predicates, a hash-consed reachability-constraint DAG, and
// use-def chains. The builder's frame-stack shape is grounded on the
// teacher's internal/core/compile.compiler (a stack of scope frames
// walking an ast.File), its dense ids are grounded on
// internal/core/adt.Feature, and the reachability DAG's hash-consing and
// canonicalization follow internal/core/toposort's hash-consed graph
// nodes.
package semantic

import "github.com/tylang/tycore/ty/ast"

// ScopeID is a dense, per-file id for a Scope (spec.md §3 "Scope";
// "file-scope-id (dense per-file)").
type ScopeID int

// ScopeKind enumerates the scope kinds named in spec.md §3.
type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeClass
	ScopeFunction
	ScopeLambda
	ScopeComprehension
)

// Scope is one node of the scope tree. The root scope (id 0) is always
// the module scope (spec.md §3 "Scope").
type Scope struct {
	ID       ScopeID
	Parent   ScopeID // -1 for the module (root) scope
	Kind     ScopeKind
	Node     ast.Node // the FunctionDef/ClassDef/Lambda/Comprehension/Module that introduced this scope
	FuncKind ast.FunctionKind
	// IsMethod is true when this is a function scope directly nested in a
	// class body and not decorated @staticmethod, i.e. its first
	// parameter is eligible to root an instance attribute
	// (spec.md §3 invariant (ii)).
	IsMethod bool
	Children []ScopeID
}

// ScopedSymbolID is a per-scope dense id for a directly bound name
// (spec.md §3 "Place / Symbol / Member").
type ScopedSymbolID int

// ScopedMemberID is a per-scope dense id for an interned member chain.
// Two lexical references with identical (root, segments) collapse to the
// same id (spec.md invariant (i)).
type ScopedMemberID int

// SegmentKind distinguishes the three forms a member-chain segment can
// take (spec.md §3 "Member expression").
type SegmentKind int

const (
	SegAttr SegmentKind = iota
	SegIntSubscript
	SegStrSubscript
)

// Segment is one link of a member chain.
type Segment struct {
	Kind SegmentKind
	Name string // attribute name, or string-subscript value
	Int  int    // integer-subscript value
}

// memberKey is the structural identity a member chain interns by
// (spec.md invariant (i): "member-chain interning is by structural
// identity").
type memberKey struct {
	root ScopedSymbolID
	segs string // Segment sequence, flattened to a comparable string
}

// PlaceFlag is a bit in the per-(scope, place) flag set (spec.md §3
// "Place flags").
type PlaceFlag uint8

const (
	FlagUsed PlaceFlag = 1 << iota
	FlagBound
	FlagDeclared
	FlagInstanceAttribute
	FlagReassigned
)

// Place is the union of Symbols and Members: any location tracked for
// use-def analysis (spec.md §3 "Place").
type Place struct {
	// Exactly one of Symbol (root binding) or Member (chain) is set;
	// Symbols have Member == nil.
	Name  string // symbol name, or root symbol's name for a member
	Segs  []Segment
	Flags PlaceFlag
}

// IsMember reports whether this Place is a member chain rather than a
// bare symbol.
func (p *Place) IsMember() bool { return len(p.Segs) > 0 }

// PredicateID is a dense id for an atomic branch condition
// (spec.md §3 "Predicate").
type PredicateID int

// PredicateKind enumerates the syntactic shapes spec.md §4.5 step 3 lists
// as predicate sources.
type PredicateKind int

const (
	PredComparison PredicateKind = iota
	PredTruthiness
	PredPatternMatch
	PredIsInstance
	PredBoolOp
)

// Predicate is the atomic condition attached to one control-flow edge.
type Predicate struct {
	Kind PredicateKind
	Expr ast.Expr
}

// ConstraintID indexes a node of the hash-consed reachability-constraint
// DAG (spec.md §3 "Reachability-constraint node"). ConstraintTrue and
// ConstraintFalse are the two permanent leaves.
type ConstraintID int

const (
	ConstraintFalse ConstraintID = 0
	ConstraintTrue  ConstraintID = 1
)

// constraintNode is an internal (if p then t else e) node, or one of the
// two leaves (Pred == -1).
type constraintNode struct {
	Pred PredicateID
	Then ConstraintID
	Else ConstraintID
}

// DefSite is one binding of a Place, tagged with the reachability
// constraint under which it reaches a later read (spec.md §3 "Use-def
// chain").
type DefSite struct {
	Node       ast.Node
	Constraint ConstraintID
}

// UseDefEntry is the recorded answer for one (scope, place, read-site):
// the set of definitions that may reach it, and whether the read can
// observe "no definition" on some path.
type UseDefEntry struct {
	Defs         []DefSite
	Unbound      bool // no definition reaches on ANY reachable path
	MayBeUnbound bool // some but not all reachable paths have a definition
}

// EnclosingSnapshot is the frozen use-def state captured at the point a
// nested scope is entered (spec.md §3 "EnclosingSnapshot"): a plain
// value, not a live pointer into the outer scope's in-progress build
// state (DESIGN NOTES §9).
type EnclosingSnapshot struct {
	Scope   ScopeID
	Live    map[string][]DefSite // symbol name -> live definitions at entry
	AtEntry ConstraintID
}
