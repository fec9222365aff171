// Package ast declares the syntax tree used to represent a parsed Python
// module: the minimal set of node kinds the semantic indexing pipeline
// needs to build scopes, places, predicates, and use-def chains. It is
// deliberately not a complete Python grammar; rule implementations that
// need finer-grained shapes are external collaborators (spec §1).
package ast

import "github.com/tylang/tycore/ty/token"

// Node is the interface implemented by every syntax tree node.
type Node interface {
	Pos() token.Pos
	End() token.Pos
}

// base is embedded by every concrete node to supply Pos/End.
type base struct {
	From, To token.Pos
}

func (b base) Pos() token.Pos { return b.From }
func (b base) End() token.Pos { return b.To }

// Module is the root of a parsed file.
type Module struct {
	base
	Body []Stmt
}

// ---------------------------------------------------------------------
// Statements

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

type stmtBase struct{ base }

func (stmtBase) stmtNode() {}

// FunctionDef is `def name(params): body`, including async, decorated and
// nested variants. The parser sets Kind to FunctionAsync for an
// undecorated `async def`, or to the kind named by a staticmethod,
// classmethod, overload or abstractmethod decorator; it never sets
// FunctionMethod, so an undecorated method is FunctionPlain.
type FunctionDef struct {
	stmtBase
	Name       string
	Params     []*Param
	Body       []Stmt
	Kind       FunctionKind
	Decorators []Expr
	Returns    Expr // optional return annotation
}

// FunctionKind enumerates the scope-relevant function flavors named in
// spec.md §3 (Scope: function body kinds).
type FunctionKind int

const (
	FunctionPlain FunctionKind = iota
	FunctionAsync
	FunctionMethod
	FunctionClassMethod
	FunctionStaticMethod
	FunctionOverload
	FunctionAbstract
)

// Param is a single formal parameter; it receives its own AstId (spec §4.4).
type Param struct {
	base
	Name       string
	Annotation Expr // optional
	Default    Expr // optional
}

// ClassDef is `class Name(bases): body`.
type ClassDef struct {
	stmtBase
	Name       string
	Bases      []Expr
	Body       []Stmt
	Decorators []Expr
	TypeParams []string // PEP 695 style type parameters
}

// Assign is `target = value` (possibly chained: `a = b = value`).
type Assign struct {
	stmtBase
	Targets []Expr
	Value   Expr
}

// AugAssign is `target op= value`.
type AugAssign struct {
	stmtBase
	Target Expr
	Op     string
	Value  Expr
}

// AnnAssign is `target: annotation = value` (value optional).
type AnnAssign struct {
	stmtBase
	Target     Expr
	Annotation Expr
	Value      Expr // nil if bare declaration
}

// TypeAlias is `type Name = value` (PEP 695).
type TypeAlias struct {
	stmtBase
	Name       string
	TypeParams []string
	Value      Expr
}

// Import is `import a.b.c [as alias]`.
type Import struct {
	stmtBase
	Modules []ImportedModule
}

// ImportedModule is one dotted module name within an Import statement.
type ImportedModule struct {
	base
	DottedName string
	Alias      string // "" if none
}

// ImportFrom is `from [.]*module import name1 [as alias1], ...`.
type ImportFrom struct {
	stmtBase
	Level   int // number of leading dots; 0 for absolute
	Module  string
	Names   []ImportedName
	WildImp bool // `from x import *`
}

// ImportedName is one `name [as alias]` within an ImportFrom.
type ImportedName struct {
	base
	Name  string
	Alias string
}

// If is `if test: body else: orelse`.
type If struct {
	stmtBase
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// While is `while test: body else: orelse`.
type While struct {
	stmtBase
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// For is `for target in iter: body else: orelse`.
type For struct {
	stmtBase
	Target Expr
	Iter   Expr
	Body   []Stmt
	Orelse []Stmt
}

// Try is `try: body except handlers else: orelse finally: final`.
type Try struct {
	stmtBase
	Body    []Stmt
	Handler []ExceptHandler
	Orelse  []Stmt
	Final   []Stmt
}

// ExceptHandler is one `except [Type [as name]]: body` clause.
type ExceptHandler struct {
	base
	Type Expr
	Name string // "" if not bound
	Body []Stmt
}

// Match is `match subject: cases`.
type Match struct {
	stmtBase
	Subject Expr
	Cases   []MatchCase
}

// MatchCase is one `case pattern [if guard]: body` clause.
type MatchCase struct {
	base
	Pattern Expr // simplified: patterns are modeled as expressions/captures
	Guard   Expr // optional
	Body    []Stmt
}

// Global is `global name1, name2`.
type Global struct {
	stmtBase
	Names []string
}

// Nonlocal is `nonlocal name1, name2`.
type Nonlocal struct {
	stmtBase
	Names []string
}

// Return, Expr-statement, and Pass/Break/Continue round out control flow.
type Return struct {
	stmtBase
	Value Expr // nil for bare `return`
}

type ExprStmt struct {
	stmtBase
	Value Expr
}

type Pass struct{ stmtBase }
type Break struct{ stmtBase }
type Continue struct{ stmtBase }

// Delete is `del target1, target2`.
type Delete struct {
	stmtBase
	Targets []Expr
}

// Assert is `assert test[, msg]`.
type Assert struct {
	stmtBase
	Test Expr
	Msg  Expr
}

// ---------------------------------------------------------------------
// Expressions

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

type exprBase struct{ base }

func (exprBase) exprNode() {}

// Name is a bare identifier reference (read or write depending on context).
type Name struct {
	exprBase
	Id string
}

// Attribute is `value.attr`.
type Attribute struct {
	exprBase
	Value Expr
	Attr  string
}

// Subscript is `value[index]`.
type Subscript struct {
	exprBase
	Value Expr
	Index Expr
}

// Constant is a literal: int, string, bool, None, etc.
type Constant struct {
	exprBase
	Kind  string // "int", "str", "bool", "none", ...
	Value string // textual representation
}

// Call is `func(args)`.
type Call struct {
	exprBase
	Func Expr
	Args []Expr
}

// BoolOp is a short-circuiting `and`/`or` chain.
type BoolOp struct {
	exprBase
	Op     string // "and" | "or"
	Values []Expr
}

// UnaryOp is `not x`, `-x`, etc.
type UnaryOp struct {
	exprBase
	Op      string
	Operand Expr
}

// BinOp is `left op right`.
type BinOp struct {
	exprBase
	Left  Expr
	Op    string
	Right Expr
}

// Compare is a chained comparison `a < b <= c`.
type Compare struct {
	exprBase
	Left        Expr
	Ops         []string
	Comparators []Expr
}

// IfExp is the ternary `body if test else orelse`.
type IfExp struct {
	exprBase
	Test   Expr
	Body   Expr
	Orelse Expr
}

// Lambda is `lambda params: body`.
type Lambda struct {
	exprBase
	Params []*Param
	Body   Expr
}

// Comprehension is a list/set/dict/generator comprehension.
type Comprehension struct {
	exprBase
	Element Expr
	Value   Expr // for dict comprehensions; nil otherwise
	Target  Expr
	Iter    Expr
	Ifs     []Expr
	Kind    ComprehensionKind
}

// ComprehensionKind distinguishes the comprehension's container form.
type ComprehensionKind int

const (
	ComprehensionList ComprehensionKind = iota
	ComprehensionSet
	ComprehensionDict
	ComprehensionGenerator
)

// IsInstance models `isinstance(x, T)` as a first-class node so the
// semantic index can recognize it as a narrowing predicate without
// re-parsing a generic Call.
type IsInstance struct {
	exprBase
	Target Expr
	Types  []Expr
}

// NamedExpr is the walrus operator `target := value`.
type NamedExpr struct {
	exprBase
	Target *Name
	Value  Expr
}

// Starred is `*value`, used in call args, assignment targets, and tuples.
type Starred struct {
	exprBase
	Value Expr
}

// Tuple/List are ordered expression sequences; used both as values and,
// in assignment-target position, as destructuring patterns.
type Tuple struct {
	exprBase
	Elts []Expr
}

type List struct {
	exprBase
	Elts []Expr
}

// Walk traverses the tree in depth-first order, calling before(n) on entry
// and after(n) on exit. If before returns false, the node's children are
// skipped. Either callback may be nil.
func Walk(n Node, before func(Node) bool, after func(Node)) {
	if n == nil {
		return
	}
	if before != nil && !before(n) {
		return
	}
	walkChildren(n, before, after)
	if after != nil {
		after(n)
	}
}

func walkChildren(n Node, before func(Node) bool, after func(Node)) {
	switch n := n.(type) {
	case *Module:
		walkStmts(n.Body, before, after)
	case *FunctionDef:
		for _, p := range n.Params {
			Walk(p, before, after)
		}
		for _, d := range n.Decorators {
			Walk(d, before, after)
		}
		if n.Returns != nil {
			Walk(n.Returns, before, after)
		}
		walkStmts(n.Body, before, after)
	case *Param:
		if n.Annotation != nil {
			Walk(n.Annotation, before, after)
		}
		if n.Default != nil {
			Walk(n.Default, before, after)
		}
	case *ClassDef:
		for _, b := range n.Bases {
			Walk(b, before, after)
		}
		for _, d := range n.Decorators {
			Walk(d, before, after)
		}
		walkStmts(n.Body, before, after)
	case *Assign:
		for _, t := range n.Targets {
			Walk(t, before, after)
		}
		Walk(n.Value, before, after)
	case *AugAssign:
		Walk(n.Target, before, after)
		Walk(n.Value, before, after)
	case *AnnAssign:
		Walk(n.Target, before, after)
		Walk(n.Annotation, before, after)
		if n.Value != nil {
			Walk(n.Value, before, after)
		}
	case *TypeAlias:
		Walk(n.Value, before, after)
	case *If:
		Walk(n.Test, before, after)
		walkStmts(n.Body, before, after)
		walkStmts(n.Orelse, before, after)
	case *While:
		Walk(n.Test, before, after)
		walkStmts(n.Body, before, after)
		walkStmts(n.Orelse, before, after)
	case *For:
		Walk(n.Target, before, after)
		Walk(n.Iter, before, after)
		walkStmts(n.Body, before, after)
		walkStmts(n.Orelse, before, after)
	case *Try:
		walkStmts(n.Body, before, after)
		for _, h := range n.Handler {
			if h.Type != nil {
				Walk(h.Type, before, after)
			}
			walkStmts(h.Body, before, after)
		}
		walkStmts(n.Orelse, before, after)
		walkStmts(n.Final, before, after)
	case *Match:
		Walk(n.Subject, before, after)
		for _, c := range n.Cases {
			Walk(c.Pattern, before, after)
			if c.Guard != nil {
				Walk(c.Guard, before, after)
			}
			walkStmts(c.Body, before, after)
		}
	case *Return:
		if n.Value != nil {
			Walk(n.Value, before, after)
		}
	case *ExprStmt:
		Walk(n.Value, before, after)
	case *Delete:
		for _, t := range n.Targets {
			Walk(t, before, after)
		}
	case *Assert:
		Walk(n.Test, before, after)
		if n.Msg != nil {
			Walk(n.Msg, before, after)
		}
	case *Attribute:
		Walk(n.Value, before, after)
	case *Subscript:
		Walk(n.Value, before, after)
		Walk(n.Index, before, after)
	case *Call:
		Walk(n.Func, before, after)
		for _, a := range n.Args {
			Walk(a, before, after)
		}
	case *BoolOp:
		for _, v := range n.Values {
			Walk(v, before, after)
		}
	case *UnaryOp:
		Walk(n.Operand, before, after)
	case *BinOp:
		Walk(n.Left, before, after)
		Walk(n.Right, before, after)
	case *Compare:
		Walk(n.Left, before, after)
		for _, c := range n.Comparators {
			Walk(c, before, after)
		}
	case *IfExp:
		Walk(n.Test, before, after)
		Walk(n.Body, before, after)
		Walk(n.Orelse, before, after)
	case *Lambda:
		for _, p := range n.Params {
			Walk(p, before, after)
		}
		Walk(n.Body, before, after)
	case *Comprehension:
		Walk(n.Element, before, after)
		if n.Value != nil {
			Walk(n.Value, before, after)
		}
		Walk(n.Target, before, after)
		Walk(n.Iter, before, after)
		for _, i := range n.Ifs {
			Walk(i, before, after)
		}
	case *IsInstance:
		Walk(n.Target, before, after)
		for _, t := range n.Types {
			Walk(t, before, after)
		}
	case *NamedExpr:
		Walk(n.Target, before, after)
		Walk(n.Value, before, after)
	case *Starred:
		Walk(n.Value, before, after)
	case *Tuple:
		for _, e := range n.Elts {
			Walk(e, before, after)
		}
	case *List:
		for _, e := range n.Elts {
			Walk(e, before, after)
		}
	}
}

func walkStmts(stmts []Stmt, before func(Node) bool, after func(Node)) {
	for _, s := range stmts {
		Walk(s, before, after)
	}
}
