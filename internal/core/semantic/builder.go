package semantic

import (
	"strconv"
	"strings"

	"github.com/tylang/tycore/ty/ast"
)

// Index is the complete semantic index for one module: the scope tree,
// the per-scope place/symbol/member/predicate tables, the module-wide
// hash-consed reachability DAG, and the use-def answer for every name
// read, keyed by the *ast.Name node observed; attribute and subscript
// reads have no use-def entry (spec.md §4.5 "Semantic Index" as a whole).
type Index struct {
	scopes []*Scope

	symbols map[ScopeID][]*Place // ScopedSymbolID -> Place, dense per scope
	symByName map[ScopeID]map[string]ScopedSymbolID

	members    map[ScopeID][]*Place // ScopedMemberID -> Place, dense per scope
	memberByKey map[ScopeID]map[memberKey]ScopedMemberID

	predicates []Predicate
	predByExpr map[ast.Expr]PredicateID

	constraints []constraintNode // index 0 = False, 1 = True
	constraintMemo map[constraintNode]ConstraintID

	useDef map[ast.Node]UseDefEntry // keyed by the read-site Name node

	scopeOf map[ast.Node]ScopeID // FunctionDef/ClassDef/Lambda/Comprehension -> its own Scope

	instanceAttrs map[ScopeID]map[string]bool // class scope -> attribute name -> seen
}

// Scopes returns every scope in the module, indexed by ScopeID.
func (ix *Index) Scopes() []*Scope { return ix.scopes }

// Scope returns the scope for id.
func (ix *Index) Scope(id ScopeID) *Scope { return ix.scopes[id] }

// ScopeFor returns the ScopeID that n (a FunctionDef/ClassDef/Lambda/
// Comprehension/Module) introduces.
func (ix *Index) ScopeFor(n ast.Node) (ScopeID, bool) {
	id, ok := ix.scopeOf[n]
	return id, ok
}

// Symbols returns the dense symbol table for scope.
func (ix *Index) Symbols(scope ScopeID) []*Place { return ix.symbols[scope] }

// Members returns the dense member table for scope.
func (ix *Index) Members(scope ScopeID) []*Place { return ix.members[scope] }

// Predicate returns the predicate recorded under id.
func (ix *Index) Predicate(id PredicateID) Predicate { return ix.predicates[id] }

// UseDef returns the recorded use-def answer for a Name in load position
// previously visited during Build. Attribute and Subscript member reads
// are not recorded, so ok is false for them.
func (ix *Index) UseDef(n ast.Node) (UseDefEntry, bool) {
	e, ok := ix.useDef[n]
	return e, ok
}

// InstanceAttributes returns the set of attribute names assigned via
// `self.<name> = ...` (or the class's declared first-parameter name)
// somewhere in the methods of the class scope.
func (ix *Index) InstanceAttributes(classScope ScopeID) map[string]bool {
	return ix.instanceAttrs[classScope]
}

// ConstraintNode exposes the shape of an internal DAG node (its predicate
// and its then/else children) for callers (e.g. the Check Scheduler's
// narrowing consumers) that need to walk reachability conditions; it
// returns ok=false for the two leaves.
func (ix *Index) ConstraintNode(id ConstraintID) (pred PredicateID, then, els ConstraintID, ok bool) {
	if id == ConstraintTrue || id == ConstraintFalse {
		return 0, 0, 0, false
	}
	n := ix.constraints[id]
	return n.Pred, n.Then, n.Else, true
}

// frame is the builder's per-scope working state, pushed and popped as a
// stack while walking the AST — the same frame-stack shape the teacher's
// internal/core/compile.compiler uses to build nested CUE closures, here
// repurposed for Python lexical scopes (spec.md §4.5 step 1).
type frame struct {
	scope ScopeID
	live  map[string]*liveBinding // current reachable definitions per symbol, narrowed by constraint
	path  ConstraintID            // conjunction of predicates true on the path currently being walked
}

// liveBinding is a symbol's reaching-definition state at one point in the
// walk: the definitions known to reach here, and whether some branch
// already merged into this state left the symbol unbound on at least
// one path (spec.md §3 "MayBeUnbound": "some but not all reachable
// paths have a definition").
type liveBinding struct {
	Defs         []DefSite
	MayBeUnbound bool
}

// builder accumulates an Index while performing a single depth-first
// walk of the module (spec.md §4.5 "one-shot... derived fresh each time
// its containing file's AST changes").
type builder struct {
	ix     *Index
	frames []*frame
}

// Build derives the complete Semantic Index for mod in one pass
// (spec.md §4.5).
func Build(mod *ast.Module) *Index {
	ix := &Index{
		symbols:        make(map[ScopeID][]*Place),
		symByName:      make(map[ScopeID]map[string]ScopedSymbolID),
		members:        make(map[ScopeID][]*Place),
		memberByKey:    make(map[ScopeID]map[memberKey]ScopedMemberID),
		predByExpr:     make(map[ast.Expr]PredicateID),
		constraints:    []constraintNode{{Pred: -1}, {Pred: -1}}, // 0=False, 1=True
		constraintMemo: make(map[constraintNode]ConstraintID),
		useDef:         make(map[ast.Node]UseDefEntry),
		scopeOf:        make(map[ast.Node]ScopeID),
		instanceAttrs:  make(map[ScopeID]map[string]bool),
	}
	b := &builder{ix: ix}

	root := b.newScope(-1, ScopeModule, mod, ast.FunctionPlain, false)
	b.scopeOf(mod, root)
	b.pushFrame(root)
	b.walkBody(mod.Body)
	b.popFrame()

	b.finishInstanceAttributes()
	return ix
}

func (b *builder) scopeOf(n ast.Node, id ScopeID) { b.ix.scopeOf[n] = id }

func (b *builder) newScope(parent ScopeID, kind ScopeKind, node ast.Node, fk ast.FunctionKind, isMethod bool) ScopeID {
	id := ScopeID(len(b.ix.scopes))
	s := &Scope{ID: id, Parent: parent, Kind: kind, Node: node, FuncKind: fk, IsMethod: isMethod}
	b.ix.scopes = append(b.ix.scopes, s)
	if parent >= 0 {
		ps := b.ix.scopes[parent]
		ps.Children = append(ps.Children, id)
	}
	return id
}

func (b *builder) cur() *frame { return b.frames[len(b.frames)-1] }

func (b *builder) pushFrame(scope ScopeID) {
	live := make(map[string]*liveBinding)
	path := ConstraintTrue
	if len(b.frames) > 0 {
		// A nested scope's EnclosingSnapshot freezes the outer frame's
		// live set as plain values (spec.md §3 "EnclosingSnapshot");
		// copy rather than alias so later outer mutation is invisible.
		outer := b.cur()
		for k, v := range outer.live {
			live[k] = cloneBinding(v)
		}
		path = outer.path
	}
	b.frames = append(b.frames, &frame{scope: scope, live: live, path: path})
}

func (b *builder) popFrame() { b.frames = b.frames[:len(b.frames)-1] }

// ---------------------------------------------------------------------
// Symbol / member interning

func (b *builder) symbolID(name string) ScopedSymbolID {
	scope := b.cur().scope
	if b.ix.symByName[scope] == nil {
		b.ix.symByName[scope] = make(map[string]ScopedSymbolID)
	}
	if id, ok := b.ix.symByName[scope][name]; ok {
		return id
	}
	id := ScopedSymbolID(len(b.ix.symbols[scope]))
	b.ix.symbols[scope] = append(b.ix.symbols[scope], &Place{Name: name})
	b.ix.symByName[scope][name] = id
	return id
}

func (b *builder) place(scope ScopeID, id ScopedSymbolID) *Place { return b.ix.symbols[scope][id] }

func flattenSegs(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		switch s.Kind {
		case SegAttr:
			sb.WriteString(".a:")
			sb.WriteString(s.Name)
		case SegIntSubscript:
			sb.WriteString(".i:")
			sb.WriteString(strconv.Itoa(s.Int))
		case SegStrSubscript:
			sb.WriteString(".s:")
			sb.WriteString(s.Name)
		}
	}
	return sb.String()
}

func (b *builder) memberID(root ScopedSymbolID, rootName string, segs []Segment) ScopedMemberID {
	scope := b.cur().scope
	key := memberKey{root: root, segs: flattenSegs(segs)}
	if b.ix.memberByKey[scope] == nil {
		b.ix.memberByKey[scope] = make(map[memberKey]ScopedMemberID)
	}
	if id, ok := b.ix.memberByKey[scope][key]; ok {
		return id
	}
	cp := make([]Segment, len(segs))
	copy(cp, segs)
	id := ScopedMemberID(len(b.ix.members[scope]))
	b.ix.members[scope] = append(b.ix.members[scope], &Place{Name: rootName, Segs: cp})
	b.ix.memberByKey[scope][key] = id
	return id
}

// memberChain decomposes a (possibly chained) Attribute/Subscript
// expression into its root Name and ordered segments, or returns
// ok=false if the base is not a bare name (spec.md §3 "Member
// expression": chains root at a Name).
func memberChain(e ast.Expr) (root *ast.Name, segs []Segment, ok bool) {
	var rev []Segment
	cur := e
	for {
		switch n := cur.(type) {
		case *ast.Attribute:
			rev = append(rev, Segment{Kind: SegAttr, Name: n.Attr})
			cur = n.Value
		case *ast.Subscript:
			switch idx := n.Index.(type) {
			case *ast.Constant:
				if idx.Kind == "int" {
					iv, _ := strconv.Atoi(idx.Value)
					rev = append(rev, Segment{Kind: SegIntSubscript, Int: iv})
				} else if idx.Kind == "str" {
					rev = append(rev, Segment{Kind: SegStrSubscript, Name: idx.Value})
				} else {
					return nil, nil, false
				}
			default:
				return nil, nil, false
			}
			cur = n.Value
		case *ast.Name:
			for i := len(rev) - 1; i >= 0; i-- {
				segs = append(segs, rev[i])
			}
			return n, segs, true
		default:
			return nil, nil, false
		}
	}
}

// ---------------------------------------------------------------------
// Reachability-constraint DAG (hash-consed, canonicalized)

// ite constructs (if pred then t else e), canonicalizing and
// hash-consing per spec.md §3's reachability-constraint rules:
// ite(p,x,x)->x. The predicate p itself is the node ite(p,True,False),
// and `not p` is the node ite(p,False,True); there is no negated-predicate
// table, so callers such as branch build the else-arm path that way.
func (b *builder) ite(pred PredicateID, then, els ConstraintID) ConstraintID {
	if then == els {
		return then
	}
	if then == ConstraintTrue && els == ConstraintFalse {
		// Degenerate to "the predicate itself": represented as
		// ite(p, True, False), which is already its own canonical form.
	}
	node := constraintNode{Pred: pred, Then: then, Else: els}
	if id, ok := b.ix.constraintMemo[node]; ok {
		return id
	}
	id := ConstraintID(len(b.ix.constraints))
	b.ix.constraints = append(b.ix.constraints, node)
	b.ix.constraintMemo[node] = id
	return id
}

// and_ conjoins two constraints: result reaches iff both do.
func (b *builder) and_(a, c ConstraintID) ConstraintID {
	if a == ConstraintFalse || c == ConstraintFalse {
		return ConstraintFalse
	}
	if a == ConstraintTrue {
		return c
	}
	if c == ConstraintTrue {
		return a
	}
	an := b.ix.constraints[a]
	return b.ite(an.Pred, b.and_(an.Then, c), b.and_(an.Else, c))
}

func (b *builder) predicateID(kind PredicateKind, e ast.Expr) PredicateID {
	if id, ok := b.ix.predByExpr[e]; ok {
		return id
	}
	id := PredicateID(len(b.ix.predicates))
	b.ix.predicates = append(b.ix.predicates, Predicate{Kind: kind, Expr: e})
	b.ix.predByExpr[e] = id
	return id
}

// classifyPredicate extracts the predicate spec.md §4.5 step 3 says to
// recognize from a branch test, defaulting to plain truthiness.
func (b *builder) classifyPredicate(test ast.Expr) PredicateID {
	switch e := test.(type) {
	case *ast.IsInstance:
		return b.predicateID(PredIsInstance, e)
	case *ast.Compare:
		return b.predicateID(PredComparison, e)
	case *ast.BoolOp:
		return b.predicateID(PredBoolOp, e)
	default:
		return b.predicateID(PredTruthiness, e)
	}
}

// ---------------------------------------------------------------------
// Binding and use recording

func (b *builder) recordBind(target ast.Expr, definer ast.Node) {
	switch t := target.(type) {
	case *ast.Name:
		f := b.cur()
		sid := b.symbolID(t.Id)
		p := b.place(f.scope, sid)
		if existing, ok := f.live[t.Id]; ok && len(existing.Defs) > 0 {
			p.Flags |= FlagReassigned
		}
		p.Flags |= FlagBound
		f.live[t.Id] = &liveBinding{Defs: []DefSite{{Node: definer, Constraint: f.path}}}
		b.maybeInstanceAttr(t.Id, nil)
	case *ast.Attribute, *ast.Subscript:
		if root, segs, ok := memberChain(t); ok {
			b.recordMemberUse(root, segs, true)
			if attr, ok := t.(*ast.Attribute); ok {
				b.maybeInstanceAttr(root.Id, &attr.Attr)
			}
		}
	case *ast.Tuple:
		for _, el := range t.Elts {
			b.recordBind(el, definer)
		}
	case *ast.List:
		for _, el := range t.Elts {
			b.recordBind(el, definer)
		}
	case *ast.Starred:
		b.recordBind(t.Value, definer)
	}
}

// maybeInstanceAttr flags a binding rooted at a method's first parameter
// (conventionally `self`) as an instance attribute, deferring the actual
// per-class accumulation to finishInstanceAttributes (spec.md §4.5 step
// 5 "instance attribute discovery post-pass").
func (b *builder) maybeInstanceAttr(rootName string, attr *string) {
	if attr == nil {
		return
	}
	f := b.cur()
	scope := b.ix.scopes[f.scope]
	if scope.Kind != ScopeFunction || !scope.IsMethod {
		return
	}
	fn, ok := scope.Node.(*ast.FunctionDef)
	if !ok || len(fn.Params) == 0 || fn.Params[0].Name != rootName {
		return
	}
	classID := scope.Parent
	if b.ix.instanceAttrs[classID] == nil {
		b.ix.instanceAttrs[classID] = make(map[string]bool)
	}
	b.ix.instanceAttrs[classID][*attr] = true
}

func (b *builder) recordUse(n *ast.Name) {
	f := b.cur()
	sid := b.symbolID(n.Id)
	p := b.place(f.scope, sid)
	p.Flags |= FlagUsed
	lb := f.live[n.Id]
	var entry UseDefEntry
	if lb != nil {
		entry.Defs = lb.Defs
		entry.MayBeUnbound = lb.MayBeUnbound
	}
	if len(entry.Defs) == 0 {
		entry.Unbound = true
	}
	b.ix.useDef[n] = entry
}

func (b *builder) recordMemberUse(root *ast.Name, segs []Segment, isBind bool) {
	f := b.cur()
	sid := b.symbolID(root.Id)
	mid := b.memberID(sid, root.Id, segs)
	p := b.ix.members[f.scope][mid]
	if isBind {
		p.Flags |= FlagBound
	} else {
		p.Flags |= FlagUsed
	}
}

// ---------------------------------------------------------------------
// Statement / expression walk

func (b *builder) walkBody(stmts []ast.Stmt) {
	for _, s := range stmts {
		b.walkStmt(s)
	}
}

func (b *builder) walkStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.FunctionDef:
		f := b.cur()
		for _, p := range n.Params {
			if p.Annotation != nil {
				b.walkExpr(p.Annotation)
			}
			if p.Default != nil {
				b.walkExpr(p.Default)
			}
		}
		parentScope := b.ix.scopes[f.scope]
		isMethod := parentScope.Kind == ScopeClass && n.Kind != ast.FunctionStaticMethod
		sid := b.newScope(f.scope, ScopeFunction, n, n.Kind, isMethod)
		b.scopeOf(n, sid)
		// Binding the def name itself happens in the enclosing scope.
		b.bindName(n.Name, n)
		b.pushFrame(sid)
		for i, p := range n.Params {
			pid := b.symbolID(p.Name)
			pl := b.place(sid, pid)
			pl.Flags |= FlagBound | FlagDeclared
			b.cur().live[p.Name] = &liveBinding{Defs: []DefSite{{Node: n.Params[i], Constraint: ConstraintTrue}}}
		}
		b.walkBody(n.Body)
		b.popFrame()

	case *ast.ClassDef:
		f := b.cur()
		for _, base := range n.Bases {
			b.walkExpr(base)
		}
		b.bindName(n.Name, n)
		sid := b.newScope(f.scope, ScopeClass, n, ast.FunctionPlain, false)
		b.scopeOf(n, sid)
		b.pushFrame(sid)
		b.walkBody(n.Body)
		b.popFrame()

	case *ast.Assign:
		b.walkExpr(n.Value)
		for _, t := range n.Targets {
			b.recordBind(t, n)
		}

	case *ast.AugAssign:
		b.walkTargetUse(n.Target)
		b.walkExpr(n.Value)
		b.recordBind(n.Target, n)

	case *ast.AnnAssign:
		b.walkExpr(n.Annotation)
		if n.Value != nil {
			b.walkExpr(n.Value)
			b.recordBind(n.Target, n)
		} else if name, ok := n.Target.(*ast.Name); ok {
			// Bare `x: T` declares without binding (spec.md §3 "DECLARED").
			sid := b.symbolID(name.Id)
			b.place(b.cur().scope, sid).Flags |= FlagDeclared
		}

	case *ast.TypeAlias:
		b.walkExpr(n.Value)
		b.bindName(n.Name, n)

	case *ast.Import:
		for _, m := range n.Modules {
			name := m.Alias
			if name == "" {
				name = strings.SplitN(m.DottedName, ".", 2)[0]
			}
			b.bindName(name, n)
		}

	case *ast.ImportFrom:
		for _, nm := range n.Names {
			name := nm.Alias
			if name == "" {
				name = nm.Name
			}
			b.bindName(name, n)
		}

	case *ast.If:
		b.walkExpr(n.Test)
		pred := b.classifyPredicate(n.Test)
		b.branch(pred, n.Body, n.Orelse)

	case *ast.While:
		b.walkExpr(n.Test)
		pred := b.classifyPredicate(n.Test)
		b.branch(pred, n.Body, n.Orelse)

	case *ast.For:
		b.walkExpr(n.Iter)
		b.recordBind(n.Target, n)
		f := b.cur()
		saved := f.path
		b.walkBody(n.Body)
		f.path = saved
		b.walkBody(n.Orelse)

	case *ast.Try:
		f := b.cur()
		saved := f.path
		b.walkBody(n.Body)
		for _, h := range n.Handler {
			if h.Type != nil {
				b.walkExpr(h.Type)
			}
			f.path = saved
			if h.Name != "" {
				b.bindName(h.Name, h)
			}
			b.walkBody(h.Body)
		}
		f.path = saved
		b.walkBody(n.Orelse)
		b.walkBody(n.Final)

	case *ast.Match:
		b.walkExpr(n.Subject)
		f := b.cur()
		saved := f.path
		for _, c := range n.Cases {
			b.recordBind(c.Pattern, c)
			if c.Guard != nil {
				b.walkExpr(c.Guard)
			}
			pred := b.predicateID(PredPatternMatch, n.Subject)
			f.path = b.and_(saved, b.ite(pred, ConstraintTrue, ConstraintFalse))
			b.walkBody(c.Body)
		}
		f.path = saved

	case *ast.Global:
	case *ast.Nonlocal:
		// Global and nonlocal declarations are not recorded: a name they
		// list is still bound in, and read from, the scope the statement
		// appears in, not the module or enclosing function scope.

	case *ast.Return:
		if n.Value != nil {
			b.walkExpr(n.Value)
		}
	case *ast.ExprStmt:
		b.walkExpr(n.Value)
	case *ast.Delete:
		for _, t := range n.Targets {
			b.walkTargetUse(t)
		}
	case *ast.Assert:
		b.walkExpr(n.Test)
		if n.Msg != nil {
			b.walkExpr(n.Msg)
		}
	case *ast.Pass, *ast.Break, *ast.Continue:
	}
}

// branch walks an If/While's two arms under complementary path
// constraints, then merges the two arms' live-definition state with
// mergeLive so a read after the branch sees the definitions of both
// (spec.md §4.5 step 4 "use-def chain construction").
func (b *builder) branch(pred PredicateID, body, orelse []ast.Stmt) {
	f := b.cur()
	saved := f.path
	savedLive := cloneLive(f.live)

	f.path = b.and_(saved, b.ite(pred, ConstraintTrue, ConstraintFalse))
	b.walkBody(body)
	thenLive := f.live

	f.live = cloneLive(savedLive)
	f.path = b.and_(saved, b.ite(pred, ConstraintFalse, ConstraintTrue))
	b.walkBody(orelse)
	elseLive := f.live

	f.live = mergeLive(thenLive, elseLive)
	f.path = saved
}

func cloneBinding(b *liveBinding) *liveBinding {
	defs := make([]DefSite, len(b.Defs))
	copy(defs, b.Defs)
	return &liveBinding{Defs: defs, MayBeUnbound: b.MayBeUnbound}
}

func cloneLive(live map[string]*liveBinding) map[string]*liveBinding {
	cp := make(map[string]*liveBinding, len(live))
	for k, v := range live {
		cp[k] = cloneBinding(v)
	}
	return cp
}

// mergeLive unions the reaching definitions of two branch arms. A symbol
// bound on only one arm carries that arm's definitions forward, but is
// flagged MayBeUnbound: the other arm reached this point with no
// definition for it at all (spec.md §3 "MayBeUnbound").
func mergeLive(a, b map[string]*liveBinding) map[string]*liveBinding {
	out := make(map[string]*liveBinding, len(a)+len(b))
	for k, av := range a {
		bv, ok := b[k]
		switch {
		case !ok:
			out[k] = &liveBinding{Defs: append([]DefSite{}, av.Defs...), MayBeUnbound: true}
		default:
			defs := append(append([]DefSite{}, av.Defs...), bv.Defs...)
			out[k] = &liveBinding{Defs: defs, MayBeUnbound: av.MayBeUnbound || bv.MayBeUnbound}
		}
	}
	for k, bv := range b {
		if _, ok := a[k]; ok {
			continue
		}
		out[k] = &liveBinding{Defs: append([]DefSite{}, bv.Defs...), MayBeUnbound: true}
	}
	return out
}

func (b *builder) bindName(name string, definer ast.Node) {
	f := b.cur()
	sid := b.symbolID(name)
	p := b.place(f.scope, sid)
	if existing, ok := f.live[name]; ok && len(existing.Defs) > 0 {
		p.Flags |= FlagReassigned
	}
	p.Flags |= FlagBound
	f.live[name] = &liveBinding{Defs: []DefSite{{Node: definer, Constraint: f.path}}}
}

// walkTargetUse records a read of an existing target (AugAssign's LHS,
// Delete's operand) without creating a new Place flag beyond USED.
func (b *builder) walkTargetUse(e ast.Expr) {
	switch t := e.(type) {
	case *ast.Name:
		b.recordUse(t)
	case *ast.Attribute, *ast.Subscript:
		if root, segs, ok := memberChain(t); ok {
			b.recordMemberUse(root, segs, false)
		}
	}
}

func (b *builder) walkExpr(e ast.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Name:
		b.recordUse(n)
	case *ast.Attribute:
		if root, segs, ok := memberChain(n); ok {
			b.recordMemberUse(root, segs, false)
		} else {
			b.walkExpr(n.Value)
		}
	case *ast.Subscript:
		if root, segs, ok := memberChain(n); ok {
			b.recordMemberUse(root, segs, false)
		} else {
			b.walkExpr(n.Value)
			b.walkExpr(n.Index)
		}
	case *ast.Constant:
	case *ast.Call:
		b.walkExpr(n.Func)
		for _, a := range n.Args {
			b.walkExpr(a)
		}
	case *ast.IsInstance:
		b.walkExpr(n.Target)
		for _, t := range n.Types {
			b.walkExpr(t)
		}
	case *ast.BoolOp:
		for _, v := range n.Values {
			b.walkExpr(v)
		}
	case *ast.UnaryOp:
		b.walkExpr(n.Operand)
	case *ast.BinOp:
		b.walkExpr(n.Left)
		b.walkExpr(n.Right)
	case *ast.Compare:
		b.walkExpr(n.Left)
		for _, c := range n.Comparators {
			b.walkExpr(c)
		}
	case *ast.IfExp:
		b.walkExpr(n.Test)
		b.walkExpr(n.Body)
		b.walkExpr(n.Orelse)
	case *ast.Lambda:
		f := b.cur()
		sid := b.newScope(f.scope, ScopeLambda, n, ast.FunctionPlain, false)
		b.scopeOf(n, sid)
		b.pushFrame(sid)
		for i, p := range n.Params {
			pid := b.symbolID(p.Name)
			pl := b.place(sid, pid)
			pl.Flags |= FlagBound | FlagDeclared
			b.cur().live[p.Name] = &liveBinding{Defs: []DefSite{{Node: n.Params[i], Constraint: ConstraintTrue}}}
		}
		b.walkExpr(n.Body)
		b.popFrame()
	case *ast.Comprehension:
		f := b.cur()
		sid := b.newScope(f.scope, ScopeComprehension, n, ast.FunctionPlain, false)
		b.scopeOf(n, sid)
		b.pushFrame(sid)
		b.walkExpr(n.Iter)
		b.recordBind(n.Target, n)
		for _, i := range n.Ifs {
			b.walkExpr(i)
		}
		b.walkExpr(n.Element)
		if n.Value != nil {
			b.walkExpr(n.Value)
		}
		b.popFrame()
	case *ast.NamedExpr:
		b.walkExpr(n.Value)
		b.recordBind(n.Target, n)
	case *ast.Starred:
		b.walkExpr(n.Value)
	case *ast.Tuple:
		for _, el := range n.Elts {
			b.walkExpr(el)
		}
	case *ast.List:
		for _, el := range n.Elts {
			b.walkExpr(el)
		}
	}
}

// finishInstanceAttributes runs the post-pass spec.md §4.5 step 5
// describes: attributes discovered via maybeInstanceAttr during the main
// walk are already accumulated per class scope; this step only marks
// the corresponding Place in any method scope where the same name was
// read as `self.<name>`, for consumers that want FlagInstanceAttribute on
// the read side too.
func (b *builder) finishInstanceAttributes() {
	for classID, attrs := range b.ix.instanceAttrs {
		class := b.ix.scopes[classID]
		for _, child := range class.Children {
			s := b.ix.scopes[child]
			if s.Kind != ScopeFunction || !s.IsMethod {
				continue
			}
			for _, p := range b.ix.members[child] {
				if len(p.Segs) == 1 && p.Segs[0].Kind == SegAttr && attrs[p.Segs[0].Name] {
					p.Flags |= FlagInstanceAttribute
				}
			}
		}
	}
}
