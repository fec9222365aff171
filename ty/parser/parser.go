// Package parser implements a recursive-descent parser for the Python
// subset described by ty/ast, grounded structurally on cue/parser (a
// Config struct selecting parse modes, a parser holding a token cursor,
// and per-construct parseX methods that never panic on malformed input:
// errors become entries in the returned file's diagnostic list rather
// than aborting the parse, matching spec.md §3 "ParsedModule" and §7
// "Parse diagnostic").
package parser

import (
	"github.com/tylang/tycore/ty/ast"
	"github.com/tylang/tycore/ty/errors"
	"github.com/tylang/tycore/ty/token"
)

// Mode controls how much of the input is parsed.
type Mode uint

const (
	// ParseComments is the mode suppression-scanning callers pass;
	// Result.Comments is filled on every parse, whatever the mode.
	ParseComments Mode = 1 << iota
	// ImportsOnly stops after the leading import/from statements,
	// matching cue's fscache fallback behavior for files with syntax
	// errors deeper in the body.
	ImportsOnly
)

// Config configures a parse, mirroring cue/parser's Config shape.
type Config struct {
	Mode Mode
}

// Result is the outcome of parsing one file: an AST (always non-nil,
// even on error, per spec.md's "ParsedModule" contract), a token stream
// (the raw comments, for suppression scanning), and any diagnostics.
type Result struct {
	File     *ast.Module
	Comments []Comment
	Errors   error // aggregated via ty/errors.Append; nil if none
}

// Comment is one `#`-introduced comment extracted during lexing, kept
// separately from the AST since the Suppression Engine scans tokens
// rather than AST nodes (spec.md §4.7).
type Comment struct {
	Text string // without leading '#'
	Pos  token.Pos
	End  token.Pos
	// OwnLine is true if the comment is preceded only by whitespace on
	// its line, meaning it suppresses the *next* logical line rather
	// than the one it terminates (spec.md §4.7).
	OwnLine bool
}

// ParseFile parses src (already wrapped in file for position info) and
// always returns a usable, if partial, Result.
func ParseFile(file *token.File, src []byte, cfg Config) *Result {
	lx := newLexer(file, src)
	toks := lx.tokenize()

	p := &parser{file: file, toks: toks, cfg: cfg}
	mod := p.parseModule()

	comments := make([]Comment, 0, len(lx.comments))
	for i, c := range lx.comments {
		comments = append(comments, Comment{
			Text:    c.lit[1:],
			Pos:     c.pos,
			End:     c.end,
			OwnLine: commentIsOwnLine(src, c.pos.Offset()),
		})
		_ = i
	}

	var errs error
	for _, e := range p.errs {
		errs = errors.Append(errs, e)
	}

	return &Result{File: mod, Comments: comments, Errors: errs}
}

func commentIsOwnLine(src []byte, offset int) bool {
	i := offset - 1
	for i >= 0 && (src[i] == ' ' || src[i] == '\t') {
		i--
	}
	return i < 0 || src[i] == '\n'
}

type parser struct {
	file *token.File
	toks []lexeme
	pos  int
	cfg  Config
	errs []errors.Error
}

func (p *parser) cur() lexeme  { return p.toks[p.pos] }
func (p *parser) peek(n int) lexeme {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *parser) advance() lexeme {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errf(pos token.Pos, format string, args ...interface{}) {
	p.errs = append(p.errs, errors.Newf(pos, format, args...).(errors.Error))
}

func (p *parser) is(kind tokKind, lit string) bool {
	t := p.cur()
	return t.kind == kind && (lit == "" || t.lit == lit)
}

func (p *parser) isKeyword(kw string) bool { return p.is(tKEYWORD, kw) }
func (p *parser) isOp(op string) bool      { return p.is(tOP, op) }

func (p *parser) expectOp(op string) token.Pos {
	if p.isOp(op) {
		t := p.advance()
		return t.pos
	}
	pos := p.cur().pos
	p.errf(pos, "expected %q, found %q", op, p.cur().lit)
	return pos
}

func (p *parser) skipNewlines() {
	for p.is(tNEWLINE, "") {
		p.advance()
	}
}

// synchronize skips tokens until the next NEWLINE/DEDENT/EOF, so a single
// malformed statement doesn't corrupt the rest of the file's structure
// (spec.md §7: rule/parse code "returns silently rather than aborting").
func (p *parser) synchronize() {
	for !p.is(tNEWLINE, "") && !p.is(tDEDENT, "") && p.cur().kind != tEOF {
		p.advance()
	}
	if p.is(tNEWLINE, "") {
		p.advance()
	}
}

func (p *parser) parseModule() *ast.Module {
	start := p.cur().pos
	mod := &ast.Module{}
	mod.From = start
	p.skipNewlines()
	for p.cur().kind != tEOF {
		if p.cfg.Mode&ImportsOnly != 0 && !p.isKeyword("import") && !p.isKeyword("from") {
			break
		}
		s := p.parseStmt()
		if s != nil {
			mod.Body = append(mod.Body, s)
		}
		p.skipNewlines()
	}
	mod.To = p.cur().pos
	return mod
}

func (p *parser) parseBlock() []ast.Stmt {
	p.expectOp(":")
	p.skipNewlines()
	if !p.is(tINDENT, "") {
		// Single-line suite: `if x: y = 1`.
		var stmts []ast.Stmt
		for !p.is(tNEWLINE, "") && p.cur().kind != tEOF {
			if s := p.parseSimpleStmt(); s != nil {
				stmts = append(stmts, s)
			}
			if p.isOp(";") {
				p.advance()
				continue
			}
			break
		}
		return stmts
	}
	p.advance() // INDENT
	var stmts []ast.Stmt
	for !p.is(tDEDENT, "") && p.cur().kind != tEOF {
		if s := p.parseStmt(); s != nil {
			stmts = append(stmts, s)
		}
		p.skipNewlines()
	}
	if p.is(tDEDENT, "") {
		p.advance()
	}
	return stmts
}

func (p *parser) parseStmt() ast.Stmt {
	switch {
	case p.isKeyword("def"):
		return p.parseFunctionDef(nil, ast.FunctionPlain)
	case p.isKeyword("async"):
		p.advance()
		if p.isKeyword("def") {
			return p.parseFunctionDef(nil, ast.FunctionAsync)
		}
		return p.parseSimpleStmtLine()
	case p.isKeyword("class"):
		return p.parseClassDef(nil)
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("while"):
		return p.parseWhile()
	case p.isKeyword("for"):
		return p.parseFor()
	case p.isKeyword("try"):
		return p.parseTry()
	case p.isKeyword("match"):
		return p.parseMatch()
	case p.isOp("@"):
		return p.parseDecorated()
	default:
		return p.parseSimpleStmtLine()
	}
}

func (p *parser) parseDecorated() ast.Stmt {
	var decorators []ast.Expr
	for p.isOp("@") {
		p.advance()
		decorators = append(decorators, p.parseExpr())
		p.skipNewlines()
	}
	if p.isKeyword("async") {
		p.advance()
	}
	if p.isKeyword("def") {
		return p.parseFunctionDef(decorators, ast.FunctionPlain)
	}
	if p.isKeyword("class") {
		return p.parseClassDef(decorators)
	}
	return p.parseSimpleStmtLine()
}

func classifyDecorators(decorators []ast.Expr) ast.FunctionKind {
	for _, d := range decorators {
		name := decoratorName(d)
		switch name {
		case "staticmethod":
			return ast.FunctionStaticMethod
		case "classmethod":
			return ast.FunctionClassMethod
		case "overload":
			return ast.FunctionOverload
		case "abstractmethod":
			return ast.FunctionAbstract
		}
	}
	return ast.FunctionPlain
}

func decoratorName(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Name:
		return e.Id
	case *ast.Attribute:
		return e.Attr
	case *ast.Call:
		return decoratorName(e.Func)
	}
	return ""
}

func (p *parser) parseFunctionDef(decorators []ast.Expr, kind ast.FunctionKind) ast.Stmt {
	start := p.advance().pos // 'def'
	name := p.parseName()
	p.expectOp("(")
	var params []*ast.Param
	for !p.isOp(")") && p.cur().kind != tEOF {
		params = append(params, p.parseParam())
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	end := p.expectOp(")")
	var returns ast.Expr
	if p.isOp("->") {
		p.advance()
		returns = p.parseExpr()
	}
	if k := classifyDecorators(decorators); k != ast.FunctionPlain {
		kind = k
	}
	body := p.parseBlock()
	fn := &ast.FunctionDef{
		Name:       name,
		Params:     params,
		Body:       body,
		Kind:       kind,
		Decorators: decorators,
		Returns:    returns,
	}
	fn.From, fn.To = start, end
	return fn
}

func (p *parser) parseParam() *ast.Param {
	start := p.cur().pos
	star := ""
	if p.isOp("*") || p.isOp("**") {
		star = p.advance().lit
	}
	name := p.parseName()
	par := &ast.Param{Name: star + name}
	par.From = start
	if p.isOp(":") {
		p.advance()
		par.Annotation = p.parseTernary()
	}
	if p.isOp("=") {
		p.advance()
		par.Default = p.parseTernary()
	}
	par.To = p.cur().pos
	return par
}

func (p *parser) parseClassDef(decorators []ast.Expr) ast.Stmt {
	start := p.advance().pos // 'class'
	name := p.parseName()
	var bases []ast.Expr
	var typeParams []string
	if p.isOp("[") {
		p.advance()
		for !p.isOp("]") && p.cur().kind != tEOF {
			typeParams = append(typeParams, p.parseName())
			if p.isOp(",") {
				p.advance()
				continue
			}
			break
		}
		p.expectOp("]")
	}
	if p.isOp("(") {
		p.advance()
		for !p.isOp(")") && p.cur().kind != tEOF {
			bases = append(bases, p.parseExpr())
			if p.isOp(",") {
				p.advance()
				continue
			}
			break
		}
		p.expectOp(")")
	}
	body := p.parseBlock()
	cd := &ast.ClassDef{Name: name, Bases: bases, Body: body, Decorators: decorators, TypeParams: typeParams}
	cd.From, cd.To = start, p.cur().pos
	return cd
}

func (p *parser) parseIf() ast.Stmt {
	start := p.advance().pos // 'if'
	test := p.parseExpr()
	body := p.parseBlock()
	var orelse []ast.Stmt
	if p.isKeyword("elif") {
		orelse = []ast.Stmt{p.parseIfElif()}
	} else if p.isKeyword("else") {
		p.advance()
		orelse = p.parseBlock()
	}
	n := &ast.If{Test: test, Body: body, Orelse: orelse}
	n.From, n.To = start, p.cur().pos
	return n
}

// parseIfElif parses `elif test: body ...` as a nested If, matching
// Python's own desugaring of elif chains.
func (p *parser) parseIfElif() ast.Stmt {
	start := p.advance().pos // 'elif'
	test := p.parseExpr()
	body := p.parseBlock()
	var orelse []ast.Stmt
	if p.isKeyword("elif") {
		orelse = []ast.Stmt{p.parseIfElif()}
	} else if p.isKeyword("else") {
		p.advance()
		orelse = p.parseBlock()
	}
	n := &ast.If{Test: test, Body: body, Orelse: orelse}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseWhile() ast.Stmt {
	start := p.advance().pos
	test := p.parseExpr()
	body := p.parseBlock()
	var orelse []ast.Stmt
	if p.isKeyword("else") {
		p.advance()
		orelse = p.parseBlock()
	}
	n := &ast.While{Test: test, Body: body, Orelse: orelse}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseFor() ast.Stmt {
	start := p.advance().pos
	target := p.parseTargetList()
	if !p.isKeyword("in") {
		p.errf(p.cur().pos, "expected 'in' in for statement")
	} else {
		p.advance()
	}
	iter := p.parseExpr()
	body := p.parseBlock()
	var orelse []ast.Stmt
	if p.isKeyword("else") {
		p.advance()
		orelse = p.parseBlock()
	}
	n := &ast.For{Target: target, Iter: iter, Body: body, Orelse: orelse}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseTry() ast.Stmt {
	start := p.advance().pos
	body := p.parseBlock()
	var handlers []ast.ExceptHandler
	for p.isKeyword("except") {
		hstart := p.advance().pos
		var typ ast.Expr
		name := ""
		if !p.isOp(":") {
			typ = p.parseExpr()
			if p.isKeyword("as") {
				p.advance()
				name = p.parseName()
			}
		}
		hbody := p.parseBlock()
		h := ast.ExceptHandler{Type: typ, Name: name, Body: hbody}
		h.From, h.To = hstart, p.cur().pos
		handlers = append(handlers, h)
	}
	var orelse, final []ast.Stmt
	if p.isKeyword("else") {
		p.advance()
		orelse = p.parseBlock()
	}
	if p.isKeyword("finally") {
		p.advance()
		final = p.parseBlock()
	}
	n := &ast.Try{Body: body, Handler: handlers, Orelse: orelse, Final: final}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseMatch() ast.Stmt {
	start := p.advance().pos
	subject := p.parseExpr()
	p.expectOp(":")
	p.skipNewlines()
	var cases []ast.MatchCase
	if p.is(tINDENT, "") {
		p.advance()
		for p.isKeyword("case") {
			cstart := p.advance().pos
			pattern := p.parseExpr()
			var guard ast.Expr
			if p.isKeyword("if") {
				p.advance()
				guard = p.parseExpr()
			}
			cbody := p.parseBlock()
			c := ast.MatchCase{Pattern: pattern, Guard: guard, Body: cbody}
			c.From, c.To = cstart, p.cur().pos
			cases = append(cases, c)
			p.skipNewlines()
		}
		if p.is(tDEDENT, "") {
			p.advance()
		}
	}
	n := &ast.Match{Subject: subject, Cases: cases}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseSimpleStmtLine() ast.Stmt {
	s := p.parseSimpleStmt()
	for p.isOp(";") {
		p.advance()
		if p.is(tNEWLINE, "") || p.cur().kind == tEOF {
			break
		}
		p.parseSimpleStmt()
	}
	if !p.is(tNEWLINE, "") && p.cur().kind != tEOF && !p.is(tDEDENT, "") {
		p.errf(p.cur().pos, "unexpected token %q", p.cur().lit)
		p.synchronize()
	}
	return s
}

func (p *parser) parseSimpleStmt() ast.Stmt {
	switch {
	case p.isKeyword("pass"):
		pos := p.advance().pos
		n := &ast.Pass{}
		n.From, n.To = pos, pos
		return n
	case p.isKeyword("break"):
		pos := p.advance().pos
		n := &ast.Break{}
		n.From, n.To = pos, pos
		return n
	case p.isKeyword("continue"):
		pos := p.advance().pos
		n := &ast.Continue{}
		n.From, n.To = pos, pos
		return n
	case p.isKeyword("return"):
		start := p.advance().pos
		var v ast.Expr
		if !p.is(tNEWLINE, "") && p.cur().kind != tEOF && !p.isOp(";") {
			v = p.parseExprList()
		}
		n := &ast.Return{Value: v}
		n.From, n.To = start, p.cur().pos
		return n
	case p.isKeyword("import"):
		return p.parseImport()
	case p.isKeyword("from"):
		return p.parseImportFrom()
	case p.isKeyword("global"):
		return p.parseGlobalNonlocal(true)
	case p.isKeyword("nonlocal"):
		return p.parseGlobalNonlocal(false)
	case p.isKeyword("del"):
		start := p.advance().pos
		var targets []ast.Expr
		targets = append(targets, p.parseExpr())
		for p.isOp(",") {
			p.advance()
			targets = append(targets, p.parseExpr())
		}
		n := &ast.Delete{Targets: targets}
		n.From, n.To = start, p.cur().pos
		return n
	case p.isKeyword("assert"):
		start := p.advance().pos
		test := p.parseExpr()
		var msg ast.Expr
		if p.isOp(",") {
			p.advance()
			msg = p.parseExpr()
		}
		n := &ast.Assert{Test: test, Msg: msg}
		n.From, n.To = start, p.cur().pos
		return n
	case p.isKeyword("raise"):
		start := p.advance().pos
		if !p.is(tNEWLINE, "") && p.cur().kind != tEOF {
			p.parseExpr()
			if p.isKeyword("from") {
				p.advance()
				p.parseExpr()
			}
		}
		n := &ast.Pass{} // raise has no scope/use-def effect we model
		n.From, n.To = start, p.cur().pos
		return n
	case p.isKeyword("type"):
		return p.parseTypeAlias()
	default:
		return p.parseExprOrAssign()
	}
}

func (p *parser) parseTypeAlias() ast.Stmt {
	start := p.advance().pos // 'type'
	name := p.parseName()
	var tp []string
	if p.isOp("[") {
		p.advance()
		for !p.isOp("]") && p.cur().kind != tEOF {
			tp = append(tp, p.parseName())
			if p.isOp(",") {
				p.advance()
				continue
			}
			break
		}
		p.expectOp("]")
	}
	p.expectOp("=")
	val := p.parseExpr()
	n := &ast.TypeAlias{Name: name, TypeParams: tp, Value: val}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseGlobalNonlocal(isGlobal bool) ast.Stmt {
	start := p.advance().pos
	var names []string
	names = append(names, p.parseName())
	for p.isOp(",") {
		p.advance()
		names = append(names, p.parseName())
	}
	if isGlobal {
		n := &ast.Global{Names: names}
		n.From, n.To = start, p.cur().pos
		return n
	}
	n := &ast.Nonlocal{Names: names}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseImport() ast.Stmt {
	start := p.advance().pos
	var mods []ast.ImportedModule
	for {
		mstart := p.cur().pos
		dotted := p.parseDottedName()
		alias := ""
		if p.isKeyword("as") {
			p.advance()
			alias = p.parseName()
		}
		m := ast.ImportedModule{DottedName: dotted, Alias: alias}
		m.From, m.To = mstart, p.cur().pos
		mods = append(mods, m)
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	n := &ast.Import{Modules: mods}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseImportFrom() ast.Stmt {
	start := p.advance().pos // 'from'
	level := 0
	for p.isOp(".") {
		level++
		p.advance()
	}
	module := ""
	if !p.isKeyword("import") {
		module = p.parseDottedName()
	}
	if p.isKeyword("import") {
		p.advance()
	}
	n := &ast.ImportFrom{Level: level, Module: module}
	if p.isOp("*") {
		p.advance()
		n.WildImp = true
	} else {
		paren := p.isOp("(")
		if paren {
			p.advance()
			p.skipNewlines()
		}
		for {
			nstart := p.cur().pos
			name := p.parseName()
			alias := ""
			if p.isKeyword("as") {
				p.advance()
				alias = p.parseName()
			}
			in := ast.ImportedName{Name: name, Alias: alias}
			in.From, in.To = nstart, p.cur().pos
			n.Names = append(n.Names, in)
			if p.isOp(",") {
				p.advance()
				p.skipNewlines()
				if paren && p.isOp(")") {
					break
				}
				continue
			}
			break
		}
		if paren {
			p.skipNewlines()
			p.expectOp(")")
		}
	}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseDottedName() string {
	name := p.parseName()
	for p.isOp(".") {
		p.advance()
		name += "." + p.parseName()
	}
	return name
}

func (p *parser) parseName() string {
	if p.cur().kind == tNAME {
		return p.advance().lit
	}
	p.errf(p.cur().pos, "expected identifier, found %q", p.cur().lit)
	return ""
}

// parseExprOrAssign parses an expression statement, which might turn out
// to be a plain expression, an assignment (possibly chained/annotated),
// or an augmented assignment, per Python's unified grammar production.
func (p *parser) parseExprOrAssign() ast.Stmt {
	start := p.cur().pos
	first := p.parseExprList()

	if p.isOp(":") {
		p.advance()
		anno := p.parseExpr()
		var val ast.Expr
		if p.isOp("=") {
			p.advance()
			val = p.parseExprList()
		}
		n := &ast.AnnAssign{Target: first, Annotation: anno, Value: val}
		n.From, n.To = start, p.cur().pos
		return n
	}

	if augOp, ok := p.curAugAssign(); ok {
		p.advance()
		val := p.parseExprList()
		n := &ast.AugAssign{Target: first, Op: augOp, Value: val}
		n.From, n.To = start, p.cur().pos
		return n
	}

	if p.isOp("=") {
		targets := []ast.Expr{first}
		var value ast.Expr
		for p.isOp("=") {
			p.advance()
			value = p.parseExprList()
			if p.isOp("=") {
				targets = append(targets, value)
			}
		}
		n := &ast.Assign{Targets: targets, Value: value}
		n.From, n.To = start, p.cur().pos
		return n
	}

	n := &ast.ExprStmt{Value: first}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) curAugAssign() (string, bool) {
	if p.cur().kind != tOP {
		return "", false
	}
	switch p.cur().lit {
	case "+=", "-=", "*=", "/=", "//=", "%=", "**=", "&=", "|=", "^=", ">>=", "<<=":
		return p.cur().lit, true
	}
	return "", false
}

func (p *parser) parseTargetList() ast.Expr {
	first := p.parseBitOr()
	if !p.isOp(",") {
		return first
	}
	elts := []ast.Expr{first}
	for p.isOp(",") {
		p.advance()
		if p.isKeyword("in") {
			break
		}
		elts = append(elts, p.parseBitOr())
	}
	t := &ast.Tuple{Elts: elts}
	t.From = first.Pos()
	t.To = p.cur().pos
	return t
}

func (p *parser) parseExprList() ast.Expr {
	first := p.parseExpr()
	if !p.isOp(",") {
		return first
	}
	elts := []ast.Expr{first}
	for p.isOp(",") {
		p.advance()
		if p.is(tNEWLINE, "") || p.cur().kind == tEOF || p.isOp("=") {
			break
		}
		elts = append(elts, p.parseExpr())
	}
	t := &ast.Tuple{Elts: elts}
	t.From = first.Pos()
	t.To = p.cur().pos
	return t
}

// --- expressions, lowest to highest precedence ---

func (p *parser) parseExpr() ast.Expr { return p.parseTernary() }

func (p *parser) parseTernary() ast.Expr {
	if p.isKeyword("lambda") {
		return p.parseLambda()
	}
	body := p.parseOr()
	if p.isKeyword("if") {
		p.advance()
		test := p.parseOr()
		var orelse ast.Expr
		if p.isKeyword("else") {
			p.advance()
			orelse = p.parseTernary()
		}
		n := &ast.IfExp{Test: test, Body: body, Orelse: orelse}
		n.From, n.To = body.Pos(), p.cur().pos
		return n
	}
	if p.isOp(":=") {
		p.advance()
		name, ok := body.(*ast.Name)
		if !ok {
			name = &ast.Name{Id: "_"}
		}
		val := p.parseTernary()
		n := &ast.NamedExpr{Target: name, Value: val}
		n.From, n.To = body.Pos(), p.cur().pos
		return n
	}
	return body
}

func (p *parser) parseLambda() ast.Expr {
	start := p.advance().pos
	var params []*ast.Param
	for !p.isOp(":") && p.cur().kind != tEOF {
		params = append(params, p.parseParam())
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectOp(":")
	body := p.parseTernary()
	n := &ast.Lambda{Params: params, Body: body}
	n.From, n.To = start, p.cur().pos
	return n
}

func (p *parser) parseOr() ast.Expr {
	left := p.parseAnd()
	if p.isKeyword("or") {
		values := []ast.Expr{left}
		for p.isKeyword("or") {
			p.advance()
			values = append(values, p.parseAnd())
		}
		n := &ast.BoolOp{Op: "or", Values: values}
		n.From, n.To = left.Pos(), p.cur().pos
		return n
	}
	return left
}

func (p *parser) parseAnd() ast.Expr {
	left := p.parseNot()
	if p.isKeyword("and") {
		values := []ast.Expr{left}
		for p.isKeyword("and") {
			p.advance()
			values = append(values, p.parseNot())
		}
		n := &ast.BoolOp{Op: "and", Values: values}
		n.From, n.To = left.Pos(), p.cur().pos
		return n
	}
	return left
}

func (p *parser) parseNot() ast.Expr {
	if p.isKeyword("not") {
		start := p.advance().pos
		operand := p.parseNot()
		n := &ast.UnaryOp{Op: "not", Operand: operand}
		n.From, n.To = start, p.cur().pos
		return n
	}
	return p.parseComparison()
}

var compareOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true}

func (p *parser) parseComparison() ast.Expr {
	left := p.parseBitOr()
	var ops []string
	var comparators []ast.Expr
	for {
		if p.cur().kind == tOP && compareOps[p.cur().lit] {
			ops = append(ops, p.advance().lit)
			comparators = append(comparators, p.parseBitOr())
			continue
		}
		if p.isKeyword("in") {
			p.advance()
			ops = append(ops, "in")
			comparators = append(comparators, p.parseBitOr())
			continue
		}
		if p.isKeyword("not") && p.peek(1).kind == tKEYWORD && p.peek(1).lit == "in" {
			p.advance()
			p.advance()
			ops = append(ops, "not in")
			comparators = append(comparators, p.parseBitOr())
			continue
		}
		if p.isKeyword("is") {
			p.advance()
			op := "is"
			if p.isKeyword("not") {
				p.advance()
				op = "is not"
			}
			ops = append(ops, op)
			comparators = append(comparators, p.parseBitOr())
			continue
		}
		break
	}
	if len(ops) == 0 {
		return left
	}
	n := &ast.Compare{Left: left, Ops: ops, Comparators: comparators}
	n.From, n.To = left.Pos(), p.cur().pos
	return n
}

// recognizeIsInstance converts a parsed `isinstance(x, T)` Call into a
// first-class IsInstance node, per spec.md §4.5 predicate extraction at
// isinstance tests. T may be a single type or a tuple of types.
func recognizeIsInstance(e ast.Expr) ast.Expr {
	call, ok := e.(*ast.Call)
	if !ok {
		return nil
	}
	name, ok := call.Func.(*ast.Name)
	if !ok || name.Id != "isinstance" || len(call.Args) != 2 {
		return nil
	}
	var types []ast.Expr
	if tup, ok := call.Args[1].(*ast.Tuple); ok {
		types = tup.Elts
	} else {
		types = []ast.Expr{call.Args[1]}
	}
	n := &ast.IsInstance{Target: call.Args[0], Types: types}
	n.From, n.To = call.From, call.To
	return n
}

func (p *parser) parseBitOr() ast.Expr {
	left := p.parseBitXor()
	for p.isOp("|") {
		op := p.advance().lit
		right := p.parseBitXor()
		n := &ast.BinOp{Left: left, Op: op, Right: right}
		n.From, n.To = left.Pos(), p.cur().pos
		left = n
	}
	return left
}

func (p *parser) parseBitXor() ast.Expr {
	left := p.parseBitAnd()
	for p.isOp("^") {
		op := p.advance().lit
		right := p.parseBitAnd()
		n := &ast.BinOp{Left: left, Op: op, Right: right}
		n.From, n.To = left.Pos(), p.cur().pos
		left = n
	}
	return left
}

func (p *parser) parseBitAnd() ast.Expr {
	left := p.parseShift()
	for p.isOp("&") {
		op := p.advance().lit
		right := p.parseShift()
		n := &ast.BinOp{Left: left, Op: op, Right: right}
		n.From, n.To = left.Pos(), p.cur().pos
		left = n
	}
	return left
}

func (p *parser) parseShift() ast.Expr {
	left := p.parseAdditive()
	for p.isOp("<<") || p.isOp(">>") {
		op := p.advance().lit
		right := p.parseAdditive()
		n := &ast.BinOp{Left: left, Op: op, Right: right}
		n.From, n.To = left.Pos(), p.cur().pos
		left = n
	}
	return left
}

func (p *parser) parseAdditive() ast.Expr {
	left := p.parseTerm()
	for p.isOp("+") || p.isOp("-") {
		op := p.advance().lit
		right := p.parseTerm()
		n := &ast.BinOp{Left: left, Op: op, Right: right}
		n.From, n.To = left.Pos(), p.cur().pos
		left = n
	}
	return left
}

func (p *parser) parseTerm() ast.Expr {
	left := p.parseUnary()
	for p.isOp("*") || p.isOp("/") || p.isOp("//") || p.isOp("%") || p.isOp("@") {
		op := p.advance().lit
		right := p.parseUnary()
		n := &ast.BinOp{Left: left, Op: op, Right: right}
		n.From, n.To = left.Pos(), p.cur().pos
		left = n
	}
	return left
}

func (p *parser) parseUnary() ast.Expr {
	if p.isOp("+") || p.isOp("-") || p.isOp("~") {
		start := p.advance()
		operand := p.parseUnary()
		n := &ast.UnaryOp{Op: start.lit, Operand: operand}
		n.From, n.To = start.pos, p.cur().pos
		return n
	}
	if p.isOp("*") || p.isOp("**") {
		start := p.advance()
		operand := p.parseUnary()
		n := &ast.Starred{Value: operand}
		n.From, n.To = start.pos, p.cur().pos
		return n
	}
	return p.parsePower()
}

func (p *parser) parsePower() ast.Expr {
	left := p.parsePostfix()
	if p.isOp("**") {
		p.advance()
		right := p.parseUnary()
		n := &ast.BinOp{Left: left, Op: "**", Right: right}
		n.From, n.To = left.Pos(), p.cur().pos
		return n
	}
	return left
}

func (p *parser) parsePostfix() ast.Expr {
	e := p.parseAtom()
	for {
		switch {
		case p.isOp("."):
			p.advance()
			attr := p.parseName()
			n := &ast.Attribute{Value: e, Attr: attr}
			n.From, n.To = e.Pos(), p.cur().pos
			e = n
		case p.isOp("("):
			p.advance()
			var args []ast.Expr
			for !p.isOp(")") && p.cur().kind != tEOF {
				args = append(args, p.parseCallArg())
				if p.isOp(",") {
					p.advance()
					continue
				}
				break
			}
			end := p.expectOp(")")
			n := &ast.Call{Func: e, Args: args}
			n.From, n.To = e.Pos(), end
			if ie := recognizeIsInstance(n); ie != nil {
				e = ie
			} else {
				e = n
			}
		case p.isOp("["):
			p.advance()
			idx := p.parseSliceOrIndex()
			end := p.expectOp("]")
			n := &ast.Subscript{Value: e, Index: idx}
			n.From, n.To = e.Pos(), end
			e = n
		default:
			return e
		}
	}
}

func (p *parser) parseCallArg() ast.Expr {
	if p.cur().kind == tNAME && p.peek(1).kind == tOP && p.peek(1).lit == "=" {
		p.advance()
		p.advance()
		return p.parseExpr()
	}
	return p.parseExpr()
}

func (p *parser) parseSliceOrIndex() ast.Expr {
	var parts []ast.Expr
	for {
		if p.isOp(":") || p.isOp("]") {
			parts = append(parts, nil)
		} else {
			parts = append(parts, p.parseExpr())
		}
		if p.isOp(":") {
			p.advance()
			continue
		}
		break
	}
	if len(parts) == 1 {
		return parts[0]
	}
	var elts []ast.Expr
	for _, e := range parts {
		if e != nil {
			elts = append(elts, e)
		}
	}
	t := &ast.Tuple{Elts: elts}
	return t
}

func (p *parser) parseAtom() ast.Expr {
	t := p.cur()
	switch {
	case t.kind == tNAME:
		p.advance()
		n := &ast.Name{Id: t.lit}
		n.From, n.To = t.pos, t.end
		return n
	case t.kind == tNUMBER:
		p.advance()
		n := &ast.Constant{Kind: "number", Value: t.lit}
		n.From, n.To = t.pos, t.end
		return n
	case t.kind == tSTRING:
		p.advance()
		for p.cur().kind == tSTRING { // implicit string concatenation
			t.lit += p.advance().lit
		}
		n := &ast.Constant{Kind: "str", Value: t.lit}
		n.From, n.To = t.pos, p.cur().pos
		return n
	case t.kind == tKEYWORD && (t.lit == "True" || t.lit == "False"):
		p.advance()
		n := &ast.Constant{Kind: "bool", Value: t.lit}
		n.From, n.To = t.pos, t.end
		return n
	case t.kind == tKEYWORD && t.lit == "None":
		p.advance()
		n := &ast.Constant{Kind: "none", Value: "None"}
		n.From, n.To = t.pos, t.end
		return n
	case t.kind == tKEYWORD && (t.lit == "await" || t.lit == "yield"):
		p.advance()
		if t.lit == "yield" && p.isKeyword("from") {
			p.advance()
		}
		if p.is(tNEWLINE, "") || p.isOp(")") || p.cur().kind == tEOF {
			n := &ast.Constant{Kind: "none", Value: "None"}
			n.From, n.To = t.pos, t.end
			return n
		}
		return p.parseExpr()
	case p.isOp("("):
		return p.parseParenOrTuple()
	case p.isOp("["):
		return p.parseListOrComprehension()
	case p.isOp("{"):
		return p.parseDictOrSet()
	case p.isOp("*") || p.isOp("**"):
		start := p.advance()
		v := p.parseOr()
		n := &ast.Starred{Value: v}
		n.From, n.To = start.pos, p.cur().pos
		return n
	default:
		p.errf(t.pos, "unexpected token %q", t.lit)
		p.advance()
		n := &ast.Constant{Kind: "error", Value: ""}
		n.From, n.To = t.pos, t.end
		return n
	}
}

func (p *parser) parseParenOrTuple() ast.Expr {
	start := p.advance().pos // '('
	if p.isOp(")") {
		end := p.advance().pos
		n := &ast.Tuple{}
		n.From, n.To = start, end
		return n
	}
	first := p.parseExpr()
	if forExpr := p.maybeComprehensionTail(first, ast.ComprehensionGenerator); forExpr != nil {
		p.expectOp(")")
		return forExpr
	}
	if !p.isOp(",") {
		p.expectOp(")")
		return first
	}
	elts := []ast.Expr{first}
	for p.isOp(",") {
		p.advance()
		if p.isOp(")") {
			break
		}
		elts = append(elts, p.parseExpr())
	}
	end := p.expectOp(")")
	n := &ast.Tuple{Elts: elts}
	n.From, n.To = start, end
	return n
}

func (p *parser) parseListOrComprehension() ast.Expr {
	start := p.advance().pos // '['
	if p.isOp("]") {
		end := p.advance().pos
		n := &ast.List{}
		n.From, n.To = start, end
		return n
	}
	first := p.parseExpr()
	if comp := p.maybeComprehensionTail(first, ast.ComprehensionList); comp != nil {
		p.expectOp("]")
		return comp
	}
	elts := []ast.Expr{first}
	for p.isOp(",") {
		p.advance()
		if p.isOp("]") {
			break
		}
		elts = append(elts, p.parseExpr())
	}
	end := p.expectOp("]")
	n := &ast.List{Elts: elts}
	n.From, n.To = start, end
	return n
}

func (p *parser) parseDictOrSet() ast.Expr {
	start := p.advance().pos // '{'
	if p.isOp("}") {
		end := p.advance().pos
		n := &ast.List{}
		n.From, n.To = start, end
		return n
	}
	key := p.parseExpr()
	if p.isOp(":") {
		p.advance()
		val := p.parseExpr()
		if comp := p.maybeComprehensionTailDict(key, val); comp != nil {
			p.expectOp("}")
			return comp
		}
		elts := []ast.Expr{key, val}
		for p.isOp(",") {
			p.advance()
			if p.isOp("}") {
				break
			}
			k := p.parseExpr()
			p.expectOp(":")
			v := p.parseExpr()
			elts = append(elts, k, v)
		}
		end := p.expectOp("}")
		n := &ast.List{Elts: elts}
		n.From, n.To = start, end
		return n
	}
	if comp := p.maybeComprehensionTail(key, ast.ComprehensionSet); comp != nil {
		p.expectOp("}")
		return comp
	}
	elts := []ast.Expr{key}
	for p.isOp(",") {
		p.advance()
		if p.isOp("}") {
			break
		}
		elts = append(elts, p.parseExpr())
	}
	end := p.expectOp("}")
	n := &ast.List{Elts: elts}
	n.From, n.To = start, end
	return n
}

func (p *parser) maybeComprehensionTail(element ast.Expr, kind ast.ComprehensionKind) ast.Expr {
	if !p.isKeyword("for") {
		return nil
	}
	p.advance()
	target := p.parseTargetList()
	if p.isKeyword("in") {
		p.advance()
	}
	iter := p.parseOr()
	var ifs []ast.Expr
	for p.isKeyword("if") {
		p.advance()
		ifs = append(ifs, p.parseOr())
	}
	n := &ast.Comprehension{Element: element, Target: target, Iter: iter, Ifs: ifs, Kind: kind}
	n.From, n.To = element.Pos(), p.cur().pos
	return n
}

func (p *parser) maybeComprehensionTailDict(key, val ast.Expr) ast.Expr {
	if !p.isKeyword("for") {
		return nil
	}
	p.advance()
	target := p.parseTargetList()
	if p.isKeyword("in") {
		p.advance()
	}
	iter := p.parseOr()
	var ifs []ast.Expr
	for p.isKeyword("if") {
		p.advance()
		ifs = append(ifs, p.parseOr())
	}
	n := &ast.Comprehension{Element: key, Value: val, Target: target, Iter: iter, Ifs: ifs, Kind: ast.ComprehensionDict}
	n.From, n.To = key.Pos(), p.cur().pos
	return n
}
