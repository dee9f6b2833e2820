// Package parser implements Mluva's recursive-descent parser: a hand-rolled
// precedence-climbing expression grammar over a token slice with an index
// cursor, matching the grammar sketch of the language design. Parsing never
// recovers from an error; the first one aborts and is returned up.
package parser

import (
	"strconv"

	"github.com/MikulasBar/mluva-sub000/internal/ast"
	"github.com/MikulasBar/mluva-sub000/internal/diagnostics"
	"github.com/MikulasBar/mluva-sub000/internal/token"
	"github.com/MikulasBar/mluva-sub000/internal/types"
)

// Parser holds a token slice and a cursor into it.
type Parser struct {
	toks []token.Token
	pos  int
}

// New returns a Parser over toks, which must end with an EOF token.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse parses an entire file: `(import | fn_def | EOL)*`.
func Parse(toks []token.Token) (*ast.File, error) {
	return New(toks).ParseFile()
}

func (p *Parser) cur() token.Token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return token.Token{Kind: token.EOF}
}

func (p *Parser) peekAt(off int) token.Token {
	i := p.pos + off
	if i < len(p.toks) {
		return p.toks[i]
	}
	return token.Token{Kind: token.EOF}
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) unexpected() error {
	t := p.cur()
	sp := t.Span
	if t.Kind == token.EOF {
		return diagnostics.NewCompileError(diagnostics.UnexpectedEndOfFile, &sp, "unexpected end of file")
	}
	return diagnostics.NewCompileError(diagnostics.UnexpectedToken, &sp, "unexpected token %s", t)
}

// expect consumes a token of kind k. A statement-terminating EOL may also be
// satisfied by a closing '}', which is left unconsumed for the block.
func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if k == token.EOL && p.cur().Kind == token.RBrace {
		return p.cur(), nil
	}
	if p.cur().Kind != k {
		return token.Token{}, p.unexpected()
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent() (token.Token, error) {
	return p.expect(token.Ident)
}

var dataTypeKinds = map[token.Kind]types.Tag{
	token.TypeInt:    types.Int,
	token.TypeFloat:  types.Float,
	token.TypeBool:   types.Bool,
	token.TypeString: types.String,
	token.TypeVoid:   types.Void,
}

func (p *Parser) isDataTypeTok(k token.Kind) bool {
	_, ok := dataTypeKinds[k]
	return ok
}

func (p *Parser) parseDataType() (types.DataType, error) {
	tag, ok := dataTypeKinds[p.cur().Kind]
	if !ok {
		return types.DataType{}, p.unexpected()
	}
	p.advance()
	return types.Of(tag), nil
}

// ParseFile parses the whole token stream into a File.
func (p *Parser) ParseFile() (*ast.File, error) {
	f := &ast.File{}
	for p.cur().Kind != token.EOF {
		switch {
		case p.cur().Kind == token.EOL:
			p.advance()
		case p.cur().Kind == token.Import:
			imp, err := p.parseImport()
			if err != nil {
				return nil, err
			}
			f.Imports = append(f.Imports, *imp)
		case p.isDataTypeTok(p.cur().Kind):
			fn, err := p.parseFnDef()
			if err != nil {
				return nil, err
			}
			f.Functions = append(f.Functions, *fn)
		default:
			return nil, p.unexpected()
		}
	}
	return f, nil
}

func (p *Parser) parseImport() (*ast.Import, error) {
	start := p.cur().Span
	p.advance() // 'import'
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EOL); err != nil {
		return nil, err
	}
	return &ast.Import{Name: name.Text, Sp: token.Join(start, name.Span)}, nil
}

func (p *Parser) parseFnDef() (*ast.FunctionDef, error) {
	start := p.cur().Span
	retType, err := p.parseDataType()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if ast.BuiltinNames[name.Text] {
		sp := name.Span
		return nil, diagnostics.NewCompileError(diagnostics.ReservedFunctionName, &sp, "%q is a reserved builtin name", name.Text)
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDef{
		Name:       name.Text,
		ReturnType: retType,
		Params:     params,
		Body:       body,
		Sp:         token.Join(start, name.Span),
	}, nil
}

func (p *Parser) parseParams() ([]ast.Param, error) {
	var params []ast.Param
	if p.cur().Kind == token.RParen {
		return params, nil
	}
	for {
		dt, err := p.parseDataType()
		if err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: name.Text, Type: dt})
		if p.cur().Kind != token.Comma {
			break
		}
		p.advance()
	}
	return params, nil
}

// parseBlock parses `'{' stmts '}'`, skipping blank EOL-only lines between
// statements; each statement already consumes its own trailing EOL (the
// last statement of a block may instead end at the closing '}').
func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for p.cur().Kind != token.RBrace {
		if p.cur().Kind == token.EOL {
			p.advance()
			continue
		}
		if p.cur().Kind == token.EOF {
			return nil, p.unexpected()
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	p.advance() // '}'
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch {
	case p.cur().Kind == token.Return:
		return p.parseReturn()
	case p.isDataTypeTok(p.cur().Kind):
		return p.parseTypedDecl()
	case p.cur().Kind == token.Let:
		return p.parseLet()
	case p.cur().Kind == token.Ident && p.peekAt(1).Kind == token.Assign:
		return p.parseAssign()
	case p.cur().Kind == token.If:
		return p.parseIfStmt()
	case p.cur().Kind == token.While:
		return p.parseWhileStmt()
	default:
		start := p.cur().Span
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.EOL); err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Expr: e, Sp: token.Join(start, e.Span())}, nil
	}
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // 'return'
	var val ast.Expr
	if p.cur().Kind == token.EOL || p.cur().Kind == token.RBrace {
		val = &ast.Literal{Value: types.VoidValue(), Sp: start}
	} else {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		val = e
	}
	end := p.cur().Span
	if _, err := p.expect(token.EOL); err != nil {
		return nil, err
	}
	return &ast.Return{Value: val, Sp: token.Join(start, end)}, nil
}

func (p *Parser) parseTypedDecl() (ast.Stmt, error) {
	start := p.cur().Span
	dt, err := p.parseDataType()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EOL); err != nil {
		return nil, err
	}
	return &ast.VarDecl{Explicit: &dt, Name: name.Text, Init: init, Sp: token.Join(start, init.Span())}, nil
}

func (p *Parser) parseLet() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // 'let'
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EOL); err != nil {
		return nil, err
	}
	return &ast.VarDecl{Explicit: nil, Name: name.Text, Init: init, Sp: token.Join(start, init.Span())}, nil
}

func (p *Parser) parseAssign() (ast.Stmt, error) {
	start := p.cur().Span
	name := p.advance() // Ident
	p.advance()         // '='
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EOL); err != nil {
		return nil, err
	}
	return &ast.VarAssign{Name: name.Text, Value: val, Sp: token.Join(start, val.Span())}, nil
}

func (p *Parser) parseIfStmt() (ast.Stmt, error) {
	node, err := p.parseIf()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EOL); err != nil {
		return nil, err
	}
	return node, nil
}

// parseIf parses the `if`/`else` core without consuming a trailing EOL, so
// it can be reused for the `else if` desugaring (a single-element else
// block wrapping a nested If).
func (p *Parser) parseIf() (*ast.If, error) {
	start := p.cur().Span
	p.advance() // 'if'
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseStmts []ast.Stmt
	end := start
	if len(then) > 0 {
		end = then[len(then)-1].Span()
	}
	if p.cur().Kind == token.Else {
		p.advance()
		if p.cur().Kind == token.If {
			nested, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			elseStmts = []ast.Stmt{nested}
			end = nested.Span()
		} else {
			elseStmts, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
			if len(elseStmts) > 0 {
				end = elseStmts[len(elseStmts)-1].Span()
			}
		}
	}
	return &ast.If{Cond: cond, Then: then, Else: elseStmts, Sp: token.Join(start, end)}, nil
}

func (p *Parser) parseWhileStmt() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // 'while'
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	end := start
	if len(body) > 0 {
		end = body[len(body)-1].Span()
	}
	if _, err := p.expect(token.EOL); err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body, Sp: token.Join(start, end)}, nil
}

// --- expressions ---

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseLogic()
}

func (p *Parser) parseLogic() (ast.Expr, error) {
	left, err := p.parseComp()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.AndAnd || p.cur().Kind == token.OrOr {
		opTok := p.advance()
		right, err := p.parseComp()
		if err != nil {
			return nil, err
		}
		op := ast.And
		if opTok.Kind == token.OrOr {
			op = ast.Or
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Sp: token.Join(left.Span(), right.Span())}
	}
	return left, nil
}

var compOps = map[token.Kind]ast.BinOp{
	token.EqEq:      ast.Eq,
	token.NotEq:     ast.NotEq,
	token.Less:      ast.Lt,
	token.LessEq:    ast.LtEq,
	token.Greater:   ast.Gt,
	token.GreaterEq: ast.GtEq,
}

func (p *Parser) parseComp() (ast.Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if op, ok := compOps[p.cur().Kind]; ok {
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Sp: token.Join(left.Span(), right.Span())}
	}
	return left, nil
}

func (p *Parser) parseAdd() (ast.Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.Plus || p.cur().Kind == token.Minus {
		opTok := p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		op := ast.Add
		if opTok.Kind == token.Minus {
			op = ast.Sub
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Sp: token.Join(left.Span(), right.Span())}
	}
	return left, nil
}

func (p *Parser) parseMul() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.Star || p.cur().Kind == token.Slash || p.cur().Kind == token.Percent {
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		var op ast.BinOp
		switch opTok.Kind {
		case token.Star:
			op = ast.Mul
		case token.Slash:
			op = ast.Div
		default:
			op = ast.Modulo
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Sp: token.Join(left.Span(), right.Span())}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.cur().Kind == token.Bang || p.cur().Kind == token.Minus {
		opTok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := ast.Not
		if opTok.Kind == token.Minus {
			op = ast.Negate
		}
		return &ast.UnaryExpr{Op: op, Expr: operand, Sp: token.Join(opTok.Span, operand.Span())}, nil
	}
	return p.parseAtomPostfix()
}

// parseAtomPostfix parses an atom and then any trailing `.Ident()` method
// calls, the supplemented postfix method-dispatch syntax.
func (p *Parser) parseAtomPostfix() (ast.Expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.Dot {
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		end, err := p.expect(token.RParen)
		if err != nil {
			return nil, err
		}
		e = &ast.MethodCall{Receiver: e, Name: name.Text, Sp: token.Join(e.Span(), end.Span)}
	}
	return e, nil
}

func (p *Parser) parseAtom() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.Int:
		p.advance()
		iv, err := strconv.ParseInt(tok.Text, 10, 32)
		if err != nil {
			sp := tok.Span
			return nil, diagnostics.NewCompileError(diagnostics.InvalidNumber, &sp, "invalid int literal %q", tok.Text)
		}
		return &ast.Literal{Value: types.IntValue(int32(iv)), Sp: tok.Span}, nil
	case token.Float:
		p.advance()
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			sp := tok.Span
			return nil, diagnostics.NewCompileError(diagnostics.InvalidNumber, &sp, "invalid float literal %q", tok.Text)
		}
		return &ast.Literal{Value: types.FloatValue(f), Sp: tok.Span}, nil
	case token.Bool:
		p.advance()
		return &ast.Literal{Value: types.BoolValue(tok.Text == "true"), Sp: tok.Span}, nil
	case token.String:
		p.advance()
		return &ast.Literal{Value: types.StringValue(tok.Text), Sp: tok.Span}, nil
	case token.LParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return e, nil
	case token.Ident:
		return p.parseIdentAtom()
	default:
		return nil, p.unexpected()
	}
}

func (p *Parser) parseIdentAtom() (ast.Expr, error) {
	name := p.advance()
	switch p.cur().Kind {
	case token.LParen:
		p.advance()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(token.RParen)
		if err != nil {
			return nil, err
		}
		sp := token.Join(name.Span, end.Span)
		if ast.BuiltinNames[name.Text] {
			return &ast.BuiltinCall{Name: name.Text, Args: args, Sp: sp}, nil
		}
		return &ast.Call{Name: name.Text, Args: args, Sp: sp}, nil
	case token.Colon:
		p.advance()
		fn, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(token.RParen)
		if err != nil {
			return nil, err
		}
		return &ast.ForeignCall{Module: name.Text, Name: fn.Text, Args: args, Sp: token.Join(name.Span, end.Span)}, nil
	default:
		return &ast.VarRef{Name: name.Text, Sp: name.Span}, nil
	}
}

func (p *Parser) parseArgs() ([]ast.Expr, error) {
	var args []ast.Expr
	if p.cur().Kind == token.RParen {
		return args, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.cur().Kind != token.Comma {
			break
		}
		p.advance()
	}
	return args, nil
}
