// Package parser turns QL source text into a query AST. Parsing never
// touches the registry or evaluates anything; all failures are
// ParseError kinds carrying the offending position.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/lexer"
	"github.com/secsim/go-kql/kql/query"
)

// Binding powers for the Pratt expression parser. All binary operators
// are left-associative.
const (
	precOr             = 1
	precAnd            = 2
	precComparison     = 3
	precAdditive       = 4
	precMultiplicative = 5
)

// Parser consumes the token stream produced by the lexer.
type Parser struct {
	tokens []lexer.Token
	pos    int
	parens int
}

// Parse parses a complete pipeline query.
func Parse(input string) (*query.Query, error) {
	lex := lexer.New(input)
	if err := lex.Lex(); err != nil {
		return nil, err
	}
	p := &Parser{tokens: lex.Tokens()}
	return p.parseQuery()
}

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) lexer.Token {
	if p.pos+offset >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) next() lexer.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return kql.ErrParse.New(fmt.Sprintf("line %d, column %d: %s", tok.Line, tok.Col, msg))
}

func (p *Parser) expect(t lexer.TokenType, context string) (lexer.Token, error) {
	tok := p.cur()
	if tok.Type != t {
		if tok.Type == lexer.TokenPipe && p.parens > 0 {
			return tok, p.errorf(tok, "'|' is not allowed inside parentheses")
		}
		return tok, p.errorf(tok, "expected %s in %s, got %s", t, context, tok.Describe())
	}
	return p.next(), nil
}

// isKeyword matches an identifier token against a keyword,
// case-insensitively. Column references stay case-sensitive; only
// operator and function words go through here.
func isKeyword(tok lexer.Token, kw string) bool {
	return tok.Type == lexer.TokenIdent && strings.EqualFold(tok.Text, kw)
}

func (p *Parser) parseQuery() (*query.Query, error) {
	if p.cur().Type == lexer.TokenEOF {
		return nil, p.errorf(p.cur(), "empty query")
	}

	source, err := p.parseSource()
	if err != nil {
		return nil, err
	}

	q := &query.Query{Source: source}
	for p.cur().Type == lexer.TokenPipe {
		p.next()
		op, err := p.parseOperator()
		if err != nil {
			return nil, err
		}
		q.Operators = append(q.Operators, op)
	}

	if tok := p.cur(); tok.Type != lexer.TokenEOF {
		return nil, p.errorf(tok, "unexpected %s after pipeline", tok.Describe())
	}
	return q, nil
}

func (p *Parser) parseSource() (query.Source, error) {
	tok, err := p.expect(lexer.TokenIdent, "query source")
	if err != nil {
		return nil, err
	}

	if isKeyword(tok, "union") {
		var tables []string
		for {
			name, err := p.expect(lexer.TokenIdent, "union table list")
			if err != nil {
				return nil, err
			}
			tables = append(tables, name.Text)
			if p.cur().Type != lexer.TokenComma {
				break
			}
			p.next()
		}
		return query.UnionSource{Tables: tables}, nil
	}

	return query.TableSource{Name: tok.Text}, nil
}

func (p *Parser) parseOperator() (query.Operator, error) {
	tok, err := p.expect(lexer.TokenIdent, "operator")
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(tok.Text) {
	case "where":
		expr, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		return query.Where{Predicate: expr}, nil
	case "project":
		return p.parseProject()
	case "extend":
		return p.parseExtend()
	case "summarize":
		return p.parseSummarize()
	case "order", "sort":
		if _, err := p.expectKeyword("by", tok.Text); err != nil {
			return nil, err
		}
		return p.parseSort()
	case "take", "limit":
		n, err := p.parseInteger(tok.Text)
		if err != nil {
			return nil, err
		}
		return query.Take{N: n}, nil
	case "top":
		return p.parseTop()
	case "count":
		if next := p.cur(); next.Type != lexer.TokenPipe && next.Type != lexer.TokenEOF {
			return nil, p.errorf(next, "count takes no arguments, got %s", next.Describe())
		}
		return query.Count{}, nil
	case "distinct":
		cols, err := p.parseColumnList("distinct")
		if err != nil {
			return nil, err
		}
		return query.Distinct{Columns: cols}, nil
	}
	return nil, p.errorf(tok, "unknown operator %q", tok.Text)
}

func (p *Parser) expectKeyword(kw, context string) (lexer.Token, error) {
	tok := p.cur()
	if !isKeyword(tok, kw) {
		return tok, p.errorf(tok, "expected %q in %s, got %s", kw, context, tok.Describe())
	}
	return p.next(), nil
}

func (p *Parser) parseColumnList(context string) ([]string, error) {
	var cols []string
	for {
		tok, err := p.expect(lexer.TokenIdent, context)
		if err != nil {
			return nil, err
		}
		cols = append(cols, tok.Text)
		if p.cur().Type != lexer.TokenComma {
			return cols, nil
		}
		p.next()
	}
}

// parseInteger consumes an optionally negative integer literal. Range
// validation (N >= 0) is the planner's job.
func (p *Parser) parseInteger(context string) (int64, error) {
	negative := false
	if p.cur().Type == lexer.TokenMinus {
		p.next()
		negative = true
	}
	tok, err := p.expect(lexer.TokenInt, context)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if err != nil {
		return 0, p.errorf(tok, "malformed integer %q", tok.Text)
	}
	if negative {
		n = -n
	}
	return n, nil
}

func (p *Parser) parseProject() (query.Operator, error) {
	var items []query.ProjectItem
	for {
		tok, err := p.expect(lexer.TokenIdent, "project")
		if err != nil {
			return nil, err
		}
		item := query.ProjectItem{Alias: tok.Text, Expr: query.ColumnRef{Name: tok.Text}}
		if p.cur().Type == lexer.TokenAssign {
			p.next()
			expr, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			item.Expr = expr
		}
		items = append(items, item)
		if p.cur().Type != lexer.TokenComma {
			break
		}
		p.next()
	}
	return query.Project{Items: items}, nil
}

func (p *Parser) parseExtend() (query.Operator, error) {
	var assigns []query.Assignment
	for {
		name, err := p.expect(lexer.TokenIdent, "extend")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenAssign, "extend assignment"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, query.Assignment{Name: name.Text, Expr: expr})
		if p.cur().Type != lexer.TokenComma {
			break
		}
		p.next()
	}
	return query.Extend{Assignments: assigns}, nil
}

func (p *Parser) parseSummarize() (query.Operator, error) {
	var aggs []query.Aggregation
	for {
		agg, err := p.parseAggItem()
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
		if p.cur().Type != lexer.TokenComma {
			break
		}
		p.next()
	}

	var by []string
	if isKeyword(p.cur(), "by") {
		p.next()
		cols, err := p.parseColumnList("summarize by")
		if err != nil {
			return nil, err
		}
		by = cols
	}
	return query.Summarize{Aggregations: aggs, By: by}, nil
}

func (p *Parser) parseAggItem() (query.Aggregation, error) {
	first, err := p.expect(lexer.TokenIdent, "summarize")
	if err != nil {
		return query.Aggregation{}, err
	}

	alias := ""
	fnTok := first
	if p.cur().Type == lexer.TokenAssign {
		alias = first.Text
		p.next()
		fnTok, err = p.expect(lexer.TokenIdent, "summarize aggregation")
		if err != nil {
			return query.Aggregation{}, err
		}
	}

	if !query.IsAggregateFn(fnTok.Text) {
		return query.Aggregation{}, p.errorf(fnTok, "expected an aggregation function, got %q", fnTok.Text)
	}
	fn := strings.ToLower(fnTok.Text)

	if _, err := p.expect(lexer.TokenLParen, "aggregation call"); err != nil {
		return query.Aggregation{}, err
	}

	column := ""
	if fn == "count" {
		if _, err := p.expect(lexer.TokenRParen, "count()"); err != nil {
			return query.Aggregation{}, err
		}
	} else {
		col, err := p.expect(lexer.TokenIdent, fn+"()")
		if err != nil {
			return query.Aggregation{}, err
		}
		column = col.Text
		if _, err := p.expect(lexer.TokenRParen, fn+"()"); err != nil {
			return query.Aggregation{}, err
		}
	}

	if alias == "" {
		if fn == "count" {
			alias = "count_"
		} else {
			alias = fn + "_" + column
		}
	}
	return query.Aggregation{Alias: alias, Fn: fn, Column: column}, nil
}

func (p *Parser) parseSort() (query.Operator, error) {
	var keys []query.SortKey
	for {
		key, err := p.parseSortKey(false)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		if p.cur().Type != lexer.TokenComma {
			break
		}
		p.next()
	}
	return query.Sort{Keys: keys}, nil
}

// parseSortKey reads "Column [asc|desc]". Top defaults to descending,
// order by to ascending.
func (p *Parser) parseSortKey(defaultDesc bool) (query.SortKey, error) {
	col, err := p.expect(lexer.TokenIdent, "sort key")
	if err != nil {
		return query.SortKey{}, err
	}
	key := query.SortKey{Column: col.Text, Descending: defaultDesc}
	if isKeyword(p.cur(), "asc") {
		p.next()
		key.Descending = false
	} else if isKeyword(p.cur(), "desc") {
		p.next()
		key.Descending = true
	}
	return key, nil
}

func (p *Parser) parseTop() (query.Operator, error) {
	n, err := p.parseInteger("top")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("by", "top"); err != nil {
		return nil, err
	}
	key, err := p.parseSortKey(true)
	if err != nil {
		return nil, err
	}
	return query.Top{N: n, Key: key}, nil
}

// ─── Expressions ─────────────────────────────────────────────────────

func (p *Parser) parseExpr(minPrec int) (query.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op, prec, width, ok := p.peekBinaryOp()
		if !ok || prec < minPrec {
			return left, nil
		}
		for i := 0; i < width; i++ {
			p.next()
		}
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = query.Binary{Op: op, Left: left, Right: right}
	}
}

// peekBinaryOp inspects the upcoming token(s) for a binary operator and
// returns the operator, its precedence, and how many tokens it spans
// ("matches regex" spans two).
func (p *Parser) peekBinaryOp() (query.BinaryOp, int, int, bool) {
	tok := p.cur()
	switch tok.Type {
	case lexer.TokenEq:
		return query.OpEq, precComparison, 1, true
	case lexer.TokenNeq:
		return query.OpNeq, precComparison, 1, true
	case lexer.TokenLt:
		return query.OpLt, precComparison, 1, true
	case lexer.TokenLte:
		return query.OpLte, precComparison, 1, true
	case lexer.TokenGt:
		return query.OpGt, precComparison, 1, true
	case lexer.TokenGte:
		return query.OpGte, precComparison, 1, true
	case lexer.TokenPlus:
		return query.OpAdd, precAdditive, 1, true
	case lexer.TokenMinus:
		return query.OpSub, precAdditive, 1, true
	case lexer.TokenStar:
		return query.OpMul, precMultiplicative, 1, true
	case lexer.TokenSlash:
		return query.OpDiv, precMultiplicative, 1, true
	case lexer.TokenIdent:
		switch strings.ToLower(tok.Text) {
		case "and":
			return query.OpAnd, precAnd, 1, true
		case "or":
			return query.OpOr, precOr, 1, true
		case "contains":
			return query.OpContains, precComparison, 1, true
		case "startswith":
			return query.OpStartsWith, precComparison, 1, true
		case "endswith":
			return query.OpEndsWith, precComparison, 1, true
		case "has":
			return query.OpHas, precComparison, 1, true
		case "matches":
			if isKeyword(p.peekAt(1), "regex") {
				return query.OpMatchesRegex, precComparison, 2, true
			}
		}
	}
	return 0, 0, 0, false
}

func (p *Parser) parseUnary() (query.Expression, error) {
	tok := p.cur()
	if isKeyword(tok, "not") {
		p.next()
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return query.Unary{Op: query.OpNot, Expr: expr}, nil
	}
	if tok.Type == lexer.TokenMinus {
		p.next()
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return query.Unary{Op: query.OpNeg, Expr: expr}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (query.Expression, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.TokenInt:
		p.next()
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, p.errorf(tok, "malformed integer %q", tok.Text)
		}
		return query.Literal{Value: n, Type: kql.TypeInt}, nil

	case lexer.TokenReal:
		p.next()
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, p.errorf(tok, "malformed number %q", tok.Text)
		}
		return query.Literal{Value: f, Type: kql.TypeReal}, nil

	case lexer.TokenString:
		p.next()
		return query.Literal{Value: tok.Text, Type: kql.TypeString}, nil

	case lexer.TokenTimespan:
		p.next()
		d, err := kql.ParseTimespan(tok.Text)
		if err != nil {
			return nil, p.errorf(tok, "%s", err)
		}
		return query.Literal{Value: d, Type: kql.TypeTimespan}, nil

	case lexer.TokenLParen:
		p.next()
		p.parens++
		expr, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen, "parenthesized expression"); err != nil {
			return nil, err
		}
		p.parens--
		return expr, nil

	case lexer.TokenIdent:
		if strings.EqualFold(tok.Text, "true") {
			p.next()
			return query.Literal{Value: true, Type: kql.TypeBool}, nil
		}
		if strings.EqualFold(tok.Text, "false") {
			p.next()
			return query.Literal{Value: false, Type: kql.TypeBool}, nil
		}
		if p.peekAt(1).Type == lexer.TokenLParen {
			return p.parseCall()
		}
		p.next()
		return query.ColumnRef{Name: tok.Text}, nil

	case lexer.TokenPipe:
		if p.parens > 0 {
			return nil, p.errorf(tok, "'|' is not allowed inside parentheses")
		}
	}
	return nil, p.errorf(tok, "unexpected %s in expression", tok.Describe())
}

func (p *Parser) parseCall() (query.Expression, error) {
	name := p.next()
	fn := strings.ToLower(name.Text)

	if _, err := p.expect(lexer.TokenLParen, fn+"()"); err != nil {
		return nil, err
	}
	p.parens++
	defer func() { p.parens-- }()

	// datetime('...') is a literal, resolved here so the plan carries a
	// concrete instant.
	if fn == "datetime" {
		arg, err := p.expect(lexer.TokenString, "datetime literal")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen, "datetime literal"); err != nil {
			return nil, err
		}
		t, err := parseDateTime(arg.Text)
		if err != nil {
			return nil, p.errorf(arg, "invalid datetime literal %q", arg.Text)
		}
		return query.Literal{Value: t, Type: kql.TypeDateTime}, nil
	}

	var args []query.Expression
	if p.cur().Type != lexer.TokenRParen {
		for {
			arg, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().Type != lexer.TokenComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(lexer.TokenRParen, fn+"()"); err != nil {
		return nil, err
	}
	return query.Call{Fn: fn, Args: args}, nil
}

// datetimeLayouts are tried in order for datetime('...') literals.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDateTime(s string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
