package pyast

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParseError reports source text that tree-sitter could not parse cleanly.
type ParseError struct {
	Line    int
	Column  int
	Snippet string
	Missing bool
}

func (e *ParseError) Error() string {
	what := "syntax error"
	if e.Missing {
		what = "missing token"
	}
	if e.Snippet == "" {
		return fmt.Sprintf("%s at line %d, column %d", what, e.Line, e.Column)
	}
	return fmt.Sprintf("%s at line %d, column %d: %s", what, e.Line, e.Column, e.Snippet)
}

// ParseFile reads and parses a Python file.
func ParseFile(ctx context.Context, path string) (*Module, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	m, err := Parse(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// Parse parses Python source into a Module. Any ERROR or MISSING node in the
// tree-sitter output is reported as a *ParseError.
func Parse(ctx context.Context, src []byte) (*Module, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter: parsing failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, newParseError(src, firstError(root))
	}

	c := &converter{src: src}
	return &Module{Source: src, Body: c.statements(root)}, nil
}

// firstError returns the first ERROR or MISSING node in document order.
func firstError(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := firstError(child); found != nil {
			return found
		}
	}
	return nil
}

func newParseError(src []byte, node *sitter.Node) *ParseError {
	if node == nil {
		return &ParseError{Line: 1, Column: 1}
	}
	pt := node.StartPoint()
	lines := strings.Split(string(src), "\n")
	snippet := ""
	if int(pt.Row) < len(lines) {
		snippet = strings.TrimSpace(lines[pt.Row])
	}
	return &ParseError{
		Line:    int(pt.Row) + 1,
		Column:  int(pt.Column) + 1,
		Snippet: snippet,
		Missing: node.IsMissing(),
	}
}

// converter turns tree-sitter nodes into Stmt and Expr values.
type converter struct {
	src []byte
}

func (c *converter) span(node *sitter.Node) Span {
	return Span{
		Start:   int(node.StartByte()),
		End:     int(node.EndByte()),
		Line:    int(node.StartPoint().Row) + 1,
		EndLine: int(node.EndPoint().Row) + 1,
	}
}

func (c *converter) base(node *sitter.Node) stmtBase {
	return stmtBase{span: c.span(node), kind: node.Type()}
}

// statements converts the named children of a module or block node.
func (c *converter) statements(node *sitter.Node) []Stmt {
	if node == nil {
		return nil
	}
	var out []Stmt
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, c.statement(child))
	}
	return out
}

func (c *converter) statement(node *sitter.Node) Stmt {
	b := c.base(node)

	switch node.Type() {
	case "expression_statement":
		return c.expressionStatement(node)
	case "pass_statement":
		return &Pass{b}
	case "return_statement":
		return &Return{b}
	case "delete_statement":
		return &Delete{b}
	case "import_statement":
		return &Import{b}
	case "import_from_statement", "future_import_statement":
		return &ImportFrom{b}
	case "global_statement":
		return &Global{b}
	case "nonlocal_statement":
		return &Nonlocal{b}
	case "break_statement":
		return &Break{b}
	case "continue_statement":
		return &Continue{b}
	case "if_statement":
		return c.ifStatement(node)
	case "while_statement":
		return &While{
			stmtBase: b,
			Test:     c.expr(node.ChildByFieldName("condition")),
			Body:     c.statements(node.ChildByFieldName("body")),
			Orelse:   c.elseBody(node.ChildByFieldName("alternative")),
		}
	case "for_statement":
		return &For{
			stmtBase: b,
			Target:   c.expr(node.ChildByFieldName("left")),
			Iter:     c.expr(node.ChildByFieldName("right")),
			Body:     c.statements(node.ChildByFieldName("body")),
			Orelse:   c.elseBody(node.ChildByFieldName("alternative")),
			Async:    c.hasToken(node, "async"),
		}
	case "function_definition":
		name := ""
		if n := node.ChildByFieldName("name"); n != nil {
			name = n.Content(c.src)
		}
		return &FunctionDef{
			stmtBase: b,
			Name:     name,
			Body:     c.statements(node.ChildByFieldName("body")),
		}
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
			fn := c.statement(def).(*FunctionDef)
			fn.stmtBase = b
			return fn
		}
	}

	return &Unsupported{b}
}

func (c *converter) expressionStatement(node *sitter.Node) Stmt {
	b := c.base(node)
	if node.NamedChildCount() == 1 {
		switch node.NamedChild(0).Type() {
		case "assignment":
			return &Assign{b}
		case "augmented_assignment":
			return &AugAssign{b}
		}
	}
	return &ExprStmt{b}
}

// ifStatement folds elif and else clauses into a nested Orelse chain.
func (c *converter) ifStatement(node *sitter.Node) *If {
	var elifs []*sitter.Node
	var orelse []Stmt

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "elif_clause":
			elifs = append(elifs, child)
		case "else_clause":
			orelse = c.statements(child.ChildByFieldName("body"))
		}
	}

	for i := len(elifs) - 1; i >= 0; i-- {
		elif := elifs[i]
		orelse = []Stmt{&If{
			stmtBase: c.base(elif),
			Test:     c.expr(elif.ChildByFieldName("condition")),
			Body:     c.statements(elif.ChildByFieldName("consequence")),
			Orelse:   orelse,
			Elif:     true,
		}}
	}

	return &If{
		stmtBase: c.base(node),
		Test:     c.expr(node.ChildByFieldName("condition")),
		Body:     c.statements(node.ChildByFieldName("consequence")),
		Orelse:   orelse,
	}
}

func (c *converter) elseBody(node *sitter.Node) []Stmt {
	if node == nil || node.Type() != "else_clause" {
		return nil
	}
	return c.statements(node.ChildByFieldName("body"))
}

func (c *converter) hasToken(node *sitter.Node, token string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil && !child.IsNamed() && child.Type() == token {
			return true
		}
	}
	return false
}

func (c *converter) expr(node *sitter.Node) Expr {
	if node == nil {
		return Expr{}
	}
	for node.Type() == "parenthesized_expression" && node.NamedChildCount() == 1 {
		node = node.NamedChild(0)
	}

	kind := ExprOther
	switch node.Type() {
	case "comparison_operator":
		kind = ExprCompare
	case "identifier":
		kind = ExprName
	case "tuple", "pattern_list", "tuple_pattern", "expression_list":
		kind = ExprTuple
	case "call":
		kind = ExprCall
	case "boolean_operator":
		kind = ExprBoolOp
	case "not_operator":
		kind = ExprNot
	case "true", "false", "none", "integer", "float", "string":
		kind = ExprConstant
	case "attribute":
		kind = ExprAttribute
	}

	return Expr{Kind: kind, Type: node.Type(), Span: c.span(node)}
}
