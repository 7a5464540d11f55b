// Package pyast defines a small typed syntax tree for Python statements and
// a tree-sitter backed parser that produces it.
//
// Only the structure needed for control-flow construction is kept: statement
// variants, nested bodies, test and loop header expressions, and byte spans
// into the original source for every node.
package pyast

// Span locates a node in the source. Start and End are byte offsets,
// Line and EndLine are 1-based.
type Span struct {
	Start   int `json:"start"`
	End     int `json:"end"`
	Line    int `json:"line"`
	EndLine int `json:"end_line"`
}

// Stmt is implemented by every statement variant in this package.
// The set of variants is closed.
type Stmt interface {
	Span() Span
	// Kind returns the tree-sitter node type the statement was built from.
	Kind() string
	stmt()
}

type stmtBase struct {
	span Span
	kind string
}

func (b stmtBase) Span() Span   { return b.span }
func (b stmtBase) Kind() string { return b.kind }
func (stmtBase) stmt()          {}

// Simple statements. They never transfer control on their own.
type (
	Assign     struct{ stmtBase }
	AugAssign  struct{ stmtBase }
	ExprStmt   struct{ stmtBase }
	Pass       struct{ stmtBase }
	Return     struct{ stmtBase }
	Delete     struct{ stmtBase }
	Import     struct{ stmtBase }
	ImportFrom struct{ stmtBase }
	Global     struct{ stmtBase }
	Nonlocal   struct{ stmtBase }
)

// Loop control.
type (
	Break    struct{ stmtBase }
	Continue struct{ stmtBase }
)

// If is an if statement. An elif clause is represented the way Python's own
// ast module does it: a single nested If in Orelse, with Elif set.
type If struct {
	stmtBase
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
	Elif   bool
}

// WithoutElse returns a copy of s with its elif/else chain removed.
func (s *If) WithoutElse() *If {
	c := *s
	c.Orelse = nil
	return &c
}

// While is a while loop. Orelse holds the statements of a while/else clause.
type While struct {
	stmtBase
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// For is a for loop. Orelse holds the statements of a for/else clause.
type For struct {
	stmtBase
	Target Expr
	Iter   Expr
	Body   []Stmt
	Orelse []Stmt
	Async  bool
}

// FunctionDef is a (possibly decorated) function definition.
type FunctionDef struct {
	stmtBase
	Name string
	Body []Stmt
}

// Unsupported wraps any statement kind this package does not model
// (class definitions, try, with, match, raise, assert, ...).
type Unsupported struct{ stmtBase }

// ExprKind classifies an expression.
type ExprKind int

const (
	ExprOther ExprKind = iota
	ExprCompare
	ExprName
	ExprTuple
	ExprCall
	ExprBoolOp
	ExprNot
	ExprConstant
	ExprAttribute
)

var exprKindNames = map[ExprKind]string{
	ExprOther:     "other",
	ExprCompare:   "compare",
	ExprName:      "name",
	ExprTuple:     "tuple",
	ExprCall:      "call",
	ExprBoolOp:    "bool_op",
	ExprNot:       "not",
	ExprConstant:  "constant",
	ExprAttribute: "attribute",
}

func (k ExprKind) String() string {
	if name, ok := exprKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Expr is an expression reduced to its classification and location.
// Redundant parentheses are stripped, so Span covers the inner expression.
type Expr struct {
	Kind ExprKind
	Type string // tree-sitter node type
	Span Span
}

// Module is a parsed source file.
type Module struct {
	Source []byte
	Body   []Stmt
}

// Text returns the source text covered by span.
func (m *Module) Text(span Span) string {
	return TextOf(m.Source, span)
}

// TextOf returns the text of src covered by span, or "" when the span is out
// of range.
func TextOf(src []byte, span Span) string {
	if span.Start < 0 || span.End > len(src) || span.Start > span.End {
		return ""
	}
	return string(src[span.Start:span.End])
}

// Function finds the first function definition named name, searching module
// level and nested function bodies in source order.
func (m *Module) Function(name string) (*FunctionDef, bool) {
	return findFunction(m.Body, name)
}

func findFunction(stmts []Stmt, name string) (*FunctionDef, bool) {
	for _, s := range stmts {
		fn, ok := s.(*FunctionDef)
		if !ok {
			continue
		}
		if fn.Name == name {
			return fn, true
		}
		if inner, ok := findFunction(fn.Body, name); ok {
			return inner, true
		}
	}
	return nil, false
}

// FunctionDefs returns every function definition at module level or nested
// in another function body, in source order. Redefinitions are all kept.
func (m *Module) FunctionDefs() []*FunctionDef {
	var defs []*FunctionDef
	var walk func([]Stmt)
	walk = func(stmts []Stmt) {
		for _, s := range stmts {
			if fn, ok := s.(*FunctionDef); ok {
				defs = append(defs, fn)
				walk(fn.Body)
			}
		}
	}
	walk(m.Body)
	return defs
}

// Functions lists the names of FunctionDefs in source order.
func (m *Module) Functions() []string {
	defs := m.FunctionDefs()
	names := make([]string, len(defs))
	for i, fn := range defs {
		names[i] = fn.Name
	}
	return names
}

// HasFunctionDefs reports whether the module body itself defines a function.
func (m *Module) HasFunctionDefs() bool {
	for _, s := range m.Body {
		if _, ok := s.(*FunctionDef); ok {
			return true
		}
	}
	return false
}
