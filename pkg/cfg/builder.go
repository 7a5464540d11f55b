package cfg

import (
	"context"
	"fmt"
	"strings"

	"github.com/l3aro/pycfg/internal/log"
	"github.com/l3aro/pycfg/pkg/pyast"
)

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for debug output during construction.
func WithLogger(logger log.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithAnyTest accepts any expression as an if/while test. By default only
// comparisons are accepted and anything else is an *UnsupportedError.
func WithAnyTest() Option {
	return func(b *Builder) { b.anyTest = true }
}

// WithLoopExits makes a loop that ends its statement list report its exit
// node as the construct's tail. Without it such a loop returns empty open
// ends, and for a for loop the break exits are left unwired.
func WithLoopExits() Option {
	return func(b *Builder) { b.loopExits = true }
}

// Builder constructs a Graph from a statement list. A Builder is not safe for
// concurrent use; Build may be called repeatedly and returns a fresh Graph
// each time.
type Builder struct {
	src       []byte
	g         *Graph
	logger    log.Logger
	anyTest   bool
	loopExits bool
	loopDepth int
}

// NewBuilder returns a Builder for statements parsed from src. src is used
// to extract node labels from statement spans.
func NewBuilder(src []byte, opts ...Option) *Builder {
	b := &Builder{src: src, logger: log.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates the entry node and attaches stmts below it. On error no
// graph is returned.
func (b *Builder) Build(stmts []pyast.Stmt) (*Graph, error) {
	b.g = newGraph()
	b.loopDepth = 0
	defer func() { b.g = nil }()

	entry := b.g.addNode(KindStatement, LabelEntry, nil)
	b.g.entry = entry

	ends, err := b.attach(entry, stmts)
	if err != nil {
		return nil, err
	}
	if err := b.checkTopLevel(ends); err != nil {
		return nil, err
	}

	g := b.g
	b.logger.Debug("cfg built", "nodes", g.Len(), "edges", g.EdgeCount(), "tails", len(ends.Tail))
	return g, nil
}

// Build is shorthand for NewBuilder(src, opts...).Build(stmts).
func Build(src []byte, stmts []pyast.Stmt, opts ...Option) (*Graph, error) {
	return NewBuilder(src, opts...).Build(stmts)
}

// FromSource parses Python source and builds the CFG of its module body.
func FromSource(ctx context.Context, src []byte, opts ...Option) (*Graph, error) {
	mod, err := pyast.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	return Build(mod.Source, mod.Body, opts...)
}

// attach builds stmts below entry and reports the open ends of the result.
func (b *Builder) attach(entry NodeID, stmts []pyast.Stmt) (OpenEnds, error) {
	if len(stmts) == 0 {
		return OpenEnds{}, nil
	}

	if n := simpleRun(stmts); n > 0 {
		run := stmts[:n:n]
		node := b.g.createAndConnect(entry, KindStatement, b.runText(run), run)
		ends, err := b.attach(node, stmts[n:])
		if err != nil {
			return OpenEnds{}, err
		}
		if ends.IsEmpty() {
			ends.Tail = []NodeID{node}
		}
		return ends, nil
	}

	first, rem := stmts[0], stmts[1:]
	switch s := first.(type) {
	case *pyast.If:
		return b.attachIf(entry, s, rem)
	case *pyast.While:
		return b.attachWhile(entry, s, rem)
	case *pyast.For:
		return b.attachFor(entry, s, rem)
	case *pyast.Break:
		return b.loopControl(entry, s, "break", rem)
	case *pyast.Continue:
		return b.loopControl(entry, s, "continue", rem)
	default:
		return OpenEnds{}, &UnsupportedError{Construct: first.Kind(), Line: first.Span().Line}
	}
}

// attachIf handles an if/elif/else chain followed by rem.
func (b *Builder) attachIf(entry NodeID, s *pyast.If, rem []pyast.Stmt) (OpenEnds, error) {
	arms, final := splitBranches(s)

	var armEnds OpenEnds
	var lastCond NodeID
	for _, arm := range arms {
		text, err := b.testText(arm.Test)
		if err != nil {
			return OpenEnds{}, err
		}
		cond := b.g.createAndConnect(entry, KindCondition, text, []pyast.Stmt{arm.WithoutElse()})
		ends, err := b.attach(cond, arm.Body)
		if err != nil {
			return OpenEnds{}, err
		}
		armEnds = armEnds.Merge(ends)
		lastCond = cond
	}

	switch {
	case len(rem) == 0 && len(final) == 0:
		// No arm matched: control stays at the last test.
		armEnds.Tail = union(armEnds.Tail, []NodeID{lastCond})
		return armEnds, nil

	case len(rem) == 0:
		finalEnds, err := b.attach(entry, final)
		if err != nil {
			return OpenEnds{}, err
		}
		return armEnds.Merge(finalEnds), nil

	case len(final) == 0:
		remEnds, err := b.attach(entry, rem)
		if err != nil {
			return OpenEnds{}, err
		}
		return armEnds.Merge(remEnds), nil
	}

	finalEnds, err := b.attach(entry, final)
	if err != nil {
		return OpenEnds{}, err
	}
	// Every branch left through break or continue: nothing reaches rem.
	if len(armEnds.Tail) == 0 && len(finalEnds.Tail) == 0 {
		b.logger.Debug("dropping unreachable statements",
			"after", "if", "line", rem[0].Span().Line, "count", len(rem))
		return armEnds.Merge(finalEnds), nil
	}

	merge := b.g.addNode(KindMerge, LabelMerge, nil)
	b.g.connectChildren(merge, armEnds.Tail, childToParent)
	b.g.connectChildren(merge, finalEnds.Tail, childToParent)

	remEnds, err := b.attach(merge, rem)
	if err != nil {
		return OpenEnds{}, err
	}

	out := armEnds.Merge(finalEnds, remEnds)
	out.Tail = union(nil, remEnds.Tail)
	return out, nil
}

// attachWhile handles a while loop followed by rem.
func (b *Builder) attachWhile(entry NodeID, s *pyast.While, rem []pyast.Stmt) (OpenEnds, error) {
	if len(s.Orelse) > 0 {
		return OpenEnds{}, &UnsupportedError{Construct: "while/else", Line: s.Span().Line}
	}
	text, err := b.testText(s.Test)
	if err != nil {
		return OpenEnds{}, err
	}

	head := b.g.createAndConnect(entry, KindCondition, text, []pyast.Stmt{s})
	onTrue := b.g.createAndConnect(head, KindCondition, LabelTrue, nil)
	onFalse := b.g.createAndConnect(head, KindCondition, LabelFalse, nil)

	body, err := b.loopBody(onTrue, s.Body)
	if err != nil {
		return OpenEnds{}, err
	}
	b.g.connectWithMerge(body.loopBack(), head)

	exit := onFalse
	if len(body.Terminate) > 0 {
		merge := b.g.addNode(KindMerge, LabelMerge, nil)
		b.g.addEdge(onFalse, merge)
		b.g.connectChildren(merge, body.Terminate, childToParent)
		exit = merge
	}

	if len(rem) == 0 && b.loopExits {
		return OpenEnds{Tail: []NodeID{exit}}, nil
	}
	return b.attach(exit, rem)
}

// attachFor handles a for loop followed by rem.
func (b *Builder) attachFor(entry NodeID, s *pyast.For, rem []pyast.Stmt) (OpenEnds, error) {
	if len(s.Orelse) > 0 {
		return OpenEnds{}, &UnsupportedError{Construct: "for/else", Line: s.Span().Line}
	}

	head := b.g.createAndConnect(entry, KindStatement, b.forText(s), []pyast.Stmt{s})

	body, err := b.loopBody(head, s.Body)
	if err != nil {
		return OpenEnds{}, err
	}
	last := b.g.connectWithMerge(body.loopBack(), head)

	if len(rem) == 0 && !b.loopExits {
		if len(body.Terminate) > 0 {
			b.logger.Debug("for loop break exits left unwired", "line", s.Span().Line, "breaks", len(body.Terminate))
		}
		return OpenEnds{}, nil
	}

	exit := head
	switch len(body.Terminate) {
	case 0:
	case 1:
		exit = body.Terminate[0]
		b.g.addEdge(last, exit)
	default:
		merge := b.g.addNode(KindMerge, LabelMerge, nil)
		b.g.connectChildren(merge, body.Terminate, childToParent)
		b.g.addEdge(last, merge)
		exit = merge
	}

	if len(rem) == 0 {
		return OpenEnds{Tail: []NodeID{exit}}, nil
	}
	return b.attach(exit, rem)
}

// checkTopLevel reports loop exits left open once the whole statement list
// is attached. attach rejects loop control at depth zero, so this only fires
// on a handler that forgot to consume its loop's open ends.
func (b *Builder) checkTopLevel(ends OpenEnds) error {
	if len(ends.Terminate) > 0 {
		return &LoopControlError{Keyword: "break", Line: b.lineOf(ends.Terminate[0])}
	}
	if len(ends.Continue) > 0 {
		return &LoopControlError{Keyword: "continue", Line: b.lineOf(ends.Continue[0])}
	}
	return nil
}

// lineOf returns the last source line summarized by id, or 0 for
// synthetic nodes.
func (b *Builder) lineOf(id NodeID) int {
	_, end := b.g.Node(id).Lines()
	return end
}

func (b *Builder) loopBody(entry NodeID, body []pyast.Stmt) (OpenEnds, error) {
	b.loopDepth++
	defer func() { b.loopDepth-- }()
	return b.attach(entry, body)
}

// loopControl handles break and continue. Statements after them in the same
// list are unreachable and are not attached.
func (b *Builder) loopControl(entry NodeID, s pyast.Stmt, keyword string, rem []pyast.Stmt) (OpenEnds, error) {
	if b.loopDepth == 0 {
		return OpenEnds{}, &LoopControlError{Keyword: keyword, Line: s.Span().Line}
	}
	if len(rem) > 0 {
		b.logger.Debug("dropping unreachable statements",
			"after", keyword, "line", rem[0].Span().Line, "count", len(rem))
	}
	if keyword == "break" {
		return OpenEnds{Terminate: []NodeID{entry}}, nil
	}
	return OpenEnds{Continue: []NodeID{entry}}, nil
}

// splitBranches returns the if and each elif as arms, and the statements of
// a trailing bare else.
func splitBranches(s *pyast.If) ([]*pyast.If, []pyast.Stmt) {
	arms := []*pyast.If{s}
	rest := s.Orelse
	for len(rest) == 1 {
		elif, ok := rest[0].(*pyast.If)
		if !ok || !elif.Elif {
			break
		}
		arms = append(arms, elif)
		rest = elif.Orelse
	}
	return arms, rest
}

func simpleRun(stmts []pyast.Stmt) int {
	n := 0
	for _, s := range stmts {
		if !isSimple(s) {
			break
		}
		n++
	}
	return n
}

func isSimple(s pyast.Stmt) bool {
	switch s.(type) {
	case *pyast.Assign, *pyast.AugAssign, *pyast.ExprStmt, *pyast.Pass, *pyast.Return,
		*pyast.Delete, *pyast.Import, *pyast.ImportFrom, *pyast.Global, *pyast.Nonlocal:
		return true
	}
	return false
}

func (b *Builder) runText(run []pyast.Stmt) string {
	parts := make([]string, len(run))
	for i, s := range run {
		parts[i] = pyast.TextOf(b.src, s.Span())
	}
	return strings.Join(parts, "\n")
}

func (b *Builder) testText(test pyast.Expr) (string, error) {
	if test.Kind != pyast.ExprCompare && !b.anyTest {
		return "", &UnsupportedError{
			Construct: fmt.Sprintf("%s test", test.Kind),
			Line:      test.Span.Line,
		}
	}
	return pyast.TextOf(b.src, test.Span), nil
}

func (b *Builder) forText(s *pyast.For) string {
	return pyast.TextOf(b.src, s.Target.Span) + " in " + pyast.TextOf(b.src, s.Iter.Span)
}
