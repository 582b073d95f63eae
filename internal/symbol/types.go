// Package symbol implements symbol extraction: a polymorphic
// {parse(source, language), query(tree, rules)} capability set,
// selected by file extension, producing (name, kind, file, line_range)
// tuples without ever aborting the indexer on parse failure.
package symbol

// Kind is the closed symbol-kind enum.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindType     Kind = "type"
	KindConstant Kind = "constant"
	KindModule   Kind = "module"
	KindOther    Kind = "other"
)

// priority ranks symbol kinds so the most specific match wins:
// function > method > type > constant > module > other.
var priority = map[Kind]int{
	KindFunction: 0,
	KindMethod:   1,
	KindType:     2,
	KindConstant: 3,
	KindModule:   4,
	KindOther:    5,
}

// Priority returns the sort priority for k (lower sorts first).
func (k Kind) Priority() int {
	if p, ok := priority[k]; ok {
		return p
	}
	return priority[KindOther]
}

// Symbol is one extracted name/kind/location tuple.
type Symbol struct {
	SymbolID  string
	Name      string
	Kind      Kind
	Path      string
	Line      int
	EndLine   int
	Signature string
}

// Point is a 0-indexed source position, mirroring tree-sitter's own
// point representation.
type Point struct {
	Row    uint32
	Column uint32
}

// Tree is a parsed AST, wrapping the subset of tree-sitter's node tree
// the extractor needs.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node is a single AST node.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Content returns the source slice a node spans.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// ChildByType returns the first direct child with the given node type.
func (n *Node) ChildByType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// Walk traverses the tree depth-first, calling fn for each node. fn
// returns false to stop descending into that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// LanguageRules is the closed list of node-kind selectors for one
// language, mapping tree-sitter node types to Symbol kinds.
type LanguageRules struct {
	Name          string
	Extensions    []string
	FunctionTypes []string
	MethodTypes   []string
	TypeTypes     []string // class/struct/interface/type-alias declarations
	ConstantTypes []string
	ModuleTypes   []string
	NameField     string
}
