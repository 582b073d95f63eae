package symbol

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps a tree-sitter parser, giving it the Registry's grammar
// selection. Extractors are not shared across threads: callers must
// construct one Parser per worker goroutine rather than sharing one.
type Parser struct {
	ts       *sitter.Parser
	registry *Registry
}

// NewParser builds a Parser against the default language registry.
func NewParser() *Parser {
	return &Parser{ts: sitter.NewParser(), registry: DefaultRegistry()}
}

// Parse parses source as the given language and returns our Tree
// abstraction. Failure returns an error but never panics; callers
// treat a parse error as "empty symbol set", not as indexer failure.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	grammar, ok := p.registry.Grammar(language)
	if !ok {
		return nil, fmt.Errorf("symbol: unsupported language %q", language)
	}
	p.ts.SetLanguage(grammar)

	tsTree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("symbol: parse failed: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("symbol: parse produced nil tree")
	}

	return &Tree{
		Root:     convert(tsTree.RootNode(), source),
		Source:   source,
		Language: language,
	}, nil
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.ts != nil {
		p.ts.Close()
	}
}

func convert(n *sitter.Node, source []byte) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Type:      n.Type(),
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		StartPoint: Point{Row: n.StartPoint().Row, Column: n.StartPoint().Column},
		EndPoint:   Point{Row: n.EndPoint().Row, Column: n.EndPoint().Column},
		HasError:   n.HasError(),
		Children:   make([]*Node, 0, int(n.ChildCount())),
	}
	for i := uint32(0); i < n.ChildCount(); i++ {
		if child := n.Child(int(i)); child != nil {
			out.Children = append(out.Children, convert(child, source))
		}
	}
	return out
}
