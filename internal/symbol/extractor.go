package symbol

import (
	"context"

	"github.com/hsearch/hsearch/internal/hashutil"
)

// DefaultMaxFileBytes is the default per-file ceiling: any file
// exceeding it is skipped rather than parsed (Extract returns no symbols
// and logs nothing).
const DefaultMaxFileBytes = 2 * 1024 * 1024

// Extractor is the polymorphic {parse, query} capability set,
// selected per call by the file's language tag.
type Extractor struct {
	registry    *Registry
	maxFileSize int
}

// NewExtractor builds an Extractor against the default registry with
// the default file-size ceiling.
func NewExtractor() *Extractor {
	return &Extractor{registry: DefaultRegistry(), maxFileSize: DefaultMaxFileBytes}
}

// WithMaxFileSize returns a copy of e with a different ceiling.
func (e *Extractor) WithMaxFileSize(n int) *Extractor {
	cp := *e
	cp.maxFileSize = n
	return &cp
}

// SupportedExtensions reports every extension this extractor can parse.
func (e *Extractor) SupportedExtensions() []string {
	return e.registry.SupportedExtensions()
}

// Extract parses path's source under the given extension and returns
// its symbols. A parse failure or an unsupported extension yields an
// empty slice and nil error — never an abort signal to the indexer.
// Oversized files are skipped the same way.
func (e *Extractor) Extract(ctx context.Context, path string, source []byte, ext string) ([]Symbol, error) {
	if len(source) > e.maxFileSize {
		return nil, nil
	}

	rules, ok := e.registry.ByExtension(ext)
	if !ok {
		return nil, nil
	}

	parser := NewParser()
	defer parser.Close()

	tree, err := parser.Parse(ctx, source, rules.Name)
	if err != nil {
		return nil, nil // parse failure: empty, not an error the indexer must abort on
	}

	return query(tree, rules, path), nil
}

// query walks tree's AST collecting symbols per rules' closed
// node-kind selector set.
func query(tree *Tree, rules *LanguageRules, path string) []Symbol {
	var out []Symbol
	kindFor := func(nodeType string) (Kind, bool) {
		switch {
		case contains(rules.FunctionTypes, nodeType):
			return KindFunction, true
		case contains(rules.MethodTypes, nodeType):
			return KindMethod, true
		case contains(rules.TypeTypes, nodeType):
			return KindType, true
		case contains(rules.ConstantTypes, nodeType):
			return KindConstant, true
		case contains(rules.ModuleTypes, nodeType):
			return KindModule, true
		default:
			return "", false
		}
	}

	tree.Root.Walk(func(n *Node) bool {
		if kind, ok := kindFor(n.Type); ok {
			name := nameOf(n, rules, tree.Source)
			if name == "" {
				return true
			}
			startLine := int(n.StartPoint.Row) + 1
			endLine := int(n.EndPoint.Row) + 1
			hash := hashutil.ContentHash([]byte(n.Content(tree.Source)))
			out = append(out, Symbol{
				SymbolID:  hashutil.ChunkID(path, startLine, endLine, hash),
				Name:      name,
				Kind:      kind,
				Path:      path,
				Line:      startLine,
				EndLine:   endLine,
				Signature: signature(n, tree.Source),
			})
		}
		return true
	})
	return out
}

// nameOf extracts the declared identifier from a symbol-defining node,
// falling back to a direct child search by the language's NameField
// node type and then to the first identifier-like child found anywhere
// beneath n — Go's const/var declarations and TS's lexical
// declarations nest their identifiers a level or two deeper than a flat
// "name" field.
func nameOf(n *Node, rules *LanguageRules, source []byte) string {
	if field := n.ChildByType(rules.NameField); field != nil {
		return field.Content(source)
	}
	var found string
	n.Walk(func(c *Node) bool {
		if found != "" {
			return false
		}
		if c.Type == "identifier" || c.Type == "field_identifier" || c.Type == "type_identifier" || c.Type == "property_identifier" {
			found = c.Content(source)
			return false
		}
		return true
	})
	return found
}

// signature returns a single-line best-effort signature: the node's
// content up to its first newline, or up to 200 bytes, whichever comes
// first.
func signature(n *Node, source []byte) string {
	content := n.Content(source)
	for i, r := range content {
		if r == '\n' {
			content = content[:i]
			break
		}
	}
	if len(content) > 200 {
		content = content[:200]
	}
	return content
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
