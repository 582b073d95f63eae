package symbol

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Registry maps file extensions to a LanguageRules + tree-sitter
// grammar pair, the capability set the extractor selects implementations
// from "by file extension".
type Registry struct {
	mu          sync.RWMutex
	rules       map[string]*LanguageRules
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewRegistry builds a Registry with the closed set of languages this
// extractor supports: Go, TypeScript/TSX, JavaScript/JSX, Python.
func NewRegistry() *Registry {
	r := &Registry{
		rules:       make(map[string]*LanguageRules),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	return r
}

func (r *Registry) register(rules *LanguageRules, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rules.Name] = rules
	r.tsLanguages[rules.Name] = lang
	for _, ext := range rules.Extensions {
		r.extToLang[ext] = rules.Name
	}
}

// ByExtension returns the rules registered for a file extension
// (e.g. ".go", or "go" without the dot — both are normalized).
func (r *Registry) ByExtension(ext string) (*LanguageRules, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	rules, ok := r.rules[name]
	return rules, ok
}

// Grammar returns the tree-sitter grammar for a language name.
func (r *Registry) Grammar(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions lists every extension the registry recognizes.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func (r *Registry) registerGo() {
	r.register(&LanguageRules{
		Name:          "go",
		Extensions:    []string{".go"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_declaration"},
		TypeTypes:     []string{"type_declaration"},
		ConstantTypes: []string{"const_declaration"},
		ModuleTypes:   []string{"package_clause"},
		NameField:     "name",
	}, golang.GetLanguage())
}

func (r *Registry) registerTypeScript() {
	ts := &LanguageRules{
		Name:          "typescript",
		Extensions:    []string{".ts"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_definition"},
		TypeTypes:     []string{"class_declaration", "interface_declaration", "type_alias_declaration"},
		ConstantTypes: []string{"lexical_declaration"},
		NameField:     "name",
	}
	r.register(ts, typescript.GetLanguage())

	tsxRules := &LanguageRules{
		Name: "tsx", Extensions: []string{".tsx"},
		FunctionTypes: ts.FunctionTypes, MethodTypes: ts.MethodTypes,
		TypeTypes: ts.TypeTypes, ConstantTypes: ts.ConstantTypes, NameField: ts.NameField,
	}
	r.register(tsxRules, tsx.GetLanguage())
}

func (r *Registry) registerJavaScript() {
	js := &LanguageRules{
		Name:          "javascript",
		Extensions:    []string{".js", ".mjs"},
		FunctionTypes: []string{"function_declaration", "function"},
		MethodTypes:   []string{"method_definition"},
		TypeTypes:     []string{"class_declaration"},
		ConstantTypes: []string{"lexical_declaration"},
		NameField:     "name",
	}
	r.register(js, javascript.GetLanguage())

	jsx := &LanguageRules{
		Name: "jsx", Extensions: []string{".jsx"},
		FunctionTypes: js.FunctionTypes, MethodTypes: js.MethodTypes,
		TypeTypes: js.TypeTypes, ConstantTypes: js.ConstantTypes, NameField: js.NameField,
	}
	r.register(jsx, javascript.GetLanguage())
}

func (r *Registry) registerPython() {
	r.register(&LanguageRules{
		Name:          "python",
		Extensions:    []string{".py"},
		FunctionTypes: []string{"function_definition"},
		TypeTypes:     []string{"class_definition"},
		NameField:     "name",
	}, python.GetLanguage())
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the shared, read-only registry of the four
// supported languages.
func DefaultRegistry() *Registry { return defaultRegistry }
