package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageRegistry maps a track's declared language name to a tree-sitter
// grammar, and a file extension to a language name.
type LanguageRegistry struct {
	mu          sync.RWMutex
	tsLanguages map[string]*sitter.Language
	extToLang   map[string]string
}

// DefaultRegistry returns a registry pre-populated with the languages the
// corpus's tree-sitter bindings ship: Go, TypeScript, JavaScript, Python.
func DefaultRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		tsLanguages: make(map[string]*sitter.Language),
		extToLang:   make(map[string]string),
	}
	r.register("go", golang.GetLanguage(), ".go")
	r.register("typescript", typescript.GetLanguage(), ".ts", ".tsx")
	r.register("javascript", javascript.GetLanguage(), ".js", ".jsx")
	r.register("python", python.GetLanguage(), ".py")
	return r
}

func (r *LanguageRegistry) register(name string, lang *sitter.Language, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tsLanguages[name] = lang
	for _, ext := range exts {
		r.extToLang[ext] = name
	}
}

// GetTreeSitterLanguage returns the grammar registered under name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[strings.ToLower(name)]
	return lang, ok
}

// LanguageForExtension returns the language name registered for ext
// (case-insensitive, leading-dot optional).
func (r *LanguageRegistry) LanguageForExtension(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	return name, ok
}
