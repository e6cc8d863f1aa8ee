package examples

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"text/template"

	"github.com/soroforge/soroforge/pkg/webhooks"
)

//go:embed templates/*/verify.tmpl
var templateFS embed.FS

// Generator renders consumer-side signature verification snippets for
// the event catalog pages.
type Generator struct {
	templates map[string]*template.Template
}

// NewGenerator creates a new snippet generator
func NewGenerator() (*Generator, error) {
	g := &Generator{
		templates: make(map[string]*template.Template),
	}

	languages := []string{"go", "python", "typescript"}
	for _, lang := range languages {
		tmplPath := fmt.Sprintf("templates/%s/verify.tmpl", lang)
		tmplContent, err := templateFS.ReadFile(tmplPath)
		if err != nil {
			return nil, fmt.Errorf("missing verification template for %s: %w", lang, err)
		}

		tmpl, err := template.New(lang).Parse(string(tmplContent))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template for %s: %w", lang, err)
		}

		g.templates[lang] = tmpl
	}

	return g, nil
}

// Generate renders the verification snippet for the given language
func (g *Generator) Generate(language string) (string, error) {
	tmpl, ok := g.templates[language]
	if !ok {
		return "", fmt.Errorf("no snippet for language: %s", language)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, g.snippetData(language)); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// Languages returns the supported snippet languages, sorted
func (g *Generator) Languages() []string {
	langs := make([]string, 0, len(g.templates))
	for lang := range g.templates {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func (g *Generator) snippetData(language string) SnippetData {
	return SnippetData{
		Language:        language,
		SignatureHeader: webhooks.HeaderSignature,
		SignaturePrefix: webhooks.SignaturePrefix,
		EventHeader:     webhooks.HeaderEvent,
		EventIDHeader:   webhooks.HeaderEventID,
		DeliveryHeader:  webhooks.HeaderDelivery,
	}
}
