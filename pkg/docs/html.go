package docs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
)

// HTMLExporter exports the event catalog to a standalone HTML page
type HTMLExporter struct {
	template *template.Template
}

// NewHTMLExporter creates a new HTML exporter
func NewHTMLExporter() *HTMLExporter {
	tmpl := template.Must(template.New("docs").Funcs(template.FuncMap{
		"anchor":     toAnchor,
		"hasContent": hasContent,
		"payload":    payloadText,
	}).Parse(htmlTemplate))

	return &HTMLExporter{
		template: tmpl,
	}
}

// eventGroup is one category section of the rendered page
type eventGroup struct {
	Heading string
	Anchor  string
	Events  []*EventDoc
}

// Export exports the catalog to HTML
func (e *HTMLExporter) Export(c *Catalog) (string, error) {
	var groups []eventGroup
	headings := &MarkdownExporter{}
	for _, cat := range c.Categories() {
		heading := headings.heading(cat)
		groups = append(groups, eventGroup{
			Heading: heading,
			Anchor:  toAnchor(heading),
			Events:  c.EventsIn(cat),
		})
	}

	data := struct {
		*Catalog
		Groups []eventGroup
	}{
		Catalog: c,
		Groups:  groups,
	}

	var buf bytes.Buffer
	if err := e.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// toAnchor converts a name to an HTML anchor
func toAnchor(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// hasContent checks if a string has content
func hasContent(s string) bool {
	return strings.TrimSpace(s) != ""
}

// payloadText renders a raw example payload for the template
func payloadText(raw json.RawMessage) string {
	return string(raw)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ .Title }}</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            background: #f5f5f5;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
        }
        header {
            background: #2c3e50;
            color: white;
            padding: 30px 0;
            margin-bottom: 30px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        header h1 {
            margin-bottom: 10px;
        }
        .badge {
            display: inline-block;
            padding: 4px 8px;
            background: #3498db;
            color: white;
            border-radius: 3px;
            font-size: 0.85em;
            font-weight: 600;
        }
        nav {
            background: white;
            padding: 20px;
            border-radius: 8px;
            margin-bottom: 30px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        nav h2 {
            margin-bottom: 15px;
            color: #2c3e50;
        }
        nav ul {
            list-style: none;
        }
        nav ul ul {
            padding-left: 20px;
        }
        nav ul li {
            margin: 8px 0;
        }
        nav a {
            color: #3498db;
            text-decoration: none;
            transition: color 0.2s;
        }
        nav a:hover {
            color: #2980b9;
            text-decoration: underline;
        }
        .content {
            background: white;
            padding: 30px;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        h2 {
            color: #2c3e50;
            margin: 30px 0 20px 0;
            padding-bottom: 10px;
            border-bottom: 2px solid #3498db;
        }
        h3 {
            color: #34495e;
            margin: 25px 0 15px 0;
            font-family: "Monaco", "Menlo", "Ubuntu Mono", monospace;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            margin: 20px 0;
        }
        th {
            background: #ecf0f1;
            padding: 12px;
            text-align: left;
            font-weight: 600;
            border-bottom: 2px solid #bdc3c7;
        }
        td {
            padding: 12px;
            border-bottom: 1px solid #ecf0f1;
        }
        tr:hover {
            background: #f8f9fa;
        }
        code {
            background: #f8f9fa;
            padding: 2px 6px;
            border-radius: 3px;
            font-family: "Monaco", "Menlo", "Ubuntu Mono", monospace;
            font-size: 0.9em;
            color: #e74c3c;
        }
        pre {
            background: #2c3e50;
            color: #ecf0f1;
            padding: 15px;
            border-radius: 5px;
            overflow-x: auto;
            margin: 15px 0;
        }
        pre code {
            background: none;
            color: #ecf0f1;
            padding: 0;
        }
        .label {
            display: inline-block;
            padding: 2px 8px;
            background: #95a5a6;
            color: white;
            border-radius: 3px;
            font-size: 0.8em;
            margin-left: 5px;
        }
        .label.optional {
            background: #f39c12;
        }
        .search-box {
            width: 100%;
            padding: 12px;
            border: 2px solid #ecf0f1;
            border-radius: 5px;
            font-size: 1em;
            margin-bottom: 20px;
        }
        .search-box:focus {
            outline: none;
            border-color: #3498db;
        }
    </style>
</head>
<body>
    <header>
        <div class="container">
            <h1>{{ .Title }}</h1>
            <span class="badge">{{ len .Events }} events</span>
        </div>
    </header>

    <div class="container">
        <nav>
            <h2>Table of Contents</h2>
            <input type="text" class="search-box" placeholder="Search events..." id="search">
            <ul>
                <li><a href="#delivery">Delivery</a></li>
                {{ range .Groups }}
                <li><a href="#{{ .Anchor }}">{{ .Heading }}</a>
                    <ul>
                        {{ range .Events }}
                        <li><a href="#{{ anchor .Name }}">{{ .Name }}</a></li>
                        {{ end }}
                    </ul>
                </li>
                {{ end }}
            </ul>
        </nav>

        <div class="content">
            {{ if hasContent .Description }}
            <p>{{ .Description }}</p>
            {{ end }}

            <h2 id="delivery">Delivery</h2>
            <p>Deliveries are HTTP POSTs with <code>Content-Type: {{ .Delivery.ContentType }}</code>.
            The signature is {{ .Delivery.SignatureScheme }}. Verify it against the raw body
            before parsing; a 2xx response marks the delivery succeeded, anything else is
            retried with backoff.</p>

            {{ if .Delivery.Headers }}
            <table>
                <thead>
                    <tr>
                        <th>Header</th>
                        <th>Description</th>
                    </tr>
                </thead>
                <tbody>
                    {{ range .Delivery.Headers }}
                    <tr>
                        <td><code>{{ .Name }}</code></td>
                        <td>{{ .Description }}</td>
                    </tr>
                    {{ end }}
                </tbody>
            </table>
            {{ end }}

            {{ range .Groups }}
            <h2 id="{{ .Anchor }}">{{ .Heading }}</h2>
            {{ range .Events }}
            <div class="event">
            <h3 id="{{ anchor .Name }}">{{ .Name }}</h3>
            {{ if hasContent .Description }}<p>{{ .Description }}</p>{{ end }}

            {{ if .Fields }}
            <table>
                <thead>
                    <tr>
                        <th>Field</th>
                        <th>Type</th>
                        <th>Description</th>
                    </tr>
                </thead>
                <tbody>
                    {{ range .Fields }}
                    <tr>
                        <td>
                            <code>{{ .Name }}</code>
                            {{ if .Optional }}<span class="label optional">optional</span>{{ end }}
                        </td>
                        <td>{{ .Type }}</td>
                        <td>{{ .Description }}</td>
                    </tr>
                    {{ end }}
                </tbody>
            </table>
            {{ end }}

            {{ if .Example }}
            <pre><code>{{ payload .Example }}</code></pre>
            {{ end }}
            </div>
            {{ end }}
            {{ end }}
        </div>
    </div>

    <script>
        // Simple search functionality
        document.getElementById('search').addEventListener('input', function(e) {
            const searchTerm = e.target.value.toLowerCase();
            document.querySelectorAll('.content .event').forEach(event => {
                const text = event.textContent.toLowerCase();
                event.style.display = text.includes(searchTerm) || searchTerm === '' ? '' : 'none';
            });
        });
    </script>
</body>
</html>
`
