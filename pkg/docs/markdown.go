package docs

import (
	"fmt"
	"strings"
)

// Category section headings in render order
var categoryHeadings = map[string]string{
	CategoryToken:   "Token Events",
	CategoryFactory: "Factory Events",
	CategoryTest:    "Test Events",
}

// MarkdownExporter exports the event catalog to Markdown
type MarkdownExporter struct{}

// NewMarkdownExporter creates a new Markdown exporter
func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{}
}

// Export exports the catalog to Markdown
func (e *MarkdownExporter) Export(c *Catalog) string {
	var b strings.Builder

	// Title
	b.WriteString(fmt.Sprintf("# %s\n\n", c.Title))

	if c.Description != "" {
		b.WriteString(fmt.Sprintf("%s\n\n", c.Description))
	}

	// Table of contents
	b.WriteString("## Table of Contents\n\n")
	b.WriteString("- [Delivery](#delivery)\n")
	for _, cat := range c.Categories() {
		heading := e.heading(cat)
		b.WriteString(fmt.Sprintf("- [%s](#%s)\n", heading, anchorOf(heading)))
		for _, ev := range c.EventsIn(cat) {
			b.WriteString(fmt.Sprintf("  - [%s](#%s)\n", ev.Name, anchorOf(ev.Name)))
		}
	}
	b.WriteString("\n")

	e.writeDelivery(&b, &c.Delivery)

	// Events grouped by category
	for _, cat := range c.Categories() {
		b.WriteString(fmt.Sprintf("## %s\n\n", e.heading(cat)))
		for _, ev := range c.EventsIn(cat) {
			e.writeEvent(&b, ev)
		}
	}

	return b.String()
}

// writeDelivery writes the delivery contract section
func (e *MarkdownExporter) writeDelivery(b *strings.Builder, d *DeliveryDoc) {
	b.WriteString("## Delivery\n\n")
	b.WriteString(fmt.Sprintf("Deliveries are HTTP POSTs with `Content-Type: %s`. ", d.ContentType))
	b.WriteString(fmt.Sprintf("The signature is %s. ", d.SignatureScheme))
	b.WriteString("Verify it against the raw body before parsing; a 2xx response marks the delivery succeeded, anything else is retried with backoff.\n\n")

	if len(d.Headers) > 0 {
		b.WriteString("| Header | Description |\n")
		b.WriteString("|--------|-------------|\n")
		for _, h := range d.Headers {
			b.WriteString(fmt.Sprintf("| `%s` | %s |\n", h.Name, h.Description))
		}
		b.WriteString("\n")
	}
}

// writeEvent writes one event to markdown
func (e *MarkdownExporter) writeEvent(b *strings.Builder, ev *EventDoc) {
	b.WriteString(fmt.Sprintf("### %s\n\n", ev.Name))

	if ev.Description != "" {
		b.WriteString(fmt.Sprintf("%s\n\n", ev.Description))
	}

	// Fields table
	if len(ev.Fields) > 0 {
		b.WriteString("| Field | Type | Description |\n")
		b.WriteString("|-------|------|-------------|\n")

		for _, f := range ev.Fields {
			desc := f.Description
			if f.Optional {
				desc = "Optional. " + desc
			}
			b.WriteString(fmt.Sprintf("| `%s` | %s | %s |\n", f.Name, f.Type, desc))
		}
		b.WriteString("\n")
	}

	// Example payload
	if len(ev.Example) > 0 {
		b.WriteString("Example:\n\n")
		b.WriteString("```json\n")
		b.WriteString(string(ev.Example))
		b.WriteString("\n```\n\n")
	}
}

// heading maps a category to its section heading
func (e *MarkdownExporter) heading(category string) string {
	if h, ok := categoryHeadings[category]; ok {
		return h
	}
	return category + " events"
}

// anchorOf converts a heading to a GitHub-style markdown anchor.
// Underscores survive, spaces become dashes.
func anchorOf(heading string) string {
	return strings.ReplaceAll(strings.ToLower(heading), " ", "-")
}
