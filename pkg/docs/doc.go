// Package docs generates the webhook event catalog.
//
// # Overview
//
// This package documents every event type a subscription can receive,
// together with the delivery contract (headers, content type, signature
// scheme). Example payloads are produced by the real envelope builders,
// so the catalog cannot drift from the code that emits events.
//
// # Catalog Structure
//
// Each entry carries:
//   - Event name and category (token, factory, test)
//   - Data field names, JSON types, and descriptions
//   - A reproducible example payload
//
// # Usage Example
//
// Build the catalog:
//
//	catalog, err := docs.NewGenerator().Generate()
//
// Export to Markdown:
//
//	markdown := docs.NewMarkdownExporter().Export(catalog)
//
// Export to HTML:
//
//	html, err := docs.NewHTMLExporter().Export(catalog)
//
// Serve it:
//
//	handlers, err := docs.NewHandlers()
//	handlers.RegisterRoutes(apiRouter)
//
// # Related Packages
//
//   - pkg/docs/examples: consumer-side signature verification snippets
package docs
