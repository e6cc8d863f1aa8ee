package examples

// SnippetData is the delivery contract injected into every snippet
// template. Header names and the signature prefix come from the
// dispatcher so the snippets can never disagree with what is sent.
type SnippetData struct {
	Language        string
	SignatureHeader string
	SignaturePrefix string
	EventHeader     string
	EventIDHeader   string
	DeliveryHeader  string
}
