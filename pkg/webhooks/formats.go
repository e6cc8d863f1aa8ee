package webhooks

import (
	"github.com/soroforge/soroforge/pkg/events"
)

// SlackMessage is the body posted to Slack incoming webhooks
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is a colored block within a Slack message
type SlackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackField is one label/value pair in an attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// TeamsMessage is the MessageCard body posted to Teams webhooks
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	Summary    string         `json:"summary,omitempty"`
	Title      string         `json:"title,omitempty"`
	Text       string         `json:"text,omitempty"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

// TeamsSection groups facts within a Teams card
type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Text          string      `json:"text,omitempty"`
}

// TeamsFact is one name/value pair in a Teams section
type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FormatSlackMessage renders an event envelope as a Slack message
func FormatSlackMessage(env events.Envelope) SlackMessage {
	fields := []SlackField{
		{Title: "Event", Value: string(env.Event), Short: true},
		{Title: "Event ID", Value: env.ID, Short: true},
		{Title: "Timestamp", Value: env.Timestamp.Format("2006-01-02 15:04:05 UTC"), Short: true},
	}

	if token := env.TokenAddress(); token != "" {
		fields = append(fields, SlackField{Title: "Token", Value: token, Short: false})
	}
	if symbol, ok := env.Data["symbol"].(string); ok {
		fields = append(fields, SlackField{Title: "Symbol", Value: symbol, Short: true})
	}
	if amount, ok := env.Data["amount"].(string); ok {
		fields = append(fields, SlackField{Title: "Amount", Value: amount, Short: true})
	}
	if txHash, ok := env.Data["tx_hash"].(string); ok {
		fields = append(fields, SlackField{Title: "Transaction", Value: txHash, Short: false})
	}
	if message, ok := env.Data["message"].(string); ok {
		fields = append(fields, SlackField{Title: "Message", Value: message, Short: false})
	}

	return SlackMessage{
		Attachments: []SlackAttachment{
			{
				Color:  eventColor(env.Event),
				Title:  eventTitle(env.Event),
				Fields: fields,
			},
		},
	}
}

// FormatTeamsMessage renders an event envelope as a Teams MessageCard
func FormatTeamsMessage(env events.Envelope) TeamsMessage {
	title := eventTitle(env.Event)

	facts := []TeamsFact{
		{Name: "Event", Value: string(env.Event)},
		{Name: "Event ID", Value: env.ID},
		{Name: "Timestamp", Value: env.Timestamp.Format("2006-01-02 15:04:05 UTC")},
	}

	if token := env.TokenAddress(); token != "" {
		facts = append(facts, TeamsFact{Name: "Token", Value: token})
	}
	if symbol, ok := env.Data["symbol"].(string); ok {
		facts = append(facts, TeamsFact{Name: "Symbol", Value: symbol})
	}
	if amount, ok := env.Data["amount"].(string); ok {
		facts = append(facts, TeamsFact{Name: "Amount", Value: amount})
	}
	if txHash, ok := env.Data["tx_hash"].(string); ok {
		facts = append(facts, TeamsFact{Name: "Transaction", Value: txHash})
	}

	var text string
	if message, ok := env.Data["message"].(string); ok {
		text = message
	}

	return TeamsMessage{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		Summary:    title,
		Title:      title,
		ThemeColor: eventThemeColor(env.Event),
		Sections: []TeamsSection{
			{
				Facts: facts,
				Text:  text,
			},
		},
	}
}

// eventColor returns the Slack attachment color for an event type
func eventColor(event events.EventType) string {
	switch event {
	case events.EventTokenCreated, events.EventFactoryUnpaused:
		return "good" // Green
	case events.EventTokenClawback, events.EventFactoryPaused:
		return "danger" // Red
	case events.EventTokenSelfBurn, events.EventTokenAdminBurn, events.EventTokenBatchBurn:
		return "warning" // Yellow
	default:
		return "#439FE0" // Blue
	}
}

// eventThemeColor returns the Teams theme color for an event type
func eventThemeColor(event events.EventType) string {
	switch event {
	case events.EventTokenCreated, events.EventFactoryUnpaused:
		return "28a745" // Green
	case events.EventTokenClawback, events.EventFactoryPaused:
		return "dc3545" // Red
	case events.EventTokenSelfBurn, events.EventTokenAdminBurn, events.EventTokenBatchBurn:
		return "ffc107" // Yellow
	default:
		return "007bff" // Blue
	}
}

// eventTitle returns a human-readable title for an event type
func eventTitle(event events.EventType) string {
	switch event {
	case events.EventTokenCreated:
		return "Token Created"
	case events.EventTokenSelfBurn:
		return "Tokens Burned"
	case events.EventTokenAdminBurn:
		return "Admin Burn"
	case events.EventTokenBatchBurn:
		return "Batch Burn"
	case events.EventTokenClawback:
		return "Clawback Setting Changed"
	case events.EventFactoryPaused:
		return "Factory Paused"
	case events.EventFactoryUnpaused:
		return "Factory Resumed"
	case events.EventFeeUpdated:
		return "Fees Updated"
	case events.EventAdminTransferred:
		return "Admin Transferred"
	case events.EventWebhookTest:
		return "Test Delivery"
	default:
		return string(event)
	}
}
