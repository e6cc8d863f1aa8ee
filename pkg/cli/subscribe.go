package cli

import (
	"flag"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/webhooks"
)

func newSubscribeCommand() *Command {
	cmd := &Command{
		Name:        "subscribe",
		Description: "Register a webhook subscription",
		Flags:       flag.NewFlagSet("subscribe", flag.ExitOnError),
		Run:         runSubscribe,
	}

	cmd.Flags.String("url", "", "Delivery endpoint URL (required)")
	cmd.Flags.String("events", "", "Comma-separated event types (required)")
	cmd.Flags.String("token-address", "", "Only deliver events for this token")
	cmd.Flags.String("format", "", "Payload format: json, slack, or teams")
	cmd.Flags.String("created-by", "", "Owner identity, e.g. a wallet address (required)")
	cmd.Flags.String("server", "", "Registry URL (default: SOROFORGE_SERVER or "+defaultServer+")")

	return cmd
}

func runSubscribe(args []string) error {
	cmd := newSubscribeCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	url := cmd.Flags.Lookup("url").Value.String()
	eventList := cmd.Flags.Lookup("events").Value.String()
	tokenAddress := cmd.Flags.Lookup("token-address").Value.String()
	format := cmd.Flags.Lookup("format").Value.String()
	createdBy := cmd.Flags.Lookup("created-by").Value.String()
	server := serverURL(cmd.Flags.Lookup("server").Value.String())

	if url == "" || eventList == "" || createdBy == "" {
		return fmt.Errorf("url, events, and created-by are required")
	}

	// Validate event names locally so a typo fails before the request
	var eventTypes []events.EventType
	for _, name := range strings.Split(eventList, ",") {
		ev, err := events.Parse(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		if ev == events.EventWebhookTest {
			return fmt.Errorf("WEBHOOK_TEST is not subscribable; use the test command")
		}
		eventTypes = append(eventTypes, ev)
	}

	body := map[string]interface{}{
		"url":       url,
		"events":    eventTypes,
		"createdBy": createdBy,
	}
	if tokenAddress != "" {
		body["tokenAddress"] = tokenAddress
	}
	if format != "" {
		body["format"] = format
	}

	var sub webhooks.Subscription
	if err := newAPIClient(server).doJSON(http.MethodPost, "/api/v1/webhooks/subscribe", body, &sub); err != nil {
		return err
	}

	logrus.Infof("Subscription %s created", sub.ID)
	fmt.Printf("ID:      %s\n", sub.ID)
	fmt.Printf("URL:     %s\n", sub.URL)
	fmt.Printf("Events:  %s\n", joinEvents(sub.Events))
	if sub.TokenAddress != "" {
		fmt.Printf("Token:   %s\n", sub.TokenAddress)
	}
	fmt.Printf("Secret:  %s\n", sub.Secret)
	fmt.Println("Store the secret now; it is never shown again.")
	return nil
}

func joinEvents(evs []events.EventType) string {
	names := make([]string, len(evs))
	for i, ev := range evs {
		names[i] = string(ev)
	}
	return strings.Join(names, ", ")
}
