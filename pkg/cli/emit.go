package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/soroforge/soroforge/pkg/events"
)

func newEmitCommand() *Command {
	cmd := &Command{
		Name:        "emit",
		Description: "Emit a domain event through the internal ingest endpoint",
		Flags:       flag.NewFlagSet("emit", flag.ExitOnError),
		Run:         runEmit,
	}

	cmd.Flags.String("event", "", "Event type, e.g. TOKEN_CREATED (required)")
	cmd.Flags.String("data", "", "Event data as inline JSON")
	cmd.Flags.String("data-file", "", "Read event data from a JSON file instead")
	cmd.Flags.String("server", "", "Registry URL (default: SOROFORGE_SERVER or "+defaultServer+")")

	return cmd
}

func runEmit(args []string) error {
	cmd := newEmitCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	eventName := cmd.Flags.Lookup("event").Value.String()
	inlineData := cmd.Flags.Lookup("data").Value.String()
	dataFile := cmd.Flags.Lookup("data-file").Value.String()
	server := serverURL(cmd.Flags.Lookup("server").Value.String())

	if eventName == "" {
		return fmt.Errorf("event is required")
	}
	event, err := events.Parse(strings.TrimSpace(eventName))
	if err != nil {
		return err
	}
	if event == events.EventWebhookTest {
		return fmt.Errorf("WEBHOOK_TEST cannot be emitted; use the test command")
	}

	raw := []byte(inlineData)
	if dataFile != "" {
		if inlineData != "" {
			return fmt.Errorf("data and data-file are mutually exclusive")
		}
		raw, err = os.ReadFile(dataFile)
		if err != nil {
			return fmt.Errorf("read data file: %w", err)
		}
	}

	data := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("event data must be a JSON object: %w", err)
		}
	}

	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]interface{}{"event": event, "data": data}
	if err := newAPIClient(server).doJSON(http.MethodPost, "/internal/v1/events", body, &resp); err != nil {
		return err
	}

	logrus.Infof("Event %s accepted as %s", event, resp.ID)
	return nil
}
