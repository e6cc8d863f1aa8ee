package cli

import (
	"flag"
	"fmt"
	"net/http"
	"strconv"

	"github.com/soroforge/soroforge/pkg/webhooks"
)

func newLogsCommand() *Command {
	cmd := &Command{
		Name:        "logs",
		Description: "Show delivery attempts for a subscription",
		Flags:       flag.NewFlagSet("logs", flag.ExitOnError),
		Run:         runLogs,
	}

	cmd.Flags.String("id", "", "Subscription ID (required)")
	cmd.Flags.Int("limit", 50, "Maximum attempts to show")
	cmd.Flags.String("server", "", "Registry URL (default: SOROFORGE_SERVER or "+defaultServer+")")

	return cmd
}

func runLogs(args []string) error {
	cmd := newLogsCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	id := cmd.Flags.Lookup("id").Value.String()
	limit, _ := strconv.Atoi(cmd.Flags.Lookup("limit").Value.String())
	server := serverURL(cmd.Flags.Lookup("server").Value.String())

	if id == "" {
		return fmt.Errorf("id is required")
	}

	var resp struct {
		Logs  []*webhooks.DeliveryLog `json:"logs"`
		Count int                     `json:"count"`
	}
	path := fmt.Sprintf("/api/v1/webhooks/%s/logs?limit=%d", id, limit)
	if err := newAPIClient(server).doJSON(http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Println("No delivery attempts recorded")
		return nil
	}

	fmt.Printf("%-25s %-18s %-8s %-7s %-6s %s\n", "ATTEMPTED", "EVENT", "ATTEMPT", "STATUS", "OK", "ERROR")
	for _, entry := range resp.Logs {
		status := "-"
		if entry.HTTPStatus != 0 {
			status = strconv.Itoa(entry.HTTPStatus)
		}
		label := string(entry.Event)
		if entry.Test {
			label += " (test)"
		}
		fmt.Printf("%-25s %-18s %-8d %-7s %-6t %s\n",
			entry.AttemptedAt.Format("2006-01-02T15:04:05Z"),
			label, entry.Attempt, status, entry.Success, entry.Error)
	}
	return nil
}
