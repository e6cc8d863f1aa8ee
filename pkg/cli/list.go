package cli

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/soroforge/soroforge/pkg/webhooks"
)

func newListCommand() *Command {
	cmd := &Command{
		Name:        "list",
		Description: "List webhook subscriptions for an owner",
		Flags:       flag.NewFlagSet("list", flag.ExitOnError),
		Run:         runList,
	}

	cmd.Flags.String("created-by", "", "Owner identity (required)")
	cmd.Flags.String("active", "", "Filter by active state: true or false")
	cmd.Flags.String("server", "", "Registry URL (default: SOROFORGE_SERVER or "+defaultServer+")")

	return cmd
}

func runList(args []string) error {
	cmd := newListCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	createdBy := cmd.Flags.Lookup("created-by").Value.String()
	activeFilter := cmd.Flags.Lookup("active").Value.String()
	server := serverURL(cmd.Flags.Lookup("server").Value.String())

	if createdBy == "" {
		return fmt.Errorf("created-by is required")
	}

	body := map[string]interface{}{"createdBy": createdBy}
	switch activeFilter {
	case "":
	case "true":
		body["active"] = true
	case "false":
		body["active"] = false
	default:
		return fmt.Errorf("active must be true or false")
	}

	var resp struct {
		Subscriptions []*webhooks.Subscription `json:"subscriptions"`
		Count         int                      `json:"count"`
	}
	if err := newAPIClient(server).doJSON(http.MethodPost, "/api/v1/webhooks/list", body, &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Println("No subscriptions found")
		return nil
	}

	fmt.Printf("%-42s %-8s %-22s %s\n", "ID", "ACTIVE", "EVENTS", "URL")
	for _, sub := range resp.Subscriptions {
		fmt.Printf("%-42s %-8t %-22s %s\n", sub.ID, sub.Active, joinEvents(sub.Events), sub.URL)
	}
	return nil
}
