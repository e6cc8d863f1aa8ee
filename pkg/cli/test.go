package cli

import (
	"flag"
	"fmt"
	"net/http"
)

func newTestCommand() *Command {
	cmd := &Command{
		Name:        "test",
		Description: "Send a test delivery to a subscription",
		Flags:       flag.NewFlagSet("test", flag.ExitOnError),
		Run:         runTest,
	}

	cmd.Flags.String("id", "", "Subscription ID (required)")
	cmd.Flags.String("server", "", "Registry URL (default: SOROFORGE_SERVER or "+defaultServer+")")

	return cmd
}

func runTest(args []string) error {
	cmd := newTestCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	id := cmd.Flags.Lookup("id").Value.String()
	server := serverURL(cmd.Flags.Lookup("server").Value.String())

	if id == "" {
		return fmt.Errorf("id is required")
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	path := fmt.Sprintf("/api/v1/webhooks/%s/test", id)
	if err := newAPIClient(server).doJSON(http.MethodPost, path, map[string]interface{}{}, &resp); err != nil {
		return err
	}

	fmt.Println(resp.Message)
	if !resp.Success {
		return fmt.Errorf("test delivery failed")
	}
	return nil
}
