package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewTargetCmd создаёт группу команд для просмотра target.
func NewTargetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Inspect dispatch targets",
	}

	cmd.AddCommand(newTargetListCmd(clientFn, outputFn))

	return cmd
}

func newTargetListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List targets with their dispatch mode and retry policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			targets, err := client.ListTargets()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "MODE", "ENDPOINT", "AUTH", "TIMEOUT", "RETRIES", "RETRY_DELAY"}
			rows := make([][]string, len(targets))
			for i, t := range targets {
				rows[i] = []string{
					t.Name,
					t.Mode,
					t.Endpoint,
					t.AuthToken,
					formatMs(t.TimeoutMs),
					strconv.Itoa(t.RetryAttempts),
					formatMs(t.RetryDelayMs),
				}
			}

			out.Print(headers, rows, targets)
			return nil
		},
	}
}

// formatMs форматирует миллисекунды как длительность; 0 — "-".
func formatMs(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).String()
}
