package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewExecCmd создаёт группу команд для управления executions.
func NewExecCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Manage workflow executions",
	}

	cmd.AddCommand(
		newExecStartCmd(clientFn, outputFn),
		newExecListCmd(clientFn, outputFn),
		newExecStatusCmd(clientFn, outputFn),
		newExecResultCmd(clientFn, outputFn),
		newExecCancelCmd(clientFn, outputFn),
		newExecHistoryCmd(clientFn, outputFn),
	)

	return cmd
}

func newExecStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "start WORKFLOW_ID",
		Short: "Start a workflow execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			parsed, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			started, err := client.StartExecution(args[0], parsed)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution started: %s", started.ExecutionID))

			if !wait {
				out.Print(
					[]string{"ID", "WORKFLOW_ID", "STATUS"},
					[][]string{{started.ExecutionID, started.WorkflowID, started.Status}},
					started,
				)
				return nil
			}

			exec, err := client.WaitExecution(started.ExecutionID, timeout)
			if err != nil {
				return err
			}
			printExecution(out, exec)
			if exec.Status != "COMPLETED" {
				return fmt.Errorf("execution %s finished with status %s", exec.ID, exec.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as KEY=VALUE, VALUE parsed as JSON if possible (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the execution finishes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Maximum time to wait with --wait (0 = no limit)")

	return cmd
}

func newExecListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListExecutionsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			execs, err := client.ListExecutions(opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "WORKFLOW_ID", "STATUS", "TASKS", "CREATED", "ERROR"}
			rows := make([][]string, len(execs))
			for i, e := range execs {
				rows[i] = []string{e.ID, e.WorkflowID, e.Status, strconv.Itoa(e.TaskCount), e.CreatedAt, e.Error}
			}

			out.Print(headers, rows, execs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.WorkflowID, "workflow-id", "", "Filter by workflow ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, COMPLETED, FAILED, CANCELLED)")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "Read from the execution archive instead of engine memory")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newExecStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show execution status and task progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := clientFn().GetExecution(args[0])
			if err != nil {
				return err
			}
			printExecution(outputFn(), exec)
			return nil
		},
	}
}

func newExecResultCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "result ID",
		Short: "Show variables and task results of a completed execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.GetResult(args[0])
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(result.Variables))
			for k := range result.Variables {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			rows := make([][]string, len(keys))
			for i, k := range keys {
				rows[i] = []string{k, compactJSON(result.Variables[k])}
			}

			out.Print([]string{"VARIABLE", "VALUE"}, rows, result)
			return nil
		},
	}
}

func newExecCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if _, err := client.CancelExecution(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution cancelled: %s", args[0]))
			return nil
		},
	}
}

func newExecHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Show a finished execution from memory or the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := clientFn().GetHistory(args[0])
			if err != nil {
				return err
			}
			printExecution(outputFn(), exec)
			return nil
		},
	}
}

// printExecution выводит сводку execution и таблицу задач.
// В JSON режиме — execution целиком.
func printExecution(out *Output, exec *ExecutionResponse) {
	if out.jsonMode {
		out.JSON(exec)
		return
	}

	out.KeyValue([][2]string{
		{"ID", exec.ID},
		{"Workflow", exec.WorkflowID},
		{"Status", exec.Status},
		{"Error", exec.Error},
		{"Started", exec.StartedAt},
		{"Finished", exec.FinishedAt},
		{"Duration", (time.Duration(exec.DurationMs) * time.Millisecond).String()},
	})

	if len(exec.Tasks) == 0 {
		return
	}
	fmt.Fprintln(out.w)

	headers := []string{"TASK", "TARGET", "STATUS", "RETRIES", "DURATION", "ERROR"}
	rows := make([][]string, len(exec.Tasks))
	for i, t := range exec.Tasks {
		rows[i] = []string{
			t.TaskID,
			t.Target,
			t.Status,
			strconv.Itoa(t.RetryCount),
			(time.Duration(t.DurationMs) * time.Millisecond).String(),
			t.Error,
		}
	}
	out.Table(headers, rows)
}

// parseInputs разбирает KEY=VALUE. VALUE разбирается как JSON,
// если не получилось — используется как строка.
func parseInputs(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}

	inputs := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		inputs[key] = v
	}
	return inputs, nil
}
