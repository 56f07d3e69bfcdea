package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для управления workflow.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowRegisterCmd(clientFn, outputFn),
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkflowRegisterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "register FILE",
		Short: "Register a workflow from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			wf, err := client.RegisterWorkflow(data)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow registered: %s", wf.ID))
			out.Print(
				[]string{"ID", "NAME", "TASKS", "START", "END"},
				[][]string{{wf.ID, wf.Name, strconv.Itoa(len(wf.Tasks)), strings.Join(wf.StartTasks, ","), strings.Join(wf.EndTasks, ",")}},
				wf,
			)
			return nil
		},
	}
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "TASKS", "DESCRIPTION"}
			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = []string{wf.ID, wf.Name, strconv.Itoa(wf.TaskCount), wf.Description}
			}

			out.Print(headers, rows, workflows)
			return nil
		},
	}
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show workflow tasks and dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TASK", "TARGET", "OPERATION", "DEPENDS_ON", "OUTPUTS"}
			rows := make([][]string, len(wf.Tasks))
			for i, t := range wf.Tasks {
				rows[i] = []string{t.ID, t.Target, t.Operation, strings.Join(t.DependsOn, ","), strings.Join(t.Outputs, ",")}
			}

			out.Print(headers, rows, wf)
			return nil
		},
	}
}
