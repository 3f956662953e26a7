package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// NewExecutionsCommand creates the executions command.
func NewExecutionsCommand() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "executions <workflow-id>",
		Short: "Show execution history for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			executions, err := a.executions.ListByWorkflow(types.WorkflowID(args[0]))
			if err != nil {
				return err
			}

			if outputJSON {
				encoded, err := json.MarshalIndent(executions, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode executions: %w", err)
				}
				fmt.Println(string(encoded))
				return nil
			}

			if len(executions) == 0 {
				fmt.Println("No executions found.")
				return nil
			}

			fmt.Printf("%-36s  %-8s  %-20s  %s\n", "ID", "STATUS", "STARTED", "ERROR")
			for _, exec := range executions {
				errMsg := exec.Error
				if len(errMsg) > 60 {
					errMsg = errMsg[:57] + "..."
				}
				fmt.Printf("%-36s  %-8s  %-20s  %s\n",
					exec.ID, exec.Status,
					exec.StartedAt.Local().Format(time.DateTime), errMsg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print execution records as JSON")
	return cmd
}
