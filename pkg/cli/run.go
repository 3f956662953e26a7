package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/engine"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var (
		inputFile  string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow-id>",
		Short: "Execute a workflow",
		Long: `Execute a stored workflow as a manual trigger run.

Examples:
  # Run a workflow
  conduit run 2f1c9a4e-...

  # Run with initial context from a JSON file
  conduit run 2f1c9a4e-... --input input.json

  # Print the final context as JSON
  conduit run 2f1c9a4e-... --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := types.WorkflowID(args[0])

			var initialData map[string]interface{}
			if inputFile != "" {
				raw, err := os.ReadFile(inputFile)
				if err != nil {
					return fmt.Errorf("failed to read input file: %w", err)
				}
				if err := json.Unmarshal(raw, &initialData); err != nil {
					return fmt.Errorf("input file is not valid JSON: %w", err)
				}
			}

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			event := engine.TriggerEvent{
				ID: types.NewEventID(),
				Data: engine.TriggerData{
					WorkflowID:  workflowID,
					UserID:      types.UserID(GlobalConfig.User),
					InitialData: initialData,
				},
			}

			ctx := context.Background()
			if runErr := a.orch.Execute(ctx, event); runErr != nil {
				if hookErr := a.orch.HandleFailure(ctx, event, runErr); hookErr != nil {
					a.log.WithError(hookErr).Error("failed to record run failure")
				}
				return fmt.Errorf("run failed: %w", runErr)
			}

			exec, err := a.executions.GetByEventID(event.ID)
			if err != nil {
				return fmt.Errorf("run completed but record lookup failed: %w", err)
			}

			if outputJSON {
				encoded, err := json.MarshalIndent(exec.Output, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode output: %w", err)
				}
				fmt.Println(string(encoded))
				return nil
			}

			fmt.Printf("Run %s completed in %s\n", exec.ID, exec.Duration().Round(time.Millisecond))
			for key := range exec.Output {
				fmt.Printf("  %s\n", key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputFile, "input", "", "JSON file with initial context data")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print the final context as JSON")

	return cmd
}
