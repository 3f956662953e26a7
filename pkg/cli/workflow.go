package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// NewWorkflowCommand creates the workflow command group.
func NewWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage stored workflows",
	}
	cmd.AddCommand(newWorkflowImportCommand())
	cmd.AddCommand(newWorkflowListCommand())
	cmd.AddCommand(newWorkflowPublishCommand())
	return cmd
}

func newWorkflowImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import a workflow from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := workflow.LoadFromFile(args[0], types.UserID(GlobalConfig.User))
			if err != nil {
				return fmt.Errorf("failed to load workflow: %w", err)
			}

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.workflows.Save(context.Background(), wf); err != nil {
				return err
			}

			fmt.Printf("Imported %q (%d nodes, %d connections)\n", wf.Name, len(wf.Nodes), len(wf.Connections))
			fmt.Printf("  id: %s\n", wf.ID)
			return nil
		},
	}
}

func newWorkflowListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			workflows, err := a.workflows.List(context.Background(), types.UserID(GlobalConfig.User))
			if err != nil {
				return err
			}
			if len(workflows) == 0 {
				fmt.Println("No workflows found.")
				return nil
			}

			for _, wf := range workflows {
				state := "draft"
				if wf.Published {
					state = "published"
				}
				fmt.Printf("%s  %-30s %s\n", wf.ID, wf.Name, state)
			}
			return nil
		},
	}
}

func newWorkflowPublishCommand() *cobra.Command {
	var unpublish bool

	cmd := &cobra.Command{
		Use:   "publish <workflow-id>",
		Short: "Publish a workflow for production webhook triggering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.workflows.SetPublished(context.Background(),
				types.WorkflowID(args[0]), types.UserID(GlobalConfig.User), !unpublish)
			if err != nil {
				return err
			}

			if unpublish {
				fmt.Println("Workflow unpublished.")
			} else {
				fmt.Println("Workflow published.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unpublish, "unpublish", false, "Revert to draft state")
	return cmd
}
