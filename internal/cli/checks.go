package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pipelinehealth/internal/classify"
	"pipelinehealth/internal/rules"
)

var checksListQuiet bool

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List and describe checks",
	Long: `Describe the checks every audited repository is evaluated against.

Checks are evaluated during audits (see "pipelinehealth audit --help").

Examples:
  pipelinehealth checks list
  pipelinehealth checks show branch_master_required_num_reviews
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var checksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all checks",
	Long: `List every check in report order.

Output:
  A vertical list of checks:
    ----------------------------------------
    CHECK: {KEY}
    ----------------------------------------
    {NAME}
    {DESCRIPTION}
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, c := range rules.Checks() {
			if checksListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), c.Key)
			} else {
				printCheck(cmd.OutOrStdout(), c)
			}
		}
		return nil
	},
}

var checksShowCmd = &cobra.Command{
	Use:   "show [check-key]",
	Short: "Show details of a specific check",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selected, err := rules.Resolve(args[0])
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			return fmt.Errorf("check not found: %s", args[0])
		}
		printCheck(cmd.OutOrStdout(), selected[0])
		return nil
	},
}

func printCheck(w io.Writer, c rules.Check) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "CHECK: %s\n", c.Key)
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, c.Name)
	fmt.Fprintln(w, c.Description)
	if pd := c.DescriptionFor(classify.ClassPipeline); pd != c.Description {
		fmt.Fprintf(w, "Pipelines: %s\n", pd)
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(checksCmd)
	checksCmd.AddCommand(checksListCmd)
	checksListCmd.Flags().BoolVarP(&checksListQuiet, "quiet", "q", false, "Only print check keys")
	checksCmd.AddCommand(checksShowCmd)
}
