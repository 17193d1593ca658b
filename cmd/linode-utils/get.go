package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/linode-utils/internal/machine"
	"github.com/jbweber/linode-utils/internal/output"
)

var (
	outputFormat string
	noHeaders    bool
	listGroup    string
	listAll      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List linodes",
	Long: `List the linodes in the safety group, or every linode with --all.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML list
  -o json   JSON list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		group := resolveGroup(listGroup, nil, s.settings.SafetyGroup)
		if listAll {
			group = ""
		}
		linodes, err := machine.List(cmd.Context(), s.client, group)
		if err != nil {
			return fmt.Errorf("failed to list linodes: %w", err)
		}

		result, err := formatter.FormatLinodes(linodes)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		printf(cmd.OutOrStdout(), "%s", result)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a linode with its disks and boot configs",
	Long: `Show detailed information about a linode.

This is read-only and works regardless of the linode's display group.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		details, err := machine.Inspect(cmd.Context(), s.client, args[0])
		if err != nil {
			return fmt.Errorf("failed to get linode: %w", err)
		}

		result, err := formatter.FormatDetails(details)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		printf(cmd.OutOrStdout(), "%s", result)
		return nil
	},
}

func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

func init() {
	for _, c := range []*cobra.Command{listCmd, showCmd} {
		c.Flags().StringVarP(&outputFormat, "output", "o", string(output.FormatTable), "Output format (table, yaml, json)")
		c.Flags().BoolVar(&noHeaders, "no-headers", false, "Omit table headers")
	}
	listCmd.Flags().StringVar(&listGroup, "group", "", "Display group to list (default: the safety group)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "List linodes in every group")
}
