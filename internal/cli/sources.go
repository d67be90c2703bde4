package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	Long: `List all source configurations and their processors.

Examples:
  collectionctl sources
  collectionctl sources validate`,
	RunE: runSources,
}

var sourcesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate all source configuration files",
	RunE:  runSourcesValidate,
}

func init() {
	sourcesCmd.AddCommand(sourcesValidateCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	configs, err := newConfigs()
	if err != nil {
		return err
	}
	ids, err := configs.ListSources()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No sources configured")
		return nil
	}

	fmt.Printf("%-20s %-16s %-16s %-12s %s\n", "SOURCE", "PROCESSOR", "LINK FIELD", "AGENT", "INDEX")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, id := range ids {
		srcCfg, err := configs.GetConfig(ctx, id)
		if err != nil {
			fmt.Printf("%-20s %s\n", id, defaultTheme.errorStyle().Render("invalid: "+err.Error()))
			continue
		}
		agent := srcCfg.Transformation.AIAgentID
		if agent == "" {
			agent = "-"
		}
		fmt.Printf("%-20s %-16s %-16s %-12s %s\n",
			id, srcCfg.ProcessorType, srcCfg.Transformation.LinkField, agent, srcCfg.Storage.IndexCollection)
	}
	return nil
}

func runSourcesValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	configs, err := newConfigs()
	if err != nil {
		return err
	}
	ids, err := configs.ListSources()
	if err != nil {
		return err
	}

	failures := 0
	for _, id := range ids {
		if _, err := configs.GetConfig(ctx, id); err != nil {
			fmt.Printf("%s %s: %v\n", defaultTheme.errorStyle().Render("FAIL"), id, err)
			failures++
			continue
		}
		fmt.Printf("%s %s\n", defaultTheme.successStyle().Render("OK"), id)
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d source configs invalid", failures, len(ids))
	}
	fmt.Println(defaultTheme.hintStyle().Render(fmt.Sprintf("%d source configs valid", len(ids))))
	return nil
}
