package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	configInitPath  string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write or check the changelog configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to a file",
	Long: `Write the configuration currently in effect (defaults, config file,
.env files and CHANGELOG_* variables) as YAML. The GitHub token is never
written; keep it in GITHUB_TOKEN or the keychain.

Examples:
  changelog config init
  CHANGELOG_REPO_BRANCH=jetty-12.0.x changelog config init --path jetty.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			path = filepath.Join(".changelog", "config.yaml")
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists, use --force to overwrite it", path)
		}

		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration without contacting GitHub",
	RunE: func(cmd *cobra.Command, args []string) error {
		result := cfg.Validate()
		out := cmd.OutOrStdout()
		for _, warn := range result.Warnings {
			fmt.Fprintf(out, "warning: %s\n", warn)
		}
		if err := result.Err(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Configuration is valid")
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "file to write (default: .changelog/config.yaml)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}
