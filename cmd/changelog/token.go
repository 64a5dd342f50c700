package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/webtide/changelog-go/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the GitHub token stored in the OS keychain",
	Long: `Store the GitHub token in the OS keychain so it does not have to live in
a config file. GITHUB_TOKEN still takes precedence when it is set.`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Save a GitHub token",
	Long: `Save a GitHub token in the OS keychain.

Examples:
  # Prompt for the token without echoing it
  changelog token set

  # Pass it on the command line (ends up in shell history)
  changelog token set ghp_...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTokenSet,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the GitHub token from the keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		km := config.NewKeyringManager(logger)
		if !km.IsAvailable() {
			return fmt.Errorf("OS keychain is not available")
		}
		if err := km.DeleteGitHubToken(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "GitHub token removed from keychain")
		return nil
	},
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which GitHub token will be used",
	RunE: func(cmd *cobra.Command, args []string) error {
		source := "config file"
		switch {
		case os.Getenv("GITHUB_TOKEN") != "":
			source = "GITHUB_TOKEN"
		case cfg.GitHub.Token == "":
			source = "none"
		default:
			if t, _ := config.NewKeyringManager(logger).GetGitHubToken(); t != "" && t == cfg.GitHub.Token {
				source = "keychain"
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token: %s (source: %s)\n", config.MaskToken(cfg.GitHub.Token), source)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenDeleteCmd)
	tokenCmd.AddCommand(tokenStatusCmd)
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager(logger)
	if !km.IsAvailable() {
		return fmt.Errorf("OS keychain is not available, export GITHUB_TOKEN instead")
	}

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		var err error
		token, err = readToken(cmd)
		if err != nil {
			return err
		}
	}

	if err := km.SetGitHubToken(strings.TrimSpace(token)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to keychain\n", config.MaskToken(token))
	return nil
}

func readToken(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "GitHub token: ")
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return string(data), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token from stdin: %w", err)
	}
	return line, nil
}
