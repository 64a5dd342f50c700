package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/webtide/changelog-go/internal/config"
	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logging.Logger
	cfg     *config.Config
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		reportError(err)
	}
	if logger != nil {
		logger.Close()
	}
	if err != nil {
		os.Exit(errors.ExitCode(err))
	}
}

// reportError prints err for the user. With -v classified errors are shown
// with their cause and details.
func reportError(err error) {
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"type":     errors.GetType(err),
			"severity": errors.GetSeverity(err),
			"fatal":    errors.IsFatal(err),
		}).Debug("Command failed")
	}

	var classified *errors.Error
	if verbose && stderrors.As(err, &classified) {
		fmt.Fprint(os.Stderr, classified.DetailedString())
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

var rootCmd = &cobra.Command{
	Use:   "changelog",
	Short: "Generate release changelogs from git history and GitHub issues",
	Long: `changelog walks the commits between two release tags, follows their
references to GitHub issues and pull requests, groups everything that belongs
together into changes and renders the release changelog.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		logCfg := cfg.LoggingConfig()
		if verbose {
			logCfg.Level = logrus.DebugLevel.String()
			logCfg.AddSource = true
		}
		logger, err = logging.New(logCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if path := logger.FilePath(); path != "" {
			logger.WithField("file", path).Debug("Logging to file")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .changelog/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`changelog {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}
