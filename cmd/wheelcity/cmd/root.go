// Package cmd implements the wheelcity command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kang022878/WheelCity-back-2025/internal/config"
)

// skipConfigAnnotation marks commands that run without a loaded config.
const skipConfigAnnotation = "wheelcity/skip-config"

var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string

	appConfig *config.Config

	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "wheelcity",
	Short: "Wheelchair accessibility labels reconciled from user reports",
	Long: `wheelcity stores accessibility reports for venues and keeps each venue's
ramp/curb label in line with them. When the three most recent reports all
contradict the current label, the venue's photo evidence is re-examined and
the label is replaced or the venue is flagged as needing evidence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return nil
		}
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion injects build information.
func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .wheelcity.yaml or ~/.config/wheelcity/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"dotenv file read before the environment (empty to skip)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() error {
	loader := config.NewLoaderWithViper(viper.GetViper()).WithEnvFile(envFile)
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	appConfig = cfg
	return nil
}
