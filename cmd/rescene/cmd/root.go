package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	appName    string
)

var rootCmd = &cobra.Command{
	Use:   "rescene",
	Short: "Create and reconstruct SRR/SRS release-reconstruction files",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: none; settings come from flags/env)")
	rootCmd.PersistentFlags().StringVar(&appName, "app-name", "", "application name recorded in SrrHeader/SRSF (default: rescene)")

	viper.SetEnvPrefix("RESCENE")
	viper.AutomaticEnv()
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			slog.Warn("could not read config file", "path", configFile, "error", err)
		}
	}
	if appName == "" {
		appName = viper.GetString("app_name")
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
