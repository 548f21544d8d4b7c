package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/armory-pm/armory/internal/logger"
)

// Version is set via ldflags at build time
var Version = "dev"

var (
	flagRegistry string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "armory",
	Short: "Armory - personal package manager for single-binary tools",
	Long:  `Armory publishes and installs single-binary packages against a private registry.`,
	Example: `  # Publish the targets declared in ./armory.toml
  armory login
  armory publish

  # Install a package for this machine
  armory install ripgrep
  armory install ripgrep@14.1.0`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.InitCLI(flagVerbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRegistry, "registry", "", "Registry URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
