package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/armory-pm/armory/internal/localstore"
	"github.com/armory-pm/armory/internal/service"
)

var installVersion string

var installCmd = &cobra.Command{
	Use:   "install PACKAGE[@VERSION]",
	Short: "Install a package for this machine",
	Long: `Download a package built for the local platform and make it the active
version under $ARMORY_HOME/bin (default ~/.armory/bin).

Without a version the newest published version is installed. A version can
be given either as part of the identifier or with --version, not both.

Examples:
  armory install ripgrep
  armory install ripgrep@14.1.0
  armory install ripgrep --version 14.1.0`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installVersion, "version", "", "Version to install (default: latest)")
}

func runInstall(cmd *cobra.Command, args []string) error {
	name, version, err := parseIdentifier(args[0])
	if err != nil {
		return err
	}
	if version != "" && installVersion != "" {
		return fmt.Errorf("version given both in identifier (%s) and --version (%s)", version, installVersion)
	}
	if version == "" {
		version = installVersion
	}

	client, err := newClient(false)
	if err != nil {
		return err
	}
	store, err := localstore.New()
	if err != nil {
		return err
	}

	res, err := service.NewInstaller(client, store).Install(cmd.Context(), name, version)
	if err != nil {
		return err
	}

	fmt.Printf("Installed %s %s (%s)\n", res.Name, res.Version, res.Triple)
	fmt.Printf("  %s\n", res.BinPath)
	return nil
}
