package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/armory-pm/armory/internal/localstore"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall NAME",
	Short: "Remove a package from this machine",
	Long: `Remove a package's bin entry and every locally installed version.
The registry is not touched; the package can be reinstalled later.`,
	Args: cobra.ExactArgs(1),
	RunE: runUninstall,
}

func runUninstall(cmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := localstore.New()
	if err != nil {
		return err
	}
	if err := store.Uninstall(name); err != nil {
		return err
	}

	fmt.Printf("Uninstalled %s\n", name)
	return nil
}
