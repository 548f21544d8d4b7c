package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/armory-pm/armory/internal/cliclient"
	"github.com/armory-pm/armory/internal/cliconfig"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the registry",
	Long: `Exchange the registry's publish password for a bearer token and store it
in the system keyring (or a credentials file where no keyring exists).

Examples:
  armory login
  armory login --registry https://pkg.example.com`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Publish password (prompted if omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	registry, err := resolveRegistry()
	if err != nil {
		return err
	}

	password := loginPassword
	if password == "" {
		fmt.Print("Password: ")
		passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = string(passBytes)
	}

	token, err := cliclient.New(registry, "").Login(cmd.Context(), password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := cliconfig.StoreToken(registry, token); err != nil {
		return err
	}

	fmt.Printf("Logged in to %s\n", registry)
	return nil
}
