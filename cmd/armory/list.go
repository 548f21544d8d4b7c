package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/armory-pm/armory/internal/localstore"
)

var listInstalled bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List packages",
	Long: `List the packages known to the registry, or with --installed the
versions present in the local store.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listInstalled, "installed", false, "List locally installed versions instead")
}

func runList(cmd *cobra.Command, args []string) error {
	if listInstalled {
		return runListInstalled()
	}

	client, err := newClient(false)
	if err != nil {
		return err
	}
	names, err := client.ListPackages(cmd.Context())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runListInstalled() error {
	store, err := localstore.New()
	if err != nil {
		return err
	}
	records, err := store.ListInstalled("")
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tTRIPLE\tACTIVE")
	for _, rec := range records {
		marker := ""
		if active, err := store.Active(rec.Name); err == nil && active != nil && active.Version == rec.Version {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Name, rec.Version, rec.Triple, marker)
	}
	return w.Flush()
}
