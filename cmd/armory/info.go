package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/armory-pm/armory/internal/localstore"
	"github.com/armory-pm/armory/internal/utils"
)

var infoCmd = &cobra.Command{
	Use:   "info NAME",
	Short: "Show published artifacts for a package",
	Long: `Show every (version, platform) artifact the registry holds for a package,
marking the version that is active locally.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	name := args[0]

	client, err := newClient(false)
	if err != nil {
		return err
	}
	infos, err := client.PackageInfo(cmd.Context(), name)
	if err != nil {
		return err
	}

	var active *localstore.Record
	if store, err := localstore.New(); err == nil {
		active, _ = store.Active(name)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tTRIPLE\tSIZE\tPUBLISHED\tACTIVE")
	for _, info := range infos {
		marker := ""
		if active != nil && active.Version == info.Version && string(active.Triple) == info.Triple {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.Version, info.Triple, utils.FormatBytes(info.Size),
			info.UploadedAt.Local().Format("2006-01-02 15:04"), marker)
	}
	return w.Flush()
}
