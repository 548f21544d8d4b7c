package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/armory-pm/armory/internal/manifest"
	"github.com/armory-pm/armory/internal/platform"
	"github.com/armory-pm/armory/internal/service"
	"github.com/armory-pm/armory/internal/utils"
)

var publishTargets []string

var publishCmd = &cobra.Command{
	Use:   "publish [manifest]",
	Short: "Publish the targets declared in a manifest",
	Long: `Upload the artifacts declared in an armory.toml manifest to the registry.

Targets upload in parallel and independently: if one fails, the others are
still published. Re-running a partially failed publish is safe because
already-published targets report a conflict and everything else proceeds.

Examples:
  armory publish
  armory publish path/to/armory.toml
  armory publish --target x86_64_linux --target aarch64_macos`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringArrayVar(&publishTargets, "target", nil, "Triple(s) to publish (repeatable; default: all declared)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	manifestPath := manifest.FileName
	if len(args) == 1 {
		manifestPath = args[0]
	}

	var only []platform.Triple
	for _, s := range publishTargets {
		triple, err := platform.Parse(s)
		if err != nil {
			return err
		}
		only = append(only, triple)
	}

	client, err := newClient(true)
	if err != nil {
		return err
	}

	res, err := service.NewPublisher(client).Publish(cmd.Context(), manifestPath, only)
	if err != nil {
		return err
	}

	for _, t := range res.Targets {
		if t.Err != nil {
			fmt.Printf("  %s: FAILED: %v\n", t.Triple, t.Err)
		} else {
			fmt.Printf("  %s: published (%s)\n", t.Triple, utils.FormatBytes(t.Size))
		}
	}

	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d targets failed for %s %s",
			len(failed), len(res.Targets), res.Name, res.Version)
	}
	fmt.Printf("Published %s %s\n", res.Name, res.Version)
	return nil
}
