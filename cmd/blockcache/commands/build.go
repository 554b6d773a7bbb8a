package commands

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/telemetry"
	"github.com/Sumatoshi-tech/blockcache/pkg/cacheconfig"
)

const (
	buildCmdUse   = "build <config.yaml>"
	buildCmdShort = "Build a cache topology from a declarative config file"
	buildArgCount = 1

	smokeFlag     = "smoke-entries"
	smokeUsage    = "push this many synthetic entries through the topology to exercise it"
	smokeValueLen = 256
)

// ErrSmokeEntriesNegative is returned when --smoke-entries is negative.
var ErrSmokeEntriesNegative = errors.New("smoke-entries must be non-negative")

// NewBuildCommand creates the build subcommand.
func NewBuildCommand() *cobra.Command {
	var smokeEntries int

	cmd := &cobra.Command{
		Use:   buildCmdUse,
		Short: buildCmdShort,
		Args:  cobra.ExactArgs(buildArgCount),
		RunE: func(_ *cobra.Command, args []string) error {
			if smokeEntries < 0 {
				return ErrSmokeEntriesNegative
			}

			return runBuild(args[0], smokeEntries)
		},
	}

	cmd.Flags().IntVar(&smokeEntries, smokeFlag, 0, smokeUsage)

	return cmd
}

func runBuild(configPath string, smokeEntries int) error {
	cfg, err := cacheconfig.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tel, shutdown, err := buildTelemetry(cfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdown()

	blk, err := cacheconfig.Build(cfg, tel)
	if err != nil {
		return fmt.Errorf("build topology: %w", err)
	}

	if smokeEntries > 0 {
		runSmoke(blk, smokeEntries)
	}

	printTopologyTable(cfg, blk)

	return nil
}

func runSmoke(blk blockcache.BuildingBlock[string, []byte], n int) {
	entries := make([]blockcache.Pair[string, []byte], n)
	for i := range entries {
		value := make([]byte, smokeValueLen)
		rand.Read(value) //nolint:errcheck // math/rand.Read never errors

		entries[i] = blockcache.Pair[string, []byte]{Key: fmt.Sprintf("smoke-%d", i), Value: value}
	}

	blk.Push(entries)
}

func printTopologyTable(cfg *cacheconfig.Config, blk blockcache.BuildingBlock[string, []byte]) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Root kind", "Capacity", "Size", "Utilization"})

	capacity := blk.Capacity()
	size := blk.Size()

	utilization := "n/a"
	if capacity > 0 {
		utilization = fmt.Sprintf("%.1f%%", float64(size)/float64(capacity)*100) //nolint:mnd // percentage scale
	}

	tbl.AppendRow(table.Row{
		cfg.Root.Kind,
		humanize.Bytes(uint64(capacity)), //nolint:gosec // capacity is never negative
		humanize.Bytes(uint64(size)),     //nolint:gosec // size is never negative
		colorizeUtilization(utilization),
	})

	tbl.Render()
}

func colorizeUtilization(s string) string {
	return color.CyanString(s)
}
