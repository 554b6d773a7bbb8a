package commands

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache"
	"github.com/Sumatoshi-tech/blockcache/pkg/cacheconfig"
)

const (
	benchCmdUse   = "bench <config.yaml>"
	benchCmdShort = "Run a synthetic benchmark against a topology and render a report"
	benchArgCount = 1

	entriesFlag   = "entries"
	entriesUsage  = "number of synthetic entries to push per round"
	roundsFlag    = "rounds"
	roundsUsage   = "number of push/pop rounds to run"
	valueSizeFlag = "value-size"
	valueSizeUsg  = "size in bytes of each synthetic value"
	outputFlag    = "html"
	outputShort   = "o"
	outputUsage   = "path to write an HTML push/pop latency chart (skipped if empty)"

	defaultEntries   = 1000
	defaultRounds    = 5
	defaultValueSize = 128
	popFraction      = 4 // pop roughly 1/popFraction of pushed size each round
)

// ErrNonPositiveFlag is returned when a numeric bench flag is zero or
// negative.
var ErrNonPositiveFlag = errors.New("bench: entries, rounds, and value-size must be positive")

// roundResult captures one push/pop round's timings and outcome.
type roundResult struct {
	pushDuration time.Duration
	popDuration  time.Duration
	pushed       int
	rejected     int
	popped       int
}

// NewBenchCommand creates the bench subcommand.
func NewBenchCommand() *cobra.Command {
	var (
		entries   int
		rounds    int
		valueSize int
		htmlPath  string
	)

	cmd := &cobra.Command{
		Use:   benchCmdUse,
		Short: benchCmdShort,
		Args:  cobra.ExactArgs(benchArgCount),
		RunE: func(_ *cobra.Command, args []string) error {
			if entries <= 0 || rounds <= 0 || valueSize <= 0 {
				return ErrNonPositiveFlag
			}

			return runBench(args[0], entries, rounds, valueSize, htmlPath)
		},
	}

	cmd.Flags().IntVar(&entries, entriesFlag, defaultEntries, entriesUsage)
	cmd.Flags().IntVar(&rounds, roundsFlag, defaultRounds, roundsUsage)
	cmd.Flags().IntVar(&valueSize, valueSizeFlag, defaultValueSize, valueSizeUsg)
	cmd.Flags().StringVarP(&htmlPath, outputFlag, outputShort, "", outputUsage)

	return cmd
}

func runBench(configPath string, entries, rounds, valueSize int, htmlPath string) error {
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

	results := make([]roundResult, rounds)
	for i := range results {
		results[i] = runRound(blk, entries, valueSize, i)
	}

	printBenchTable(results)

	if htmlPath != "" {
		if err := renderBenchChart(results, htmlPath); err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
	}

	return nil
}

func runRound(blk blockcache.BuildingBlock[string, []byte], entries, valueSize, round int) roundResult {
	batch := make([]blockcache.Pair[string, []byte], entries)

	for i := range batch {
		value := make([]byte, valueSize)
		rand.Read(value) //nolint:errcheck // math/rand.Read never errors

		batch[i] = blockcache.Pair[string, []byte]{Key: "round-" + strconv.Itoa(round) + "-" + strconv.Itoa(i), Value: value}
	}

	pushStart := time.Now()
	rejected := blk.Push(batch)
	pushDuration := time.Since(pushStart)

	popTarget := int64(entries*valueSize) / popFraction

	popStart := time.Now()
	popped := blk.Pop(popTarget)
	popDuration := time.Since(popStart)

	return roundResult{
		pushDuration: pushDuration,
		popDuration:  popDuration,
		pushed:       entries - len(rejected),
		rejected:     len(rejected),
		popped:       len(popped),
	}
}

func printBenchTable(results []roundResult) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Round", "Pushed", "Rejected", "Popped", "Push latency", "Pop latency"})

	for i, r := range results {
		tbl.AppendRow(table.Row{
			i,
			r.pushed,
			colorizeRejected(r.rejected),
			r.popped,
			r.pushDuration,
			r.popDuration,
		})
	}

	tbl.Render()
}

func colorizeRejected(n int) string {
	if n == 0 {
		return color.GreenString("0")
	}

	return color.YellowString(strconv.Itoa(n))
}

func renderBenchChart(results []roundResult, path string) error {
	xLabels := make([]string, len(results))
	pushLine := make([]opts.LineData, len(results))
	popLine := make([]opts.LineData, len(results))

	const microsecondsPerMillisecond = float64(time.Millisecond) / float64(time.Microsecond)

	for i, r := range results {
		xLabels[i] = strconv.Itoa(i)
		pushLine[i] = opts.LineData{Value: float64(r.pushDuration.Microseconds()) / microsecondsPerMillisecond}
		popLine[i] = opts.LineData{Value: float64(r.popDuration.Microseconds()) / microsecondsPerMillisecond}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "blockcache bench",
			Subtitle: "push/pop latency per round (ms), " + humanize.Comma(int64(len(results))) + " rounds",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(xLabels).
		AddSeries("push", pushLine).
		AddSeries("pop", popLine)

	out, err := os.Create(path) //nolint:gosec // path is an operator-supplied CLI flag
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer out.Close()

	if err := line.Render(out); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
