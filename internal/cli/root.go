// Package cli implements memnet, a terminal client for the scent memory
// network: it builds networks from files or the memories API and follows
// processing notifications.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scent-memory-network/internal/application/dto"
	"scent-memory-network/internal/application/queries"
	"scent-memory-network/internal/domain/network"
	"scent-memory-network/internal/memories"
	"scent-memory-network/internal/view"
)

// options are the flags shared by every command.
type options struct {
	familiesPath string
	maxDistance  float64
	legend       bool
	jsonOutput   bool
	verbose      bool
}

// NewRootCommand builds the memnet command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "memnet",
		Short:         "Scent memory network explorer",
		Long:          brand.Sprint("memnet") + " builds the scent memory network and follows processing events",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.familiesPath, "families", "", "family keyword table (yaml, json or toml)")
	flags.Float64Var(&opts.maxDistance, "max-distance", 0, "edge cutoff as a fraction of the sphere diameter")
	flags.BoolVar(&opts.legend, "legend", false, "include the legend")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of tables")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log diagnostics to stderr")

	root.AddCommand(
		inspectCmd(opts),
		fetchCmd(opts),
		watchCmd(opts),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, version string, args []string, out, errOut io.Writer) error {
	root := NewRootCommand(version)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.ExecuteContext(ctx)
	if err != nil {
		bad.Fprintf(errOut, "memnet: %v\n", err)
	}
	return err
}

func (o *options) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (o *options) builder() (*network.Builder, error) {
	registry := network.NewFamilyRegistry(nil)
	if o.familiesPath != "" {
		table, err := queries.LoadFamilyTable(o.familiesPath)
		if err != nil {
			return nil, err
		}
		registry.Replace(table)
	}
	return network.NewBuilder(network.BuilderConfig{MaxDistanceFraction: o.maxDistance}, registry), nil
}

func (o *options) service(source memories.Source, logger *zap.Logger) (*queries.NetworkQueryService, error) {
	builder, err := o.builder()
	if err != nil {
		return nil, err
	}
	return queries.NewNetworkQueryService(source, builder, view.DefaultTheme(), nil, logger), nil
}

func (o *options) render(w io.Writer, result *dto.NetworkResult) error {
	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	renderNetwork(w, result)
	return nil
}

func renderNetwork(w io.Writer, result *dto.NetworkResult) {
	v := result.View
	fmt.Fprintln(w, brand.Sprint(v.Title))
	if v.Subtitle != "" {
		subtle.Fprintln(w, v.Subtitle)
	}
	fmt.Fprintln(w)

	label(w, "State", string(result.State))
	label(w, "Memories", fmt.Sprintf("%d processed, %d pending", result.Counts.Processed, result.Counts.Pending))
	if result.Fingerprint != "" {
		label(w, "Fingerprint", result.Fingerprint)
	}

	if result.State != network.StateReady {
		fmt.Fprintln(w)
		warn.Fprintln(w, "  "+v.Message)
		if v.Detail != "" {
			subtle.Fprintln(w, "  "+v.Detail)
		}
	} else {
		label(w, "Connections", fmt.Sprintf("%d within %.2f", result.Stats.EdgeCount, result.Stats.MaxDistance))

		fmt.Fprintln(w)
		rows := make([][]string, 0, len(result.Nodes))
		for _, n := range result.Nodes {
			rows = append(rows, []string{strconv.Itoa(n.Index), n.ID, n.Title, string(n.Family), n.Color})
		}
		table(w, []string{"#", "ID", "TITLE", "FAMILY", "COLOR"}, rows)

		if len(result.Edges) > 0 {
			fmt.Fprintln(w)
			rows = rows[:0]
			for _, e := range result.Edges {
				rows = append(rows, []string{e.SourceID, e.TargetID, string(e.Type), e.Detail})
			}
			table(w, []string{"FROM", "TO", "TYPE", "DETAIL"}, rows)
		}
	}

	if v.Legend != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, brand.Sprint(v.Legend.Title))
		for _, c := range v.Legend.Connections {
			fmt.Fprintf(w, "  %-10s %s\n", c.Label, subtle.Sprint(c.Color))
		}
		fmt.Fprintln(w, brand.Sprint(v.Legend.FamiliesTitle))
		names := make([]string, 0, len(v.Legend.Families))
		for _, f := range v.Legend.Families {
			names = append(names, string(f.Family))
		}
		fmt.Fprintln(w, "  "+strings.Join(names, ", "))
	}

	if len(result.Rejected) > 0 {
		fmt.Fprintln(w)
		warn.Fprintf(w, "  %d record(s) skipped\n", len(result.Rejected))
		for _, r := range result.Rejected {
			subtle.Fprintf(w, "    [%d] %s\n", r.Index, r.Reason)
		}
	}
}
