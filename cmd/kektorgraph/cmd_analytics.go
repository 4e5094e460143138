package main

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorgraph/internal/server"
	"github.com/sanonone/kektorgraph/pkg/centrality"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/pathfinding"
)

func newCentralityCmd(remote *remoteFlags) *cobra.Command {
	var (
		configPath     string
		measures       []string
		interpretation string
		normalization  string
		costProperty   string
		top            int
	)
	cmd := &cobra.Command{
		Use:   "centrality",
		Short: "Rank entities by centrality measures",
		Example: `  kektorgraph centrality --measure degree --measure pagerank
  kektorgraph centrality --config centrality.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := server.CentralityRequest{Config: centrality.DefaultConfig()}
			if configPath != "" {
				if err := decodeYAMLFile(configPath, &req); err != nil {
					return err
				}
			}
			if len(measures) > 0 {
				req.Config.Measures = req.Config.Measures[:0:0]
				for _, name := range measures {
					var m centrality.Measure
					if err := m.UnmarshalText([]byte(name)); err != nil {
						return err
					}
					req.Config.Measures = append(req.Config.Measures, m)
				}
			}
			if interpretation != "" {
				if err := req.Config.Interpretation.UnmarshalText([]byte(interpretation)); err != nil {
					return err
				}
			}
			if normalization != "" {
				if err := req.Config.Normalization.UnmarshalText([]byte(normalization)); err != nil {
					return err
				}
			}
			if costProperty != "" {
				req.Config.CostProperty = costProperty
			}

			res, err := remote.client().ComputeCentrality(cmd.Context(), req.Config, req.Subgraph)
			if err != nil {
				return err
			}

			ids := res.EntityIDs()
			if top > 0 && len(res.Measures()) > 0 {
				first := res.Measures()[0]
				slices.SortStableFunc(ids, func(a, b graphvalue.Identifier) int {
					sa, _ := res.Score(a, first)
					sb, _ := res.Score(b, first)
					return cmp.Compare(sb, sa)
				})
				ids = ids[:min(top, len(ids))]
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			header := []string{"ID", "TYPE"}
			for _, m := range res.Measures() {
				header = append(header, strings.ToUpper(m.String()))
			}
			fmt.Fprintln(tw, strings.Join(header, "\t"))
			for _, id := range ids {
				cells := []string{id.String(), strings.Join(res.NamedTypesOf(id), ",")}
				for _, m := range res.Measures() {
					score, _ := res.Score(id, m)
					cells = append(cells, fmt.Sprintf("%.4f", score))
				}
				fmt.Fprintln(tw, strings.Join(cells, "\t"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML file with config and subgraph sections")
	cmd.Flags().StringArrayVarP(&measures, "measure", "m", nil, "Measure to compute (repeatable)")
	cmd.Flags().StringVar(&interpretation, "interpretation", "", "undirected or directed")
	cmd.Flags().StringVar(&normalization, "normalization", "", "none, standard or max_scaled")
	cmd.Flags().StringVar(&costProperty, "cost-property", "", "Relationship property used as traversal cost")
	cmd.Flags().IntVar(&top, "top", 0, "Only list the best N entities by the first measure")
	return cmd
}

func newPathsCmd(remote *remoteFlags) *cobra.Command {
	var (
		configPath   string
		from, to     string
		costProperty string
		allPaths     bool
		maxLength    int
	)
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Find paths between entities, cheapest first",
		Example: `  kektorgraph paths --from POI:p1 --to Supplier --cost-property cost
  kektorgraph paths --config paths.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := server.PathsRequest{Config: pathfinding.DefaultConfig()}
			if configPath != "" {
				if err := decodeYAMLFile(configPath, &req); err != nil {
					return err
				}
			}
			cfg := &req.Config
			if from != "" {
				cfg.Origins = []pathfinding.EntitySelector{parseSelector(from)}
			}
			if to != "" {
				cfg.Destinations = []pathfinding.EntitySelector{parseSelector(to)}
			}
			if costProperty != "" {
				cfg.CostProperty = costProperty
			}
			if allPaths {
				cfg.PathMode = pathfinding.AllPaths
			}
			if maxLength > 0 {
				cfg.MaxPathLength = maxLength
			}
			if len(cfg.Origins) == 0 || len(cfg.Destinations) == 0 {
				return fmt.Errorf("origins and destinations are required (--from/--to or --config)")
			}

			res, err := remote.client().FindPaths(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, i := range res.PathsByIncreasingMinCost() {
				path, err := res.MaterializePath(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%.4g\t%s\n", path.MinCost, path.String())
			}
			fmt.Fprintf(out, "%d path(s)\n", res.CountPaths())
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML file with a config section")
	cmd.Flags().StringVar(&from, "from", "", "Origin as TYPE or TYPE:ID")
	cmd.Flags().StringVar(&to, "to", "", "Destination as TYPE or TYPE:ID")
	cmd.Flags().StringVar(&costProperty, "cost-property", "", "Relationship property used as cost")
	cmd.Flags().BoolVar(&allPaths, "all", false, "List every path, not only the cheapest per pair")
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "Max number of hops")
	return cmd
}

// parseSelector reads TYPE or TYPE:ID.
func parseSelector(s string) pathfinding.EntitySelector {
	typeName, id, _ := strings.Cut(s, ":")
	sel := pathfinding.EntitySelector{TypeName: typeName}
	if id != "" {
		sel.InstanceID = graphvalue.ParseIdentifier(id)
	}
	return sel
}
