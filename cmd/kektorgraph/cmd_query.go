package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorgraph/pkg/client"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
)

func newQueryCmd(remote *remoteFlags) *cobra.Command {
	var (
		filter client.QueryFilter
		params []string
	)
	cmd := &cobra.Command{
		Use:   "query [predicate]",
		Short: "List entities and relationships matching a predicate",
		Example: `  kektorgraph query --type POI "props.region == 'south'"
  kektorgraph query --type POI --param region=north "props.region == params.region"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				filter.Query = args[0]
			}
			bindings, err := parseParams(params)
			if err != nil {
				return err
			}
			filter.Bindings = bindings

			ctx := cmd.Context()
			cur, err := remote.client().SubmitQuery(ctx, filter)
			if err != nil {
				return err
			}
			return printRows(ctx, cmd.OutOrStdout(), cur)
		},
	}
	cmd.Flags().StringSliceVarP(&filter.TypeNames, "type", "t", nil, "Named types to search (default all)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Max number of rows (0 for no limit)")
	cmd.Flags().IntVar(&filter.BatchSize, "batch-size", 0, "Rows fetched per round trip (default server setting)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Predicate parameter as name=value, visible as params.name")
	return cmd
}

func newSearchCmd(remote *remoteFlags) *cobra.Command {
	var filter client.SearchFilter
	cmd := &cobra.Command{
		Use:   "search <text>...",
		Short: "Full-text search over labels and text properties",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Text = strings.Join(args, " ")
			ctx := cmd.Context()
			cur, err := remote.client().SubmitSearch(ctx, filter)
			if err != nil {
				return err
			}
			return printRows(ctx, cmd.OutOrStdout(), cur)
		},
	}
	cmd.Flags().StringSliceVarP(&filter.TypeNames, "type", "t", nil, "Named types to search (default all)")
	cmd.Flags().StringVar(&filter.Target, "target", "", "entities, relationships or both")
	cmd.Flags().IntVar(&filter.MaxResults, "max", 10, "Max number of hits")
	return cmd
}

// parseParams turns name=value pairs into predicate bindings. Values that
// parse as numbers or booleans are bound with that type.
func parseParams(params []string) (map[string]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(params))
	for _, p := range params {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", p)
		}
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			out[name] = i
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			out[name] = f
		} else if b, err := strconv.ParseBool(raw); err == nil {
			out[name] = b
		} else {
			out[name] = raw
		}
	}
	return out, nil
}

// printRows drains the cursor, one tab separated line per row.
func printRows(ctx context.Context, w io.Writer, cur *client.RowCursor) (err error) {
	defer func() {
		if cerr := cur.Close(ctx); err == nil {
			err = cerr
		}
	}()
	for {
		ok, err := cur.WaitForNextBatch(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		for cur.Advance() {
			cells := make([]string, 0, 4)
			for _, v := range cur.Current() {
				cells = append(cells, describeValue(v)...)
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	}
}

func describeValue(v graphvalue.Value) []string {
	switch o := v.(type) {
	case *graphvalue.Entity:
		return []string{o.TypeName(), o.Identifier().String(), o.Label()}
	case *graphvalue.Relationship:
		origin, _ := o.OriginID()
		dest, _ := o.DestinationID()
		return []string{o.TypeName(), o.Identifier().String(), origin.String() + " -> " + dest.String()}
	case graphvalue.Primitive:
		if f, ok := o.AsFloat64(); ok {
			return []string{strconv.FormatFloat(f, 'f', 4, 64)}
		}
		return []string{o.String()}
	default:
		return []string{"<" + graphvalue.KindOf(v).String() + ">"}
	}
}
