package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sanonone/kektorgraph/pkg/client"
)

// remoteFlags are shared by every command talking to a running datastore.
type remoteFlags struct {
	addr  string
	token string
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.addr, "addr", "http://localhost:9091", "Base URL of the kektorgraph server")
	cmd.PersistentFlags().StringVar(&f.token, "token", os.Getenv("KEKTORGRAPH_TOKEN"), "API token (default $KEKTORGRAPH_TOKEN)")
}

func (f *remoteFlags) client() *client.Client {
	return client.NewFromURL(f.addr, f.token)
}

func newRootCmd() *cobra.Command {
	remote := &remoteFlags{}

	rootCmd := &cobra.Command{
		Use:   "kektorgraph",
		Short: "Knowledge-graph datastore with centrality and path-finding analytics",
		Long: `kektorgraph stores entities and relationships in memory, streams
query and search results through cursors and computes centrality
measures and filtered paths over the graph.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	remote.register(rootCmd)

	rootCmd.AddCommand(
		newServeCmd(),
		newQueryCmd(remote),
		newSearchCmd(remote),
		newCentralityCmd(remote),
		newPathsCmd(remote),
	)
	return rootCmd
}

// decodeYAMLFile reads a YAML document into out, rejecting unknown fields.
func decodeYAMLFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
