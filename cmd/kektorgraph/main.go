// Command kektorgraph runs the graph datastore and queries it.
//
//	kektorgraph serve --config kektorgraph.yaml
//	kektorgraph query --type POI "props.region == 'south'"
//	kektorgraph centrality --measure degree --measure pagerank
//	kektorgraph paths --from POI --to Supplier --cost-property cost
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
