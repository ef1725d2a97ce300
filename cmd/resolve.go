package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mgijax/srcload/internal/source"
)

var (
	resolveRaw    source.RawAttributes
	resolvePolicy string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one set of attributes without writing",
	Long:  "Runs the selected resolution policy on the given attributes, prints the resolved keys and fingerprint, and reports the stored source it would collapse to.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("resolve"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initSourceEnv(ctx, envOptions{Policy: resolvePolicy, CacheMode: source.CacheLazy})
		if err != nil {
			return err
		}
		defer env.Close()

		candidate, err := env.Resolver.ResolveAttributesOnly(ctx, resolveRaw)
		if err != nil {
			return eris.Wrap(err, "resolve")
		}
		existing, err := env.Cache.Lookup(ctx, candidate)
		if err != nil {
			return eris.Wrap(err, "resolve: cache lookup")
		}
		return printResolution(cmd.OutOrStdout(), env.Policy.Name(), candidate, existing)
	},
}

func printResolution(out io.Writer, policy string, src, existing *source.MolecularSource) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "policy\t%s\n", policy)
	fmt.Fprintf(w, "organism\t%d\n", src.OrganismKey)
	fmt.Fprintf(w, "strain\t%d\n", src.StrainKey)
	fmt.Fprintf(w, "tissue\t%d\n", src.TissueKey)
	fmt.Fprintf(w, "gender\t%d\n", src.GenderKey)
	fmt.Fprintf(w, "cell line\t%d\n", src.CellLineKey)
	fmt.Fprintf(w, "segment type\t%d\n", src.SegmentTypeKey)
	fmt.Fprintf(w, "vector type\t%d\n", src.VectorTypeKey)
	fmt.Fprintf(w, "age\t%s\n", src.Age)
	fmt.Fprintf(w, "fingerprint\t%s\n", src.Fingerprint())
	if existing != nil {
		fmt.Fprintf(w, "collapses to\tsource %d\n", existing.Key)
	} else {
		fmt.Fprintf(w, "collapses to\t(new source)\n")
	}
	return w.Flush()
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveRaw.Organism, "organism", "", "organism name (required)")
	f.StringVar(&resolveRaw.Strain, "strain", "", "strain")
	f.StringVar(&resolveRaw.Tissue, "tissue", "", "tissue")
	f.StringVar(&resolveRaw.Gender, "gender", "", "gender")
	f.StringVar(&resolveRaw.CellLine, "cell-line", "", "cell line")
	f.StringVar(&resolveRaw.Age, "age", "", "age")
	f.StringVar(&resolvePolicy, "policy", "", "resolution policy (default from config)")
	_ = resolveCmd.MarkFlagRequired("organism")
	rootCmd.AddCommand(resolveCmd)
}
