package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/drift"
)

// NewSchemaCommand creates the schema command group for drift detection.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Capture and check the store's structural fingerprint",
		Long: `The store's schema is a versioned contract pinned per host version.
"schema capture" saves a structural fingerprint baseline; "schema check"
diffs the current store against it and fails when the host has changed
shape, before any mutating command trusts the pinned column layout.`,
	}
	cmd.AddCommand(newSchemaCaptureCommand(rootOpts))
	cmd.AddCommand(newSchemaCheckCommand(rootOpts))
	return cmd
}

const defaultBaseline = "forscore-schema.yaml"

func newSchemaCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:           "capture",
		Short:         "Save the current structural fingerprint as the baseline",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			fp, err := drift.Capture(cmd.Context(), st)
			if err != nil {
				return err
			}
			if err := drift.Save(fp, output); err != nil {
				return err
			}

			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(map[string]string{"baseline": output, "hash": fp.Hash})
			}
			fmt.Fprintf(f.Writer, "Captured fingerprint %s to %s\n", fp.Hash[:12], output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", defaultBaseline, "baseline file")

	return cmd
}

func newSchemaCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var baseline string

	cmd := &cobra.Command{
		Use:           "check",
		Short:         "Diff the store against a saved fingerprint baseline",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := drift.Load(baseline)
			if err != nil {
				return err
			}

			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			current, err := drift.Capture(cmd.Context(), st)
			if err != nil {
				return err
			}

			diffs := drift.Diff(saved, current)
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				if err := f.Success(map[string]any{
					"matches": len(diffs) == 0,
					"diffs":   diffs,
				}); err != nil {
					return err
				}
			} else if len(diffs) == 0 {
				fmt.Fprintln(f.Writer, "Store matches the baseline.")
			} else {
				fmt.Fprintf(f.Writer, "Store drifted from the baseline (%d difference(s)):\n", len(diffs))
				for _, d := range diffs {
					fmt.Fprintf(f.Writer, "  %s\n", d)
				}
			}
			if len(diffs) > 0 {
				return NewExitError(ExitFailure, "schema drift detected")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseline, "baseline", defaultBaseline, "baseline file")

	return cmd
}
