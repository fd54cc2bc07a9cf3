package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Simplici0/kalkia/internal/calculation"
	"github.com/Simplici0/kalkia/internal/offer"
	"github.com/Simplici0/kalkia/internal/snapshot"
)

const (
	formatJSON = "json"
	formatText = "text"
	formatXLSX = "xlsx"
)

func newCalcCmd(opts *globalOptions) *cobra.Command {
	var (
		file   string
		dryRun bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate a request file",
		Long: `Calculate the request in a JSON file and store the result as a new
calculation. The file has the same shape as the HTTP API body:

  {"title": "...", "profile_id": 1, "items": [{"component_id": 1, "quantity": 4}],
   "settings": {"discount_percentage": 5}}

Examples:
  kalkia calc --file request.json
  kalkia calc --file request.json --dry-run --format text
  cat request.json | kalkia calc --file -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatJSON && format != formatText {
				return fmt.Errorf("unsupported format %q, use %s or %s", format, formatJSON, formatText)
			}

			in, err := readInput(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if dryRun {
				in.DryRun = true
			}

			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.calc.Calculate(cmd.Context(), in)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if format == formatJSON {
				return writeIndented(w, out)
			}
			fmt.Fprint(w, offer.Text(offer.Assemble(out.Snapshot.Calculation, offer.MetaFromSnapshot(out.Snapshot))))
			if out.Saved {
				fmt.Fprintf(w, "\nstored as %s\n", out.Snapshot.ID)
			} else {
				fmt.Fprintln(w, "\ndry run, not stored")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Request JSON file, - for stdin")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Calculate without storing")
	cmd.Flags().StringVar(&format, "format", formatJSON, "Output format: json or text")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var (
		query string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored calculations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			summaries, err := a.calc.List(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			return writeSummaries(cmd.OutOrStdout(), summaries)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Filter on title and notes")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of rows")
	return cmd
}

func newShowCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Render a stored calculation",
		Long: `Render a stored calculation as JSON, offer text or an offer workbook.
The stored totals are checked against the stored settings first.

Examples:
  kalkia show 6f1c... --format text
  kalkia show 6f1c... --format xlsx --out offer.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == formatXLSX && out == "" {
				return fmt.Errorf("--out is required for %s output", formatXLSX)
			}

			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.calc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				return writeIndented(w, snap)
			case formatText:
				_, err := io.WriteString(w, offer.Text(offer.Assemble(snap.Calculation, offer.MetaFromSnapshot(snap))))
				return err
			case formatXLSX:
				data, err := offer.WriteXLSX(offer.Assemble(snap.Calculation, offer.MetaFromSnapshot(snap)))
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Fprintf(w, "wrote %s\n", out)
				return nil
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", formatText, "Output format: json, text or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file for xlsx")
	return cmd
}

func readInput(path string, stdin io.Reader) (calculation.Input, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return calculation.Input{}, fmt.Errorf("open request file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var in calculation.Input
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return calculation.Input{}, fmt.Errorf("decode request file: %w", err)
	}
	return in, nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSummaries(w io.Writer, summaries []snapshot.Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "no calculations")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTITLE\tTOTAL\tDB %\tSTATUS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f %s\t%.1f\t%s\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.Title, s.FinalAmount, s.Currency, s.DBPercentage, s.Status)
	}
	return tw.Flush()
}
