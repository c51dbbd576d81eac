package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/interview-prep/internal/model"
	"github.com/sells-group/interview-prep/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List stored interview records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		table, _ := cmd.Flags().GetBool("table")

		filter := store.RecordFilter{
			Status: model.RecordStatus(status),
			Limit:  limit,
			Offset: offset,
		}
		if filter.Status != "" && !filter.Status.Valid() {
			return eris.Errorf("unknown status %q (want preparing, researching, ready or failed)", status)
		}

		if err := cfg.Validate("records"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListRecords(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list records")
		}
		if recs == nil {
			recs = []model.InterviewRecord{}
		}

		if table {
			return printRecordTable(cmd.OutOrStdout(), recs)
		}
		return writeJSON(cmd.OutOrStdout(), recs)
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <content-hash>",
	Short: "Show one record and its status history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("records"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecordByHash(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get record")
		}
		if rec == nil {
			return eris.Errorf("no record with content hash %s", args[0])
		}
		history, err := st.ListHistory(ctx, rec.ID)
		if err != nil {
			return eris.Wrap(err, "list history")
		}
		if history == nil {
			history = []model.StatusChange{}
		}

		return writeJSON(cmd.OutOrStdout(), struct {
			Record  *model.InterviewRecord `json:"record"`
			History []model.StatusChange   `json:"history"`
		}{rec, history})
	},
}

func printRecordTable(out io.Writer, recs []model.InterviewRecord) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(out, "No records found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HASH\tSTATUS\tCANDIDATE\tCOMPANY\tDATE\tUPDATED") //nolint:errcheck
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck
			shortHash(r.ContentHash),
			r.Status,
			orDash(r.CandidateName),
			orDash(r.CompanyName),
			orDash(r.InterviewDate),
			r.UpdatedAt.Format(time.DateTime),
		)
	}
	return w.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	recordsCmd.Flags().String("status", "", "filter by status (preparing, researching, ready, failed)")
	recordsCmd.Flags().Int("limit", 50, "max records to return")
	recordsCmd.Flags().Int("offset", 0, "records to skip")
	recordsCmd.Flags().Bool("table", false, "print a table instead of JSON")
	recordsCmd.AddCommand(recordsShowCmd)
	rootCmd.AddCommand(recordsCmd)
}
