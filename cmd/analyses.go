package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/internal/store"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Inspect the analysis run history",
}

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessionID, _ := cmd.Flags().GetString("session")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListAnalyses(ctx, store.AnalysisFilter{
			SessionID: sessionID,
			Status:    model.AnalysisStatus(status),
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "list analyses")
		}

		fmt.Fprint(cmd.OutOrStdout(), formatAnalysesList(list))
		return nil
	},
}

var analysesShowCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Show one analysis as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		a, err := st.GetAnalysis(ctx, args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal analysis")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	analysesListCmd.Flags().String("session", "", "only analyses of this session")
	analysesListCmd.Flags().String("status", "", "filter by status (initiating, polling, ready, timed_out, failed, cancelled)")
	analysesListCmd.Flags().Int("limit", 20, "maximum number of analyses to show")

	analysesCmd.AddCommand(analysesListCmd, analysesShowCmd)
	rootCmd.AddCommand(analysesCmd)
}

func formatAnalysesList(list []model.Analysis) string {
	if len(list) == 0 {
		return "No analyses found.\n"
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMPANY\tSTATUS\tPROGRESS\tCREATED")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\n",
			truncateID(a.ID),
			a.Request.CompanyName,
			a.Status,
			a.Progress.Percent,
			a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush() //nolint:errcheck
	return buf.String()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
