package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [analysis-id]",
	Short: "Render the report of a finished analysis or a profile file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		file, _ := cmd.Flags().GetString("file")
		formatName, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		if (len(args) == 0) == (file == "") {
			return eris.New("report: pass exactly one of an analysis id or --file")
		}
		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		if format == report.FormatXLSX && out == "" {
			return eris.New("report: --out is required for xlsx output")
		}

		var profile model.CompanyProfile
		if file != "" {
			profile, err = loadProfileFile(file)
		} else {
			profile, err = loadStoredProfile(ctx, args[0])
		}
		if err != nil {
			return err
		}

		return writeReport(cmd.OutOrStdout(), out, report.Build(profile), format)
	},
}

func init() {
	f := reportCmd.Flags()
	f.String("file", "", "render a profile JSON file instead of a stored analysis")
	f.String("format", "markdown", "report format: markdown, json, yaml, xlsx")
	f.String("out", "", "write the report to this file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}

func loadProfileFile(path string) (model.CompanyProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	var p model.CompanyProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}
	if len(p) == 0 {
		return nil, eris.Errorf("%s holds an empty profile", path)
	}
	return p, nil
}

func loadStoredProfile(ctx context.Context, id string) (model.CompanyProfile, error) {
	if err := cfg.Validate("report"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	defer st.Close() //nolint:errcheck

	a, err := st.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AnalysisStatusReady {
		return nil, eris.Errorf("analysis %s is %s, not ready", a.ID, a.Status)
	}
	return a.Profile, nil
}
