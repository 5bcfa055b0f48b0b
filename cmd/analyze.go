package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/analysis"
	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a company and render its profile report",
	Long:  "Starts a company analysis, polls the SimplAI service until the profile is ready and renders the report. Ctrl-C cancels the analysis.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		name, _ := cmd.Flags().GetString("name")
		website, _ := cmd.Flags().GetString("website")
		sessionID, _ := cmd.Flags().GetString("session")
		formatName, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		if format == report.FormatXLSX && out == "" {
			return eris.New("analyze: --out is required for xlsx output")
		}
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		env, err := initApp(ctx, cfg, func(rec analysis.Recorder) analysis.Recorder {
			return &progressRecorder{Recorder: rec, w: cmd.ErrOrStderr()}
		})
		if err != nil {
			return err
		}
		defer env.Close(context.Background())

		a, err := env.Manager.Submit(ctx, sessionID, model.AnalysisRequest{
			CompanyName:    name,
			CompanyWebsite: website,
		})
		if err != nil {
			return analysisError(err)
		}
		zap.L().Info("analysis started",
			zap.String("analysis_id", a.ID),
			zap.String("session_id", sessionID),
			zap.String("company", a.Request.CompanyName),
		)

		if err := env.Manager.Wait(ctx, a.ID); err != nil {
			// Interrupted: stop polling and record the cancellation.
			cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if cerr := env.Manager.Cancel(cancelCtx, a.ID); cerr != nil && !errors.Is(cerr, analysis.ErrNotRunning) {
				zap.L().Warn("cancel analysis", zap.String("analysis_id", a.ID), zap.Error(cerr))
			}
			return eris.New(analysis.UserMessage(context.Canceled))
		}

		done, err := env.Store.GetAnalysis(context.Background(), a.ID)
		if err != nil {
			return eris.Wrap(err, "analyze: load result")
		}
		if done.Status != model.AnalysisStatusReady {
			return eris.Errorf("analysis %s: %s", done.Status, done.Error)
		}

		return writeReport(cmd.OutOrStdout(), out, report.Build(done.Profile), format)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.String("name", "", "company name")
	f.String("website", "", "company website")
	f.String("session", "", "session id the profile is stored under (default: random)")
	f.String("format", "markdown", "report format: markdown, json, yaml, xlsx")
	f.String("out", "", "write the report to this file instead of stdout")
	rootCmd.AddCommand(analyzeCmd)
}

// analysisError surfaces the user-facing message of a classified failure.
func analysisError(err error) error {
	var aerr *analysis.Error
	if errors.As(err, &aerr) {
		zap.L().Debug("analysis failed", zap.Error(err))
		return eris.New(aerr.UserMessage())
	}
	return err
}

// progressRecorder prints each poll attempt before recording it.
type progressRecorder struct {
	analysis.Recorder
	w io.Writer
}

func (r *progressRecorder) UpdateAnalysisProgress(ctx context.Context, id string, p model.Progress) error {
	fmt.Fprintf(r.w, "[%3d%%] %s (attempt %d/%d)\n", p.Percent, p.Message, p.Attempt, p.MaxAttempts)
	return r.Recorder.UpdateAnalysisProgress(ctx, id, p)
}

func writeReport(stdout io.Writer, path string, r *report.Report, format report.Format) error {
	if path == "" {
		return report.Write(stdout, r, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := report.Write(f, r, format); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	zap.L().Info("report written", zap.String("path", path), zap.String("format", string(format)))
	return nil
}
