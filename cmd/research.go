package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-research/internal/model"
)

var (
	researchURL         string
	researchIndustry    string
	researchHQ          string
	researchCompetitors []string
	researchTone        string
	researchOutput      string
)

var researchCmd = &cobra.Command{
	Use:   "research <company>",
	Short: "Run a research job for one company and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Pipeline.Submit(model.ResearchRequest{
			Company:     args[0],
			CompanyURL:  researchURL,
			Industry:    researchIndustry,
			HQLocation:  researchHQ,
			Competitors: researchCompetitors,
			Tone:        researchTone,
		})
		if err != nil {
			return err
		}
		zap.L().Info("research started", zap.String("job_id", job.ID))

		final, err := waitForJob(ctx, env, job.ID)
		if err != nil {
			return err
		}
		if final.Status == model.JobStatusFailed {
			return eris.Errorf("research failed: %s", final.Error)
		}

		if researchOutput != "" {
			if err := os.WriteFile(researchOutput, []byte(final.Report), 0o644); err != nil {
				return eris.Wrap(err, "write report")
			}
			zap.L().Info("report written", zap.String("path", researchOutput))
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), final.Report)
		return nil
	},
}

// waitForJob drains the job's events until it goes terminal, logging
// progress along the way.
func waitForJob(ctx context.Context, env *researchEnv, id string) (model.Job, error) {
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		job, events, ok := env.Registry.Poll(id)
		if !ok {
			return model.Job{}, eris.Errorf("job %s not found", id)
		}

		for _, ev := range events {
			switch ev.Type {
			case model.EventProgress:
				zap.L().Info("stage started", zap.Any("step", ev.Payload["step"]))
			case model.EventQueryGenerated, model.EventAnalysisComplete,
				model.EventCuration, model.EventEnrichment, model.EventBriefingComplete:
				if msg, ok := ev.Payload["message"]; ok && msg != "" {
					zap.L().Info(ev.Type, zap.Any("detail", msg))
				}
			case model.EventError:
				zap.L().Error("pipeline error", zap.Any("error", ev.Payload["error"]))
			}
		}

		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			env.Registry.Cancel(id)
			return model.Job{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	researchCmd.Flags().StringVar(&researchURL, "url", "", "company website URL")
	researchCmd.Flags().StringVar(&researchIndustry, "industry", "", "industry the company operates in")
	researchCmd.Flags().StringVar(&researchHQ, "hq", "", "headquarters location")
	researchCmd.Flags().StringSliceVar(&researchCompetitors, "competitors", nil, "known competitors")
	researchCmd.Flags().StringVar(&researchTone, "tone", "", "report tone (default objective)")
	researchCmd.Flags().StringVarP(&researchOutput, "output", "o", "", "write the report to a file instead of stdout")
	rootCmd.AddCommand(researchCmd)
}
