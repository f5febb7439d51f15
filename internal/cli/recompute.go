package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"survey-analytics-service/internal/config"
)

type recomputeTargets struct {
	survey   string
	question string
	user     string
}

// NewRecomputeCmd runs one blocking recomputation, the entry point for
// scheduled jobs, and prints the committed aggregate as JSON.
func NewRecomputeCmd(configPath *string) *cobra.Command {
	var targets recomputeTargets
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute an aggregate and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			set := 0
			for _, v := range []string{targets.survey, targets.question, targets.user} {
				if v != "" {
					set++
				}
			}
			if set != 1 {
				return fmt.Errorf("exactly one of --survey, --question or --user is required")
			}
			return runRecompute(cmd.Context(), *configPath, targets, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&targets.survey, "survey", "", "survey id")
	cmd.Flags().StringVar(&targets.question, "question", "", "question id")
	cmd.Flags().StringVar(&targets.user, "user", "", "user id (dashboard)")
	return cmd
}

func runRecompute(ctx context.Context, configPath string, targets recomputeTargets, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)

	svc, err := buildServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	var result any
	switch {
	case targets.survey != "":
		result, err = svc.analytics.RecomputeSurvey(ctx, targets.survey)
	case targets.question != "":
		result, err = svc.analytics.RecomputeQuestion(ctx, targets.question)
	default:
		result, err = svc.analytics.RecomputeDashboard(ctx, targets.user)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
