package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var (
	runQueries    []string
	runCountry    string
	runCity       string
	runLocation   string
	runMaxResults int
	runLanguage   string
	runFile       string
)

// taskSpec is one entry of a batch file.
type taskSpec struct {
	Queries    []string `yaml:"queries"`
	Country    string   `yaml:"country"`
	City       string   `yaml:"city"`
	Location   string   `yaml:"location"`
	MaxResults int      `yaml:"max_results"`
	Language   string   `yaml:"language"`
}

func (s taskSpec) plan() (*model.SearchTask, error) {
	loc := model.Location{Country: s.Country, City: s.City, FreeText: s.Location}
	return pipeline.PlanTask(s.Queries, loc, s.MaxResults, cfg.Pipeline.DefaultMaxResults, s.Language)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run lead generation for one or more search intents",
	Long: `Runs the full pipeline for a single search intent given via flags,
or for every task in a YAML batch file given via --file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if runFile != "" {
			return runBatch(ctx, env, runFile)
		}

		spec := taskSpec{
			Queries:    runQueries,
			Country:    runCountry,
			City:       runCity,
			Location:   runLocation,
			MaxResults: runMaxResults,
			Language:   runLanguage,
		}
		task, err := spec.plan()
		if err != nil {
			return err
		}

		result, err := env.Pipeline.Run(ctx, task)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("lead generation complete",
			zap.String("task", task.ID),
			zap.String("status", string(task.Status)),
			zap.Int("base_records", task.BaseCount),
			zap.Int("contacts", task.ContactCount),
			zap.Int("saved", task.SavedCount),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Task)
	},
}

// runBatch plans every task in the file up front, then runs them with
// bounded concurrency. Individual task failures do not abort the batch.
func runBatch(ctx context.Context, env *runEnv, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "read batch file")
	}

	var specs []taskSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return eris.Wrap(err, "parse batch file")
	}
	if len(specs) == 0 {
		zap.L().Info("batch file contains no tasks")
		return nil
	}

	tasks := make([]*model.SearchTask, 0, len(specs))
	for i, spec := range specs {
		task, err := spec.plan()
		if err != nil {
			return eris.Wrapf(err, "batch entry %d", i)
		}
		tasks = append(tasks, task)
	}

	zap.L().Info("processing batch",
		zap.Int("tasks", len(tasks)),
		zap.Int("concurrency", cfg.Pipeline.MaxConcurrentTasks),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Pipeline.MaxConcurrentTasks)

	var succeeded, failed atomic.Int64

	for _, task := range tasks {
		g.Go(func() error {
			log := zap.L().With(zap.String("task", task.ID))

			if _, err := env.Pipeline.Run(gctx, task); err != nil {
				failed.Add(1)
				log.Error("task failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("task complete",
				zap.String("status", string(task.Status)),
				zap.Int("saved", task.SavedCount),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

func init() {
	runCmd.Flags().StringSliceVar(&runQueries, "query", nil, "search query (repeatable)")
	runCmd.Flags().StringVar(&runCountry, "country", "", "country constraint")
	runCmd.Flags().StringVar(&runCity, "city", "", "city constraint")
	runCmd.Flags().StringVar(&runLocation, "location", "", "free-text location (overrides country/city)")
	runCmd.Flags().IntVar(&runMaxResults, "max-results", 0, "result cap per task (default from config)")
	runCmd.Flags().StringVar(&runLanguage, "language", "", "result language hint")
	runCmd.Flags().StringVar(&runFile, "file", "", "YAML batch file of tasks")
	rootCmd.AddCommand(runCmd)
}
