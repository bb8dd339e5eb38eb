package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/logger"
	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/model"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the relevance model from labelled opportunities",
	Run: func(cmd *cobra.Command, _ []string) {
		train(cmd)
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringP("data", "i", "", "json file with labelled opportunities")
	trainCmd.Flags().StringP("output", "o", "", "artifact directory (overrides model.dir)")
	trainCmd.MarkFlagRequired("data")
}

func train(cmd *cobra.Command) {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		l.Fatal("config is required")
	}
	config.normalize()

	// Training must score keywords exactly like the run does.
	filterCfg, err := config.Filters.matchConfig()
	if err != nil {
		l.Fatal("invalid filters", zap.Error(err))
	}
	engine := match.NewEngine(filterCfg)

	data := cmd.Flag("data").Value.String()
	examples, err := model.LoadExamples(data)
	if err != nil {
		l.Fatal("loading training data", zap.Error(err), zap.String("file", data))
	}

	l.Info("training relevance model", zap.Int("examples", len(examples)))

	artifacts, err := model.NewTrainer(config.Training.trainerConfig(), engine.Keywords(), l).Fit(examples)
	if err != nil {
		l.Fatal("training failed", zap.Error(err))
	}

	dir := config.Model.Dir
	if out := cmd.Flag("output").Value.String(); out != "" {
		dir = out
	}

	if err := model.NewStore(dir, l).Save(artifacts); err != nil {
		l.Fatal("saving model artifacts", zap.Error(err), zap.String("dir", dir))
	}

	l.Info("model saved",
		zap.String("dir", dir),
		zap.String("training_id", artifacts.TrainingID),
		zap.Int("width", artifacts.Width()),
	)
}
