package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/ai"
	"github.com/spigell/tender-matcher/internal/ai/gemini"
	"github.com/spigell/tender-matcher/internal/dispatch"
	"github.com/spigell/tender-matcher/internal/filtering"
	"github.com/spigell/tender-matcher/internal/ledger"
	"github.com/spigell/tender-matcher/internal/logger"
	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/metrics"
	"github.com/spigell/tender-matcher/internal/model"
	"github.com/spigell/tender-matcher/internal/report"
	"github.com/spigell/tender-matcher/internal/secrets"
	"github.com/spigell/tender-matcher/internal/sink"
	"github.com/spigell/tender-matcher/internal/source"
	"github.com/spigell/tender-matcher/internal/tender"
)

const (
	PromptYes            = "Yes"
	PromptNo             = "No"
	PromptReportByAgency = "Report by agency"
	PromptMatchesToFile  = "Dump matches to file"
	modelDisabledReason  = "model disabled in configuration"
	defaultAIProvider    = "gemini"
	defaultSMTPPort      = 587
	hubspotTokenEnv      = "HUBSPOT_TOKEN"
	smtpPasswordEnv      = "SMTP_PASSWORD"
	geminiAPIKeyEnv      = "GEMINI_API_KEY"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Deliver matches and record them as processed?",
	Items: []string{PromptYes, PromptNo, PromptReportByAgency, PromptMatchesToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, score and deliver new tender matches",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before delivering matches")
	runCmd.Flags().Bool("dry-run", false, "print the report only: no sinks, no ledger writes")
	runCmd.Flags().String("ledger", "", "processed ledger location (overrides ledger.path)")

	viper.BindPFlag("ledger.path", runCmd.Flags().Lookup("ledger"))
}

// runState carries everything the prompt actions need.
type runState struct {
	labels     func(code string) string
	ranked     []*match.Result
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	dryRun     bool
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()
	started := time.Now()

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

	runID := uuid.NewString()
	l = logger.WithFields(l, logger.RunFields(runID, config.Source.Kind)...)

	l.Info("starting the tender-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	l.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	filterCfg, err := config.Filters.matchConfig()
	if err != nil {
		l.Fatal("invalid filters", zap.Error(err))
	}
	engine := match.NewEngine(filterCfg)

	srcCfg, err := config.Source.sourceConfig()
	if err != nil {
		l.Fatal("invalid source configuration", zap.Error(err))
	}
	src, err := source.New(srcCfg, l)
	if err != nil {
		l.Fatal("creating a source", zap.Error(err))
	}

	m := metrics.New()

	store, err := ledger.OpenStore(ctx, config.Ledger.Backend, config.Ledger.Path)
	if err != nil {
		l.Fatal("opening processed ledger", zap.Error(err), zap.String("path", config.Ledger.Path))
	}
	processed, err := ledger.Open(ctx, store, l)
	if err != nil {
		l.Fatal("loading processed ledger", zap.Error(err), zap.String("path", config.Ledger.Path))
	}
	defer processed.Close()

	l.Info("fetching opportunities", zap.String("source", src.Name()))

	fetched, err := src.Fetch(ctx)
	if err != nil {
		l.Fatal("fetching opportunities", zap.Error(err))
	}
	m.Fetched(src.Name(), len(fetched))

	batch := &tender.Opportunities{Items: fetched}
	if dups := batch.Unique(); len(dups) > 0 {
		l.Debug("dropped duplicate records in batch", zap.Int("count", len(dups)))
		m.Dropped("duplicate", len(dups))
	}

	l.Info("getting opportunities", zap.Int("count", batch.Len()), zap.Int("already processed", processed.Len()))

	if batch.Len() == 0 {
		l.Info("exiting", zap.String("reason", "no opportunities found"))
		finish(config, m, started, l)
		return
	}

	filters, modelReady := prepareFilters(ctx, config, engine, processed, l)
	m.ModelAvailable(modelReady)

	for _, status := range filters.Describe() {
		l.Info("filter status",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	results, err := filters.RunFilters(ctx, match.NewResults(batch))
	if err != nil {
		l.Fatal("filtering failed", zap.Error(err))
	}
	for _, applied := range filters.Applied() {
		m.Dropped(applied.Name, applied.Step.Dropped)
	}

	ranked := report.Rank(results.Items)
	m.Matched(len(ranked))

	if len(ranked) == 0 {
		l.Info("exiting", zap.String("reason", "no new matches left after filters"))
		finish(config, m, started, l)
		return
	}

	for _, r := range ranked {
		fmt.Println(report.PredictionLine(r))
	}

	dryRun := cmd.Flag("dry-run").Value.String() == "true"
	var dispatcher *dispatch.Dispatcher
	if !dryRun {
		sinks, err := prepareSinks(ctx, config, &filterCfg, l)
		if err != nil {
			l.Fatal("preparing sinks", zap.Error(err))
		}
		dispatcher = dispatch.New(dispatch.Config{RequireDelivery: config.Ledger.RequireDelivery}, processed, sinks, l)
	}

	state := &runState{
		labels:     filterCfg.Label,
		ranked:     ranked,
		dispatcher: dispatcher,
		metrics:    m,
		dryRun:     dryRun,
	}

	action := PromptYes
	for {
		var err error
		if cmd.Flag("auto-approve").Value.String() == "false" {
			_, action, err = prompt.Run()
			if err != nil {
				l.Fatal("exiting", zap.Error(err))
			}
		}

		l.Info("current list of matches", zap.Int("count", len(ranked)))

		if err := handleAction(ctx, action, state, l); err != nil {
			if errors.Is(err, errExit) {
				finish(config, m, started, l)
				return
			}
			l.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, state *runState, l *zap.Logger) error {
	switch action {
	case PromptYes:
		if err := deliver(ctx, state, l); err != nil {
			return err
		}
		return errExit
	case PromptNo:
		l.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptReportByAgency:
		pretty, _ := json.MarshalIndent(report.ByAgency(state.ranked), "", "  ")
		l.Info(string(pretty), zap.Int("matches count", len(state.ranked)))
		return nil
	case PromptMatchesToFile:
		matches := &tender.Opportunities{}
		for _, r := range state.ranked {
			matches.Items = append(matches.Items, r.Opportunity)
		}
		filename, err := matches.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump matches to file: %w", err)
		}
		l.Info("dumping matches to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func deliver(ctx context.Context, state *runState, l *zap.Logger) error {
	if state.dryRun {
		if err := report.WriteConsole(os.Stdout, state.ranked, state.labels); err != nil {
			return err
		}
		l.Info("dry run: nothing delivered or recorded", zap.Int("matches", len(state.ranked)))
		return nil
	}

	outcome, err := state.dispatcher.Dispatch(ctx, state.ranked)
	if outcome != nil {
		for name, acked := range outcome.Acked {
			state.metrics.Delivered(name, len(acked), outcome.Failures[name] != nil)
		}
		state.metrics.Recorded(len(outcome.Recorded))
	}
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	l.Info("matches dispatched",
		zap.Int("matches", len(state.ranked)),
		zap.Int("recorded", len(outcome.Recorded)),
		zap.Bool("sink failures", outcome.Failed()),
	)
	return nil
}

func finish(config *Config, m *metrics.Metrics, started time.Time, l *zap.Logger) {
	m.Finish(started, time.Now())

	if config.MetricsFile == "" {
		return
	}
	if err := m.WriteToTextfile(config.MetricsFile); err != nil {
		l.Warn("writing metrics file", zap.Error(err), zap.String("path", config.MetricsFile))
	}
}

func prepareFilters(ctx context.Context, config *Config, engine *match.Engine, seen filtering.Seen, l *zap.Logger) (*filtering.Filtering, bool) {
	predictor, reason := preparePredictor(config, engine, l)

	aiFilter, err := prepareAIFilter(ctx, config.AI, l)
	if err != nil {
		l.Warn("skipping AI review", zap.Error(err))
		aiFilter = filtering.NewAIReview(&filtering.AIReviewConfig{Enabled: false}, nil)
		aiFilter.Disable(err.Error())
	}

	steps := []filtering.Filter{
		filtering.NewLedger(seen, l),
		filtering.NewRelevance(&filtering.RelevanceConfig{
			EscalationThreshold: engine.EscalationThreshold(),
			ModelReason:         reason,
		}, &filtering.RelevanceDeps{
			Engine:    engine,
			Predictor: predictor,
			Logger:    l,
		}),
		aiFilter,
	}

	return filtering.New(steps, l), predictor != nil
}

// preparePredictor returns a nil predictor and the reason when the model
// cannot be used; the run then scores on the rules alone.
func preparePredictor(config *Config, engine *match.Engine, l *zap.Logger) (match.Predictor, string) {
	if !config.Model.Enabled {
		return nil, modelDisabledReason
	}

	artifacts, err := model.NewStore(config.Model.Dir, l).Load()
	if err != nil {
		l.Warn("relevance model unavailable; using rule-based scoring only", zap.Error(err), zap.String("dir", config.Model.Dir))
		return nil, err.Error()
	}

	predictor, err := model.NewPredictor(artifacts, engine.Keywords())
	if err != nil {
		l.Warn("relevance model unusable; using rule-based scoring only", zap.Error(err))
		return nil, err.Error()
	}

	l.Info("relevance model loaded", zap.String("training_id", artifacts.TrainingID), zap.Int("width", artifacts.Width()))
	return predictor, ""
}

func prepareAIFilter(ctx context.Context, config *AIConfig, l *zap.Logger) (filtering.Filter, error) {
	if config == nil || !config.Enabled {
		return filtering.NewAIReview(&filtering.AIReviewConfig{
			Enabled: false,
		}, nil), nil
	}

	if config.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when ai review is enabled")
	}

	reviewer, err := newAIReviewer(ctx, config, l)
	if err != nil {
		return nil, fmt.Errorf("building ai reviewer: %w", err)
	}

	return filtering.NewAIReview(&filtering.AIReviewConfig{
		Enabled:         config.Enabled,
		Provider:        config.Provider,
		Profile:         config.Profile,
		MinimumFitScore: config.MinimumFitScore,
		Model:           config.Gemini.Model,
	}, &filtering.AIReviewDeps{
		Logger:   l,
		Reviewer: reviewer,
	}), nil
}

func newAIReviewer(ctx context.Context, cfg *AIConfig, l *zap.Logger) (ai.Reviewer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != defaultAIProvider {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  geminiAPIKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithCommonFields(l, defaultAIProvider, cfg.Gemini.Model).With(
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	minScore := cfg.MinimumFitScore
	if minScore < 0 {
		minScore = 0
	}

	reviewerLogger := logger.WithCommonFields(l, defaultAIProvider, generator.Model()).With(
		zap.Float64("minimum_fit_score", minScore),
	)

	reviewer := gemini.NewReviewer(generator, minScore, cfg.Gemini.MaxLogLength, reviewerLogger)
	if cfg.Prompt != nil {
		reviewer.SetPromptOverrides(gemini.PromptOverrides{
			ExtraCriteria:     cfg.Prompt.ExtraCriteria,
			DealBreakers:      cfg.Prompt.DealBreakers,
			CustomKeywords:    cfg.Prompt.CustomKeywords,
			RegionConstraints: cfg.Prompt.RegionConstraints,
			UserInstructions:  cfg.Prompt.UserInstructions,
		})
	}

	return reviewer, nil
}

func prepareSinks(ctx context.Context, config *Config, filterCfg *match.FilterConfig, l *zap.Logger) ([]sink.Sink, error) {
	var sinks []sink.Sink

	if config.Sinks.Console {
		sinks = append(sinks, sink.NewConsole(os.Stdout, filterCfg.Label))
	}

	if crm := config.Sinks.CRM; crm.Enabled {
		token, err := secrets.Load(secrets.Source{
			Name: "hubspot token",
			File: crm.TokenFile,
			Env:  hubspotTokenEnv,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set sinks.crm.token-file or HUBSPOT_TOKEN_FILE)", err)
		}

		sinks = append(sinks, sink.NewCRM(ctx, token, sink.CRMConfig{
			URL:           crm.URL,
			PipelineStage: crm.PipelineStage,
			RatePerSecond: crm.RatePerSecond,
			Timeout:       crm.Timeout,
			UserAgent:     config.Source.UserAgent,
		}, l.With(zap.String("sink", "crm"))))
	}

	if email := config.Sinks.Email; email.Enabled {
		password, err := secrets.Load(secrets.Source{
			Name: "smtp password",
			File: email.PasswordFile,
			Env:  smtpPasswordEnv,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set sinks.email.password-file or SMTP_PASSWORD_FILE)", err)
		}

		port := email.SMTPPort
		if port == 0 {
			port = defaultSMTPPort
		}

		sinks = append(sinks, sink.NewEmail(sink.EmailConfig{
			SMTPServer: email.SMTPServer,
			SMTPPort:   port,
			SMTPUser:   email.SMTPUser,
			SMTPPass:   password,
			FromEmail:  email.From,
			ToEmail:    email.To,
		}, l.With(zap.String("sink", "email"))))
	}

	if len(sinks) == 0 {
		l.Warn("no sinks enabled; matches will only be recorded")
	}

	return sinks, nil
}
