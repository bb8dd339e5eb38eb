package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/tender-matcher/internal/match"
)

const (
	app = "tender-matcher"
)

type Config struct {
	Source      *SourceConfig   `mapstructure:"source"`
	Filters     *FiltersConfig  `mapstructure:"filters"`
	Ledger      *LedgerConfig   `mapstructure:"ledger"`
	Model       *ModelConfig    `mapstructure:"model"`
	Training    *TrainingConfig `mapstructure:"training"`
	Sinks       *SinksConfig    `mapstructure:"sinks"`
	AI          *AIConfig       `mapstructure:"ai"`
	MetricsFile string          `mapstructure:"metrics-file"`
}

type SourceConfig struct {
	Kind       string            `mapstructure:"kind"`
	Window     time.Duration     `mapstructure:"window"`
	StartDate  string            `mapstructure:"start-date"`
	EndDate    string            `mapstructure:"end-date"`
	UserAgent  string            `mapstructure:"user-agent"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	OCDS       *OCDSConfig       `mapstructure:"ocds"`
	TenderInfo *TenderInfoConfig `mapstructure:"tenderinfo"`
	RSS        *RSSConfig        `mapstructure:"rss"`
}

type OCDSConfig struct {
	BaseURL      string `mapstructure:"base-url"`
	Endpoint     string `mapstructure:"endpoint"`
	LinkTemplate string `mapstructure:"link-template"`
}

type TenderInfoConfig struct {
	URL          string `mapstructure:"url"`
	Subscription string `mapstructure:"subscription"`
	Origin       string `mapstructure:"origin"`
	From         int    `mapstructure:"from"`
	To           int    `mapstructure:"to"`
	Type         string `mapstructure:"type"`
}

type RSSConfig struct {
	URLs        []string `mapstructure:"urls"`
	FollowLinks bool     `mapstructure:"follow-links"`
}

type FiltersConfig struct {
	TaxonomyScheme   string            `mapstructure:"taxonomy-scheme"`
	TaxonomyPrefixes []string          `mapstructure:"taxonomy-prefixes"`
	TaxonomyLabels   map[string]string `mapstructure:"taxonomy-labels"`
	Keywords         []match.Keyword   `mapstructure:"keywords"`
	KeywordMinScore  int               `mapstructure:"keyword-min-score"`
	// MinAmount is kept as a string so large values keep their precision.
	MinAmount           string `mapstructure:"min-amount"`
	EscalationThreshold *int   `mapstructure:"escalation-threshold"`
}

type LedgerConfig struct {
	Backend         string `mapstructure:"backend"`
	Path            string `mapstructure:"path"`
	RequireDelivery bool   `mapstructure:"require-delivery"`
}

type ModelConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type TrainingConfig struct {
	DescriptionNGrams int      `mapstructure:"description-ngrams"`
	CategoryNGrams    int      `mapstructure:"category-ngrams"`
	Epochs            int      `mapstructure:"epochs"`
	LearningRate      float64  `mapstructure:"learning-rate"`
	L2                *float64 `mapstructure:"l2"`
}

type SinksConfig struct {
	Console bool         `mapstructure:"console"`
	CRM     *CRMConfig   `mapstructure:"crm"`
	Email   *EmailConfig `mapstructure:"email"`
}

type CRMConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	TokenFile     string        `mapstructure:"token-file"`
	PipelineStage string        `mapstructure:"pipeline-stage"`
	RatePerSecond float64       `mapstructure:"rate-per-second"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SMTPServer   string `mapstructure:"smtp-server"`
	SMTPPort     int    `mapstructure:"smtp-port"`
	SMTPUser     string `mapstructure:"smtp-user"`
	PasswordFile string `mapstructure:"password-file"`
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
}

type AIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Provider        string        `mapstructure:"provider"`
	Profile         string        `mapstructure:"profile"`
	MinimumFitScore float64       `mapstructure:"minimum-fit-score"`
	Prompt          *PromptConfig `mapstructure:"prompt"`
	Gemini          *GeminiConfig `mapstructure:"gemini"`
}

type PromptConfig struct {
	ExtraCriteria     string `mapstructure:"extra-criteria"`
	DealBreakers      string `mapstructure:"deal-breakers"`
	CustomKeywords    string `mapstructure:"custom-keywords"`
	RegionConstraints string `mapstructure:"region-constraints"`
	UserInstructions  string `mapstructure:"user-instructions"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "tender-matcher scores procurement notices against your company profile and reports the new matches",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"ledger.path":               "TENDER_LEDGER_FILE",
		"sinks.crm.token-file":      "HUBSPOT_TOKEN_FILE",
		"sinks.email.password-file": "SMTP_PASSWORD_FILE",
		"ai.gemini.api-key-file":    "GEMINI_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("source.kind", "ocds")
	viper.SetDefault("filters.taxonomy-scheme", match.DefaultTaxonomyScheme)
	viper.SetDefault("ledger.backend", "file")
	viper.SetDefault("ledger.path", "processed_links.txt")
	viper.SetDefault("model.dir", "model")
	viper.SetDefault("sinks.console", true)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is tender-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only run and train need a config.
	if runCmd.CalledAs() == "" && trainCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
