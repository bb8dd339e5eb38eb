package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/ai"
	"github.com/spigell/tender-matcher/internal/tender"
	"github.com/spigell/tender-matcher/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength     = 200
	maxUserInstructionRunes = 500
	noneValue               = "none"
)

// PromptOverrides are optional operator preferences rendered into the prompt.
type PromptOverrides struct {
	ExtraCriteria     string
	DealBreakers      string
	CustomKeywords    string
	RegionConstraints string
	UserInstructions  string
}

type Reviewer struct {
	generator contentGenerator
	minScore  float64
	maxLogLen int
	overrides PromptOverrides
	logger    *zap.Logger
}

var _ ai.Reviewer = (*Reviewer)(nil)

func NewReviewer(generator contentGenerator, minScore float64, maxLogLength int, logger *zap.Logger) *Reviewer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reviewer{
		generator: generator,
		minScore:  minScore,
		maxLogLen: maxLogLength,
		logger:    logger,
	}
}

func (r *Reviewer) SetPromptOverrides(o PromptOverrides) {
	r.overrides = o
}

func (r *Reviewer) Evaluate(ctx context.Context, profile string, o *tender.Opportunity) (*ai.FitAssessment, error) {
	if strings.TrimSpace(profile) == "" {
		return nil, errors.New("company profile is required")
	}
	if o == nil {
		return nil, errors.New("opportunity is required")
	}

	payload, err := json.MarshalIndent(tenderPayload(o), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tender payload: %w", err)
	}

	system := buildPrompt(profile, r.overrides)

	r.logger.Debug("gemini generate content request",
		zap.String("tender_id", o.Key()),
		zap.String("model", r.generator.Model()),
		zap.Int("prompt_length", utf8.RuneCountInString(system)+len(payload)),
		zap.String("payload_preview", utils.TruncateForLog(string(payload), r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, system, string(payload))
	if err != nil {
		return nil, err
	}

	r.logger.Debug("gemini generate content response",
		zap.String("tender_id", o.Key()),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if r.minScore > 0 && assessment.Score < r.minScore {
		r.logger.Debug("set fit to false by score threshold",
			zap.String("tender_id", o.Key()),
			zap.Float64("score", assessment.Score),
			zap.Float64("threshold", r.minScore),
		)
		assessment.Fit = false
	}

	assessment.Raw = raw
	return assessment, nil
}

func tenderPayload(o *tender.Opportunity) map[string]any {
	payload := map[string]any{
		"title":  o.Title,
		"agency": o.Agency,
		"status": o.Status.Display(),
	}
	if o.Description != "" {
		payload["description"] = o.Description
	}
	if o.Category != "" {
		payload["category"] = o.Category
	}
	if len(o.Amounts) > 0 {
		amounts := make([]string, 0, len(o.Amounts))
		for _, a := range o.Amounts {
			amounts = append(amounts, a.String())
		}
		payload["amounts"] = amounts
	}
	if len(o.Classifications) > 0 {
		payload["classifications"] = o.Classifications
	}
	if !o.Dates.Closing.IsZero() {
		payload["closing"] = o.Dates.Closing.Format("2006-01-02")
	}
	return payload
}

func buildPrompt(profile string, o PromptOverrides) string {
	keywords := make([]string, 0)
	for _, kw := range strings.Split(o.CustomKeywords, ",") {
		if kw = sanitizeLine(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	replacer := strings.NewReplacer(
		"{{PROFILE}}", strings.TrimSpace(profile),
		"{{EXTRA_CRITERIA}}", orNone(sanitizeLine(o.ExtraCriteria)),
		"{{DEAL_BREAKERS}}", orNone(sanitizeLine(o.DealBreakers)),
		"{{CUSTOM_KEYWORDS}}", orNone(strings.Join(keywords, ", ")),
		"{{REGION_CONSTRAINTS}}", orNone(sanitizeLine(o.RegionConstraints)),
		"{{USER_INSTRUCTIONS}}", userInstructionsBlock(o.UserInstructions),
	)
	return replacer.Replace(promptTemplate)
}

// sanitizeLine folds whitespace and replaces square brackets so operator
// text cannot open a new prompt section.
func sanitizeLine(s string) string {
	s = strings.NewReplacer("[", "(", "]", ")").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func userInstructionsBlock(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxUserInstructionRunes {
		runes = runes[:maxUserInstructionRunes]
	}

	lines := make([]string, 0)
	for _, line := range strings.Split(string(runes), "\n") {
		if line = sanitizeLine(line); line != "" {
			lines = append(lines, "  - "+line)
		}
	}
	if len(lines) == 0 {
		return "  - " + noneValue
	}
	return strings.Join(lines, "\n")
}

func orNone(s string) string {
	if s == "" {
		return noneValue
	}
	return s
}

func parseResponse(raw string) (*ai.FitAssessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}

	return &ai.FitAssessment{
		Fit:    coerceBool(data["fit"]),
		Score:  score,
		Reason: coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
