package catalyst

import (
	"context"
	"fmt"
	"math"

	"github.com/irfndi/catalyst-ai-go/internal/llm"
	"github.com/irfndi/catalyst-ai-go/internal/logging"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const maxLoggedOutput = 500

// Classifier asks a language model whether a batch of headlines is a catalyst.
type Classifier struct {
	client llm.LanguageModelClient
	logger *logrus.Logger
}

func NewClassifier(client llm.LanguageModelClient, logger *logrus.Logger) *Classifier {
	return &Classifier{client: client, logger: logger}
}

// AnalyzeBatch classifies all headlines for one asset in a single model call.
// It never returns an error: transport and parse failures produce a
// NOISE/NEUTRAL result with confidence 0 and FailureReason set.
func (c *Classifier) AnalyzeBatch(ctx context.Context, items []models.NewsItem, asset models.Asset) models.BatchResult {
	if len(items) == 0 {
		result := defaultResult(0)
		result.Summary = "no headlines to analyze"
		return result
	}

	ctx, span := telemetry.StartSpan(ctx, "catalyst.AnalyzeBatch",
		attribute.String("asset.keyword", asset.Keyword),
		attribute.Int("headlines", len(items)),
	)
	defer span.End()

	log := c.logger.WithFields(logrus.Fields{
		"component": "classifier",
		"keyword":   asset.Keyword,
		"symbol":    asset.Symbol,
		"headlines": len(items),
	})

	raw, err := c.client.Generate(ctx, BuildClassificationPrompt(asset, items))
	if err != nil {
		telemetry.RecordError(span, err)
		log.WithError(err).Warn("Classification call failed, using safe default")
		result := defaultResult(len(items))
		result.FailureReason = fmt.Sprintf("llm call failed: %v", err)
		return result
	}

	result, err := ParseBatchResult(raw, items)
	if err != nil {
		telemetry.RecordError(span, err)
		log.WithFields(logrus.Fields{
			"error":      err.Error(),
			"raw_output": logging.Truncate(raw, maxLoggedOutput),
		}).Warn("Unparseable classifier output, using safe default")
		fallback := defaultResult(len(items))
		fallback.FailureReason = fmt.Sprintf("unparseable model output: %v", err)
		return fallback
	}

	span.SetAttributes(
		attribute.Bool("is_catalyst", result.IsCatalyst),
		attribute.String("sentiment", string(result.Sentiment)),
		attribute.Int("confidence", result.Confidence),
	)
	log.WithFields(logrus.Fields{
		"is_catalyst": result.IsCatalyst,
		"sentiment":   result.Sentiment,
		"impact_type": result.ImpactType,
		"confidence":  result.Confidence,
	}).Info("Headlines classified")

	return result
}

// ParseBatchResult decodes model output defensively. Confidence is clamped to
// [1, 10] and NOISE forces IsCatalyst to false.
func ParseBatchResult(raw string, items []models.NewsItem) (models.BatchResult, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return models.BatchResult{}, err
	}

	result := models.BatchResult{
		IsCatalyst:        pickBool(fields, "is_catalyst", "isCatalyst"),
		Sentiment:         models.ParseSentiment(pickString(fields, "sentiment")),
		ImpactType:        models.ParseImpactType(pickString(fields, "impact_type", "impactType")),
		KeyHeadline:       pickString(fields, "key_headline", "keyHeadline"),
		Summary:           pickString(fields, "summary"),
		Reasoning:         pickString(fields, "reasoning"),
		HeadlinesAnalyzed: len(items),
	}

	confidence := 1
	if n, ok := pickNumber(fields, "confidence"); ok {
		confidence = clampRounded(n)
	}
	result.Confidence = confidence

	if result.ImpactType == models.ImpactNoise {
		result.IsCatalyst = false
	}
	if result.KeyHeadline == "" && len(items) > 0 {
		result.KeyHeadline = items[0].Title
	}

	return result, nil
}

func clampRounded(n float64) int {
	if n >= 10 {
		return 10
	}
	if n <= 1 {
		return 1
	}
	return models.ClampConfidence(int(math.Round(n)))
}

func defaultResult(analyzed int) models.BatchResult {
	return models.BatchResult{
		IsCatalyst:        false,
		Sentiment:         models.SentimentNeutral,
		ImpactType:        models.ImpactNoise,
		Confidence:        0,
		HeadlinesAnalyzed: analyzed,
	}
}
