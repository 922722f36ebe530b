package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentiment is the predicted direction of a catalyst.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// ParseSentiment normalizes model output; anything unrecognized is NEUTRAL.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToUpper(strings.TrimSpace(s))) {
	case SentimentBullish:
		return SentimentBullish
	case SentimentBearish:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}

// Direction is +1 for BULLISH and -1 otherwise.
func (s Sentiment) Direction() int {
	if s == SentimentBullish {
		return 1
	}
	return -1
}

// ImpactType classifies what kind of shock a headline represents.
type ImpactType string

const (
	ImpactSupplyShock ImpactType = "SUPPLY_SHOCK"
	ImpactDemandShock ImpactType = "DEMAND_SHOCK"
	ImpactRegulatory  ImpactType = "REGULATORY"
	ImpactNoise       ImpactType = "NOISE"
)

// ParseImpactType normalizes model output; anything unrecognized is NOISE.
func ParseImpactType(s string) ImpactType {
	switch ImpactType(strings.ToUpper(strings.TrimSpace(s))) {
	case ImpactSupplyShock:
		return ImpactSupplyShock
	case ImpactDemandShock:
		return ImpactDemandShock
	case ImpactRegulatory:
		return ImpactRegulatory
	default:
		return ImpactNoise
	}
}

// SignalStatus tracks a catalyst signal through its lifecycle.
type SignalStatus string

const (
	SignalActive            SignalStatus = "active"
	SignalPendingMarketOpen SignalStatus = "pending_market_open"
	SignalActed             SignalStatus = "acted"
	SignalExpired           SignalStatus = "expired"
	SignalDismissed         SignalStatus = "dismissed"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var signalTransitions = map[SignalStatus][]SignalStatus{
	SignalPendingMarketOpen: {SignalActive, SignalExpired, SignalDismissed},
	SignalActive:            {SignalActed, SignalExpired, SignalDismissed},
}

// CanTransitionTo reports whether moving from s to next is allowed.
// acted, expired and dismissed are terminal.
func (s SignalStatus) CanTransitionTo(next SignalStatus) bool {
	for _, allowed := range signalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when the move is not allowed.
func (s SignalStatus) ValidateTransition(next SignalStatus) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

// NewsItem is one raw headline as delivered by a news source.
type NewsItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Asset identifies what a batch of headlines is about.
type Asset struct {
	Keyword      string `json:"keyword" validate:"required"`
	Symbol       string `json:"symbol" validate:"required"`
	GlobalTicker string `json:"global_ticker,omitempty"`
	LocalTicker  string `json:"local_ticker,omitempty"`
}

// BatchResult is the classifier's verdict on a batch of headlines for one asset.
type BatchResult struct {
	IsCatalyst        bool       `json:"is_catalyst"`
	Sentiment         Sentiment  `json:"sentiment"`
	ImpactType        ImpactType `json:"impact_type"`
	Confidence        int        `json:"confidence"`
	KeyHeadline       string     `json:"key_headline"`
	Summary           string     `json:"summary"`
	Reasoning         string     `json:"reasoning"`
	HeadlinesAnalyzed int        `json:"headlines_analyzed"`
	// FailureReason is set when the result is a safe default rather than a model verdict.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Failed reports whether the result is a fallback.
func (r BatchResult) Failed() bool {
	return r.FailureReason != ""
}

// CatalystSignal is a classified headline batch persisted for review and gating.
type CatalystSignal struct {
	ID          int64        `json:"id" db:"id"`
	Symbol      string       `json:"symbol" db:"symbol"`
	Keyword     string       `json:"keyword" db:"keyword"`
	Headline    string       `json:"headline" db:"headline"`
	Source      string       `json:"source" db:"source"`
	PublishedAt time.Time    `json:"published_at" db:"published_at"`
	Sentiment   Sentiment    `json:"sentiment" db:"sentiment"`
	ImpactType  ImpactType   `json:"impact_type" db:"impact_type"`
	Confidence  int          `json:"confidence" db:"confidence"`
	IsCatalyst  bool         `json:"is_catalyst" db:"is_catalyst"`
	Summary     string       `json:"summary" db:"summary"`
	Reasoning   string       `json:"reasoning" db:"reasoning"`
	Status      SignalStatus `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// NewCatalystSignal builds a signal from a batch result. NOISE never counts as a catalyst.
func NewCatalystSignal(asset Asset, result BatchResult, source string, publishedAt time.Time, status SignalStatus) CatalystSignal {
	isCatalyst := result.IsCatalyst && result.ImpactType != ImpactNoise
	return CatalystSignal{
		Symbol:      asset.Symbol,
		Keyword:     asset.Keyword,
		Headline:    result.KeyHeadline,
		Source:      source,
		PublishedAt: publishedAt,
		Sentiment:   result.Sentiment,
		ImpactType:  result.ImpactType,
		Confidence:  ClampConfidence(result.Confidence),
		IsCatalyst:  isCatalyst,
		Summary:     result.Summary,
		Reasoning:   result.Reasoning,
		Status:      status,
	}
}

// ClampConfidence forces a model confidence into [1, 10].
func ClampConfidence(c int) int {
	if c < 1 {
		return 1
	}
	if c > 10 {
		return 10
	}
	return c
}
