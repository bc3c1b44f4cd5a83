// Package fraud implements the risk-scoring core: feature extraction from a
// transaction plus recent account history, and a weighted evidence model that
// produces an explainable score in [0, 1].
//
// Every indicator contributes an additive, non-negative amount only when its
// activation condition holds. The total is clamped to [0, 1] and mapped to a
// risk level through fixed cut points. Scoring is pure — no I/O, no clocks
// beyond the transaction's own timestamp — so it can run on any number of
// workers.
package fraud

import (
	"strings"
	"time"
)

// ModelVersion tags every ScoreResult so stored scores can be traced back to
// the weight table that produced them.
const ModelVersion = "v3.2.0"

// RiskLevel buckets a score. The enum values are part of the external
// contract and must round-trip through storage and transport unchanged.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Severity of a single reason code.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Location is a transaction's geographic origin.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	City    string  `json:"city,omitempty"`
}

// Transaction is a single payment event submitted for evaluation.
// Immutable once ingested.
type Transaction struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"accountId"`
	Amount           float64   `json:"amount"`
	Merchant         string    `json:"merchant"`
	Category         string    `json:"category"`
	Location         Location  `json:"location"`
	Timestamp        time.Time `json:"timestamp"`
	Device           string    `json:"device"`
	Browser          string    `json:"browser"`
	IsVPN            bool      `json:"isVPN"`
	IsTor            bool      `json:"isTor"`
	CVVMatch         bool      `json:"cvvMatch"`
	AVSMatch         bool      `json:"avsMatch"`
	PreviousDeclines int       `json:"previousDeclines"`
	AccountAge       int       `json:"accountAge"`
}

// FeatureVector is the derived, transaction-scoped signal set. Immutable once
// computed.
type FeatureVector struct {
	TransactionID        string  `json:"transactionId"`
	VelocityCount        int     `json:"velocityCount"`
	AvgAmount            float64 `json:"avgAmount"`
	AmountDelta          float64 `json:"amountDelta"`
	GeoDistanceKm        float64 `json:"geoDistanceKm"`
	IsNightTime          bool    `json:"isNightTime"`
	IsSuspiciousMerchant bool    `json:"isSuspiciousMerchant"`
	IsSuspiciousCategory bool    `json:"isSuspiciousCategory"`
	IsHighAmount         bool    `json:"isHighAmount"`
	IsVPN                bool    `json:"isVPN"`
	IsTor                bool    `json:"isTor"`
	CVVFail              bool    `json:"cvvFail"`
	AVSFail              bool    `json:"avsFail"`
	IsSuspiciousDevice   bool    `json:"isSuspiciousDevice"`
	CardTesting          bool    `json:"cardTesting"`
	IsNewAccount         bool    `json:"isNewAccount"`
}

// ScoreResult is the scorer's verdict on a transaction. Contributions record
// the pre-clamp amount each active indicator added, so the score is
// explainable after the fact.
type ScoreResult struct {
	TransactionID string             `json:"transactionId"`
	Score         float64            `json:"score"`
	Contributions map[string]float64 `json:"contributions"`
	ModelVersion  string             `json:"modelVersion"`
}

// ReasonCode is a structured, fixed-vocabulary explanation unit. The same
// feature vector always yields the same ordered set of reason codes.
type ReasonCode struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Explanation string   `json:"explanation"`
	Severity    Severity `json:"severity"`
	Impact      string   `json:"impact"`
}

// Patterns holds the thresholds and denylists the extractor and scorer
// evaluate against. Zero-value is not usable; start from DefaultPatterns.
type Patterns struct {
	VelocityThreshold    int
	VelocityWindow       time.Duration
	AmountThreshold      float64
	GeoDistanceThreshold float64
	SuspiciousMerchants  []string
	SuspiciousCategories []string
	DeviceFingerprints   []string
	NightTimeStart       int // hour, inclusive
	NightTimeEnd         int // hour, inclusive
}

// DefaultPatterns returns the canonical pattern set.
func DefaultPatterns() Patterns {
	return Patterns{
		VelocityThreshold:    5,
		VelocityWindow:       10 * time.Minute,
		AmountThreshold:      50000,
		GeoDistanceThreshold: 500,
		SuspiciousMerchants: []string{
			"UNKNOWN_MERCHANT",
			"HIGH_RISK_VENDOR",
			"CRYPTO_EXCHANGE",
			"OFFSHORE_CASINO",
		},
		SuspiciousCategories: []string{
			"GAMBLING",
			"CRYPTO",
			"WIRE_TRANSFER",
			"GIFT_CARDS",
		},
		DeviceFingerprints: []string{"EMULATOR", "ROOTED", "JAILBROKEN"},
		NightTimeStart:     23,
		NightTimeEnd:       5,
	}
}

// UnknownSentinel is substituted for missing device/browser fields so
// extraction never fails on partial input.
const UnknownSentinel = "Unknown"

// Normalize fills optional-field sentinels in place. Called once at the
// ingestion boundary before the transaction becomes immutable.
func (t *Transaction) Normalize() {
	if strings.TrimSpace(t.Device) == "" {
		t.Device = UnknownSentinel
	}
	if strings.TrimSpace(t.Browser) == "" {
		t.Browser = UnknownSentinel
	}
}

// RiskLevelFor maps a score to its bucket. Deterministic, monotonic step
// function: >0.75 CRITICAL, >0.55 HIGH, >0.35 MEDIUM, else LOW.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score > 0.75:
		return RiskCritical
	case score > 0.55:
		return RiskHigh
	case score > 0.35:
		return RiskMedium
	default:
		return RiskLow
	}
}
