package fraud

import (
	"fmt"
	"math"
)

// Indicator weights. Single source of truth for the evidence model — scaled
// indicators (velocity, amount delta, geo distance) multiply these, boolean
// indicators add them directly.
const (
	weightVelocity     = 0.15
	weightAmountDelta  = 0.10
	weightGeoDistance  = 0.18
	weightNightTime    = 0.08
	weightMerchant     = 0.15
	weightCategory     = 0.12
	weightHighAmount   = 0.08
	weightVPN          = 0.05
	weightTor          = 0.10
	weightCVVFail      = 0.12
	weightAVSFail      = 0.08
	weightDevice       = 0.10
	weightCardTesting  = 0.12
	weightNewAccount   = 0.07
)

// Secondary activation thresholds for the scaled indicators.
const (
	amountDeltaFloor   = 10000 // below this, delta contributes nothing
	amountDeltaCeil    = 50000 // delta at/above this contributes the full weight
	geoDistanceCeil    = 1000  // km at/above this contributes the full weight
	velocityScaleCount = 10    // velocity contribution saturates around this count
	anomalyDeltaFloor  = 20000 // SPENDING_PATTERN_ANOMALY reason threshold
)

// Scorer evaluates a feature vector against the weighted evidence model.
type Scorer struct {
	patterns Patterns
}

// NewScorer creates a scorer with the given pattern set (thresholds shared
// with the extractor).
func NewScorer(patterns Patterns) *Scorer {
	return &Scorer{patterns: patterns}
}

// Score computes the clamped [0,1] score with per-indicator contributions,
// plus the ordered reason codes for the active indicators.
func (s *Scorer) Score(txn *Transaction, f FeatureVector) (ScoreResult, []ReasonCode) {
	contributions := make(map[string]float64)
	var score float64

	add := func(name string, c float64) {
		score += c
		contributions[name] = c
	}

	if f.VelocityCount > s.patterns.VelocityThreshold {
		add("velocityCount", float64(f.VelocityCount)/velocityScaleCount*weightVelocity)
	}
	if f.AmountDelta > amountDeltaFloor {
		add("amountDelta", math.Min(f.AmountDelta/amountDeltaCeil, 1)*weightAmountDelta)
	}
	if f.GeoDistanceKm > s.patterns.GeoDistanceThreshold {
		add("geoDistance", math.Min(f.GeoDistanceKm/geoDistanceCeil, 1)*weightGeoDistance)
	}
	if f.IsNightTime {
		add("isNightTime", weightNightTime)
	}
	if f.IsSuspiciousMerchant {
		add("isSuspiciousMerchant", weightMerchant)
	}
	if f.IsSuspiciousCategory {
		add("isSuspiciousCategory", weightCategory)
	}
	if f.IsHighAmount {
		add("isHighAmount", weightHighAmount)
	}
	if f.IsVPN {
		add("isVPN", weightVPN)
	}
	if f.IsTor {
		add("isTor", weightTor)
	}
	if f.CVVFail {
		add("cvvFail", weightCVVFail)
	}
	if f.AVSFail {
		add("avsFail", weightAVSFail)
	}
	if f.IsSuspiciousDevice {
		add("suspiciousDevice", weightDevice)
	}
	if f.CardTesting {
		add("cardTesting", weightCardTesting)
	}
	if f.IsNewAccount {
		add("newAccount", weightNewAccount)
	}

	// Clamp and round to 3 decimals.
	score = math.Min(score, 1.0)
	score = math.Round(score*1000) / 1000

	result := ScoreResult{
		TransactionID: txn.ID,
		Score:         score,
		Contributions: contributions,
		ModelVersion:  ModelVersion,
	}

	return result, s.reasons(txn, f)
}

// reasons generates the ordered reason-code set for the active indicators.
// The order is fixed so the same feature vector always yields the same
// sequence.
func (s *Scorer) reasons(txn *Transaction, f FeatureVector) []ReasonCode {
	var reasons []ReasonCode

	if f.VelocityCount > s.patterns.VelocityThreshold {
		reasons = append(reasons, ReasonCode{
			Code:    "VELOCITY_HIGH",
			Message: fmt.Sprintf("%d transactions in %d minutes (threshold: %d)", f.VelocityCount, int(s.patterns.VelocityWindow.Minutes()), s.patterns.VelocityThreshold),
			Explanation: fmt.Sprintf(
				"Abnormal transaction frequency detected. This account made %d transactions within the velocity window, exceeding normal patterns by %d. Such rapid activity often indicates card testing or compromised credentials.",
				f.VelocityCount, f.VelocityCount-s.patterns.VelocityThreshold),
			Severity: SeverityHigh,
			Impact:   "Critical",
		})
	}

	if f.GeoDistanceKm > s.patterns.GeoDistanceThreshold {
		reasons = append(reasons, ReasonCode{
			Code:    "IMPOSSIBLE_TRAVEL",
			Message: fmt.Sprintf("%.0f km impossible travel distance", f.GeoDistanceKm),
			Explanation: fmt.Sprintf(
				"Transaction location is %.0f kilometers from the previous transaction. The time gap makes this travel physically impossible, indicating potential card cloning or account takeover.",
				f.GeoDistanceKm),
			Severity: SeverityHigh,
			Impact:   "Critical",
		})
	}

	if f.CVVFail {
		reasons = append(reasons, ReasonCode{
			Code:        "CVV_VERIFICATION_FAILED",
			Message:     "CVV verification failed",
			Explanation: "The Card Verification Value (CVV) provided does not match bank records. This is a strong indicator that the physical card is not present and the transaction may be using stolen card details.",
			Severity:    SeverityHigh,
			Impact:      "Critical",
		})
	}

	if f.AVSFail {
		reasons = append(reasons, ReasonCode{
			Code:        "ADDRESS_VERIFICATION_FAILED",
			Message:     "AVS (Address Verification System) mismatch",
			Explanation: "The billing address provided does not match the address on file with the card issuer. This suggests the cardholder information may be incomplete or stolen.",
			Severity:    SeverityMedium,
			Impact:      "High",
		})
	}

	if f.CardTesting {
		reasons = append(reasons, ReasonCode{
			Code:    "CARD_TESTING_PATTERN",
			Message: fmt.Sprintf("%d previous declined attempts", txn.PreviousDeclines),
			Explanation: fmt.Sprintf(
				"This card has been declined %d times recently. Multiple decline patterns often indicate fraudsters testing stolen card numbers to find valid ones.",
				txn.PreviousDeclines),
			Severity: SeverityHigh,
			Impact:   "Critical",
		})
	}

	if f.IsTor {
		reasons = append(reasons, ReasonCode{
			Code:        "TOR_NETWORK_DETECTED",
			Message:     "Transaction via TOR network",
			Explanation: "The transaction originated from the TOR anonymity network. While legitimate users may use TOR, it is frequently used by fraudsters to mask their real location and identity.",
			Severity:    SeverityHigh,
			Impact:      "Critical",
		})
	}

	if f.IsVPN {
		reasons = append(reasons, ReasonCode{
			Code:        "VPN_PROXY_DETECTED",
			Message:     "VPN or proxy detected",
			Explanation: "The transaction came through a VPN or proxy server. This masks the true origin of the transaction and is a common technique used in fraudulent activities.",
			Severity:    SeverityMedium,
			Impact:      "Medium",
		})
	}

	if f.IsSuspiciousDevice {
		reasons = append(reasons, ReasonCode{
			Code:    "SUSPICIOUS_DEVICE",
			Message: "Emulator or rooted device detected",
			Explanation: fmt.Sprintf(
				"Device fingerprinting indicates an emulator, rooted, or jailbroken device (%s). These modified devices are commonly used by fraudsters to bypass security controls.",
				txn.Device),
			Severity: SeverityHigh,
			Impact:   "Critical",
		})
	}

	if f.IsHighAmount {
		reasons = append(reasons, ReasonCode{
			Code:    "UNUSUAL_TRANSACTION_AMOUNT",
			Message: fmt.Sprintf("High amount: %.0f exceeds threshold", txn.Amount),
			Explanation: fmt.Sprintf(
				"Transaction amount significantly exceeds the normal threshold of %.0f. Large atypical transactions often indicate account takeover or fraudulent purchases.",
				s.patterns.AmountThreshold),
			Severity: SeverityMedium,
			Impact:   "High",
		})
	}

	if f.IsNightTime {
		reasons = append(reasons, ReasonCode{
			Code:        "UNUSUAL_TRANSACTION_TIME",
			Message:     "Late night transaction (11 PM - 5 AM)",
			Explanation: "Transaction occurred during unusual hours when legitimate cardholders are typically inactive. Fraudsters often operate during these hours to delay detection.",
			Severity:    SeverityLow,
			Impact:      "Low",
		})
	}

	if f.IsSuspiciousMerchant {
		reasons = append(reasons, ReasonCode{
			Code:    "HIGH_RISK_MERCHANT",
			Message: fmt.Sprintf("High-risk merchant: %s", txn.Merchant),
			Explanation: fmt.Sprintf(
				"The merchant %q is flagged as high-risk due to historical fraud patterns, unusual business practices, or regulatory concerns. Transactions with such merchants require enhanced scrutiny.",
				txn.Merchant),
			Severity: SeverityHigh,
			Impact:   "Critical",
		})
	}

	if f.IsSuspiciousCategory {
		reasons = append(reasons, ReasonCode{
			Code:    "HIGH_RISK_MERCHANT_CATEGORY",
			Message: fmt.Sprintf("High-risk category: %s", txn.Category),
			Explanation: fmt.Sprintf(
				"Transaction category %q has statistically higher fraud rates. Categories like gambling, cryptocurrency, wire transfers, and gift cards are frequently targeted by fraudsters.",
				txn.Category),
			Severity: SeverityMedium,
			Impact:   "Medium",
		})
	}

	if f.IsNewAccount {
		reasons = append(reasons, ReasonCode{
			Code:    "NEW_ACCOUNT_RISK",
			Message: fmt.Sprintf("New account (%d days old)", txn.AccountAge),
			Explanation: fmt.Sprintf(
				"Account is only %d days old. Newly created accounts have higher fraud rates as fraudsters often create fresh accounts using stolen identities to avoid detection.",
				txn.AccountAge),
			Severity: SeverityMedium,
			Impact:   "Medium",
		})
	}

	if f.AmountDelta > anomalyDeltaFloor {
		reasons = append(reasons, ReasonCode{
			Code:    "SPENDING_PATTERN_ANOMALY",
			Message: fmt.Sprintf("%.0f deviation from normal spending", f.AmountDelta),
			Explanation: fmt.Sprintf(
				"Transaction deviates by %.0f from the historical average of %.0f. Sudden spending pattern changes often indicate account compromise.",
				f.AmountDelta, f.AvgAmount),
			Severity: SeverityMedium,
			Impact:   "High",
		})
	}

	return reasons
}
