package fraud

import (
	"testing"
	"time"
)

func scoreTxn(t *testing.T, txn *Transaction, history []*Transaction, state AccountState) (ScoreResult, []ReasonCode) {
	t.Helper()
	p := DefaultPatterns()
	f := NewExtractor(p).Extract(txn, history, state)
	return NewScorer(p).Score(txn, f)
}

func hasReason(reasons []ReasonCode, code string) bool {
	for _, r := range reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}

func TestScoreBenignTransaction(t *testing.T) {
	txn := dayTxn()
	result, reasons := scoreTxn(t, txn, nil, AccountState{})

	if result.Score != 0 {
		t.Errorf("benign transaction score = %f, want 0 (contributions: %v)", result.Score, result.Contributions)
	}
	if lvl := RiskLevelFor(result.Score); lvl != RiskLow {
		t.Errorf("benign transaction level = %s, want LOW", lvl)
	}
	if len(reasons) != 0 {
		t.Errorf("benign transaction produced reasons: %v", reasons)
	}
	if result.ModelVersion != ModelVersion {
		t.Errorf("modelVersion = %q, want %q", result.ModelVersion, ModelVersion)
	}
}

func TestScoreStackedIndicatorsCritical(t *testing.T) {
	txn := &Transaction{
		ID:               "txn_hot",
		AccountID:        "acct_hot",
		Amount:           900,
		Merchant:         "HIGH_RISK_VENDOR",
		Category:         "WIRE_TRANSFER",
		Location:         nyc,
		Timestamp:        time.Date(2026, 3, 4, 2, 10, 0, 0, time.UTC),
		Device:           "rooted Pixel",
		IsTor:            true,
		CVVMatch:         false,
		AVSMatch:         false,
		PreviousDeclines: 4,
		AccountAge:       5,
	}
	result, reasons := scoreTxn(t, txn, nil, AccountState{})

	// merchant 0.15 + category 0.12 + night 0.08 + tor 0.10 + cvv 0.12 +
	// avs 0.08 + device 0.10 + cardTesting 0.12 + newAccount 0.07 = 0.94
	if result.Score < 0.7 {
		t.Errorf("stacked indicators score = %f, want >= 0.7 (contributions: %v)", result.Score, result.Contributions)
	}
	if lvl := RiskLevelFor(result.Score); lvl != RiskCritical {
		t.Errorf("level = %s, want CRITICAL", lvl)
	}
	for _, code := range []string{"HIGH_RISK_MERCHANT", "CVV_VERIFICATION_FAILED", "CARD_TESTING_PATTERN", "TOR_NETWORK_DETECTED"} {
		if !hasReason(reasons, code) {
			t.Errorf("missing reason %s in %v", code, reasons)
		}
	}
}

func TestScoreContributionsMatchActiveIndicators(t *testing.T) {
	txn := dayTxn()
	txn.IsVPN = true
	txn.CVVMatch = false
	result, _ := scoreTxn(t, txn, nil, AccountState{})

	if len(result.Contributions) != 2 {
		t.Fatalf("contributions = %v, want exactly vpn and cvv", result.Contributions)
	}
	if result.Contributions["isVPN"] != 0.05 {
		t.Errorf("isVPN contribution = %f, want 0.05", result.Contributions["isVPN"])
	}
	if result.Contributions["cvvFail"] != 0.12 {
		t.Errorf("cvvFail contribution = %f, want 0.12", result.Contributions["cvvFail"])
	}
	if result.Score != 0.17 {
		t.Errorf("score = %f, want 0.17", result.Score)
	}
}

func TestScoreVelocityContribution(t *testing.T) {
	p := DefaultPatterns()
	scorer := NewScorer(p)
	txn := dayTxn()

	// At the threshold: no contribution
	_, below := scorer.Score(txn, FeatureVector{VelocityCount: 5})
	if hasReason(below, "VELOCITY_HIGH") {
		t.Error("velocity at threshold should not activate")
	}

	// Above: scaled contribution (8/10 * 0.15 = 0.12)
	result, reasons := scorer.Score(txn, FeatureVector{VelocityCount: 8})
	if got := result.Contributions["velocityCount"]; got < 0.119 || got > 0.121 {
		t.Errorf("velocity contribution = %f, want 0.12", got)
	}
	if !hasReason(reasons, "VELOCITY_HIGH") {
		t.Error("missing VELOCITY_HIGH reason")
	}
}

func TestScoreScaledIndicatorsSaturate(t *testing.T) {
	p := DefaultPatterns()
	scorer := NewScorer(p)
	txn := dayTxn()

	result, _ := scorer.Score(txn, FeatureVector{
		AmountDelta:   200000, // way past the 50000 cap
		GeoDistanceKm: 9000,   // way past the 1000 km cap
	})
	if got := result.Contributions["amountDelta"]; got != 0.10 {
		t.Errorf("amountDelta contribution = %f, want capped at 0.10", got)
	}
	if got := result.Contributions["geoDistance"]; got != 0.18 {
		t.Errorf("geoDistance contribution = %f, want capped at 0.18", got)
	}
}

func TestScoreClampedAndRounded(t *testing.T) {
	p := DefaultPatterns()
	scorer := NewScorer(p)
	txn := dayTxn()

	// Everything active: raw sum exceeds 1.0
	result, _ := scorer.Score(txn, FeatureVector{
		VelocityCount:        20,
		AmountDelta:          100000,
		GeoDistanceKm:        5000,
		IsNightTime:          true,
		IsSuspiciousMerchant: true,
		IsSuspiciousCategory: true,
		IsHighAmount:         true,
		IsVPN:                true,
		IsTor:                true,
		CVVFail:              true,
		AVSFail:              true,
		IsSuspiciousDevice:   true,
		CardTesting:          true,
		IsNewAccount:         true,
	})
	if result.Score != 1.0 {
		t.Errorf("saturated score = %f, want clamped to 1.0", result.Score)
	}

	// A single scaled contribution rounds to 3 decimals
	result2, _ := scorer.Score(txn, FeatureVector{GeoDistanceKm: 567})
	if result2.Score != 0.102 {
		t.Errorf("score = %f, want 0.102 (567/1000*0.18 rounded)", result2.Score)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	txn := dayTxn()
	txn.IsTor = true
	txn.CVVMatch = false
	txn.PreviousDeclines = 5

	first, firstReasons := scoreTxn(t, txn, nil, AccountState{})
	for i := 0; i < 10; i++ {
		result, reasons := scoreTxn(t, txn, nil, AccountState{})
		if result.Score != first.Score {
			t.Fatalf("score varies across runs: %f vs %f", result.Score, first.Score)
		}
		if len(reasons) != len(firstReasons) {
			t.Fatalf("reason count varies: %d vs %d", len(reasons), len(firstReasons))
		}
		for j := range reasons {
			if reasons[j].Code != firstReasons[j].Code {
				t.Fatalf("reason order varies at %d: %s vs %s", j, reasons[j].Code, firstReasons[j].Code)
			}
		}
	}
}

func TestSpendingAnomalyReason(t *testing.T) {
	p := DefaultPatterns()
	scorer := NewScorer(p)
	txn := dayTxn()

	_, reasons := scorer.Score(txn, FeatureVector{AmountDelta: 25000, AvgAmount: 500})
	if !hasReason(reasons, "SPENDING_PATTERN_ANOMALY") {
		t.Errorf("delta 25000 should produce SPENDING_PATTERN_ANOMALY, got %v", reasons)
	}

	_, reasons = scorer.Score(txn, FeatureVector{AmountDelta: 15000})
	if hasReason(reasons, "SPENDING_PATTERN_ANOMALY") {
		t.Error("delta 15000 should not produce SPENDING_PATTERN_ANOMALY")
	}
}

func TestRiskLevelCutPoints(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLow},
		{0.35, RiskLow},
		{0.351, RiskMedium},
		{0.55, RiskMedium},
		{0.551, RiskHigh},
		{0.75, RiskHigh},
		{0.751, RiskCritical},
		{1.0, RiskCritical},
	}
	for _, tc := range cases {
		if got := RiskLevelFor(tc.score); got != tc.want {
			t.Errorf("RiskLevelFor(%f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
