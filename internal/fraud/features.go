package fraud

import (
	"math"
	"strings"
	"time"
)

// earthRadiusKm for haversine distance.
const earthRadiusKm = 6371

// AccountState is the slice of per-account rolling state the extractor needs:
// the last known location, if any. Supplied by the caller from the profile
// store — the extractor itself does no I/O.
type AccountState struct {
	LastLocation *Location
	LastSeen     time.Time
}

// Extractor turns a transaction plus recent account history into a
// FeatureVector. Pure function over its inputs; the caller is responsible for
// supplying correctly-windowed history (prior transactions for the same
// account within Patterns.VelocityWindow of the transaction's timestamp).
type Extractor struct {
	patterns Patterns
}

// NewExtractor creates a feature extractor with the given pattern set.
func NewExtractor(patterns Patterns) *Extractor {
	return &Extractor{patterns: patterns}
}

// Extract computes the feature vector for txn.
//
// Edge cases, by contract:
//   - empty history: avgAmount = txn.Amount, so amountDelta = 0 for an
//     account's first transaction
//   - no prior location: geoDistanceKm = 0 regardless of txn location
func (e *Extractor) Extract(txn *Transaction, history []*Transaction, state AccountState) FeatureVector {
	velocityCount := len(history)

	avgAmount := txn.Amount
	if velocityCount > 0 {
		var sum float64
		for _, h := range history {
			sum += h.Amount
		}
		avgAmount = sum / float64(velocityCount)
	}
	amountDelta := math.Abs(txn.Amount - avgAmount)

	var geoDistance float64
	if state.LastLocation != nil {
		geoDistance = HaversineKm(*state.LastLocation, txn.Location)
	}

	hour := txn.Timestamp.Hour()
	isNight := hour >= e.patterns.NightTimeStart || hour <= e.patterns.NightTimeEnd

	device := txn.Device
	if strings.TrimSpace(device) == "" {
		device = UnknownSentinel
	}

	return FeatureVector{
		TransactionID:        txn.ID,
		VelocityCount:        velocityCount,
		AvgAmount:            math.Round(avgAmount),
		AmountDelta:          math.Round(amountDelta),
		GeoDistanceKm:        math.Round(geoDistance),
		IsNightTime:          isNight,
		IsSuspiciousMerchant: contains(e.patterns.SuspiciousMerchants, txn.Merchant),
		IsSuspiciousCategory: contains(e.patterns.SuspiciousCategories, txn.Category),
		IsHighAmount:         txn.Amount > e.patterns.AmountThreshold,
		IsVPN:                txn.IsVPN,
		IsTor:                txn.IsTor,
		CVVFail:              !txn.CVVMatch,
		AVSFail:              !txn.AVSMatch,
		IsSuspiciousDevice:   e.suspiciousDevice(device),
		CardTesting:          txn.PreviousDeclines >= 3,
		IsNewAccount:         txn.AccountAge < 30,
	}
}

// suspiciousDevice reports whether the device string contains any known
// fingerprint (case-insensitive substring match).
func (e *Extractor) suspiciousDevice(device string) bool {
	upper := strings.ToUpper(device)
	for _, fp := range e.patterns.DeviceFingerprints {
		if strings.Contains(upper, fp) {
			return true
		}
	}
	return false
}

// HaversineKm returns the great-circle distance between two points in
// kilometers. Symmetric, zero for identical coordinates, never negative.
func HaversineKm(a, b Location) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	d := 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	if d < 0 {
		return 0
	}
	return d
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
