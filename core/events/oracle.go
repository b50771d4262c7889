package events

import (
	"strconv"
	"strings"
)

// TypeRateSnapshot is emitted when the oracle records a new median.
const TypeRateSnapshot = "oracle.rate_snapshot"

// RateSnapshot captures an aggregated pair rate.
type RateSnapshot struct {
	Base      string
	Quote     string
	Median    string
	Feeders   []string
	ProofID   string
	Timestamp int64
}

// EventType implements Event.
func (RateSnapshot) EventType() string { return TypeRateSnapshot }

// Attributes implements Event.
func (e RateSnapshot) Attributes() map[string]string {
	return map[string]string{
		"pair":      normalizeAsset(e.Base) + "/" + normalizeAsset(e.Quote),
		"median":    e.Median,
		"feeders":   strings.Join(e.Feeders, ","),
		"proofId":   e.ProofID,
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
}
