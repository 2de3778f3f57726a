package internaldefs

import (
	"math"
	"strconv"

	goGate "github.com/MrEthical07/goGate"
)

// Series maps one counter to the label value it is exported under. Value
// is empty for unlabelled families.
type Series struct {
	ID    goGate.MetricID
	Value string
}

// Family is one exported counter family.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// Latency is one exported latency histogram.
type Latency struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// Families lists every counter family in export order. Each non-histogram
// MetricID appears in exactly one series.
var Families = []Family{
	{
		Name:  "gogate_decisions_total",
		Help:  "Gate decisions by outcome.",
		Label: "decision",
		Series: []Series{
			{ID: goGate.MetricDecisionContinue, Value: goGate.Continue.String()},
			{ID: goGate.MetricDecisionLogin, Value: goGate.RedirectToLogin.String()},
			{ID: goGate.MetricDecisionForbidden, Value: goGate.RedirectToForbidden.String()},
		},
	},
	{
		Name:   "gogate_credential_rejections_total",
		Help:   "Tokens that failed signature, expiry or format checks.",
		Series: []Series{{ID: goGate.MetricCredentialInvalid}},
	},
	{
		Name:  "gogate_session_store_events_total",
		Help:  "Session lookups retried or abandoned after the retry budget.",
		Label: "event",
		Series: []Series{
			{ID: goGate.MetricStoreRetry, Value: "retry"},
			{ID: goGate.MetricStoreUnavailable, Value: "exhausted"},
		},
	},
	{
		Name:   "gogate_spoofed_identity_headers_total",
		Help:   "Inbound requests that carried x-user-id or x-user-role.",
		Series: []Series{{ID: goGate.MetricSpoofedHeaderStripped}},
	},
	{
		Name:   "gogate_role_hint_mismatches_total",
		Help:   "user_role cookies disagreeing with the signed role.",
		Series: []Series{{ID: goGate.MetricRoleCookieMismatch}},
	},
	{
		Name:  "gogate_logins_total",
		Help:  "Login attempts by result.",
		Label: "result",
		Series: []Series{
			{ID: goGate.MetricLoginSuccess, Value: "success"},
			{ID: goGate.MetricLoginFailure, Value: "invalid_credentials"},
			{ID: goGate.MetricLoginRateLimited, Value: "rate_limited"},
			{ID: goGate.MetricLoginUnavailable, Value: "unavailable"},
		},
	},
	{
		Name:   "gogate_logouts_total",
		Help:   "Sessions ended by logout.",
		Series: []Series{{ID: goGate.MetricLogout}},
	},
}

// Latencies lists every latency histogram in export order.
var Latencies = []Latency{
	{ID: goGate.MetricDecideLatency, Name: "gogate_decision_duration_seconds", Help: "Time to reach a gate decision."},
	{ID: goGate.MetricLoginLatency, Name: "gogate_login_duration_seconds", Help: "Login time, password hashing included."},
}

// BucketBounds are the inclusive upper bounds, in seconds, of the buckets
// kept by goGate.Metrics.
var BucketBounds = [8]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, math.Inf(1)}

// FormatBound spells a bound the way the le label expects it.
func FormatBound(b float64) string {
	if math.IsInf(b, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(b, 'g', -1, 64)
}

// Cumulative turns per-bucket counts into running totals. Missing buckets
// count as zero and extra ones are ignored.
func Cumulative(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
