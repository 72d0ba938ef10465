// Package analysis provides the data model and calibration engine for
// AI-generated article trust profiles.
package analysis

import (
	"encoding/json"
	"errors"
	"time"
)

// Mode identifies the AI invocation tier used for an analysis.
type Mode string

// Analysis modes. Moderate is the deeper, more expensive tier and is only
// granted when enough article text is available.
const (
	ModeLowCost  Mode = "low_cost"
	ModeModerate Mode = "moderate"
)

// Bias type categories cited by the AI.
const (
	BiasTypeFraming   = "framing"
	BiasTypeOmission  = "omission"
	BiasTypeLanguage  = "language"
	BiasTypeSelection = "selection"
	BiasTypeNone      = "ninguno"
)

// Political leaning categories. LeaningIndeterminate is forced by the
// calibration engine whenever the evidence does not support a verdict.
const (
	LeaningLeft          = "izquierda"
	LeaningRight         = "derecha"
	LeaningCenter        = "centro"
	LeaningIndeterminate = "indeterminada"
)

// Fact-check verdicts.
const (
	VerdictVerified             = "verificado"
	VerdictFalse                = "falso"
	VerdictMisleading           = "enganoso"
	VerdictUnverified           = "sin_verificar"
	VerdictInsufficientEvidence = "InsufficientEvidenceInArticle"
)

// Factuality status values reported by the AI.
const (
	FactualityDeterminable    = "determinable"
	FactualityNotDeterminable = "no_determinable"
)

// FactCheck holds the claims the AI extracted from the article and its
// verdict on them.
type FactCheck struct {
	Claims    []string `json:"claims"`
	Verdict   string   `json:"verdict"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// RawAnalysis is the untrusted output of a single AI invocation. Every
// field may be missing, out of range, or inconsistent; only the
// calibration engine turns it into something the rest of the system may
// rely on.
type RawAnalysis struct {
	Summary             string    `json:"summary"`
	BiasRaw             float64   `json:"bias_raw"`              // -10..+10
	BiasScore           float64   `json:"bias_score"`            // -10..+10
	BiasScoreNormalized float64   `json:"bias_score_normalized"` // 0..1
	BiasIndicators      []string  `json:"bias_indicators"`
	BiasType            string    `json:"bias_type"`
	BiasExplanation     string    `json:"bias_explanation,omitempty"`
	ClickbaitScore      int       `json:"clickbait_score"`     // 0..100
	ReliabilityScore    int       `json:"reliability_score"`   // 0..100
	TraceabilityScore   int       `json:"traceability_score"`  // 0..100
	Sentiment           string    `json:"sentiment"`           // positive|negative|neutral
	MainTopics          []string  `json:"main_topics"`
	FactCheck           FactCheck `json:"fact_check"`
	FactualityStatus    string    `json:"factuality_status"`
	EvidenceNeeded      []string  `json:"evidence_needed,omitempty"`
	ShouldEscalate      bool      `json:"should_escalate"`
	ArticleLeaning      string    `json:"article_leaning"`
	BiasLeaning         string    `json:"bias_leaning"`
	BiasComment         string    `json:"bias_comment,omitempty"`
	ReliabilityComment  string    `json:"reliability_comment,omitempty"`
}

// CalibratedAnalysis has the same shape as RawAnalysis but its fields are
// guaranteed to satisfy the calibration invariants regardless of what the
// AI produced. It is the only representation ever persisted or returned
// to callers.
type CalibratedAnalysis RawAnalysis

// EnvelopeSchemaVersion is the current version of the persisted analysis
// record. Envelopes with a different version are treated as stale and
// recomputed.
const EnvelopeSchemaVersion = 1

// ErrStaleEnvelope is returned when a stored analysis record cannot be
// used: either it fails to parse or it was written under a different
// schema version. Callers treat it as a cache miss but it is counted
// separately from "never analyzed".
var ErrStaleEnvelope = errors.New("stored analysis envelope is stale or corrupt")

// Envelope is the versioned record persisted for every calibrated
// analysis. ContentLength and Mode are stored so cached analyses can be
// recalibrated under the rule set active at read time.
type Envelope struct {
	SchemaVersion int                `json:"schema_version"`
	Analysis      CalibratedAnalysis `json:"analysis"`
	ContentLength int                `json:"content_length"`
	Mode          Mode               `json:"mode"`
	CalibratedAt  time.Time          `json:"calibrated_at"`
}

// EncodeEnvelope serializes an envelope for persistence.
func EncodeEnvelope(e Envelope) (string, error) {
	e.SchemaVersion = EnvelopeSchemaVersion
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeEnvelope parses a stored analysis record. It returns
// ErrStaleEnvelope when the record is corrupt or was written under a
// different schema version.
func DecodeEnvelope(raw string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Envelope{}, ErrStaleEnvelope
	}
	if e.SchemaVersion != EnvelopeSchemaVersion {
		return Envelope{}, ErrStaleEnvelope
	}
	return e, nil
}
