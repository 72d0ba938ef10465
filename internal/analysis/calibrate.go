package analysis

import (
	"strings"
)

// Evidence-length tiers for the reliability/traceability ceilings.
// Reliability and traceability claims about a topic require enough source
// text to justify them; the AI cannot verify citations it never saw.
const (
	// ShortEvidenceLength is the tier below which the strictest ceilings apply.
	ShortEvidenceLength = 300
	// SufficientEvidenceLength is the tier at and above which no additional
	// ceiling applies. It is also the minimum length for moderate mode.
	SufficientEvidenceLength = 800
)

// Ceilings applied per evidence tier.
const (
	shortReliabilityCeiling    = 45
	shortTraceabilityCeiling   = 30
	partialReliabilityCeiling  = 55
	partialTraceabilityCeiling = 40
)

// MinBiasIndicators is the number of distinct cited textual signals
// required before a bias verdict is trusted. Fewer than this is treated
// as noise, not signal.
const MinBiasIndicators = 3

// maxEvidenceNeededEntries bounds how many evidence-needed entries are
// folded into the synthesized reliability comment.
const maxEvidenceNeededEntries = 2

// Fixed phrases used when the engine overrides AI-provided text.
const (
	NeutralLeaningComment = "Evidencia insuficiente para determinar una inclinacion politica con fiabilidad."

	InsufficientBiasEvidence = "Menos de tres indicadores textuales citados; la senal de sesgo se descarta por evidencia insuficiente."

	NotVerifiablePhrase = "No verificable con fuentes internas."
)

// absolutistMarkers are absolute/superlative phrasings that, without an
// attributable source, route an article to stricter downstream review.
var absolutistMarkers = []string{
	"siempre",
	"nunca",
	"jamas",
	"jamás",
	"100%",
	"definitivo",
	"definitivamente",
	"totalmente",
	"absolutamente",
	"garantizado",
	"sin duda",
	"todos saben",
	"es un hecho",
}

// attributionMarkers indicate the surrounding claim is sourced.
var attributionMarkers = []string{
	"segun",
	"según",
	"de acuerdo con",
	"cito",
	"citó",
	"afirmo",
	"afirmó",
	"declaro",
	"declaró",
	"fuente",
	"informe de",
	"estudio de",
}

// Rule names reported to metrics.
const (
	RuleEvidenceCeiling    = "evidence_ceiling"
	RuleForcedEscalation   = "forced_escalation"
	RuleLeaningNeutralized = "leaning_neutralized"
	RuleBiasInsufficient   = "bias_insufficient"
	RuleFactCheckEmpty     = "factcheck_empty"
	RuleReliabilityComment = "reliability_comment"
)

// Calibrate deterministically degrades and clamps a raw AI analysis so
// that low-evidence articles cannot receive artificially high trust
// scores. text is the article text the AI analyzed; length is the
// evidence length, which is 0 when the resolver fell back to
// title+description. Calibrate never fails: malformed or missing raw
// fields take the most conservative branch of the relevant rule.
//
// It is a pure function: calibrating an already-calibrated analysis with
// the same inputs produces an identical result, so it runs on every read
// path, cached or fresh.
func Calibrate(raw RawAnalysis, text string, length int, mode Mode) CalibratedAnalysis {
	out, _ := calibrate(raw, text, length, mode)
	return out
}

// calibrate applies the rules in order and reports which fired.
func calibrate(raw RawAnalysis, text string, length int, mode Mode) (CalibratedAnalysis, []string) {
	out := CalibratedAnalysis(raw)
	var applied []string

	sanitize(&out)

	// Rule 1: evidence-proportional ceilings.
	switch {
	case length < ShortEvidenceLength:
		capped := capScore(&out.ReliabilityScore, shortReliabilityCeiling)
		capped = capScore(&out.TraceabilityScore, shortTraceabilityCeiling) || capped
		if capped {
			applied = append(applied, RuleEvidenceCeiling)
		}
	case length < SufficientEvidenceLength:
		capped := capScore(&out.ReliabilityScore, partialReliabilityCeiling)
		capped = capScore(&out.TraceabilityScore, partialTraceabilityCeiling) || capped
		if capped {
			applied = append(applied, RuleEvidenceCeiling)
		}
	}

	// Rule 2: forced escalation of unsourced absolute claims (low-cost only).
	if mode == ModeLowCost && !out.ShouldEscalate &&
		containsAny(text, absolutistMarkers) && !containsAny(text, attributionMarkers) {
		out.ShouldEscalate = true
		applied = append(applied, RuleForcedEscalation)
	}

	// Rule 3: leaning neutralization (low-cost only). The AI's raw guess is
	// discarded outright rather than capped.
	if mode == ModeLowCost {
		out.ArticleLeaning = LeaningIndeterminate
		out.BiasLeaning = LeaningIndeterminate
		out.BiasComment = NeutralLeaningComment
		applied = append(applied, RuleLeaningNeutralized)
	}

	// Rule 4: bias-indicator sufficiency gate, every mode, fresh and cached.
	if len(out.BiasIndicators) < MinBiasIndicators {
		out.BiasRaw = 0
		out.BiasScore = 0
		out.BiasScoreNormalized = 0
		out.BiasType = BiasTypeNone
		out.BiasExplanation = InsufficientBiasEvidence
		applied = append(applied, RuleBiasInsufficient)
	}

	// Rule 5: an AI cannot "verify" claims it did not itself extract.
	if len(out.FactCheck.Claims) == 0 {
		out.FactCheck.Verdict = VerdictInsufficientEvidence
		applied = append(applied, RuleFactCheckEmpty)
	}

	// Rule 6: synthesized reliability comment when factuality is not
	// determinable. A missing or unrecognized status is normalized to not
	// determinable, so a malformed AI response still takes the
	// conservative branch.
	if out.FactualityStatus != FactualityDeterminable {
		out.FactualityStatus = FactualityNotDeterminable
		out.ReliabilityComment = synthesizeReliabilityComment(out.EvidenceNeeded)
		applied = append(applied, RuleReliabilityComment)
	}

	return out, applied
}

// sanitize clamps every numeric field to its scale before the rules run,
// so a hallucinated score can never leak through a rule that did not fire.
func sanitize(a *CalibratedAnalysis) {
	a.ReliabilityScore = clampInt(a.ReliabilityScore, 0, 100)
	a.TraceabilityScore = clampInt(a.TraceabilityScore, 0, 100)
	a.ClickbaitScore = clampInt(a.ClickbaitScore, 0, 100)
	a.BiasRaw = clampFloat(a.BiasRaw, -10, 10)
	a.BiasScore = clampFloat(a.BiasScore, -10, 10)
	a.BiasScoreNormalized = clampFloat(a.BiasScoreNormalized, 0, 1)
	if a.FactCheck.Claims == nil {
		a.FactCheck.Claims = []string{}
	}
	if a.BiasIndicators == nil {
		a.BiasIndicators = []string{}
	}
}

// synthesizeReliabilityComment builds the not-verifiable comment from at
// most the first two evidence-needed entries. Additional entries are
// dropped as a length control.
func synthesizeReliabilityComment(evidenceNeeded []string) string {
	entries := evidenceNeeded
	if len(entries) > maxEvidenceNeededEntries {
		entries = entries[:maxEvidenceNeededEntries]
	}
	if len(entries) == 0 {
		return NotVerifiablePhrase
	}
	return NotVerifiablePhrase + " Evidencia necesaria: " + strings.Join(entries, "; ") + "."
}

// capScore lowers *score to ceiling when it exceeds it and reports
// whether the cap fired.
func capScore(score *int, ceiling int) bool {
	if *score > ceiling {
		*score = ceiling
		return true
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func containsAny(text string, markers []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
