package analysis

// SelectMode chooses the AI invocation tier for an analysis. Moderate
// analysis is a privilege earned by having enough text to analyze
// thoroughly: requesting it with less than SufficientEvidenceLength
// characters of resolved content always yields low-cost. An empty or
// unknown request defaults to low-cost.
func SelectMode(requested Mode, resolvedLength int) Mode {
	if requested == ModeModerate && resolvedLength >= SufficientEvidenceLength {
		return ModeModerate
	}
	return ModeLowCost
}
