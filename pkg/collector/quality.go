package collector

import (
	"math"

	"github.com/pluginatlas/pluginatlas/pkg/types"
)

// Quality score formula: a weighted blend of manifest completeness and
// code health, with a flat bonus for verified publishers. The result is
// clamped to [0,100].
const (
	completenessWeight = 0.35
	codeHealthWeight   = 0.55
	verifiedBonus      = 10
)

// QualityScore combines manifest completeness, code health, and
// verification status into a single 0..100 score.
func QualityScore(manifestCompleteness, codeHealth int, verified bool) int {
	score := completenessWeight*float64(manifestCompleteness) +
		codeHealthWeight*float64(codeHealth)
	if verified {
		score += verifiedBonus
	}
	return types.ClampScore(int(math.Round(score)))
}

// IsVerified reports whether a marketplace counts as verified: published
// by an organization account with a fully filled-in manifest.
func IsVerified(ownerType string, manifestCompleteness int) bool {
	return ownerType == "Organization" && manifestCompleteness == 100
}
