package competitor

import (
	"sort"

	"github.com/david/tender-intel/internal/models"
	"github.com/google/uuid"
)

// Likelihood weights: prior wins in the same service-type/agency pair matter
// more than value-band similarity.
const (
	priorWinsWeight    = 0.6
	priorWinsSaturate  = 4
	valueBandWeight    = 0.4
	valueBandLowRatio  = 0.5
	valueBandHighRatio = 2.0

	likelyMinScore = 0.2
)

// LikelyCompetitor is an ephemeral ranking entry for an open tender. The
// likelihood only drives alerting; it is never written to the store.
type LikelyCompetitor struct {
	Profile    models.CompetitorProfile
	Likelihood float64
	PriorWins  int
}

// RankLikely orders known competitors by how likely they are to bid on an
// open tender. priorWins holds each competitor's win count for the tender's
// service-type and agency pair, supplied by the caller's history query.
// Competitors below a noise floor are omitted.
func RankLikely(t models.Tender, profiles []models.CompetitorProfile, priorWins map[uuid.UUID]int) []LikelyCompetitor {
	ranked := make([]LikelyCompetitor, 0, len(profiles))
	for _, p := range profiles {
		if p.ContractsWon == 0 {
			continue
		}
		wins := priorWins[p.ID]
		score := priorWinsWeight*priorWinsScore(wins) + valueBandWeight*valueBandScore(p.AvgContractValue, t.EstimatedValue)
		if score < likelyMinScore {
			continue
		}
		ranked = append(ranked, LikelyCompetitor{Profile: p, Likelihood: score, PriorWins: wins})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Likelihood != ranked[j].Likelihood {
			return ranked[i].Likelihood > ranked[j].Likelihood
		}
		return ranked[i].Profile.NormalizedName < ranked[j].Profile.NormalizedName
	})
	return ranked
}

func priorWinsScore(wins int) float64 {
	if wins >= priorWinsSaturate {
		return 1.0
	}
	return float64(wins) / float64(priorWinsSaturate)
}

// valueBandScore is 1.0 when the competitor's average contract value matches
// the tender's estimate, falling linearly to 0 at the 0.5x and 2x edges of
// the band.
func valueBandScore(avgValue, estimatedValue float64) float64 {
	if avgValue <= 0 || estimatedValue <= 0 {
		return 0
	}
	ratio := avgValue / estimatedValue
	if ratio < valueBandLowRatio || ratio > valueBandHighRatio {
		return 0
	}
	if ratio <= 1 {
		return (ratio - valueBandLowRatio) / (1 - valueBandLowRatio)
	}
	return (valueBandHighRatio - ratio) / (valueBandHighRatio - 1)
}
