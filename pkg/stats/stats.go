// Package stats computes read-only aggregates over collected marketplace and
// plugin data. Every function is pure: inputs are never mutated and each call
// produces a fresh snapshot. Download figures are always estimates derived
// from star counts, never measurements.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/pluginatlas/pluginatlas/pkg/types"
)

// Range selects the time window of a growth-trend series.
type Range string

const (
	Range7Days   Range = "7d"
	Range30Days  Range = "30d"
	Range90Days  Range = "90d"
	Range6Months Range = "6m"
	Range1Year   Range = "1y"
	RangeAll     Range = "all"
)

const (
	highQualityThreshold = 80
	uncategorized        = "uncategorized"
	topTagLimit          = 5
	topPluginLimit       = 5
	starRankWeight       = 0.1
)

// Thresholds tunes the recency windows of the quality metrics.
type Thresholds struct {
	RecentUpdateDays    int
	ActiveDeveloperDays int
}

// DefaultThresholds returns the standard recency windows.
func DefaultThresholds() Thresholds {
	return Thresholds{RecentUpdateDays: 30, ActiveDeveloperDays: 90}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EstimatedDownloads converts a star count into the download estimate. The
// factor is the single configurable constant applied uniformly everywhere.
func EstimatedDownloads(stars, factor int) int64 {
	return int64(stars) * int64(factor)
}

// Overview computes the ecosystem-wide snapshot.
func Overview(marketplaces []types.Marketplace, plugins []types.Plugin, factor int) types.EcosystemOverview {
	overview := types.EcosystemOverview{
		TotalMarketplaces:     len(marketplaces),
		TotalPlugins:          len(plugins),
		DownloadsAreEstimated: true,
	}

	for _, mp := range marketplaces {
		overview.TotalStars += mp.Stars
		overview.TotalForks += mp.Forks
		if mp.Verified {
			overview.VerifiedMarketplaces++
		}
	}

	developers := map[string]struct{}{}
	categories := map[string]struct{}{}
	qualitySum := 0
	for _, p := range plugins {
		if p.Author != "" {
			developers[p.Author] = struct{}{}
		}
		if p.Category != "" {
			categories[p.Category] = struct{}{}
		}
		if p.Validated {
			overview.ValidatedPlugins++
		}
		qualitySum += p.QualityScore
		overview.EstimatedDownloads += EstimatedDownloads(p.Stars, factor)
	}

	overview.TotalDevelopers = len(developers)
	overview.TotalCategories = len(categories)
	if len(plugins) > 0 {
		overview.AverageQualityScore = round2(float64(qualitySum) / float64(len(plugins)))
	}
	return overview
}

// rangeStart resolves a range to its window start. RangeAll starts at the
// earliest scan timestamp in the data set.
func rangeStart(plugins []types.Plugin, rng Range, now time.Time) time.Time {
	switch rng {
	case Range7Days:
		return now.AddDate(0, 0, -7)
	case Range30Days:
		return now.AddDate(0, 0, -30)
	case Range90Days:
		return now.AddDate(0, 0, -90)
	case Range6Months:
		return now.AddDate(0, -6, 0)
	case Range1Year:
		return now.AddDate(-1, 0, 0)
	default:
		earliest := now
		for _, p := range plugins {
			if p.LastScanned.Before(earliest) {
				earliest = p.LastScanned
			}
		}
		return earliest
	}
}

// GrowthTrends produces a cumulative weekly series from the range start to
// now: each point counts every plugin scanned at or before that boundary,
// not just the plugins scanned within the week.
func GrowthTrends(plugins []types.Plugin, rng Range, now time.Time, factor int) []types.GrowthDataPoint {
	start := rangeStart(plugins, rng, now)

	var boundaries []time.Time
	for t := start; t.Before(now); t = t.AddDate(0, 0, 7) {
		boundaries = append(boundaries, t)
	}
	boundaries = append(boundaries, now)

	points := make([]types.GrowthDataPoint, 0, len(boundaries))
	for _, boundary := range boundaries {
		point := types.GrowthDataPoint{Date: boundary}
		developers := map[string]struct{}{}
		for _, p := range plugins {
			if p.LastScanned.After(boundary) {
				continue
			}
			point.PluginCount++
			point.EstimatedDownloads += EstimatedDownloads(p.Stars, factor)
			if p.Author != "" {
				developers[p.Author] = struct{}{}
			}
		}
		point.DeveloperCount = len(developers)
		points = append(points, point)
	}
	return points
}

// CategoryAnalytics groups plugins by category and reports per-category
// statistics. Categories with fewer than minCategorySize plugins are dropped.
// Growth rate is the percentage of a category's plugins scanned in the last
// 30 days, a proxy in the absence of historical snapshots.
func CategoryAnalytics(plugins []types.Plugin, minCategorySize, factor int, now time.Time) []types.CategoryAnalytics {
	byCategory := map[string][]types.Plugin{}
	for _, p := range plugins {
		category := p.Category
		if category == "" {
			category = uncategorized
		}
		byCategory[category] = append(byCategory[category], p)
	}

	cutoff := now.AddDate(0, 0, -30)
	var result []types.CategoryAnalytics
	for category, members := range byCategory {
		if len(members) < minCategorySize {
			continue
		}

		analytics := types.CategoryAnalytics{
			Category:    category,
			PluginCount: len(members),
			Percentage:  round2(100 * float64(len(members)) / float64(len(plugins))),
		}

		developers := map[string]struct{}{}
		tagCounts := map[string]int{}
		qualitySum := 0
		recent := 0
		for _, p := range members {
			qualitySum += p.QualityScore
			analytics.EstimatedDownloads += EstimatedDownloads(p.Stars, factor)
			if p.Author != "" {
				developers[p.Author] = struct{}{}
			}
			for _, tag := range p.Tags {
				tagCounts[tag]++
			}
			if !p.LastScanned.Before(cutoff) {
				recent++
			}
		}
		analytics.UniqueDevelopers = len(developers)
		analytics.AverageQualityScore = round2(float64(qualitySum) / float64(len(members)))
		analytics.GrowthRate = round2(100 * float64(recent) / float64(len(members)))
		analytics.TopTags = topTags(tagCounts, topTagLimit)
		analytics.TopPlugins = topPlugins(members, topPluginLimit)

		result = append(result, analytics)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PluginCount != result[j].PluginCount {
			return result[i].PluginCount > result[j].PluginCount
		}
		return result[i].Category < result[j].Category
	})
	return result
}

func topTags(counts map[string]int, limit int) []types.TagCount {
	tags := make([]types.TagCount, 0, len(counts))
	for tag, count := range counts {
		tags = append(tags, types.TagCount{Tag: tag, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}

func topPlugins(members []types.Plugin, limit int) []types.RankedPlugin {
	ranked := make([]types.RankedPlugin, 0, len(members))
	for _, p := range members {
		ranked = append(ranked, types.RankedPlugin{
			Plugin:    p,
			RankScore: round2(float64(p.QualityScore) + starRankWeight*float64(p.Stars)),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].RankScore != ranked[j].RankScore {
			return ranked[i].RankScore > ranked[j].RankScore
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// DeveloperAnalytics groups plugins by author and reports per-developer
// statistics, sorted by estimated downloads descending and truncated to
// limit. A non-positive limit returns every developer.
func DeveloperAnalytics(plugins []types.Plugin, limit, factor int) []types.DeveloperAnalytics {
	byAuthor := map[string][]types.Plugin{}
	for _, p := range plugins {
		if p.Author == "" {
			continue
		}
		byAuthor[p.Author] = append(byAuthor[p.Author], p)
	}

	result := make([]types.DeveloperAnalytics, 0, len(byAuthor))
	for author, owned := range byAuthor {
		analytics := types.DeveloperAnalytics{
			Author:        author,
			PluginCount:   len(owned),
			FirstActivity: owned[0].LastScanned,
			LastActivity:  owned[0].LastScanned,
		}
		qualitySum := 0
		for _, p := range owned {
			analytics.TotalStars += p.Stars
			analytics.EstimatedDownloads += EstimatedDownloads(p.Stars, factor)
			qualitySum += p.QualityScore
			if p.Validated {
				analytics.VerifiedPlugins++
			}
			if p.LastScanned.Before(analytics.FirstActivity) {
				analytics.FirstActivity = p.LastScanned
			}
			if p.LastScanned.After(analytics.LastActivity) {
				analytics.LastActivity = p.LastScanned
			}
		}
		analytics.AverageQualityScore = round2(float64(qualitySum) / float64(len(owned)))
		result = append(result, analytics)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EstimatedDownloads != result[j].EstimatedDownloads {
			return result[i].EstimatedDownloads > result[j].EstimatedDownloads
		}
		return result[i].Author < result[j].Author
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// QualityMetrics computes the ecosystem quality snapshot: verification
// percentages, recency counts, and the score histogram.
func QualityMetrics(marketplaces []types.Marketplace, plugins []types.Plugin, thresholds Thresholds, now time.Time) types.QualityMetrics {
	metrics := types.QualityMetrics{}

	if len(marketplaces) > 0 {
		verified := 0
		for _, mp := range marketplaces {
			if mp.Verified {
				verified++
			}
		}
		metrics.VerifiedMarketplacePercent = round2(100 * float64(verified) / float64(len(marketplaces)))
	}

	if len(plugins) == 0 {
		return metrics
	}

	recentCutoff := now.AddDate(0, 0, -thresholds.RecentUpdateDays)
	activeCutoff := now.AddDate(0, 0, -thresholds.ActiveDeveloperDays)

	validated := 0
	activeDevelopers := map[string]struct{}{}
	var ageDaysSum float64
	for _, p := range plugins {
		if p.Validated {
			validated++
		}
		if p.QualityScore > highQualityThreshold {
			metrics.HighQualityPlugins++
		}
		if !p.LastScanned.Before(recentCutoff) {
			metrics.RecentlyUpdatedPlugins++
		}
		if p.Author != "" && !p.LastScanned.Before(activeCutoff) {
			activeDevelopers[p.Author] = struct{}{}
		}
		ageDaysSum += now.Sub(p.LastScanned).Hours() / 24

		switch {
		case p.QualityScore >= 90:
			metrics.QualityDistribution.Excellent++
		case p.QualityScore >= 80:
			metrics.QualityDistribution.Good++
		case p.QualityScore >= 70:
			metrics.QualityDistribution.Fair++
		default:
			metrics.QualityDistribution.Poor++
		}
	}

	metrics.ValidatedPluginPercent = round2(100 * float64(validated) / float64(len(plugins)))
	metrics.ActiveDevelopers = len(activeDevelopers)
	metrics.AveragePluginAgeDays = round2(ageDaysSum / float64(len(plugins)))
	return metrics
}
