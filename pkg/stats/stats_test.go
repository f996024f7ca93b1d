package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluginatlas/pluginatlas/pkg/types"
)

var now = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func plugin(author string, score, stars int, category string, scanned time.Time) types.Plugin {
	return types.Plugin{
		ID:           author + "/" + category,
		Name:         category + "-plugin",
		Author:       author,
		Category:     category,
		Stars:        stars,
		QualityScore: score,
		LastScanned:  scanned,
	}
}

func TestOverviewDeduplicatesDevelopersAndBucketsScores(t *testing.T) {
	plugins := []types.Plugin{
		plugin("alice", 90, 100, "tools", now),
		plugin("alice", 70, 50, "tools", now),
		plugin("bob", 85, 200, "analysis", now),
	}

	overview := Overview(nil, plugins, 50)

	assert.Equal(t, 3, overview.TotalPlugins)
	assert.Equal(t, 2, overview.TotalDevelopers, "two distinct authors among three plugins")
	assert.InDelta(t, 81.67, overview.AverageQualityScore, 0.001)
	assert.Equal(t, 2, overview.TotalCategories)
	assert.Equal(t, int64(350*50), overview.EstimatedDownloads)
	assert.True(t, overview.DownloadsAreEstimated)

	metrics := QualityMetrics(nil, plugins, DefaultThresholds(), now)
	assert.Equal(t, 1, metrics.QualityDistribution.Excellent, "score 90")
	assert.Equal(t, 1, metrics.QualityDistribution.Good, "score 85")
	assert.Equal(t, 1, metrics.QualityDistribution.Fair, "score 70")
	assert.Equal(t, 0, metrics.QualityDistribution.Poor)
}

func TestOverviewMarketplaceAggregates(t *testing.T) {
	marketplaces := []types.Marketplace{
		{Stars: 100, Forks: 10, Verified: true},
		{Stars: 50, Forks: 5},
	}

	overview := Overview(marketplaces, nil, 50)

	assert.Equal(t, 2, overview.TotalMarketplaces)
	assert.Equal(t, 150, overview.TotalStars)
	assert.Equal(t, 15, overview.TotalForks)
	assert.Equal(t, 1, overview.VerifiedMarketplaces)
	assert.Zero(t, overview.AverageQualityScore, "no plugins, no average")
}

func TestGrowthTrendsAreCumulative(t *testing.T) {
	plugins := []types.Plugin{
		plugin("alice", 80, 10, "tools", now.AddDate(0, 0, -60)),
		plugin("bob", 80, 20, "tools", now.AddDate(0, 0, -30)),
		plugin("carol", 80, 30, "tools", now.AddDate(0, 0, -5)),
	}

	points := GrowthTrends(plugins, Range90Days, now, 50)
	require.NotEmpty(t, points)

	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].PluginCount, points[i-1].PluginCount,
			"cumulative series never decreases")
		assert.GreaterOrEqual(t, points[i].DeveloperCount, points[i-1].DeveloperCount)
		assert.GreaterOrEqual(t, points[i].EstimatedDownloads, points[i-1].EstimatedDownloads)
		assert.True(t, points[i].Date.After(points[i-1].Date))
	}

	last := points[len(points)-1]
	assert.Equal(t, now, last.Date, "series always ends at now")
	assert.Equal(t, 3, last.PluginCount)
	assert.Equal(t, 3, last.DeveloperCount)
	assert.Equal(t, int64(60*50), last.EstimatedDownloads)

	first := points[0]
	assert.Zero(t, first.PluginCount, "nothing scanned at the window start")
}

func TestGrowthTrendsAllRangeStartsAtEarliestScan(t *testing.T) {
	earliest := now.AddDate(0, 0, -21)
	plugins := []types.Plugin{
		plugin("alice", 80, 10, "tools", earliest),
		plugin("bob", 80, 10, "tools", now.AddDate(0, 0, -1)),
	}

	points := GrowthTrends(plugins, RangeAll, now, 50)
	require.NotEmpty(t, points)
	assert.Equal(t, earliest, points[0].Date)
	assert.Equal(t, 1, points[0].PluginCount, "the earliest plugin is already present at the start")
}

func TestCategoryAnalyticsDropsSmallCategories(t *testing.T) {
	plugins := []types.Plugin{
		plugin("alice", 90, 100, "tools", now),
		plugin("bob", 80, 50, "tools", now),
		plugin("carol", 70, 10, "niche", now),
	}

	result := CategoryAnalytics(plugins, 2, 50, now)

	require.Len(t, result, 1, "a category at exactly the minimum survives, below it is dropped")
	tools := result[0]
	assert.Equal(t, "tools", tools.Category)
	assert.Equal(t, 2, tools.PluginCount)
	assert.InDelta(t, 66.67, tools.Percentage, 0.001, "percentage is of all plugins, not survivors")
	assert.InDelta(t, 85.0, tools.AverageQualityScore, 0.001)
	assert.Equal(t, int64(150*50), tools.EstimatedDownloads)
	assert.Equal(t, 2, tools.UniqueDevelopers)
}

func TestCategoryAnalyticsRankingAndTags(t *testing.T) {
	mk := func(name string, score, stars int, tags []string, scanned time.Time) types.Plugin {
		p := plugin("alice", score, stars, "tools", scanned)
		p.Name = name
		p.Tags = tags
		return p
	}
	old := now.AddDate(0, 0, -60)
	plugins := []types.Plugin{
		mk("a", 90, 10, []string{"lint", "fmt"}, now),
		mk("b", 50, 1000, []string{"lint"}, old),
		mk("c", 95, 0, []string{"ci"}, old),
		mk("d", 40, 0, nil, old),
		mk("e", 41, 0, nil, old),
		mk("f", 42, 0, nil, old),
	}

	result := CategoryAnalytics(plugins, 1, 50, now)
	require.Len(t, result, 1)
	tools := result[0]

	require.Len(t, tools.TopPlugins, 5, "top plugins are capped at five")
	assert.Equal(t, "b", tools.TopPlugins[0].Name, "stars lift a low quality score: 50 + 0.1*1000 = 150")
	assert.InDelta(t, 150.0, tools.TopPlugins[0].RankScore, 0.001)
	assert.Equal(t, "c", tools.TopPlugins[1].Name)
	assert.Equal(t, "a", tools.TopPlugins[2].Name)

	require.NotEmpty(t, tools.TopTags)
	assert.Equal(t, types.TagCount{Tag: "lint", Count: 2}, tools.TopTags[0])

	assert.InDelta(t, 16.67, tools.GrowthRate, 0.001, "one of six scanned in the last 30 days")
}

func TestDeveloperAnalyticsSortAndTruncate(t *testing.T) {
	plugins := []types.Plugin{
		plugin("alice", 90, 10, "tools", now.AddDate(0, 0, -10)),
		plugin("alice", 80, 30, "analysis", now),
		plugin("bob", 70, 100, "tools", now),
		plugin("carol", 60, 1, "tools", now),
	}
	plugins[1].Validated = true

	result := DeveloperAnalytics(plugins, 2, 50)

	require.Len(t, result, 2, "truncated to limit")
	assert.Equal(t, "bob", result[0].Author, "sorted by estimated downloads descending")
	assert.Equal(t, "alice", result[1].Author)

	alice := result[1]
	assert.Equal(t, 2, alice.PluginCount)
	assert.Equal(t, 40, alice.TotalStars)
	assert.InDelta(t, 85.0, alice.AverageQualityScore, 0.001)
	assert.Equal(t, 1, alice.VerifiedPlugins)
	assert.Equal(t, now.AddDate(0, 0, -10), alice.FirstActivity)
	assert.Equal(t, now, alice.LastActivity)
}

func TestQualityMetrics(t *testing.T) {
	marketplaces := []types.Marketplace{
		{Verified: true},
		{Verified: false},
		{Verified: false},
	}
	plugins := []types.Plugin{
		plugin("alice", 95, 0, "tools", now.AddDate(0, 0, -5)),
		plugin("bob", 81, 0, "tools", now.AddDate(0, 0, -45)),
		plugin("carol", 80, 0, "tools", now.AddDate(0, 0, -120)),
		plugin("dave", 50, 0, "tools", now.AddDate(0, 0, -200)),
	}
	plugins[0].Validated = true

	metrics := QualityMetrics(marketplaces, plugins, DefaultThresholds(), now)

	assert.InDelta(t, 33.33, metrics.VerifiedMarketplacePercent, 0.001)
	assert.InDelta(t, 25.0, metrics.ValidatedPluginPercent, 0.001)
	assert.Equal(t, 2, metrics.HighQualityPlugins, "strictly above 80")
	assert.Equal(t, 1, metrics.RecentlyUpdatedPlugins, "scanned within 30 days")
	assert.Equal(t, 2, metrics.ActiveDevelopers, "activity within 90 days")
	assert.InDelta(t, 92.5, metrics.AveragePluginAgeDays, 0.001)

	assert.Equal(t, 1, metrics.QualityDistribution.Excellent)
	assert.Equal(t, 2, metrics.QualityDistribution.Good, "both 81 and 80 land in the good bucket")
	assert.Equal(t, 0, metrics.QualityDistribution.Fair)
	assert.Equal(t, 1, metrics.QualityDistribution.Poor)
}

func TestQualityMetricsEmptyInputs(t *testing.T) {
	metrics := QualityMetrics(nil, nil, DefaultThresholds(), now)
	assert.Zero(t, metrics.VerifiedMarketplacePercent)
	assert.Zero(t, metrics.ValidatedPluginPercent)
	assert.Zero(t, metrics.QualityDistribution.Poor)
}
