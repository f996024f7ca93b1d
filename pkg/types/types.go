// Package types defines the plain, serializable data model shared by the
// collection pipeline and its consumers. Nothing here carries behavior beyond
// small invariant helpers; downstream layers serialize these structures as-is.
package types

import "time"

// Owner identifies who publishes a repository.
type Owner struct {
	Name string `json:"name"`
	Type string `json:"type"` // "User" or "Organization"
}

// Candidate is a raw search hit awaiting validation. It is ephemeral:
// once a candidate is validated it is converted into a Marketplace and the
// candidate itself is discarded.
type Candidate struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	FullName  string    `json:"fullName"`
	URL       string    `json:"url"`
	Stars     int       `json:"stars"`
	Forks     int       `json:"forks"`
	Topics    []string  `json:"topics,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsFork    bool      `json:"isFork"`
	Archived  bool      `json:"archived"`
}

// PluginRef is a plugin declaration carried inside a marketplace entity.
type PluginRef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Marketplace is a validated candidate with a confirmed manifest.
// Instances are immutable once emitted for a given scan cycle.
type Marketplace struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Owner        Owner       `json:"owner"`
	URL          string      `json:"url"`
	Stars        int         `json:"stars"`
	Forks        int         `json:"forks"`
	Plugins      []PluginRef `json:"plugins"`
	Tags         []string    `json:"tags,omitempty"`
	Verified     bool        `json:"verified"`
	QualityScore int         `json:"qualityScore"`
	LastScanned  time.Time   `json:"lastScanned"`
	AddedAt      time.Time   `json:"addedAt"`
}

// Plugin is one declared unit inside a marketplace manifest. MarketplaceID is
// a lookup-only back-reference; a plugin never owns its marketplace.
type Plugin struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Author        string    `json:"author,omitempty"`
	Category      string    `json:"category,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	MarketplaceID string    `json:"marketplaceId"`
	Stars         int       `json:"stars"`
	QualityScore  int       `json:"qualityScore"`
	Validated     bool      `json:"validated"`
	LastScanned   time.Time `json:"lastScanned"`
}

// CollectionError records a single item failure inside a batch without
// aborting the rest of the batch.
type CollectionError struct {
	Owner   string `json:"owner,omitempty"`
	Repo    string `json:"repo,omitempty"`
	Message string `json:"message"`
}

// CollectionMetadata describes a collection pass.
// Invariant: TotalItems == SuccessfulItems + FailedItems.
type CollectionMetadata struct {
	SourceID        string        `json:"sourceId"`
	TotalItems      int           `json:"totalItems"`
	SuccessfulItems int           `json:"successfulItems"`
	FailedItems     int           `json:"failedItems"`
	CollectionTime  time.Duration `json:"collectionTime"`
	Sources         []string      `json:"sources,omitempty"`
}

// CollectionResult is the standard envelope for any batch operation.
type CollectionResult[T any] struct {
	Data     []T                `json:"data"`
	Metadata CollectionMetadata `json:"metadata"`
	Warnings []string           `json:"warnings,omitempty"`
	Errors   []CollectionError  `json:"errors,omitempty"`
}

// Consistent reports whether the metadata counters agree with the payload.
func (r *CollectionResult[T]) Consistent() bool {
	return r.Metadata.TotalItems == r.Metadata.SuccessfulItems+r.Metadata.FailedItems &&
		r.Metadata.SuccessfulItems == len(r.Data) &&
		r.Metadata.FailedItems == len(r.Errors)
}

// EnhancedMetadata is the output of the enrichment service. Optional signals
// that could not be fetched stay nil/zero rather than failing enrichment.
type EnhancedMetadata struct {
	Owner            string         `json:"owner"`
	Repo             string         `json:"repo"`
	Description      string         `json:"description,omitempty"`
	Stars            int            `json:"stars"`
	Forks            int            `json:"forks"`
	Topics           []string       `json:"topics,omitempty"`
	License          string         `json:"license,omitempty"`
	OwnerType        string         `json:"ownerType"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	Languages        map[string]int `json:"languages,omitempty"`
	ContributorCount int            `json:"contributorCount"`
	CommitFrequency  float64        `json:"commitFrequency"`
	BusFactor        float64        `json:"busFactor"`
	CodeHealthScore  int            `json:"codeHealthScore"`
	HasDocumentation bool           `json:"hasDocumentation"`
	HasTests         bool           `json:"hasTests"`
	HasCI            bool           `json:"hasCI"`
	FetchedAt        time.Time      `json:"fetchedAt"`
}

// EcosystemOverview is a read-only aggregate snapshot. A new snapshot
// replaces the old; snapshots are never mutated in place.
type EcosystemOverview struct {
	TotalMarketplaces     int     `json:"totalMarketplaces"`
	TotalPlugins          int     `json:"totalPlugins"`
	TotalDevelopers       int     `json:"totalDevelopers"`
	TotalStars            int     `json:"totalStars"`
	TotalForks            int     `json:"totalForks"`
	VerifiedMarketplaces  int     `json:"verifiedMarketplaces"`
	ValidatedPlugins      int     `json:"validatedPlugins"`
	AverageQualityScore   float64 `json:"averageQualityScore"`
	TotalCategories       int     `json:"totalCategories"`
	EstimatedDownloads    int64   `json:"estimatedDownloads"`
	DownloadsAreEstimated bool    `json:"downloadsAreEstimated"`
}

// GrowthDataPoint is one weekly boundary in a cumulative growth series.
type GrowthDataPoint struct {
	Date               time.Time `json:"date"`
	PluginCount        int       `json:"pluginCount"`
	DeveloperCount     int       `json:"developerCount"`
	EstimatedDownloads int64     `json:"estimatedDownloads"`
}

// RankedPlugin is a plugin with its ranking score inside a category.
type RankedPlugin struct {
	Plugin
	RankScore float64 `json:"rankScore"`
}

// TagCount pairs a tag with its occurrence count.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CategoryAnalytics describes one plugin category.
type CategoryAnalytics struct {
	Category            string         `json:"category"`
	PluginCount         int            `json:"pluginCount"`
	Percentage          float64        `json:"percentage"`
	AverageQualityScore float64        `json:"averageQualityScore"`
	EstimatedDownloads  int64          `json:"estimatedDownloads"`
	UniqueDevelopers    int            `json:"uniqueDevelopers"`
	GrowthRate          float64        `json:"growthRate"`
	TopTags             []TagCount     `json:"topTags,omitempty"`
	TopPlugins          []RankedPlugin `json:"topPlugins,omitempty"`
}

// DeveloperAnalytics describes one plugin author.
type DeveloperAnalytics struct {
	Author              string    `json:"author"`
	PluginCount         int       `json:"pluginCount"`
	TotalStars          int       `json:"totalStars"`
	AverageQualityScore float64   `json:"averageQualityScore"`
	EstimatedDownloads  int64     `json:"estimatedDownloads"`
	VerifiedPlugins     int       `json:"verifiedPlugins"`
	FirstActivity       time.Time `json:"firstActivity"`
	LastActivity        time.Time `json:"lastActivity"`
}

// QualityDistribution is a four-bucket quality-score histogram.
// Boundaries: excellent >= 90, good >= 80, fair >= 70, poor otherwise.
type QualityDistribution struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
	Poor      int `json:"poor"`
}

// QualityMetrics is the ecosystem-level quality snapshot.
type QualityMetrics struct {
	VerifiedMarketplacePercent float64             `json:"verifiedMarketplacePercent"`
	ValidatedPluginPercent     float64             `json:"validatedPluginPercent"`
	HighQualityPlugins         int                 `json:"highQualityPlugins"`
	RecentlyUpdatedPlugins     int                 `json:"recentlyUpdatedPlugins"`
	ActiveDevelopers           int                 `json:"activeDevelopers"`
	AveragePluginAgeDays       float64             `json:"averagePluginAgeDays"`
	QualityDistribution        QualityDistribution `json:"qualityDistribution"`
}

// ClampScore forces a quality-style score into the [0,100] contract.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
