package enrich

import (
	"time"

	"github.com/pluginatlas/pluginatlas/pkg/github"
)

// Scoring here is pure and table-driven: no I/O, deterministic for a given
// input, testable without the network. The orchestration that gathers the
// inputs lives in service.go.

// RepoSignals are the repository facts the health score is computed from.
type RepoSignals struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Stars       int
	Forks       int
	Description string
	HasLicense  bool
	TopicCount  int
}

// CodeHealthScore computes the 0-100 health score from the fixed weight
// table. The thresholds are the contract: age 0/5/10/15/20, stars
// 0/5/10/15/20, forks 0/5/10/15, recency 0/5/10/15, description 0/5/10,
// license 0/10, topics 0/5/10, summed and capped at 100.
func CodeHealthScore(sig RepoSignals, now time.Time) int {
	score := 0

	// Repository age.
	age := now.Sub(sig.CreatedAt)
	switch {
	case age >= 365*24*time.Hour:
		score += 20
	case age >= 182*24*time.Hour:
		score += 15
	case age >= 91*24*time.Hour:
		score += 10
	case age >= 30*24*time.Hour:
		score += 5
	}

	// Popularity.
	switch {
	case sig.Stars >= 1000:
		score += 20
	case sig.Stars >= 500:
		score += 15
	case sig.Stars >= 100:
		score += 10
	case sig.Stars >= 10:
		score += 5
	}

	switch {
	case sig.Forks >= 100:
		score += 15
	case sig.Forks >= 20:
		score += 10
	case sig.Forks >= 5:
		score += 5
	}

	// Recency of the last update.
	sinceUpdate := now.Sub(sig.UpdatedAt)
	switch {
	case sinceUpdate <= 7*24*time.Hour:
		score += 15
	case sinceUpdate <= 30*24*time.Hour:
		score += 10
	case sinceUpdate <= 90*24*time.Hour:
		score += 5
	}

	// Description quality.
	switch {
	case len(sig.Description) >= 50:
		score += 10
	case len(sig.Description) > 0:
		score += 5
	}

	if sig.HasLicense {
		score += 10
	}

	switch {
	case sig.TopicCount >= 5:
		score += 10
	case sig.TopicCount >= 1:
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}

// CommitFrequency returns commits per week over the span between the oldest
// and newest fetched commits. Spans under a week count as one week so a
// single burst does not produce an absurd rate.
func CommitFrequency(commits []github.Commit) float64 {
	if len(commits) == 0 {
		return 0
	}

	oldest := commits[0].Commit.Author.Date
	newest := commits[0].Commit.Author.Date
	for _, c := range commits[1:] {
		d := c.Commit.Author.Date
		if d.Before(oldest) {
			oldest = d
		}
		if d.After(newest) {
			newest = d
		}
	}

	weeks := newest.Sub(oldest).Hours() / (24 * 7)
	if weeks < 1 {
		weeks = 1
	}
	return float64(len(commits)) / weeks
}

// BusFactor returns the percentage of total contributions attributable to
// the single largest contributor. Zero when no contributor data is present.
func BusFactor(contributors []github.Contributor) float64 {
	if len(contributors) == 0 {
		return 0
	}

	top := 0
	total := 0
	for _, c := range contributors {
		total += c.Contributions
		if c.Contributions > top {
			top = c.Contributions
		}
	}
	if total == 0 {
		return 0
	}
	return float64(top) / float64(total) * 100
}
