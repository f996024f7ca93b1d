// Package enrich derives quality signals for a validated candidate: base
// repository metadata plus parallel, individually optional fetches of
// languages, contributors, and recent commit history.
package enrich

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pluginatlas/pluginatlas/pkg/cache"
	"github.com/pluginatlas/pluginatlas/pkg/github"
	"github.com/pluginatlas/pluginatlas/pkg/logging"
	"github.com/pluginatlas/pluginatlas/pkg/types"
)

// Options switches the optional enrichment fetches. All default to on.
type Options struct {
	IncludeLanguages    bool
	IncludeContributors bool
	IncludeCommits      bool
	ProbeFeatures       bool
}

// DefaultOptions enables every optional signal.
func DefaultOptions() Options {
	return Options{
		IncludeLanguages:    true,
		IncludeContributors: true,
		IncludeCommits:      true,
		ProbeFeatures:       true,
	}
}

// Service is the metadata enrichment service.
type Service struct {
	client *github.Client
	opts   Options

	langCache    *cache.TTLCache[map[string]int]
	contribCache *cache.TTLCache[[]github.Contributor]
	commitCache  *cache.TTLCache[[]github.Commit]
	ttl          time.Duration

	maxContributors int
	maxCommits      int
	maxConcurrent   int
	logger          *logging.Logger
}

// NewService creates an enrichment service with its own signal caches.
func NewService(client *github.Client, opts Options, ttl time.Duration, maxContributors, maxCommits, maxConcurrent int, logger *logging.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxContributors < 1 {
		maxContributors = 30
	}
	if maxCommits < 1 {
		maxCommits = 50
	}
	if maxConcurrent < 1 {
		maxConcurrent = 5
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		client:          client,
		opts:            opts,
		langCache:       cache.New[map[string]int](),
		contribCache:    cache.New[[]github.Contributor](),
		commitCache:     cache.New[[]github.Commit](),
		ttl:             ttl,
		maxContributors: maxContributors,
		maxCommits:      maxCommits,
		maxConcurrent:   maxConcurrent,
		logger:          logger,
	}
}

// Enrich fetches base repository metadata and fans out the optional signal
// fetches in parallel. A failing optional fetch is logged and leaves its
// field absent; only a failing base fetch fails the enrichment.
func (s *Service) Enrich(ctx context.Context, owner, repo string) (*types.EnhancedMetadata, error) {
	base, err := s.client.GetRepository(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	meta := &types.EnhancedMetadata{
		Owner:       owner,
		Repo:        repo,
		Description: base.Description,
		Stars:       base.Stars,
		Forks:       base.Forks,
		Topics:      base.Topics,
		OwnerType:   base.Owner.Type,
		CreatedAt:   base.CreatedAt,
		UpdatedAt:   base.UpdatedAt,
		FetchedAt:   time.Now(),
	}
	if base.License != nil {
		meta.License = base.License.Key
	}

	var (
		languages    map[string]int
		contributors []github.Contributor
		commits      []github.Commit
		features     FeaturePresence
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	if s.opts.IncludeLanguages {
		g.Go(func() error {
			if langs, err := s.fetchLanguages(gctx, owner, repo); err != nil {
				s.logger.Warn("language fetch failed, leaving field absent", "owner", owner, "repo", repo, "error", err.Error())
			} else {
				languages = langs
			}
			return nil
		})
	}

	if s.opts.IncludeContributors {
		g.Go(func() error {
			if contribs, err := s.fetchContributors(gctx, owner, repo); err != nil {
				s.logger.Warn("contributor fetch failed, leaving field absent", "owner", owner, "repo", repo, "error", err.Error())
			} else {
				contributors = contribs
			}
			return nil
		})
	}

	if s.opts.IncludeCommits {
		g.Go(func() error {
			if recent, err := s.fetchCommits(gctx, owner, repo); err != nil {
				s.logger.Warn("commit fetch failed, leaving field absent", "owner", owner, "repo", repo, "error", err.Error())
			} else {
				commits = recent
			}
			return nil
		})
	}

	if s.opts.ProbeFeatures {
		g.Go(func() error {
			features = s.probeFeatures(gctx, owner, repo)
			return nil
		})
	}

	// Optional fetches never return errors into the group; Wait only joins.
	_ = g.Wait()

	meta.Languages = languages
	meta.ContributorCount = len(contributors)
	meta.HasDocumentation = features.HasDocumentation
	meta.HasTests = features.HasTests
	meta.HasCI = features.HasCI

	// Derived metrics are computed only when their inputs are present.
	if len(commits) > 0 {
		meta.CommitFrequency = CommitFrequency(commits)
	}
	if len(contributors) > 0 {
		meta.BusFactor = BusFactor(contributors)
	}
	meta.CodeHealthScore = CodeHealthScore(RepoSignals{
		CreatedAt:   base.CreatedAt,
		UpdatedAt:   base.UpdatedAt,
		Stars:       base.Stars,
		Forks:       base.Forks,
		Description: base.Description,
		HasLicense:  base.License != nil,
		TopicCount:  len(base.Topics),
	}, time.Now())

	return meta, nil
}

func signalKey(owner, repo string) string {
	return fmt.Sprintf("%s/%s", owner, repo)
}

func (s *Service) fetchLanguages(ctx context.Context, owner, repo string) (map[string]int, error) {
	key := signalKey(owner, repo)
	if cached, ok := s.langCache.Get(key); ok {
		return cached, nil
	}
	langs, err := s.client.ListLanguages(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	s.langCache.Set(key, langs, s.ttl)
	return langs, nil
}

func (s *Service) fetchContributors(ctx context.Context, owner, repo string) ([]github.Contributor, error) {
	key := signalKey(owner, repo)
	if cached, ok := s.contribCache.Get(key); ok {
		return cached, nil
	}
	contribs, err := s.client.ListContributors(ctx, owner, repo, s.maxContributors)
	if err != nil {
		return nil, err
	}
	s.contribCache.Set(key, contribs, s.ttl)
	return contribs, nil
}

func (s *Service) fetchCommits(ctx context.Context, owner, repo string) ([]github.Commit, error) {
	key := signalKey(owner, repo)
	if cached, ok := s.commitCache.Get(key); ok {
		return cached, nil
	}
	commits, err := s.client.ListCommits(ctx, owner, repo, s.maxCommits)
	if err != nil {
		return nil, err
	}
	s.commitCache.Set(key, commits, s.ttl)
	return commits, nil
}
