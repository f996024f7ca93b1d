// Package collector orchestrates the full discovery pipeline: search for
// candidate repositories, confirm and parse their manifests, enrich the
// survivors, and emit marketplace and plugin collections. Item failures
// are recorded per item; a batch never aborts on one bad repository.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pluginatlas/pluginatlas/pkg/cache"
	"github.com/pluginatlas/pluginatlas/pkg/config"
	"github.com/pluginatlas/pluginatlas/pkg/content"
	"github.com/pluginatlas/pluginatlas/pkg/enrich"
	apperrors "github.com/pluginatlas/pluginatlas/pkg/errors"
	"github.com/pluginatlas/pluginatlas/pkg/logging"
	"github.com/pluginatlas/pluginatlas/pkg/manifest"
	"github.com/pluginatlas/pluginatlas/pkg/search"
	"github.com/pluginatlas/pluginatlas/pkg/types"
)

const (
	marketplaceCollectionKey = "marketplaces"
	pluginCollectionKey      = "plugins"
)

// Collector is the ecosystem data collector.
type Collector struct {
	search   *search.Service
	fetcher  *content.Fetcher
	enricher *enrich.Service

	marketplaceCache *cache.TTLCache[*types.CollectionResult[types.Marketplace]]
	pluginCache      *cache.TTLCache[*types.CollectionResult[types.Plugin]]
	collectionTTL    time.Duration

	maxConcurrent int
	maxFileSize   int64
	logger        *logging.Logger
}

// New wires a collector from its pipeline stages.
func New(searchSvc *search.Service, fetcher *content.Fetcher, enricher *enrich.Service, cfg config.Config, logger *logging.Logger) *Collector {
	if logger == nil {
		logger = logging.Default()
	}
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent < 1 {
		maxConcurrent = 5
	}
	ttl := cfg.CollectionCacheTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Collector{
		search:           searchSvc,
		fetcher:          fetcher,
		enricher:         enricher,
		marketplaceCache: cache.New[*types.CollectionResult[types.Marketplace]](),
		pluginCache:      cache.New[*types.CollectionResult[types.Plugin]](),
		collectionTTL:    ttl,
		maxConcurrent:    maxConcurrent,
		maxFileSize:      cfg.MaxFileSize,
		logger:           logger,
	}
}

// CollectMarketplaces runs a full marketplace collection pass. forceRefresh
// bypasses the cache read but the fresh result is still written back.
func (c *Collector) CollectMarketplaces(ctx context.Context, forceRefresh bool) (*types.CollectionResult[types.Marketplace], error) {
	if !forceRefresh {
		if cached, ok := c.marketplaceCache.Get(marketplaceCollectionKey); ok {
			c.logger.CacheOp("collection", marketplaceCollectionKey, true, len(cached.Data))
			return cached, nil
		}
		c.logger.CacheOp("collection", marketplaceCollectionKey, false, 0)
	}

	start := time.Now()

	candidates, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu           sync.Mutex
		marketplaces []types.Marketplace
		collErrors   []types.CollectionError
		warnings     []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for _, cand := range candidates {
		g.Go(func() error {
			mp, warns, err := c.buildMarketplace(gctx, cand)
			mu.Lock()
			defer mu.Unlock()
			warnings = append(warnings, warns...)
			switch {
			case err != nil:
				collErrors = append(collErrors, types.CollectionError{
					Owner:   cand.Owner,
					Repo:    cand.Name,
					Message: err.Error(),
				})
			case mp != nil:
				marketplaces = append(marketplaces, *mp)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &types.CollectionResult[types.Marketplace]{
		Data: marketplaces,
		Metadata: types.CollectionMetadata{
			SourceID:        uuid.NewString(),
			TotalItems:      len(marketplaces) + len(collErrors),
			SuccessfulItems: len(marketplaces),
			FailedItems:     len(collErrors),
			CollectionTime:  time.Since(start),
			Sources:         []string{"github:repository-search"},
		},
		Warnings: warnings,
		Errors:   collErrors,
	}

	c.marketplaceCache.Set(marketplaceCollectionKey, result, c.collectionTTL)
	c.logger.CollectionPass("marketplaces", result.Metadata.TotalItems,
		result.Metadata.SuccessfulItems, result.Metadata.FailedItems, result.Metadata.CollectionTime)
	return result, nil
}

// CollectPlugins flattens the marketplace collection into individual plugin
// entities, probing each plugin's own manifest to set its validated flag.
func (c *Collector) CollectPlugins(ctx context.Context, forceRefresh bool) (*types.CollectionResult[types.Plugin], error) {
	if !forceRefresh {
		if cached, ok := c.pluginCache.Get(pluginCollectionKey); ok {
			c.logger.CacheOp("collection", pluginCollectionKey, true, len(cached.Data))
			return cached, nil
		}
		c.logger.CacheOp("collection", pluginCollectionKey, false, 0)
	}

	start := time.Now()

	marketplaceResult, err := c.CollectMarketplaces(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		plugins  []types.Plugin
		warnings []string
		sources  []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for _, mp := range marketplaceResult.Data {
		sources = append(sources, mp.Owner.Name+"/"+mp.Name)
		for _, ref := range mp.Plugins {
			g.Go(func() error {
				plugin, warn := c.buildPlugin(gctx, mp, ref)
				mu.Lock()
				defer mu.Unlock()
				plugins = append(plugins, plugin)
				if warn != "" {
					warnings = append(warnings, warn)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	// Marketplaces that failed collection contributed no plugins; their
	// failures carry over so the plugin pass reports them too.
	collErrors := make([]types.CollectionError, len(marketplaceResult.Errors))
	copy(collErrors, marketplaceResult.Errors)

	result := &types.CollectionResult[types.Plugin]{
		Data: plugins,
		Metadata: types.CollectionMetadata{
			SourceID:        uuid.NewString(),
			TotalItems:      len(plugins) + len(collErrors),
			SuccessfulItems: len(plugins),
			FailedItems:     len(collErrors),
			CollectionTime:  time.Since(start),
			Sources:         sources,
		},
		Warnings: warnings,
		Errors:   collErrors,
	}

	c.pluginCache.Set(pluginCollectionKey, result, c.collectionTTL)
	c.logger.CollectionPass("plugins", result.Metadata.TotalItems,
		result.Metadata.SuccessfulItems, result.Metadata.FailedItems, result.Metadata.CollectionTime)
	return result, nil
}

// discover pages through the candidate search until the result set is
// exhausted.
func (c *Collector) discover(ctx context.Context) ([]types.Candidate, error) {
	var candidates []types.Candidate
	for page := 1; ; page++ {
		result, err := c.search.Search(ctx, search.Filter{}, page, 0)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, result.Items...)
		if !result.HasNextPage || len(result.Items) == 0 {
			break
		}
	}
	return candidates, nil
}

// buildMarketplace turns one candidate into a marketplace entity. A missing
// manifest disqualifies the candidate silently with a warning; any other
// failure is an item error.
func (c *Collector) buildMarketplace(ctx context.Context, cand types.Candidate) (*types.Marketplace, []string, error) {
	vctx := manifest.ValidationContext{MaxSize: c.maxFileSize}

	mf, warns, err := c.fetcher.FetchMarketplaceManifest(ctx, cand.Owner, cand.Name, vctx)
	if err != nil {
		if apperrors.ToAppError(err).Category == apperrors.CategoryNotFound {
			return nil, []string{fmt.Sprintf("%s: no marketplace manifest", cand.FullName)}, nil
		}
		return nil, nil, err
	}

	meta, err := c.enricher.Enrich(ctx, cand.Owner, cand.Name)
	if err != nil {
		return nil, nil, err
	}

	completeness := manifest.Completeness(mf)
	verified := IsVerified(meta.OwnerType, completeness)
	score := QualityScore(completeness, meta.CodeHealthScore, verified)

	name := mf.Name
	if name == "" {
		name = cand.Name
	}
	description := mf.Description()
	if description == "" {
		description = meta.Description
	}

	refs := make([]types.PluginRef, 0, len(mf.Plugins))
	for _, p := range mf.Plugins {
		refs = append(refs, types.PluginRef{
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
		})
	}

	now := time.Now()
	prefixed := make([]string, 0, len(warns))
	for _, w := range warns {
		prefixed = append(prefixed, fmt.Sprintf("%s: %s", cand.FullName, w))
	}

	return &types.Marketplace{
		ID:           cand.ID,
		Name:         name,
		Description:  description,
		Owner:        types.Owner{Name: cand.Owner, Type: meta.OwnerType},
		URL:          cand.URL,
		Stars:        meta.Stars,
		Forks:        meta.Forks,
		Plugins:      refs,
		Tags:         meta.Topics,
		Verified:     verified,
		QualityScore: score,
		LastScanned:  now,
		AddedAt:      meta.CreatedAt,
	}, prefixed, nil
}

// buildPlugin materializes one declared plugin. The plugin's own manifest is
// probed best-effort: present and parseable marks the plugin validated and
// overrides the declared metadata; absent or failing leaves the declaration
// as-is.
func (c *Collector) buildPlugin(ctx context.Context, mp types.Marketplace, ref types.PluginRef) (types.Plugin, string) {
	plugin := types.Plugin{
		ID:            mp.ID + "/" + ref.Name,
		Name:          ref.Name,
		Description:   ref.Description,
		Author:        mp.Owner.Name,
		Category:      ref.Category,
		MarketplaceID: mp.ID,
		Stars:         mp.Stars,
		QualityScore:  mp.QualityScore,
		LastScanned:   time.Now(),
	}

	repoName := repoFromURL(mp.URL, mp.Name)
	pm, _, err := c.fetcher.FetchPluginManifest(ctx, mp.Owner.Name, repoName, ref.Name, manifest.ValidationContext{MaxSize: c.maxFileSize})
	switch {
	case err == nil:
		plugin.Validated = true
		if pm.Description != "" {
			plugin.Description = pm.Description
		}
		if pm.Category != "" {
			plugin.Category = pm.Category
		}
		if pm.Author != nil && pm.Author.Name != "" {
			plugin.Author = pm.Author.Name
		}
		plugin.Tags = pm.Tags
		return plugin, ""
	case apperrors.ToAppError(err).Category == apperrors.CategoryNotFound:
		return plugin, ""
	default:
		return plugin, fmt.Sprintf("%s/%s: plugin manifest fetch failed: %v", mp.Owner.Name, ref.Name, err)
	}
}

// repoFromURL recovers the repository name from the marketplace URL, falling
// back to the marketplace name when the URL does not parse. The manifest name
// and the repository name can differ.
func repoFromURL(rawURL, fallback string) string {
	for i := len(rawURL) - 1; i >= 0; i-- {
		if rawURL[i] == '/' {
			if name := rawURL[i+1:]; name != "" {
				return name
			}
			break
		}
	}
	return fallback
}
