// Package content retrieves, validates, and decodes repository files, with
// format detection and optional schema validation for manifests.
package content

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pluginatlas/pluginatlas/pkg/cache"
	apierrors "github.com/pluginatlas/pluginatlas/pkg/errors"
	"github.com/pluginatlas/pluginatlas/pkg/github"
	"github.com/pluginatlas/pluginatlas/pkg/logging"
	"github.com/pluginatlas/pluginatlas/pkg/manifest"
)

// Format tags the detected serialization of fetched content.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatText Format = "text"
)

// FetchedContent is a validated, decoded file.
type FetchedContent struct {
	Content   string    `json:"content"`
	Encoding  string    `json:"encoding"`
	Size      int64     `json:"size"`
	SHA       string    `json:"sha"`
	Path      string    `json:"path"`
	FetchedAt time.Time `json:"fetchedAt"`
	Format    Format    `json:"format"`
	// JSON holds the generically parsed document when auto-parsing
	// succeeded on a JSON (or JSON-compatible) payload.
	JSON     map[string]any `json:"-"`
	Warnings []string       `json:"warnings,omitempty"`
}

// FetchOptions tunes a single fetch.
type FetchOptions struct {
	Ref       string
	AutoParse bool
	// Validate applies manifest schema validation to parsed JSON content
	// under Vctx.
	Validate bool
	Vctx     manifest.ValidationContext
}

// RepoRef names one repository in a batch operation.
type RepoRef struct {
	Owner string
	Repo  string
}

// BatchError records one repository's failure without aborting the batch.
type BatchError struct {
	Owner string
	Repo  string
	Err   error
}

// BatchManifest is one successful fetch of a batch.
type BatchManifest struct {
	Owner    string
	Repo     string
	Manifest *manifest.MarketplaceManifest
	Warnings []string
}

// BatchResult carries the per-item outcomes of a batch fetch.
type BatchResult struct {
	Manifests []BatchManifest
	Errors    []BatchError
}

// Fetcher retrieves and validates repository files through the shared client
// and cache.
type Fetcher struct {
	client        *github.Client
	cache         *cache.TTLCache[*FetchedContent]
	ttl           time.Duration
	maxFileSize   int64
	maxConcurrent int
	logger        *logging.Logger
}

// NewFetcher creates a content fetcher. The cache is constructor-injected so
// it can be shared or isolated per the caller's needs.
func NewFetcher(client *github.Client, contentCache *cache.TTLCache[*FetchedContent], ttl time.Duration, maxFileSize int64, maxConcurrent int, logger *logging.Logger) *Fetcher {
	if contentCache == nil {
		contentCache = cache.New[*FetchedContent]()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxFileSize <= 0 {
		maxFileSize = 1 << 20
	}
	if maxConcurrent < 1 {
		maxConcurrent = 5
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Fetcher{
		client:        client,
		cache:         contentCache,
		ttl:           ttl,
		maxFileSize:   maxFileSize,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

func cacheKey(owner, repo, filePath, ref string) string {
	return fmt.Sprintf("%s/%s/%s@%s", owner, repo, filePath, ref)
}

// FetchContent runs the fetch pipeline: cache lookup, retrieve, validate,
// decode, detect format, cache write.
func (f *Fetcher) FetchContent(ctx context.Context, owner, repo, filePath string, opts FetchOptions) (*FetchedContent, error) {
	key := cacheKey(owner, repo, filePath, opts.Ref)
	if cached, ok := f.cache.Get(key); ok {
		f.logger.CacheOp("content", key, true, f.cache.Size())
		return cached, nil
	}
	f.logger.CacheOp("content", key, false, f.cache.Size())

	file, err := f.client.GetContents(ctx, owner, repo, filePath, opts.Ref)
	if err != nil {
		return nil, err
	}

	if file.Type != "file" {
		return nil, apierrors.NewValidationError(
			fmt.Sprintf("%s/%s: path %q is a %s, expected a file", owner, repo, filePath, file.Type))
	}
	if file.Size > f.maxFileSize {
		return nil, apierrors.NewValidationError(
			fmt.Sprintf("%s/%s: file %q exceeds size limit: %d > %d bytes", owner, repo, filePath, file.Size, f.maxFileSize))
	}
	if file.Content == "" {
		return nil, apierrors.NewValidationError(
			fmt.Sprintf("%s/%s: file %q has no content", owner, repo, filePath))
	}

	decoded, err := decodeContent(file)
	if err != nil {
		return nil, err
	}

	fetched := &FetchedContent{
		Content:   decoded,
		Encoding:  file.Encoding,
		Size:      file.Size,
		SHA:       file.SHA,
		Path:      file.Path,
		FetchedAt: time.Now(),
		Format:    FormatText,
	}

	if opts.AutoParse {
		f.autoParseContent(fetched, opts)
	}

	f.cache.Set(key, fetched, f.ttl)
	return fetched, nil
}

// autoParseContent chooses a parser by file extension. JSON is fully
// supported; other structured formats are returned as opaque text with an
// explicit limitation warning rather than silently mis-parsed. Unknown
// extensions get one JSON attempt before degrading to plain text.
func (f *Fetcher) autoParseContent(fetched *FetchedContent, opts FetchOptions) {
	ext := strings.ToLower(path.Ext(fetched.Path))

	switch ext {
	case ".json":
		fetched.Format = FormatJSON
		f.parseJSON(fetched, opts)
	case ".yaml", ".yml":
		fetched.Format = FormatYAML
		fetched.Warnings = append(fetched.Warnings, "yaml parsing not implemented; content returned as opaque text")
	case ".toml":
		fetched.Format = FormatTOML
		fetched.Warnings = append(fetched.Warnings, "toml parsing not implemented; content returned as opaque text")
	default:
		var probe map[string]any
		if err := json.Unmarshal([]byte(fetched.Content), &probe); err == nil {
			fetched.Format = FormatJSON
			fetched.JSON = probe
		} else {
			fetched.Format = FormatText
		}
	}
}

func (f *Fetcher) parseJSON(fetched *FetchedContent, opts FetchOptions) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(fetched.Content), &doc); err != nil {
		fetched.Warnings = append(fetched.Warnings, fmt.Sprintf("declared json did not parse: %v", err))
		fetched.Format = FormatText
		return
	}
	fetched.JSON = doc

	if opts.Validate {
		if _, warns, err := manifest.ParseAndValidate([]byte(fetched.Content), opts.Vctx); err != nil {
			fetched.Warnings = append(fetched.Warnings, err.Error())
		} else {
			fetched.Warnings = append(fetched.Warnings, warns...)
		}
	}
}

// FetchMarketplaceManifest fetches and parses the canonical marketplace
// manifest of a repository.
func (f *Fetcher) FetchMarketplaceManifest(ctx context.Context, owner, repo string, vctx manifest.ValidationContext) (*manifest.MarketplaceManifest, []string, error) {
	fetched, err := f.FetchContent(ctx, owner, repo, manifest.MarketplacePath, FetchOptions{})
	if err != nil {
		return nil, nil, err
	}
	return manifest.ParseAndValidate([]byte(fetched.Content), vctx)
}

// FetchPluginManifest fetches and parses one plugin's manifest.
func (f *Fetcher) FetchPluginManifest(ctx context.Context, owner, repo, pluginName string, vctx manifest.ValidationContext) (*manifest.PluginManifest, []string, error) {
	fetched, err := f.FetchContent(ctx, owner, repo, manifest.PluginManifestPath(pluginName), FetchOptions{})
	if err != nil {
		return nil, nil, err
	}
	return manifest.ParsePlugin([]byte(fetched.Content), vctx)
}

// FetchManifests fetches marketplace manifests for a batch of repositories
// with per-item isolation: one repository's failure is recorded and does not
// abort the batch. Fan-out is bounded by the configured concurrency.
func (f *Fetcher) FetchManifests(ctx context.Context, repos []RepoRef, vctx manifest.ValidationContext) *BatchResult {
	type itemOutcome struct {
		idx      int
		manifest *manifest.MarketplaceManifest
		warnings []string
		err      error
	}

	outcomes := make([]itemOutcome, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrent)

	for i, ref := range repos {
		g.Go(func() error {
			m, warns, err := f.FetchMarketplaceManifest(gctx, ref.Owner, ref.Repo, vctx)
			outcomes[i] = itemOutcome{idx: i, manifest: m, warnings: warns, err: err}
			// Per-item isolation: never propagate into the group.
			return nil
		})
	}
	// The only group error source is gctx cancellation, surfaced per item.
	_ = g.Wait()

	result := &BatchResult{}
	for i, out := range outcomes {
		if out.err != nil {
			result.Errors = append(result.Errors, BatchError{
				Owner: repos[i].Owner,
				Repo:  repos[i].Repo,
				Err:   out.err,
			})
			continue
		}
		result.Manifests = append(result.Manifests, BatchManifest{
			Owner:    repos[i].Owner,
			Repo:     repos[i].Repo,
			Manifest: out.manifest,
			Warnings: out.warnings,
		})
	}
	return result
}

// decodeContent decodes the file body per its declared encoding.
func decodeContent(file *github.ContentFile) (string, error) {
	switch file.Encoding {
	case "base64":
		// The API wraps base64 bodies with newlines.
		cleaned := strings.ReplaceAll(file.Content, "\n", "")
		raw, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return "", apierrors.NewValidationError(
				fmt.Sprintf("file %q declared base64 but did not decode: %v", file.Path, err))
		}
		return string(raw), nil
	case "", "utf-8", "none":
		return file.Content, nil
	default:
		return "", apierrors.NewValidationError(
			fmt.Sprintf("file %q has unsupported encoding %q", file.Path, file.Encoding))
	}
}
