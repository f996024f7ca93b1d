// Package search builds qualified repository search expressions and returns
// bounded, paginated candidate sets.
package search

import (
	"context"
	"fmt"
	"strings"

	apierrors "github.com/pluginatlas/pluginatlas/pkg/errors"
	"github.com/pluginatlas/pluginatlas/pkg/github"
	"github.com/pluginatlas/pluginatlas/pkg/logging"
	"github.com/pluginatlas/pluginatlas/pkg/manifest"
	"github.com/pluginatlas/pluginatlas/pkg/types"
)

// manifestQualifier narrows search results to repositories plausibly carrying
// the marketplace manifest. Repository search cannot match on file paths, so
// the published convention (topic and naming) stands in for the path probe;
// ValidateCandidate performs the authoritative existence check afterwards.
const manifestQualifier = `claude-plugin in:name,description,topics`

// Filter is the structured search input.
type Filter struct {
	Language string
	MinStars int
	MaxStars int
	Topics   []string
	// IncludeForks and IncludeArchived lift the default exclusions.
	IncludeForks    bool
	IncludeArchived bool
	// Org and User constrain the search to a single owner.
	Org  string
	User string
}

// Page is one bounded page of candidates. Pagination metadata is computed
// locally, never trusted blindly from the upstream total.
type Page struct {
	Items           []types.Candidate
	Page            int
	PageSize        int
	TotalCount      int
	TotalPages      int
	HasNextPage     bool
	HasPreviousPage bool
}

// Service issues paginated candidate queries through the API client.
type Service struct {
	client          *github.Client
	maxPerPage      int
	maxTotalResults int
	logger          *logging.Logger
}

// NewService creates a search service.
func NewService(client *github.Client, maxPerPage, maxTotalResults int, logger *logging.Logger) *Service {
	if maxPerPage < 1 || maxPerPage > 100 {
		maxPerPage = 100
	}
	if maxTotalResults < maxPerPage {
		maxTotalResults = 1000
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		client:          client,
		maxPerPage:      maxPerPage,
		maxTotalResults: maxTotalResults,
		logger:          logger,
	}
}

// Search runs one page of a filtered candidate query.
func (s *Service) Search(ctx context.Context, filter Filter, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > s.maxPerPage {
		pageSize = s.maxPerPage
	}

	query := BuildQuery(filter)
	result, err := s.client.SearchRepositories(ctx, query, page, pageSize)
	if err != nil {
		return nil, err
	}

	candidates := make([]types.Candidate, 0, len(result.Items))
	for _, repo := range result.Items {
		candidates = append(candidates, toCandidate(repo))
	}

	totalCount := result.TotalCount
	if totalCount > s.maxTotalResults {
		totalCount = s.maxTotalResults
	}
	totalPages := (totalCount + pageSize - 1) / pageSize

	s.logger.Debug("search page fetched",
		"query", query,
		"page", page,
		"items", len(candidates),
		"total_count", totalCount,
	)

	return &Page{
		Items:           candidates,
		Page:            page,
		PageSize:        pageSize,
		TotalCount:      totalCount,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

// SearchOrganization constrains the query to one organization.
func (s *Service) SearchOrganization(ctx context.Context, org string, page, pageSize int) (*Page, error) {
	return s.Search(ctx, Filter{Org: org}, page, pageSize)
}

// SearchUser constrains the query to one user.
func (s *Service) SearchUser(ctx context.Context, user string, page, pageSize int) (*Page, error) {
	return s.Search(ctx, Filter{User: user}, page, pageSize)
}

// SearchByTopics constrains the query to a fixed topic set.
func (s *Service) SearchByTopics(ctx context.Context, topics []string, page, pageSize int) (*Page, error) {
	return s.Search(ctx, Filter{Topics: topics}, page, pageSize)
}

// ValidateCandidate probes for the marketplace manifest. A path that is
// missing or resolves to a directory is a valid negative, not a fault.
func (s *Service) ValidateCandidate(ctx context.Context, owner, repo string) (bool, error) {
	file, err := s.client.GetContents(ctx, owner, repo, manifest.MarketplacePath, "")
	if err != nil {
		if apierrors.ToAppError(err).Category == apierrors.CategoryNotFound {
			return false, nil
		}
		return false, err
	}
	return file.Type == "file", nil
}

// BuildQuery concatenates the qualifier string for a filter.
func BuildQuery(filter Filter) string {
	parts := []string{manifestQualifier}

	if filter.Org != "" {
		parts = append(parts, "org:"+filter.Org)
	}
	if filter.User != "" {
		parts = append(parts, "user:"+filter.User)
	}
	if filter.Language != "" {
		parts = append(parts, "language:"+filter.Language)
	}
	if filter.MinStars > 0 {
		parts = append(parts, fmt.Sprintf("stars:>=%d", filter.MinStars))
	}
	if filter.MaxStars > 0 {
		parts = append(parts, fmt.Sprintf("stars:<=%d", filter.MaxStars))
	}
	for _, topic := range filter.Topics {
		parts = append(parts, "topic:"+topic)
	}
	if !filter.IncludeForks {
		parts = append(parts, "fork:false")
	}
	if !filter.IncludeArchived {
		parts = append(parts, "archived:false")
	}

	return strings.Join(parts, " ")
}

func toCandidate(repo github.Repository) types.Candidate {
	return types.Candidate{
		ID:        fmt.Sprintf("%d", repo.ID),
		Owner:     repo.Owner.Login,
		Name:      repo.Name,
		FullName:  repo.FullName,
		URL:       repo.HTMLURL,
		Stars:     repo.Stars,
		Forks:     repo.Forks,
		Topics:    repo.Topics,
		UpdatedAt: repo.UpdatedAt,
		IsFork:    repo.Fork,
		Archived:  repo.Archived,
	}
}
