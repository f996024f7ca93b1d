package enrich

import (
	"context"

	apierrors "github.com/pluginatlas/pluginatlas/pkg/errors"
)

// Well-known paths probed per feature category. Resolution is best-effort:
// the first path that exists makes the feature true; misses and transient
// failures leave it false.
var (
	documentationPaths = []string{
		"README.md",
		"README",
		"docs",
		"DOCUMENTATION.md",
	}
	testPaths = []string{
		"test",
		"tests",
		"spec",
		"__tests__",
	}
	ciPaths = []string{
		".github/workflows",
		".travis.yml",
		".circleci/config.yml",
		"Jenkinsfile",
	}
)

// FeaturePresence holds the best-effort repository feature booleans.
type FeaturePresence struct {
	HasDocumentation bool
	HasTests         bool
	HasCI            bool
}

// probeFeature returns true on the first path that exists, file or directory.
func (s *Service) probeFeature(ctx context.Context, owner, repo string, paths []string) bool {
	for _, p := range paths {
		file, err := s.client.GetContents(ctx, owner, repo, p, "")
		if err != nil {
			if apierrors.ToAppError(err).Category == apierrors.CategoryNotFound {
				continue
			}
			// Transient failures do not fail enrichment; the feature just
			// stays unknown-false.
			s.logger.Debug("feature probe failed", "owner", owner, "repo", repo, "path", p, "error", err.Error())
			return false
		}
		if file != nil {
			return true
		}
	}
	return false
}

func (s *Service) probeFeatures(ctx context.Context, owner, repo string) FeaturePresence {
	return FeaturePresence{
		HasDocumentation: s.probeFeature(ctx, owner, repo, documentationPaths),
		HasTests:         s.probeFeature(ctx, owner, repo, testPaths),
		HasCI:            s.probeFeature(ctx, owner, repo, ciPaths),
	}
}
