// Package manifest models the structured files that declare a marketplace and
// its plugins, and validates them against the expected schema.
//
// Path convention (fixed): the marketplace manifest lives at
// .claude-plugin/marketplace.json, and each plugin manifest at
// .claude-plugin/plugins/<pluginName>/manifest.json.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/pluginatlas/pluginatlas/pkg/errors"
)

const (
	// MarketplacePath is the fixed repository path of the marketplace
	// manifest.
	MarketplacePath = ".claude-plugin/marketplace.json"
	// PluginPathFormat is the fixed path template of a per-plugin manifest.
	PluginPathFormat = ".claude-plugin/plugins/%s/manifest.json"
)

// PluginManifestPath returns the manifest path for one declared plugin.
func PluginManifestPath(pluginName string) string {
	return fmt.Sprintf(PluginPathFormat, pluginName)
}

// Owner identifies the publisher of a marketplace or plugin.
type Owner struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// Metadata carries the optional descriptive block of a marketplace manifest.
type Metadata struct {
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	PluginRoot  string `json:"pluginRoot,omitempty"`
}

// PluginEntry is one plugin declared inside a marketplace manifest.
type PluginEntry struct {
	Name        string   `json:"name" validate:"required"`
	Source      string   `json:"source,omitempty"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	Author      *Owner   `json:"author,omitempty"`
	Homepage    string   `json:"homepage,omitempty" validate:"omitempty,url"`
	Repository  string   `json:"repository,omitempty"`
	License     string   `json:"license,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// MarketplaceManifest is the top-level marketplace.json structure.
type MarketplaceManifest struct {
	Name     string        `json:"name" validate:"required"`
	Owner    Owner         `json:"owner" validate:"required"`
	Metadata *Metadata     `json:"metadata,omitempty"`
	Plugins  []PluginEntry `json:"plugins" validate:"required,min=1,dive"`
}

// Description returns the marketplace description, empty when no metadata
// block is present.
func (m *MarketplaceManifest) Description() string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.Description
}

// PluginManifest is the per-plugin manifest.json structure.
type PluginManifest struct {
	Name        string   `json:"name" validate:"required"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	Author      *Owner   `json:"author,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	License     string   `json:"license,omitempty"`
}

// ValidationContext tunes schema validation.
type ValidationContext struct {
	// MaxSize rejects manifests larger than this many bytes before parsing.
	// Zero disables the ceiling.
	MaxSize int64
	// Strict escalates schema violations to errors; otherwise violations
	// are reported as warnings alongside the parsed value.
	Strict bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes a marketplace manifest without schema validation.
func Parse(data []byte) (*MarketplaceManifest, error) {
	var m MarketplaceManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apierrors.NewValidationError(fmt.Sprintf("marketplace manifest is not valid JSON: %v", err))
	}
	return &m, nil
}

// ParseAndValidate decodes a marketplace manifest and applies schema
// validation under the given context. In non-strict mode schema violations
// come back as warnings and the parsed value is still returned.
func ParseAndValidate(data []byte, vctx ValidationContext) (*MarketplaceManifest, []string, error) {
	if vctx.MaxSize > 0 && int64(len(data)) > vctx.MaxSize {
		return nil, nil, apierrors.NewValidationError(
			fmt.Sprintf("marketplace manifest exceeds size ceiling: %d > %d bytes", len(data), vctx.MaxSize))
	}

	m, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	if err := validate.Struct(m); err != nil {
		schemaErr := apierrors.NewSchemaError("marketplace manifest failed schema validation", err)
		if vctx.Strict {
			return nil, nil, schemaErr
		}
		return m, []string{schemaErr.Error()}, nil
	}

	return m, nil, nil
}

// ParsePlugin decodes and validates a per-plugin manifest.
func ParsePlugin(data []byte, vctx ValidationContext) (*PluginManifest, []string, error) {
	if vctx.MaxSize > 0 && int64(len(data)) > vctx.MaxSize {
		return nil, nil, apierrors.NewValidationError(
			fmt.Sprintf("plugin manifest exceeds size ceiling: %d > %d bytes", len(data), vctx.MaxSize))
	}

	var p PluginManifest
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil, apierrors.NewValidationError(fmt.Sprintf("plugin manifest is not valid JSON: %v", err))
	}

	if err := validate.Struct(&p); err != nil {
		schemaErr := apierrors.NewSchemaError("plugin manifest failed schema validation", err)
		if vctx.Strict {
			return nil, nil, schemaErr
		}
		return &p, []string{schemaErr.Error()}, nil
	}

	return &p, nil, nil
}

// Completeness scores how fully a marketplace manifest is filled in, 0..100.
// Weights: name 20, owner name 20, at least one plugin 20, description 15,
// every plugin described 15, version 10.
func Completeness(m *MarketplaceManifest) int {
	if m == nil {
		return 0
	}

	score := 0
	if m.Name != "" {
		score += 20
	}
	if m.Owner.Name != "" {
		score += 20
	}
	if len(m.Plugins) > 0 {
		score += 20

		described := 0
		for _, p := range m.Plugins {
			if p.Description != "" {
				described++
			}
		}
		if described == len(m.Plugins) {
			score += 15
		}
	}
	if m.Description() != "" {
		score += 15
	}
	if m.Metadata != nil && m.Metadata.Version != "" {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}
