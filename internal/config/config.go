// Package config holds the flag/env plumbing shared by the command binaries:
// model failover chain parsing and env fallbacks for connection strings.
package config

import (
	"fmt"
	"strings"

	"docpipe/internal/mapping"
	"docpipe/internal/mapping/provider"
	"docpipe/internal/mapping/provider/anthropic"
	"docpipe/internal/mapping/provider/openai"
)

// ModelSpec is one parsed entry of the -models flag.
type ModelSpec struct {
	Vendor string
	Model  string
}

// ParseModelSpecs splits "openai/gpt-4o-mini,anthropic/claude-3-haiku" into
// ordered (vendor, model) pairs. Blank entries are skipped; an entry without
// a slash is an error.
func ParseModelSpecs(csv string) ([]ModelSpec, error) {
	var out []ModelSpec
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		vendor, model, ok := strings.Cut(part, "/")
		vendor, model = strings.TrimSpace(vendor), strings.TrimSpace(model)
		if !ok || vendor == "" || model == "" {
			return nil, fmt.Errorf("malformed model entry %q, want provider/model", part)
		}
		out = append(out, ModelSpec{Vendor: vendor, Model: model})
	}
	return out, nil
}

// BuildModels parses the -models flag into the resolver's failover chain.
// Providers are constructed once per vendor and shared across entries so
// they reuse one HTTP client. API keys come from the providers' env vars.
func BuildModels(csv string) ([]mapping.ModelRef, error) {
	specs, err := ParseModelSpecs(csv)
	if err != nil {
		return nil, err
	}

	cache := map[string]provider.Provider{}
	out := make([]mapping.ModelRef, 0, len(specs))
	for _, s := range specs {
		p, ok := cache[s.Vendor]
		if !ok {
			var err error
			switch s.Vendor {
			case "openai":
				p, err = openai.New("")
			case "anthropic":
				p, err = anthropic.New("")
			default:
				return nil, fmt.Errorf("unknown provider %q in %q", s.Vendor, csv)
			}
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", s.Vendor, err)
			}
			cache[s.Vendor] = p
		}
		out = append(out, mapping.ModelRef{Provider: p, Model: s.Model})
	}
	return out, nil
}
