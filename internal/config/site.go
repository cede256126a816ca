package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nao1215/scrapebook/internal/fetch"
	"github.com/nao1215/scrapebook/internal/recipe"
)

// SiteConfig holds request settings for a single host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Robots overrides the global robots.txt setting for this site.
	Robots *bool `yaml:"robots,omitempty"`
}

// SessionSettings converts the site config to HTTP session settings.
func (s SiteConfig) SessionSettings() fetch.SiteSettings {
	return fetch.SiteSettings{
		Cookie:    s.Cookie,
		Headers:   s.Headers,
		UserAgent: s.UserAgent,
		Robots:    s.Robots,
	}
}

// File represents the structure of the .scrapebook.yaml configuration file.
type File struct {
	// Defaults apply to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps host names (e.g. "www.espn.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Recipes are named browser recipes runnable with `scrapebook run NAME`.
	Recipes map[string]recipe.Recipe `yaml:"recipes,omitempty"`
}

// GetSiteConfig returns the configuration for a host.
// It merges the site-specific configuration with defaults. A host with a
// leading "www." also matches an entry without it.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	host = strings.ToLower(host)
	siteConfig, ok := cf.Sites[host]
	if !ok {
		siteConfig, ok = cf.Sites[strings.TrimPrefix(host, "www.")]
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.Robots != nil {
		result.Robots = siteConfig.Robots
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

// Recipe returns the named recipe with its Name set.
func (cf *File) Recipe(name string) (*recipe.Recipe, error) {
	r, ok := cf.Recipes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrRecipeNotFound, name, strings.Join(cf.RecipeNames(), ", "))
	}
	r.Name = name
	return &r, nil
}

// RecipeNames returns the recipe names in sorted order.
func (cf *File) RecipeNames() []string {
	return slices.Sorted(maps.Keys(cf.Recipes))
}
