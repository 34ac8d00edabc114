package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"slidecoffee/internal/domain"
)

const maxIncludeDepth = 10

// includer overlays files listed under "includes" onto a Config. Later files
// win over earlier ones; each file is read at most once.
type includer struct {
	visited map[string]bool
}

func newIncluder(root string) *includer {
	return &includer{visited: map[string]bool{root: true}}
}

// apply merges every file named by cfg.Includes, resolved against baseDir.
func (in *includer) apply(cfg *Config, baseDir string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("%w: includes nested deeper than %d", domain.ErrConfigLoad, maxIncludeDepth)
	}

	patterns := cfg.Includes
	cfg.Includes = nil
	for _, pattern := range patterns {
		paths, err := expandInclude(pattern, baseDir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("%w: include %q: %v", domain.ErrConfigLoad, p, err)
			}
			if in.visited[abs] {
				return fmt.Errorf("%w: circular include of %q", domain.ErrConfigLoad, abs)
			}
			in.visited[abs] = true

			if err := in.merge(cfg, abs, depth+1); err != nil {
				return err
			}
		}
	}
	cfg.Includes = nil
	return nil
}

// merge unmarshals one file onto cfg and follows its own includes.
func (in *includer) merge(cfg *Config, path string, depth int) error {
	if err := validatePermissions(path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: include %q: %v", domain.ErrConfigLoad, path, err)
	}
	if len(data) == 0 {
		return nil
	}

	cfg.Includes = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse include %q: %v", domain.ErrConfigLoad, path, err)
	}
	if len(cfg.Includes) == 0 {
		return nil
	}
	return in.apply(cfg, filepath.Dir(path), depth)
}

// expandInclude resolves pattern relative to baseDir. Globs that match
// nothing yield no paths; literal paths are returned as-is so a missing file
// is reported by merge. Paths may not leave baseDir.
func expandInclude(pattern, baseDir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(baseDir, pattern)
	}
	pattern = filepath.Clean(pattern)

	if rel, err := filepath.Rel(baseDir, pattern); err == nil && strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("%w: include %q escapes config directory", domain.ErrConfigLoad, pattern)
	}

	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: include glob %q: %v", domain.ErrConfigLoad, pattern, err)
	}
	return matches, nil
}
