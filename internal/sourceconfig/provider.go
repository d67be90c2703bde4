package sourceconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

// Provider resolves a source id to its configuration.
type Provider interface {
	GetConfig(ctx context.Context, sourceID string) (SourceConfig, error)
}

const cacheSize = 256

// DirProvider loads source configs from a directory of YAML files, one file
// per source id (<source_id>.yaml), with an LRU cache in front.
type DirProvider struct {
	dir   string
	cache *lru.Cache[string, SourceConfig]
}

// NewDirProvider creates a provider reading from dir.
func NewDirProvider(dir string) (*DirProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("source config dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source config dir: %s is not a directory", dir)
	}
	cache, err := lru.New[string, SourceConfig](cacheSize)
	if err != nil {
		return nil, err
	}
	return &DirProvider{dir: dir, cache: cache}, nil
}

// GetConfig loads and validates the config for sourceID.
func (p *DirProvider) GetConfig(_ context.Context, sourceID string) (SourceConfig, error) {
	if cfg, ok := p.cache.Get(sourceID); ok {
		return cfg, nil
	}

	path := filepath.Join(p.dir, sourceID+".yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return SourceConfig{}, NotFoundError(sourceID)
	}
	if err != nil {
		return SourceConfig{}, fmt.Errorf("read source config: %w", err)
	}

	var cfg SourceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SourceConfig{}, fmt.Errorf("parse source config %s: %w", sourceID, err)
	}
	if cfg.SourceID == "" {
		cfg.SourceID = sourceID
	}
	if cfg.SourceID != sourceID {
		return SourceConfig{}, fmt.Errorf("source config %s: source_id mismatch (%q)", sourceID, cfg.SourceID)
	}
	if err := cfg.Validate(); err != nil {
		return SourceConfig{}, fmt.Errorf("source config %s: %w", sourceID, err)
	}

	p.cache.Add(sourceID, cfg)
	return cfg, nil
}

// ListSources returns all source ids with a config file, sorted.
func (p *DirProvider) ListSources() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("list source configs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(ids)
	return ids, nil
}

// AgentIDs returns the distinct agent ids configured across all sources.
// The correlator subscribes to result topics for each of these.
func (p *DirProvider) AgentIDs(ctx context.Context) ([]string, error) {
	ids, err := p.ListSources()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var agents []string
	for _, id := range ids {
		cfg, err := p.GetConfig(ctx, id)
		if err != nil {
			return nil, err
		}
		if agent := cfg.Transformation.AIAgentID; agent != "" && !seen[agent] {
			seen[agent] = true
			agents = append(agents, agent)
		}
	}
	sort.Strings(agents)
	return agents, nil
}
