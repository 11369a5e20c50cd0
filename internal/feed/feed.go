// Package feed loads the configured source table and pulls the newest
// entries from every source.
package feed

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/nikizi1234-ship-it/Ai-Post/internal/logger"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/metrics"
)

// Source is one syndication feed with its display name and the hashtag set
// the formatter attaches to posts from it. The table is static configuration.
type Source struct {
	Name string   `yaml:"name"`
	URL  string   `yaml:"url"`
	Tags []string `yaml:"tags"`
}

// Entry is one item pulled from a source, before normalization.
type Entry struct {
	Title     string
	Link      string
	Summary   string
	Published time.Time // zero when the feed gave no parseable timestamp
	Source    Source

	// SourceIndex is the source's position in the declaration order,
	// Order the entry's position within that source's fetch. Both feed the
	// stable tie-breaks downstream.
	SourceIndex int
	Order       int
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads the YAML source table.
func LoadSources(path string) ([]Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources config: %w", err)
	}
	defer f.Close()

	var cfg sourcesFile
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse sources config: %w", err)
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("sources config %s lists no sources", path)
	}
	for i, s := range cfg.Sources {
		if s.URL == "" {
			return nil, fmt.Errorf("source %d (%s) has no url", i, s.Name)
		}
	}
	return cfg.Sources, nil
}

// Fetcher pulls entries from all sources concurrently.
type Fetcher struct {
	sources []Source
	perFeed int
	timeout time.Duration
}

func NewFetcher(sources []Source, perFeed int, timeout time.Duration) *Fetcher {
	return &Fetcher{sources: sources, perFeed: perFeed, timeout: timeout}
}

// FetchAll retrieves up to perFeed newest entries from every source. Sources
// are fetched in parallel, each under its own timeout. A failing source is
// logged and contributes zero entries; it never aborts the others. The result
// is flattened in source declaration order.
func (f *Fetcher) FetchAll(ctx context.Context) []Entry {
	results := make([][]Entry, len(f.sources))

	var wg sync.WaitGroup
	for i, src := range f.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()

			entries, err := f.fetchOne(ctx, i, src)
			if err != nil {
				logger.Warn("feed fetch failed", "source", src.Name, "url", src.URL, "err", err)
				metrics.Global.IncSourceFailed()
				return
			}
			results[i] = entries
			logger.Debug("feed fetched", "source", src.Name, "entries", len(entries))
		}(i, src)
	}
	wg.Wait()

	var all []Entry
	for _, entries := range results {
		all = append(all, entries...)
	}
	metrics.Global.AddEntriesFetched(int64(len(all)))
	logger.Info("feeds fetched", "sources", len(f.sources), "entries", len(all))
	return all
}

func (f *Fetcher) fetchOne(ctx context.Context, index int, src Source) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parsed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, err
	}

	limit := f.perFeed
	if limit > len(parsed.Items) {
		limit = len(parsed.Items)
	}

	entries := make([]Entry, 0, limit)
	for order, item := range parsed.Items[:limit] {
		if item == nil {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		entries = append(entries, Entry{
			Title:       item.Title,
			Link:        item.Link,
			Summary:     summary,
			Published:   published,
			Source:      src,
			SourceIndex: index,
			Order:       order,
		})
	}
	return entries, nil
}
