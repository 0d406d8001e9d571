// Command clout resolves influencer names to enriched Instagram
// profiles and matches products to stored influencers.
//
// Usage:
//
//	clout "dhruv rathi"                    # resolve + enrich a name
//	clout -match "vegan protein powder"    # rank stored influencers
//	clout -reindex                         # rebuild the vector index
//	clout -stats                           # show store contents
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/clout"
	"github.com/codeGROOVE-dev/clout/httpcache"
	"github.com/codeGROOVE-dev/clout/vectorindex"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	verbose := flag.Bool("v", false, "verbose logging (same as -debug)")
	noCache := flag.Bool("no-cache", false, "disable HTTP response caching (enabled by default)")
	cacheTTL := flag.Duration("cache-ttl", 7*24*time.Hour, "cache time-to-live (default: 7 days, use 1h for testing)")
	dbPath := flag.String("db", clout.DefaultDBPath, "profile database path")
	match := flag.String("match", "", "rank stored influencers against a product description")
	topK := flag.Int("top", vectorindex.DefaultTopK, "number of matches to return with -match")
	reindex := flag.Bool("reindex", false, "rebuild the vector index from the profile database")
	stats := flag.Bool("stats", false, "show profile database statistics")
	flag.Parse()

	mode := flag.NArg() > 0 || *match != "" || *reindex || *stats
	if !mode {
		fmt.Fprintln(os.Stderr, "Usage: clout [options] <name>")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nEnvironment:")
		fmt.Fprintln(os.Stderr, "  CLOUT_OPENROUTER_API_KEY  LLM resolution, selection, scoring, embeddings")
		fmt.Fprintln(os.Stderr, "  CLOUT_SERPER_API_KEY      web search for profile candidates")
		fmt.Fprintln(os.Stderr, "  CLOUT_APIFY_TOKEN         profile and post scraping")
		fmt.Fprintln(os.Stderr, "\nWithout credentials, resolution and scoring run on heuristics")
		fmt.Fprintln(os.Stderr, "and -match falls back to keyword scoring over the local store.")
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if *debug || *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	opts := []clout.Option{clout.WithLogger(logger), clout.WithDBPath(*dbPath)}
	if !*noCache {
		cache, err := httpcache.New(*cacheTTL)
		if err != nil {
			logger.Warn("failed to initialize cache, continuing without cache", "error", err)
		} else {
			opts = append(opts, clout.WithHTTPCache(cache))
			logger.Debug("HTTP cache initialized", "ttl", cacheTTL.String())
		}
	}

	ctx := context.Background()

	switch {
	case *match != "":
		matches, err := clout.MatchProduct(ctx, *match, *topK, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, m := range matches {
			fmt.Fprintf(os.Stderr, "%d. %s\n", m.Rank, vectorindex.Explain(m, *match))
		}
		if err := outputJSON(matches); err != nil {
			fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
			os.Exit(1)
		}
	case *reindex:
		n, err := clout.Reindex(ctx, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("indexed %d profiles\n", n)
	case *stats:
		st, err := clout.DBStats(opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := outputJSON(st); err != nil {
			fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
			os.Exit(1)
		}
	default:
		query := strings.Join(flag.Args(), " ")
		opts = append(opts, clout.WithProgress(func(stage string, pct int) {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", pct, stage)
		}))
		result, err := clout.Find(ctx, query, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if result != nil && result.Reasoning != "" {
				fmt.Fprintf(os.Stderr, "  %s\n", result.Reasoning)
			}
			explainFailure(query)
			os.Exit(1)
		}
		if err := outputJSON(result.Influencer); err != nil {
			fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
			os.Exit(1)
		}
	}
}

// explainFailure tells the user what was tried and what to do next.
func explainFailure(query string) {
	fmt.Fprintf(os.Stderr, "\nTried for %q: spelling correction, local store lookup, web search, profile scrape.\n", query)
	fmt.Fprintln(os.Stderr, "Suggestions:")
	fmt.Fprintln(os.Stderr, "  - Check the spelling of the name")
	fmt.Fprintln(os.Stderr, "  - Confirm the Instagram profile exists and is public")
	fmt.Fprintln(os.Stderr, "  - Try the exact Instagram username instead of the display name")
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
