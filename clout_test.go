package clout

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/clout/profile"
	"github.com/codeGROOVE-dev/clout/store"
	"github.com/codeGROOVE-dev/clout/vectorindex"
)

// offline strips credentials so no call can leave the process.
func offline(dbPath string) []Option {
	return []Option{
		WithDBPath(dbPath),
		WithOpenRouterKey(""),
		WithSerperKey(""),
		WithApifyToken(""),
	}
}

func seed(t *testing.T, dbPath string, influencers ...*profile.Influencer) {
	t.Helper()
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, inf := range influencers {
		if err := st.Upsert(inf); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFindRejectsNonPerson(t *testing.T) {
	db := filepath.Join(t.TempDir(), "profiles.json")
	_, err := Find(context.Background(), "best gaming laptop 2024", offline(db)...)
	if !errors.Is(err, ErrNotAPerson) {
		t.Fatalf("Find() error = %v, want ErrNotAPerson", err)
	}
}

func TestFindReturnsFreshLocalRecord(t *testing.T) {
	db := filepath.Join(t.TempDir(), "profiles.json")
	seed(t, db, &profile.Influencer{
		Username:    "dhruvrathee",
		Name:        "Dhruv Rathee",
		LastScraped: time.Now(),
	})

	result, err := Find(context.Background(), "dhruv rathee", offline(db)...)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Influencer == nil || result.Influencer.Username != "dhruvrathee" {
		t.Fatalf("Influencer = %+v, want dhruvrathee", result.Influencer)
	}
}

func TestFindUsesSummaryTier(t *testing.T) {
	// A saved index pair beside an empty database still answers
	// username lookups locally, without web search or credentials.
	dir := t.TempDir()
	db := filepath.Join(dir, "profiles.json")
	cfg := newConfig(WithDBPath(db))

	index, err := vectorindex.Build([][]float32{{1}}, []string{"dhruvrathee"})
	if err != nil {
		t.Fatal(err)
	}
	if err := index.Save(cfg.indexPath(), cfg.mappingPath()); err != nil {
		t.Fatal(err)
	}

	result, err := Find(context.Background(), "dhruvrathee", offline(db)...)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Source != "embeddings:@dhruvrathee" {
		t.Errorf("Source = %q, want the summary tier", result.Source)
	}
	if result.Influencer == nil || result.Influencer.Username != "dhruvrathee" {
		t.Fatalf("Influencer = %+v", result.Influencer)
	}
}

func TestFindPrefersSavedSummariesFile(t *testing.T) {
	// A full summaries file enriches the lookup beyond usernames.
	dir := t.TempDir()
	db := filepath.Join(dir, "profiles.json")
	cfg := newConfig(WithDBPath(db))

	records := []vectorindex.Record{{Username: "dhruvrathee", Name: "Dhruv Rathee", Category: "Politics"}}
	if err := vectorindex.SaveSummaries(cfg.summariesPath(), records); err != nil {
		t.Fatal(err)
	}

	result, err := Find(context.Background(), "dhruv rathee", offline(db)...)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Source != "embeddings:@dhruvrathee" {
		t.Errorf("Source = %q, want the summary tier", result.Source)
	}
	if result.Influencer.Category != "Politics" {
		t.Errorf("Category = %q, want summary metadata carried over", result.Influencer.Category)
	}
}

func TestMatchProductEmptyStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "profiles.json")
	_, err := MatchProduct(context.Background(), "vegan protein powder", 5, offline(db)...)
	if !errors.Is(err, vectorindex.ErrEmptyIndex) {
		t.Fatalf("MatchProduct() error = %v, want ErrEmptyIndex", err)
	}
}

func TestMatchProductKeywordFallback(t *testing.T) {
	db := filepath.Join(t.TempDir(), "profiles.json")
	seed(t, db,
		&profile.Influencer{Username: "fitguy", Name: "Fit Guy", Category: "Fitness", LastScraped: time.Now()},
		&profile.Influencer{Username: "cookiemonster", Name: "Cookie Monster", Category: "Food", LastScraped: time.Now()},
	)

	matches, err := MatchProduct(context.Background(), "fitness resistance bands", 5, offline(db)...)
	if err != nil {
		t.Fatalf("MatchProduct() error: %v", err)
	}
	if len(matches) == 0 || matches[0].Username != "fitguy" {
		t.Fatalf("matches = %+v, want fitguy first", matches)
	}
}

func TestDBStats(t *testing.T) {
	db := filepath.Join(t.TempDir(), "profiles.json")
	seed(t, db,
		&profile.Influencer{Username: "b"},
		&profile.Influencer{Username: "a"},
	)

	st, err := DBStats(offline(db)...)
	if err != nil {
		t.Fatalf("DBStats() error: %v", err)
	}
	if st.TotalProfiles != 2 {
		t.Errorf("TotalProfiles = %d, want 2", st.TotalProfiles)
	}
	if len(st.Usernames) != 2 || st.Usernames[0] != "a" {
		t.Errorf("Usernames = %v, want sorted [a b]", st.Usernames)
	}
}

func TestIndexPathsNextToDB(t *testing.T) {
	cfg := newConfig(WithDBPath("/data/profiles.json"))
	if got := cfg.indexPath(); got != "/data/influencers.index" {
		t.Errorf("indexPath() = %q", got)
	}
	if got := cfg.mappingPath(); got != "/data/influencers_mapping.json" {
		t.Errorf("mappingPath() = %q", got)
	}
}
