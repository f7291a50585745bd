// Command seed loads a deterministic demo dataset into the note store: a few
// days of hourly and daily notes, the entities and edges they mention, and
// per-day aggregate rollups. When Weaviate is reachable the notes are also
// indexed for semantic search.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
	"github.com/hindsight-ai/hindsight/pkg/ai"
	"github.com/hindsight-ai/hindsight/pkg/bootstrap"
	"github.com/hindsight-ai/hindsight/pkg/config"
	"github.com/hindsight-ai/hindsight/pkg/logging"
	"github.com/hindsight-ai/hindsight/pkg/store"
	"github.com/hindsight-ai/hindsight/pkg/vector"
)

const weaviateReadyTimeout = 5 * time.Second

type options struct {
	EnvFile  string `long:"env-file" description:"Env file to load before reading configuration"`
	DBPath   string `long:"db-path" description:"SQLite database path (overrides DB_PATH)"`
	Days     int    `long:"days" default:"7" description:"Number of days to seed, ending today"`
	PrintEnv bool   `long:"print-env" description:"Log resolved configuration values"`
}

type hourlySpec struct {
	hour       int
	summary    string
	categories []string
	entities   []string
}

type daySpec struct {
	daily           string
	dailyCategories []string
	hours           []hourlySpec
	aggregates      []aggregateSpec
}

type aggregateSpec struct {
	keyType string
	key     string
	minutes float64
}

type edgeSpec struct {
	src      string
	dst      string
	edgeType string
	weight   float64
	coCount  int
}

var demoEntities = []types.Entity{
	{EntityID: "topic-quantum-physics", CanonicalName: "Quantum Physics", EntityType: "topic"},
	{EntityID: "topic-go", CanonicalName: "Go Programming", EntityType: "topic"},
	{EntityID: "artist-radiohead", CanonicalName: "Radiohead", EntityType: "artist"},
	{EntityID: "app-spotify", CanonicalName: "Spotify", EntityType: "app"},
	{EntityID: "app-vscode", CanonicalName: "VSCode", EntityType: "app"},
	{EntityID: "app-chrome", CanonicalName: "Chrome", EntityType: "app"},
	{EntityID: "domain-arxiv", CanonicalName: "arxiv.org", EntityType: "domain"},
	{EntityID: "domain-github", CanonicalName: "github.com", EntityType: "domain"},
}

var demoEdges = []edgeSpec{
	{"topic-quantum-physics", "artist-radiohead", types.EdgeStudiedWhile, 0.9, 12},
	{"topic-quantum-physics", "domain-arxiv", types.EdgeVisitedDomain, 0.7, 9},
	{"topic-quantum-physics", "app-spotify", types.EdgeCoOccurredWith, 0.4, 5},
	{"topic-go", "app-vscode", types.EdgeUsedApp, 0.85, 14},
	{"topic-go", "domain-github", types.EdgeVisitedDomain, 0.75, 10},
	{"topic-go", "artist-radiohead", types.EdgeCoOccurredWith, 0.35, 4},
	{"artist-radiohead", "app-spotify", types.EdgeUsedApp, 0.8, 11},
	{"app-vscode", "app-chrome", types.EdgeCoOccurredWith, 0.5, 7},
}

// demoDays cycles across the seeded window: a study day, a shipping day, a
// research day.
var demoDays = []daySpec{
	{
		daily:           "Split the day between quantum physics reading and Go refactoring, with Radiohead carrying the evening review session.",
		dailyCategories: []string{"learning", "coding", "music"},
		hours: []hourlySpec{
			{9, "Read arXiv papers on quantum entanglement and collected notes for the decoherence writeup.", []string{"learning"}, []string{"topic-quantum-physics", "domain-arxiv"}},
			{14, "Refactored the ingest worker in Go; long VSCode session reviewing pull requests on github.com.", []string{"coding"}, []string{"topic-go", "app-vscode", "domain-github"}},
			{20, "Listened to Radiohead's In Rainbows on Spotify while rereading the quantum physics notes.", []string{"music", "learning"}, []string{"artist-radiohead", "app-spotify", "topic-quantum-physics"}},
		},
		aggregates: []aggregateSpec{
			{"app", "VSCode", 160}, {"app", "Spotify", 85}, {"app", "Chrome", 40},
			{"topic", "Quantum Physics", 120}, {"topic", "Go Programming", 150},
			{"domain", "arxiv.org", 70}, {"domain", "github.com", 45},
			{"artist", "Radiohead", 85},
			{"category", "learning", 190}, {"category", "coding", 150}, {"category", "music", 85},
		},
	},
	{
		daily:           "Heads-down Go day: planner pairing in the morning, a migration bug hunt after lunch, music in the evening.",
		dailyCategories: []string{"coding", "music"},
		hours: []hourlySpec{
			{9, "Morning standup then pair programming on the query planner in VSCode.", []string{"coding"}, []string{"topic-go", "app-vscode"}},
			{14, "Debugged SQLite migration ordering; browsed github.com issues in Chrome.", []string{"coding"}, []string{"topic-go", "domain-github", "app-chrome"}},
			{20, "Wound down with a Radiohead live set on Spotify.", []string{"music"}, []string{"artist-radiohead", "app-spotify"}},
		},
		aggregates: []aggregateSpec{
			{"app", "VSCode", 240}, {"app", "Spotify", 60}, {"app", "Chrome", 70},
			{"topic", "Go Programming", 260},
			{"domain", "github.com", 90},
			{"artist", "Radiohead", 60},
			{"category", "coding", 310}, {"category", "music", 60},
		},
	},
	{
		daily:           "Research-heavy day around quantum error correction, closed out with a bike ride and ambient playlists.",
		dailyCategories: []string{"learning", "fitness", "music"},
		hours: []hourlySpec{
			{9, "Skimmed new arXiv preprints on decoherence over coffee.", []string{"learning"}, []string{"topic-quantum-physics", "domain-arxiv"}},
			{14, "Watched a lecture on quantum error correction and summarized the stabilizer codes section.", []string{"learning"}, []string{"topic-quantum-physics"}},
			{20, "Evening bike ride, then ambient playlists on Spotify.", []string{"fitness", "music"}, []string{"app-spotify"}},
		},
		aggregates: []aggregateSpec{
			{"app", "Spotify", 50}, {"app", "Chrome", 90}, {"app", "VSCode", 30},
			{"topic", "Quantum Physics", 220},
			{"domain", "arxiv.org", 110},
			{"artist", "Radiohead", 25},
			{"category", "learning", 230}, {"category", "music", 50}, {"category", "fitness", 45},
		},
	},
}

func main() {
	logger := bootstrap.NewLogger()

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			return
		}
		panic(errors.Wrap(err, "Unable to parse flags"))
	}
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			panic(errors.Wrap(err, "Unable to load env file"))
		}
	}
	if opts.Days <= 0 {
		opts.Days = 7
	}

	cfg, err := config.LoadConfig(opts.PrintEnv)
	if err != nil {
		panic(errors.Wrap(err, "Unable to load config"))
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}

	ctx := context.Background()
	logs := logging.NewFactory(logger)

	st, err := store.Open(ctx, logs.ForComponent("store"), cfg.DBPath)
	if err != nil {
		panic(errors.Wrap(err, "Unable to create or initialize database"))
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Error closing store", "error", err)
		}
	}()

	notes, err := seed(ctx, logger, st, opts.Days)
	if err != nil {
		panic(errors.Wrap(err, "Unable to seed demo data"))
	}
	logger.Info("Demo data written",
		"path", cfg.DBPath,
		"days", opts.Days,
		"notes", len(notes),
		"entities", len(demoEntities),
		"edges", len(demoEdges))

	aiEmbeddingsService := ai.NewOpenAIService(logs.ForComponent("ai"), cfg.EmbeddingsAPIKey, cfg.EmbeddingsAPIURL)
	idx := openVectorIndex(ctx, logs.ForComponent("vector"), cfg, aiEmbeddingsService)
	if idx == nil {
		logger.Warn("Vector index not seeded; semantic search will fall back to the store")
		return
	}
	if err := idx.Add(ctx, notes); err != nil {
		logger.Error("Failed to index demo notes", "error", err)
		return
	}
	logger.Info("Demo notes indexed", "count", len(notes))
}

// seed writes entities, edges, notes and aggregates for the trailing window
// ending today. Notes, entities and edges upsert, so reseeding refreshes them
// in place; aggregate rows are append-only and are skipped when the window
// already holds demo days.
func seed(ctx context.Context, logger *log.Logger, st *store.Store, days int) ([]types.Note, error) {
	now := time.Now()
	base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, e := range demoEntities {
		if err := st.UpsertEntity(ctx, e); err != nil {
			return nil, err
		}
	}
	lastSeen := base.Add(24 * time.Hour).Unix()
	for _, e := range demoEdges {
		if err := st.UpsertEdge(ctx, e.src, e.dst, e.edgeType, e.weight, e.coCount, lastSeen); err != nil {
			return nil, err
		}
	}

	withAggregates, err := aggregatesSafe(ctx, st, base, days)
	if err != nil {
		return nil, err
	}
	if !withAggregates {
		logger.Warn("Demo days already present; skipping aggregate rows to avoid double counting")
	}

	var notes []types.Note
	for i := days - 1; i >= 0; i-- {
		day := base.AddDate(0, 0, -i)
		spec := demoDays[(days-1-i)%len(demoDays)]
		dayNotes, err := seedDay(ctx, st, day, spec, withAggregates)
		if err != nil {
			return nil, err
		}
		notes = append(notes, dayNotes...)
	}
	return notes, nil
}

// aggregatesSafe reports whether the seed window is free of earlier demo
// daily notes. Aggregates are summed at query time, so writing them twice
// would double every minute count.
func aggregatesSafe(ctx context.Context, st *store.Store, base time.Time, days int) (bool, error) {
	start := base.AddDate(0, 0, -(days - 1))
	end := base.Add(24 * time.Hour)
	existing, err := st.NotesInRange(ctx, &types.TimeFilter{Start: &start, End: &end}, types.NoteTypeDaily, days+1)
	if err != nil {
		return false, err
	}
	for _, n := range existing {
		if strings.HasPrefix(n.NoteID, "demo-daily-") {
			return false, nil
		}
	}
	return true, nil
}

func seedDay(ctx context.Context, st *store.Store, day time.Time, spec daySpec, withAggregates bool) ([]types.Note, error) {
	stamp := day.Format("2006-01-02")
	dayStart := day.Unix()
	dayEnd := day.Add(24 * time.Hour).Unix()

	var notes []types.Note
	var dayEntityIDs []string
	seen := map[string]bool{}

	for _, h := range spec.hours {
		start := day.Add(time.Duration(h.hour) * time.Hour)
		note := types.Note{
			NoteID:     fmt.Sprintf("demo-hourly-%s-%02d", stamp, h.hour),
			NoteType:   types.NoteTypeHourly,
			StartTS:    start.Unix(),
			EndTS:      start.Add(time.Hour).Unix(),
			Summary:    h.summary,
			Categories: h.categories,
		}
		if err := st.InsertNote(ctx, note); err != nil {
			return nil, err
		}
		for _, id := range h.entities {
			if err := st.LinkNoteEntity(ctx, note.NoteID, id); err != nil {
				return nil, err
			}
			if !seen[id] {
				seen[id] = true
				dayEntityIDs = append(dayEntityIDs, id)
			}
		}
		notes = append(notes, note)
	}

	daily := types.Note{
		NoteID:     "demo-daily-" + stamp,
		NoteType:   types.NoteTypeDaily,
		StartTS:    dayStart,
		EndTS:      dayEnd,
		Summary:    spec.daily,
		Categories: spec.dailyCategories,
	}
	if err := st.InsertNote(ctx, daily); err != nil {
		return nil, err
	}
	for _, id := range dayEntityIDs {
		if err := st.LinkNoteEntity(ctx, daily.NoteID, id); err != nil {
			return nil, err
		}
	}
	notes = append(notes, daily)

	if withAggregates {
		for _, a := range spec.aggregates {
			if err := st.InsertAggregate(ctx, a.keyType, a.key, dayStart, dayEnd, a.minutes); err != nil {
				return nil, err
			}
		}
	}
	return notes, nil
}

// openVectorIndex mirrors the server's degraded mode: any failure along the
// way returns nil and the dataset stays store-only.
func openVectorIndex(ctx context.Context, logger *log.Logger, cfg *config.Config, embedder vector.Embedder) *vector.Index {
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		logger.Warn("No vector index: failed to create Weaviate client", "error", err)
		return nil
	}

	readyCtx, cancel := context.WithTimeout(ctx, weaviateReadyTimeout)
	defer cancel()
	if ready, err := client.Misc().ReadyChecker().Do(readyCtx); err != nil || !ready {
		logger.Warn("No vector index: Weaviate not reachable", "host", cfg.WeaviateHost, "error", err)
		return nil
	}

	idx := vector.NewIndex(logger, client, embedder, cfg.EmbeddingsModel)
	if err := idx.EnsureSchema(ctx); err != nil {
		logger.Warn("No vector index: schema setup failed", "error", err)
		return nil
	}
	return idx
}
