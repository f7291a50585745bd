// Command server runs the Hindsight query daemon: it opens the note store,
// connects the vector index, and answers natural-language activity queries
// over NATS.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/hindsight-ai/hindsight/pkg/agent/actions"
	"github.com/hindsight-ai/hindsight/pkg/agent/pipeline"
	"github.com/hindsight-ai/hindsight/pkg/agent/planner"
	"github.com/hindsight-ai/hindsight/pkg/ai"
	"github.com/hindsight-ai/hindsight/pkg/bootstrap"
	"github.com/hindsight-ai/hindsight/pkg/config"
	"github.com/hindsight-ai/hindsight/pkg/logging"
	"github.com/hindsight-ai/hindsight/pkg/store"
	"github.com/hindsight-ai/hindsight/pkg/timeparse"
	"github.com/hindsight-ai/hindsight/pkg/vector"
	"github.com/hindsight-ai/hindsight/pkg/websearch"
)

// QuerySubject receives {"query": "..."} requests. The reply carries the
// ExecutionResult JSON; results are also published on pipeline.ResultSubject.
const QuerySubject = "hindsight.query.ask"

const weaviateReadyTimeout = 5 * time.Second

type options struct {
	EnvFile      string `long:"env-file" description:"Env file to load before reading configuration"`
	DBPath       string `long:"db-path" description:"SQLite database path (overrides DB_PATH)"`
	EmbeddedNats string `long:"embedded-nats" description:"Start an in-process NATS server (overrides EMBEDDED_NATS)" choice:"true" choice:"false"`
	PrintEnv     bool   `long:"print-env" description:"Log resolved configuration values"`
}

type queryRequest struct {
	Query string `json:"query"`
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

	cfg, err := config.LoadConfig(opts.PrintEnv)
	if err != nil {
		panic(errors.Wrap(err, "Unable to load config"))
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.EmbeddedNats != "" {
		cfg.EmbeddedNats = opts.EmbeddedNats == "true"
	}
	logger.Info("Using database path", "path", cfg.DBPath)

	logs := logging.NewFactory(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.EmbeddedNats {
		natsServer, err := bootstrap.StartEmbeddedNATSServer(logger)
		if err != nil {
			panic(errors.Wrap(err, "Unable to start nats server"))
		}
		defer natsServer.Shutdown()
		cfg.NatsURL = natsServer.ClientURL()
		logger.Info("NATS server started")
	}

	nc, err := bootstrap.NewNatsClient(cfg.NatsURL)
	if err != nil {
		panic(errors.Wrap(err, "Unable to create nats client"))
	}
	defer nc.Close()
	logger.Info("NATS client started")

	st, err := store.Open(ctx, logs.ForComponent("store"), cfg.DBPath)
	if err != nil {
		panic(errors.Wrap(err, "Unable to create or initialize database"))
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Error closing store", "error", err)
		}
	}()
	logger.Info("SQLite database initialized")

	aiCompletionsService := ai.NewOpenAIService(logs.ForComponent("ai"), cfg.CompletionsAPIKey, cfg.CompletionsAPIURL)
	aiEmbeddingsService := ai.NewOpenAIService(logs.ForComponent("ai"), cfg.EmbeddingsAPIKey, cfg.EmbeddingsAPIURL)

	deps := actions.Deps{
		Logger:    logs.ForComponent("actions"),
		Store:     st,
		LLM:       aiCompletionsService,
		WebSearch: websearch.NewClient(logs.ForComponent("websearch"), cfg.WebSearchAPIURL, cfg.WebSearchAPIKey),
		Time:      timeparse.NewParser(),
		Model:     cfg.CompletionsModel,
	}
	// Assign only a live index: a typed nil in the interface would defeat the
	// nil checks the retrieval actions degrade on.
	if idx := openVectorIndex(ctx, logs.ForComponent("vector"), cfg, aiEmbeddingsService); idx != nil {
		deps.Vector = idx
	}

	pipe := pipeline.New(
		logs.ForComponent("pipeline"),
		planner.NewPlanner(logs.ForComponent("planner"), aiCompletionsService, cfg.CompletionsModel),
		actions.Global(),
		deps,
		nc,
	)

	sub, err := nc.Subscribe(QuerySubject, func(msg *nats.Msg) {
		go answer(ctx, logger, pipe, msg)
	})
	if err != nil {
		panic(errors.Wrap(err, "Unable to subscribe to query subject"))
	}
	defer func() { _ = sub.Unsubscribe() }()

	logger.Info("Hindsight server ready", "subject", QuerySubject, "nats", cfg.NatsURL)

	<-ctx.Done()
	logger.Info("Server shutting down...")
}

// openVectorIndex connects to Weaviate and ensures the schema. Any failure
// returns nil and the pipeline runs with store-only retrieval.
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
	logger.Info("Vector index ready", "host", cfg.WeaviateHost)
	return idx
}

// answer runs one query through the pipeline and replies with the result
// JSON. Malformed payloads and pipeline failures reply {"error": ...} so the
// caller always hears back.
func answer(ctx context.Context, logger *log.Logger, pipe *pipeline.Pipeline, msg *nats.Msg) {
	var req queryRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		reply(logger, msg, map[string]string{"error": "invalid query payload: " + err.Error()})
		return
	}

	result, err := pipe.Process(ctx, req.Query)
	if err != nil {
		reply(logger, msg, map[string]string{"error": err.Error()})
		return
	}
	reply(logger, msg, result)
}

func reply(logger *log.Logger, msg *nats.Msg, payload any) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to encode reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		logger.Error("Failed to send reply", "error", err)
	}
}
