package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/telemetry"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/capability"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/dataset"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/knowledge"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/store"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/worker"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider"
	anthropic_provider "github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider/anthropic"
	openai_provider "github.com/vishal2002series1/synthetic-data-kit-with-trajectory/provider/openai"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/session"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/session/inmemory"
	redis_session "github.com/vishal2002series1/synthetic-data-kit-with-trajectory/session/redis"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/tools/embedding"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/tools/search"
)

// app holds the shared dependencies built from config. Members are
// created lazily so commands only pay for what they use.
type app struct {
	cfg    *config.Config
	tele   *telemetry.Telemetry
	logger *log.Logger

	backend  provider.Completer
	embedder *embedding.Embedding
	index    *knowledge.Index
	rdb      redis.UniversalClient
	db       *store.Store

	closers []func() error
}

func newApp(cfg *config.Config) *app {
	return &app{
		cfg:    cfg,
		tele:   telemetry.NewTelemetry(cfg.Telemetry),
		logger: log.New(log.Writer(), "[TRAJGEN] ", log.LstdFlags),
	}
}

// startTelemetry exposes metrics and installs trace export when enabled.
func (a *app) startTelemetry(ctx context.Context) {
	a.tele.StartServer()
	if err := a.tele.SetupTracing(ctx, "trajgen"); err != nil {
		a.logger.Printf("tracing disabled: %v", err)
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Printf("close: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.tele.Shutdown(ctx)
}

func (a *app) retryPolicy() provider.RetryPolicy {
	attempts := a.cfg.LLM.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	return provider.RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   a.cfg.LLM.RetryDelay,
		OnRetry: func(int, error, time.Duration) {
			a.tele.RecordRetry()
		},
	}
}

// Backend returns the retrying completion backend.
func (a *app) Backend() (provider.Completer, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	llm := a.cfg.LLM
	factories := map[provider.Client]provider.Factory{
		provider.Anthropic: func() (provider.Completer, error) {
			c, err := anthropic_provider.New(anthropic_provider.Config{
				APIKey:  llm.APIKey,
				Model:   llm.Model,
				BaseURL: llm.BaseURL,
				Timeout: llm.Timeout,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		provider.OpenAI: func() (provider.Completer, error) {
			if llm.APIKey == "" {
				return nil, errors.New("openai: api key is required")
			}
			return openai_provider.NewOpenAIClient(llm.APIKey, llm.BaseURL, llm.Model, llm.EmbeddingModel, llm.Timeout), nil
		},
	}
	backend, err := provider.NewProvider(provider.Client(llm.Provider), factories, a.retryPolicy(),
		log.New(log.Writer(), "[PROVIDER] ", log.LstdFlags))
	if err != nil {
		return nil, err
	}
	a.backend = backend
	return backend, nil
}

// Embedder returns the embedding client, or nil when the configured
// provider has no embeddings endpoint.
func (a *app) Embedder() *embedding.Embedding {
	if a.embedder != nil {
		return a.embedder
	}
	llm := a.cfg.LLM
	if provider.Client(llm.Provider) != provider.OpenAI || llm.APIKey == "" || llm.EmbeddingModel == "" {
		return nil
	}
	a.embedder = embedding.NewEmbedding(openai_provider.NewOpenAIClient(llm.APIKey, llm.BaseURL, llm.Model, llm.EmbeddingModel, llm.Timeout))
	return a.embedder
}

// Index opens the knowledge index at retrieval.index_path.
func (a *app) Index() (*knowledge.Index, error) {
	if a.index != nil {
		return a.index, nil
	}
	ix, err := knowledge.Open(a.cfg.Retrieval.IndexPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open knowledge index: %w", err)
	}
	a.index = ix
	a.closers = append(a.closers, ix.Close)
	return ix, nil
}

// Search returns the retriever over the index. Vector fusion is used only
// when retrieval.hybrid is set and an embedder is available.
func (a *app) Search() (search.Search, error) {
	ix, err := a.Index()
	if err != nil {
		return search.Search{}, err
	}
	var emb *embedding.Embedding
	if a.cfg.Retrieval.Hybrid {
		if emb = a.Embedder(); emb == nil {
			a.logger.Printf("retrieval.hybrid set but no embedding backend is available; using BM25 only")
		}
	}
	return search.NewSearch(ix, emb, nil), nil
}

// Redis returns a client when storage.redis is configured.
func (a *app) Redis(ctx context.Context) (redis.UniversalClient, error) {
	if a.rdb != nil {
		return a.rdb, nil
	}
	rc := a.cfg.Storage.Redis
	if !rc.Configured() {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:        rc.Addr(),
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.rdb = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) StateStore(ctx context.Context) (session.Store, error) {
	switch session.StoreType(a.cfg.Storage.StateBackend) {
	case session.RedisStore:
		client, err := a.Redis(ctx)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, errors.New("storage.redis must be configured for the redis state backend")
		}
		ttl := a.cfg.Generation.TrajectoryTimeout * 2
		if ttl <= 0 {
			ttl = time.Hour
		}
		return redis_session.NewFromClient(client, ttl), nil
	default:
		return inmemory.NewInMemoryStateStore(), nil
	}
}

// Store opens Postgres when configured; nil otherwise.
func (a *app) Store(ctx context.Context) (*store.Store, error) {
	if a.db != nil {
		return a.db, nil
	}
	pg := a.cfg.Storage.Postgres
	if !pg.Configured() {
		return nil, nil
	}
	if err := pg.Validate(); err != nil {
		return nil, err
	}
	st, err := store.NewWithDSN(ctx, pg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.db = st
	a.closers = append(a.closers, st.Close)
	return st, nil
}

// Orchestrator wires policy, executor, catalog and state table.
func (a *app) Orchestrator(ctx context.Context, maxIterations int) (*core.Orchestrator, error) {
	backend, err := a.Backend()
	if err != nil {
		return nil, err
	}
	retriever, err := a.Search()
	if err != nil {
		return nil, err
	}
	states, err := a.StateStore(ctx)
	if err != nil {
		return nil, err
	}
	gen := a.cfg.Generation
	if maxIterations <= 0 {
		maxIterations = gen.MaxIterations
	}
	catalog := capability.LoadCatalog(a.cfg.Tools.DefinitionsFile, a.cfg.Tools.SigningSecret, nil)
	if catalog.Len() == 0 {
		a.logger.Printf("tool catalog %s is empty; decisions will see no tools", a.cfg.Tools.DefinitionsFile)
	}

	policy := core.NewPolicy(backend,
		core.WithSampling(gen.MaxTokens, gen.Temperature),
		core.WithPolicyTelemetry(a.tele),
	)
	executor := core.NewToolExecutor(retriever,
		core.WithSearchTopK(a.cfg.Retrieval.SearchTopK),
		core.WithExecutorTelemetry(a.tele),
		core.WithArgumentValidator(catalog),
	)
	return core.NewOrchestrator(policy, executor, catalog,
		core.WithMaxIterations(maxIterations),
		core.WithStateStore(states),
		core.WithTelemetry(a.tele),
		core.WithDebug(a.cfg.General.Debug),
	), nil
}

// Sink opens the file sink at path and adds the Postgres sink when
// storage.postgres is configured.
func (a *app) Sink(ctx context.Context, path string) (dataset.Sink, error) {
	file, err := dataset.NewFileSink(path, a.cfg.Output)
	if err != nil {
		return nil, err
	}
	st, err := a.Store(ctx)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if st == nil {
		return file, nil
	}
	return dataset.MultiSink{file, store.NewSink(st, a.cfg.Output.Fields)}, nil
}

// Runner builds the batch runner with a stderr progress line.
func (a *app) Runner(gen worker.Generator, sink dataset.Sink) *worker.Runner {
	return worker.NewRunner(gen,
		worker.WithConcurrency(a.cfg.Generation.Concurrency),
		worker.WithTimeout(a.cfg.Generation.TrajectoryTimeout),
		worker.WithSink(sink),
		worker.WithProgress(func(done, total int, res worker.Result) {
			status := string(res.Trajectory.Outcome)
			if res.Err != nil {
				status = "failed: " + res.Err.Error()
			}
			a.logger.Printf("[%d/%d] query %d: %d example(s), %s", done, total, res.Query.ID, len(res.Trajectory.Examples), status)
		}),
	)
}
