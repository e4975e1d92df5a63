package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/classifier-cli/internal/classify"
	"github.com/sells-group/classifier-cli/internal/extraction"
	"github.com/sells-group/classifier-cli/internal/job"
	"github.com/sells-group/classifier-cli/internal/store"
	"github.com/sells-group/classifier-cli/internal/taxonomy"
	anthropicpkg "github.com/sells-group/classifier-cli/pkg/anthropic"
	"github.com/sells-group/classifier-cli/pkg/ollama"
)

// engineEnv holds the initialized store, index, and job manager needed by the
// classify/serve commands.
type engineEnv struct {
	Store   store.Store
	Index   *taxonomy.Index
	Manager *job.Manager
}

// Close releases resources held by the engine environment. Blocks until
// scheduled background jobs have drained.
func (e *engineEnv) Close() {
	if e.Manager != nil {
		e.Manager.Wait()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine loads the taxonomy, builds the index, and wires the scorer,
// selector, arbiter, store, and job manager. Callers should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	entries, err := taxonomy.LoadFile(cfg.Taxonomy.Path)
	if err != nil {
		return nil, err
	}

	lexicon, err := taxonomy.DefaultLexicon()
	if err != nil {
		return nil, err
	}

	var ollamaClient ollama.Client
	var embedder taxonomy.Embedder
	if cfg.Ollama.BaseURL != "" {
		ollamaClient = ollama.NewClient(
			ollama.WithBaseURL(cfg.Ollama.BaseURL),
			ollama.WithEmbedModel(cfg.Ollama.EmbedModel),
			ollama.WithGenerateModel(cfg.Ollama.GenerateModel),
			ollama.WithRateLimit(cfg.Ollama.RequestsPerSec),
		)
		embedder = ollamaClient
	} else {
		zap.L().Warn("ollama.base_url not set, semantic channel disabled")
	}

	index, err := taxonomy.BuildIndex(ctx, entries, embedder, lexicon)
	if err != nil {
		return nil, err
	}
	zap.L().Info("taxonomy index built",
		zap.Int("entries", len(index.Entries())),
		zap.String("path", cfg.Taxonomy.Path))

	generator, err := initGenerator(ollamaClient)
	if err != nil {
		return nil, err
	}

	scorer := classify.NewScorer(index, classify.Weights{
		Lexical:  cfg.Classify.LexicalWeight,
		Semantic: cfg.Classify.SemanticWeight,
		Keyword:  cfg.Classify.KeywordWeight,
		Domain:   cfg.Classify.DomainWeight,
	})
	selector := classify.NewSelector(scorer,
		cfg.Classify.TopSectors,
		cfg.Classify.TopIndustries,
		cfg.Classify.TopAlternatives,
		cfg.Classify.MarginThreshold,
	)
	arbiter := classify.NewArbiter(generator, time.Duration(cfg.Arbiter.TimeoutSecs)*time.Second)
	classifier := classify.New(scorer, selector, arbiter)

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	provider := extraction.NewFilesystemProvider(cfg.Extraction.DataDir)
	manager := job.NewManager(ctx, st, classifier, provider, cfg.Jobs.MaxConcurrent)

	return &engineEnv{Store: st, Index: index, Manager: manager}, nil
}

// initGenerator picks the arbiter backend. A nil generator means close calls
// fall back to the mechanical top pick.
func initGenerator(ollamaClient ollama.Client) (classify.Generator, error) {
	switch cfg.Arbiter.Provider {
	case "anthropic":
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		return classify.NewAnthropicGenerator(client, cfg.Anthropic.Model), nil
	case "ollama":
		if ollamaClient == nil {
			return nil, eris.New("arbiter.provider is ollama but ollama.base_url is not set")
		}
		return classify.NewOllamaGenerator(ollamaClient), nil
	case "off", "":
		zap.L().Info("arbiter disabled, ambiguous calls use the mechanical pick")
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported arbiter provider: %s", cfg.Arbiter.Provider)
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "classifier.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
