// Command cascade builds and queries the sharded Boolean index with optional
// neural reranking.
//
// Subcommands:
//
//	build-index         enumerate the corpus and write shards + document store
//	benchmark-indexing  build-index plus per-phase timings appended to a CSV
//	benchmark           run every topic against an existing index, append results CSV
//	interactive         REPL echoing Boolean and reranked results per query line
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cascadeir/cascade/internal/analytics"
	"github.com/cascadeir/cascade/internal/benchmark"
	"github.com/cascadeir/cascade/internal/bsbi"
	"github.com/cascadeir/cascade/internal/corpus"
	"github.com/cascadeir/cascade/internal/index"
	"github.com/cascadeir/cascade/internal/model"
	"github.com/cascadeir/cascade/internal/pipeline"
	"github.com/cascadeir/cascade/internal/queryparse"
	"github.com/cascadeir/cascade/internal/rerank"
	"github.com/cascadeir/cascade/internal/retrieval"
	searchcache "github.com/cascadeir/cascade/internal/search/cache"
	"github.com/cascadeir/cascade/internal/synonym"
	"github.com/cascadeir/cascade/internal/textnorm"
	"github.com/cascadeir/cascade/internal/trec"
	"github.com/cascadeir/cascade/internal/wordpiece"
	"github.com/cascadeir/cascade/pkg/config"
	pkgerrors "github.com/cascadeir/cascade/pkg/errors"
	"github.com/cascadeir/cascade/pkg/kafka"
	"github.com/cascadeir/cascade/pkg/logger"
	"github.com/cascadeir/cascade/pkg/metrics"
	"github.com/cascadeir/cascade/pkg/postgres"
	pkgredis "github.com/cascadeir/cascade/pkg/redis"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return pkgerrors.ExitMissingInput
	}
	command := args[0]

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	shards := fs.Int("shards", 0, "number of index shards (overrides config)")
	cpuWorkers := fs.Int("cpu-workers", 0, "indexing worker count (overrides config)")
	blockSize := fs.Int("block-size", 0, "run buffer size in MiB (overrides config)")
	label := fs.String("label", "", "benchmark label (overrides config)")
	useReranking := fs.Bool("use-reranking", true, "rescore candidates with the cross-encoder")
	if err := fs.Parse(args[1:]); err != nil {
		return pkgerrors.ExitMissingInput
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return pkgerrors.ExitMissingInput
	}
	if *shards > 0 {
		cfg.Index.NumShards = *shards
	}
	if *cpuWorkers > 0 {
		cfg.Index.NumWorkers = *cpuWorkers
	}
	if *blockSize > 0 {
		cfg.Index.BlockMiB = *blockSize
	}
	if *label != "" {
		cfg.Benchmark.Label = *label
	}
	cfg.Search.UseReranking = *useReranking

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "build-index":
		return buildIndex(ctx, cfg, m, false)
	case "benchmark-indexing":
		return buildIndex(ctx, cfg, m, true)
	case "benchmark":
		return runBenchmark(ctx, cfg, m)
	case "interactive":
		return runInteractive(ctx, cfg, m)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		usage()
		return pkgerrors.ExitMissingInput
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cascade <build-index|benchmark-indexing|benchmark|interactive> [flags]")
}

func newNormalizer(cfg *config.Config) (*textnorm.Normalizer, error) {
	if cfg.Corpus.StopWordFile != "" {
		return textnorm.NewFromFile(cfg.Corpus.StopWordFile)
	}
	return textnorm.New(), nil
}

func buildIndex(ctx context.Context, cfg *config.Config, m *metrics.Metrics, recordTimings bool) int {
	norm, err := newNormalizer(cfg)
	if err != nil {
		slog.Error("loading stop words", "error", err)
		return pkgerrors.ExitMissingInput
	}
	stream, err := corpus.New(cfg.Corpus.Dir, norm)
	if err != nil {
		slog.Error("enumerating corpus", "error", err)
		return pkgerrors.ExitCode(err)
	}

	indexer := bsbi.New(stream, cfg.Index, m)
	if err := indexer.Build(ctx); err != nil {
		slog.Error("index build failed", "error", err)
		return pkgerrors.ExitMissingInput
	}

	if recordTimings {
		path := filepath.Join(cfg.Benchmark.ResultsDir, benchmark.IndexingResultsFileName)
		err := benchmark.AppendIndexingCSV(path, cfg.Benchmark.Label,
			cfg.Index.NumWorkers, cfg.Index.NumShards, cfg.Index.BlockMiB,
			stream.Len(), indexer.Monitor().Timings())
		if err != nil {
			slog.Error("writing indexing benchmark CSV", "error", err)
			return pkgerrors.ExitMissingInput
		}
	}
	return pkgerrors.ExitOK
}

// openEngine loads the index and wires the query pipeline. The caller must
// invoke the returned cleanup.
func openEngine(cfg *config.Config, m *metrics.Metrics) (*pipeline.Engine, func(), error) {
	if !index.Exists(cfg.Index.Dir, cfg.Index.NumShards) {
		return nil, nil, pkgerrors.Newf(pkgerrors.ErrIndexMissing, pkgerrors.ExitMissingInput,
			"no complete index with %d shards under %s", cfg.Index.NumShards, cfg.Index.Dir)
	}

	norm, err := newNormalizer(cfg)
	if err != nil {
		return nil, nil, err
	}
	parser := queryparse.New(synonym.Load(cfg.Corpus.SynonymsFile))

	retriever, err := retrieval.Open(cfg.Index.Dir, cfg.Index.NumShards, m)
	if err != nil {
		return nil, nil, err
	}
	store, err := index.OpenDocStore(cfg.Index.Dir)
	if err != nil {
		retriever.Close()
		return nil, nil, err
	}

	var reranker *rerank.Service
	if cfg.Search.UseReranking {
		reranker = openReranker(cfg, m)
	}

	engine := pipeline.New(norm, parser, retriever, store, reranker, cfg.Search, m)
	cleanup := func() {
		if reranker != nil {
			reranker.Close()
		}
		store.Close()
		retriever.Close()
	}
	return engine, cleanup, nil
}

// openReranker loads the tokenizer and model. Load failures degrade to the
// failed-state service so Boolean-only queries keep working.
func openReranker(cfg *config.Config, m *metrics.Metrics) *rerank.Service {
	tokenizer, err := wordpiece.Load(cfg.Rerank.VocabPath)
	if err != nil {
		slog.Error("vocabulary load failed, reranking unavailable", "error", err)
		return rerank.New(nil, nil, cfg.Rerank, m)
	}
	session, err := rerank.NewOnnxSession(cfg.Rerank.ModelPath, cfg.Rerank.BatchSize, cfg.Rerank.MaxSeqLen, 2)
	if err != nil {
		slog.Error("model load failed, reranking unavailable", "error", err)
		return rerank.New(nil, nil, cfg.Rerank, m)
	}
	return rerank.New(session, tokenizer, cfg.Rerank, m)
}

func runBenchmark(ctx context.Context, cfg *config.Config, m *metrics.Metrics) int {
	engine, cleanup, err := openEngine(cfg, m)
	if err != nil {
		slog.Error("loading index", "error", err)
		return pkgerrors.ExitCode(err)
	}
	defer cleanup()

	topics, err := trec.LoadTopics(cfg.Corpus.TopicsFile)
	if err != nil {
		slog.Error("loading topics", "error", err)
		return pkgerrors.ExitMissingInput
	}
	judgments, err := trec.LoadQrels(cfg.Corpus.QrelsFile, engine.NameIndex())
	if err != nil {
		slog.Error("loading qrels", "error", err)
		return pkgerrors.ExitMissingInput
	}

	var pgStore *benchmark.Store
	if cfg.Benchmark.PersistPostgres {
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("postgres unavailable, skipping persistence", "error", err)
		} else {
			defer client.Close()
			if pgStore, err = benchmark.NewStore(ctx, client); err != nil {
				slog.Error("benchmark store init failed", "error", err)
				pgStore = nil
			}
		}
	}

	var collector *analytics.Collector
	if cfg.Benchmark.PublishEvents {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.AnalyticsEvents)
		collector = analytics.NewCollector(producer, 0)
		collector.Start(ctx)
		defer collector.Close()
	}

	runner := benchmark.New(engine, cfg.Benchmark, cfg.Index.NumWorkers, cfg.Search.UseReranking, pgStore, collector)
	if _, err := runner.Run(ctx, topics, judgments); err != nil {
		slog.Error("benchmark failed", "error", err)
		return pkgerrors.ExitMissingInput
	}
	return pkgerrors.ExitOK
}

func runInteractive(ctx context.Context, cfg *config.Config, m *metrics.Metrics) int {
	engine, cleanup, err := openEngine(cfg, m)
	if err != nil {
		slog.Error("loading index", "error", err)
		return pkgerrors.ExitCode(err)
	}
	defer cleanup()

	var cache *searchcache.ResultCache
	if cfg.Search.CacheResults {
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, running without result cache", "error", err)
		} else {
			defer client.Close()
			cache = searchcache.New(client, cfg.Redis, m)
		}
	}

	exitCode := pkgerrors.ExitOK
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("cascade interactive mode; enter a Boolean query per line, ctrl-d to exit")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		result, err := searchOnce(ctx, engine, cache, line)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrMalformedQuery) {
				fmt.Printf("malformed query: %v\n", err)
				exitCode = pkgerrors.ExitMalformedQuery
				continue
			}
			fmt.Printf("query failed: %v\n", err)
			continue
		}

		fmt.Printf("boolean candidates: %d\n", result.Metrics.NumCandidates)
		limit := 10
		if len(result.Ranked) < limit {
			limit = len(result.Ranked)
		}
		for i, sr := range result.Ranked[:limit] {
			fmt.Printf("%2d. %-30s score=%.4f\n", i+1, engine.DocName(sr.DocID), sr.Score)
		}
	}
	return exitCode
}

// searchOnce runs a query through the optional result cache.
func searchOnce(ctx context.Context, engine *pipeline.Engine, cache *searchcache.ResultCache, query string) (*pipeline.Result, error) {
	if cache == nil {
		return engine.Search(ctx, query)
	}
	tree, err := engine.Parse(query)
	if err != nil {
		return nil, err
	}
	var last *pipeline.Result
	ranked, hit, err := cache.GetOrCompute(ctx, tree, func() ([]model.SearchResult, error) {
		result, err := engine.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		last = result
		return result.Ranked, nil
	})
	if err != nil {
		return nil, err
	}
	if hit || last == nil {
		return &pipeline.Result{
			Ranked:  ranked,
			Metrics: model.QueryMetrics{NumCandidates: len(ranked)},
		}, nil
	}
	return last, nil
}
