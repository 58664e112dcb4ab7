package main

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/kbukum/remworker/bootstrap"
	"github.com/kbukum/remworker/database"
	"github.com/kbukum/remworker/diarization"
	"github.com/kbukum/remworker/diarization/pyannote"
	"github.com/kbukum/remworker/dynamodb"
	"github.com/kbukum/remworker/enrichment"
	"github.com/kbukum/remworker/llm"
	"github.com/kbukum/remworker/llm/ollama"
	"github.com/kbukum/remworker/llm/openai"
	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/observability"
	"github.com/kbukum/remworker/provider"
	"github.com/kbukum/remworker/queue"
	"github.com/kbukum/remworker/queue/kafka"
	"github.com/kbukum/remworker/queue/memory"
	"github.com/kbukum/remworker/queue/sqs"
	"github.com/kbukum/remworker/recording"
	recdynamo "github.com/kbukum/remworker/recording/dynamostore"
	recmemory "github.com/kbukum/remworker/recording/memory"
	recsql "github.com/kbukum/remworker/recording/sqlstore"
	"github.com/kbukum/remworker/redis"
	"github.com/kbukum/remworker/server"
	"github.com/kbukum/remworker/speaker"
	spkdynamo "github.com/kbukum/remworker/speaker/dynamostore"
	spkmemory "github.com/kbukum/remworker/speaker/memory"
	"github.com/kbukum/remworker/speaker/redisstore"
	spksql "github.com/kbukum/remworker/speaker/sqlstore"
	"github.com/kbukum/remworker/storage"
	_ "github.com/kbukum/remworker/storage/local"
	_ "github.com/kbukum/remworker/storage/minio"
	_ "github.com/kbukum/remworker/storage/s3"
	"github.com/kbukum/remworker/transcription"
	"github.com/kbukum/remworker/transcription/whisper"
	"github.com/kbukum/remworker/worker"
)

const probeTimeout = 5 * time.Second

//go:embed migrations/*.sql
var migrations embed.FS

// infra holds the components started before the pipeline is built.
type infra struct {
	storage  *storage.Component
	dynamo   *dynamodb.Component
	db       *database.Component
	redis    *redis.Component
	source   queue.Source
	memQueue *memory.Queue
}

// wire registers infrastructure on app and defers building the pipeline
// to the configure phase, once clients are connected.
func wire(app *bootstrap.App[*Config]) error {
	cfg, log := app.Cfg, app.Logger
	in := &infra{}

	in.storage = storage.NewComponent(cfg.Storage.Config, cfg.Storage.ProviderSettings(), log)
	if err := app.RegisterComponent(in.storage); err != nil {
		return err
	}

	if tables := dynamoTables(cfg); len(tables) > 0 {
		in.dynamo = dynamodb.NewComponent(cfg.DynamoDB, log, tables...)
		if err := app.RegisterComponent(in.dynamo); err != nil {
			return err
		}
	}
	if cfg.Stores.Status == StoreSQL || cfg.Stores.Profiles == StoreSQL {
		in.db = database.NewComponent(cfg.Database, log).
			WithAutoMigrate(&recsql.StatusRow{}, &spksql.ProfileRow{}).
			WithMigrations(migrations, "migrations")
		if err := app.RegisterComponent(in.db); err != nil {
			return err
		}
	}
	if cfg.Redis.Enabled {
		in.redis = redis.NewComponent(cfg.Redis, log)
		if err := app.RegisterComponent(in.redis); err != nil {
			return err
		}
	}

	src, err := newSource(cfg, in, log)
	if err != nil {
		return err
	}
	in.source = src
	if err := app.RegisterComponent(queue.NewComponent(src)); err != nil {
		return err
	}

	app.OnStart(func(ctx context.Context) error {
		return initObservability(ctx, app)
	})
	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		return configure(ctx, a, in)
	})
	return nil
}

func dynamoTables(cfg *Config) []string {
	var tables []string
	if cfg.Stores.Status == StoreDynamoDB {
		tables = append(tables, cfg.Stores.RecordingsTable)
	}
	if cfg.Stores.Profiles == StoreDynamoDB {
		tables = append(tables, cfg.Stores.ProfilesTable)
	}
	return tables
}

func newSource(cfg *Config, in *infra, log *logger.Logger) (queue.Source, error) {
	switch cfg.Queue.Backend {
	case queue.BackendMemory:
		in.memQueue = memory.New(cfg.Queue.Lease, memory.WithWait(cfg.Queue.WaitTime))
		return in.memQueue, nil
	case queue.BackendKafka:
		return kafka.New(cfg.Queue.Kafka, log.WithComponent("kafka"))
	default:
		client, err := sqs.NewClient(context.Background(), cfg.Queue.SQS)
		if err != nil {
			return nil, err
		}
		return sqs.New(cfg.Queue.SQS, client)
	}
}

func initObservability(ctx context.Context, app *bootstrap.App[*Config]) error {
	ocfg := app.Cfg.Observability
	if !ocfg.Enabled {
		return nil
	}
	if ocfg.ServiceVersion == "" || ocfg.ServiceVersion == "dev" {
		ocfg.ServiceVersion = app.Version
	}
	mp, err := observability.InitMeter(ctx, ocfg)
	if err != nil {
		return err
	}
	tp, err := observability.InitTracer(ctx, ocfg)
	if err != nil {
		return err
	}
	app.OnStop(mp.Shutdown, tp.Shutdown)
	return nil
}

// configure builds stores, capabilities, the processor and the HTTP API,
// then registers the server and worker so they start last.
func configure(ctx context.Context, app *bootstrap.App[*Config], in *infra) error {
	cfg, log := app.Cfg, app.Logger

	status, err := newStatusStore(cfg, in)
	if err != nil {
		return err
	}
	profiles, err := newProfileStore(cfg, in)
	if err != nil {
		return err
	}

	transcriber, err := newTranscriber(ctx, cfg, log)
	if err != nil {
		return err
	}
	diarizer := newDiarizer(ctx, cfg)
	resolver := newResolver(ctx, cfg, in, profiles, log)
	enricher := newEnricher(ctx, cfg, log)
	log.Info("capabilities resolved", logger.Fields(
		"transcription", transcriber.Name(),
		"diarization", capabilityState(diarizer.IsAvailable(), diarizer.Reason()),
		"speaker_resolution", capabilityState(resolver.IsAvailable(), resolver.Reason()),
		"enrichment", capabilityState(enricher.IsAvailable(), enricher.Reason()),
	))

	metrics, err := observability.NewPipelineMetrics(observability.Meter("remworker/worker"))
	if err != nil {
		return err
	}

	proc, err := worker.NewProcessor(cfg.Worker, worker.Deps{
		Storage:     in.storage.Storage(),
		Transcriber: transcriber,
		Diarizer:    diarizer,
		Resolver:    resolver,
		Enricher:    enricher,
		Status:      status,
		Metrics:     metrics,
		Log:         log.WithComponent("processor"),
	})
	if err != nil {
		return err
	}

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, log)
		srv.RegisterProbes(cfg.Name, app.Components.HealthAll)
		api := server.API{Status: status, Profiles: profiles}
		if in.memQueue != nil {
			api.Jobs = in.memQueue
		}
		srv.RegisterAPI(api)
		if err := app.RegisterComponent(srv); err != nil {
			return err
		}
	}

	return app.RegisterComponent(worker.New(cfg.Worker, cfg.Queue.Config, in.source, proc, log.WithComponent("worker")))
}

func capabilityState(ok bool, reason string) string {
	if ok {
		return "available"
	}
	return "unavailable: " + reason
}

func newStatusStore(cfg *Config, in *infra) (recording.StatusStore, error) {
	switch cfg.Stores.Status {
	case StoreMemory:
		return recmemory.New(), nil
	case StoreSQL:
		return recsql.New(in.db.DB()), nil
	case StoreDynamoDB:
		return recdynamo.New(in.dynamo.Client(), cfg.Stores.RecordingsTable), nil
	}
	return nil, fmt.Errorf("unknown status store %q", cfg.Stores.Status)
}

func newProfileStore(cfg *Config, in *infra) (speaker.Store, error) {
	switch cfg.Stores.Profiles {
	case StoreMemory:
		return spkmemory.New(nil), nil
	case StoreSQL:
		return spksql.New(in.db.DB()), nil
	case StoreRedis:
		return redisstore.New(in.redis.Client()), nil
	case StoreDynamoDB:
		return spkdynamo.New(in.dynamo.Client(), cfg.Stores.ProfilesTable), nil
	}
	return nil, fmt.Errorf("unknown profile store %q", cfg.Stores.Profiles)
}

// newTranscriber is the only required capability.
func newTranscriber(ctx context.Context, cfg *Config, log *logger.Logger) (transcription.Provider, error) {
	reg := transcription.NewRegistry()
	reg.RegisterFactory(whisper.ProviderName, whisper.Factory())
	reg.RegisterFactory(whisper.CLIProviderName, whisper.CLIFactory())
	c := provider.Resolve(reg, cfg.Transcription.Provider, cfg.Transcription.Options)
	t, ok := c.Get()
	if !ok {
		return nil, fmt.Errorf("transcription: %s", c.Reason())
	}
	if !provider.Probe(ctx, c, probeTimeout).IsAvailable() {
		log.Warn("transcription backend not reachable yet", logger.Fields("provider", t.Name()))
	}
	return t, nil
}

func newDiarizer(ctx context.Context, cfg *Config) provider.Capability[diarization.Provider] {
	reg := diarization.NewRegistry()
	reg.RegisterFactory(pyannote.ProviderName, pyannote.Factory())
	return provider.Probe(ctx, provider.Resolve(reg, cfg.Diarization.Provider, cfg.Diarization.Options), probeTimeout)
}

func newResolver(ctx context.Context, cfg *Config, in *infra, profiles speaker.Store, log *logger.Logger) provider.Capability[*speaker.Resolver] {
	reg := diarization.NewEmbedderRegistry()
	reg.RegisterFactory(pyannote.ProviderName, pyannote.EmbedderFactory())
	emb := provider.Probe(ctx, provider.Resolve(reg, cfg.VoiceEmbedder.Provider, cfg.VoiceEmbedder.Options), probeTimeout)
	e, ok := emb.Get()
	if !ok {
		return provider.Unavailable[*speaker.Resolver]("voice embedder " + emb.Reason())
	}
	opts := []speaker.Option{speaker.WithLogger(log.WithComponent("resolver"))}
	if cfg.Speakers.Lock && in.redis != nil {
		opts = append(opts, speaker.WithLocker(redis.NewLocker(in.redis.Client(), "speaker-lock", cfg.Redis.LockTTLDuration())))
	}
	return provider.Available(speaker.NewResolver(cfg.Speakers.Config, profiles, e, opts...))
}

func newEnricher(ctx context.Context, cfg *Config, log *logger.Logger) provider.Capability[*enrichment.Enricher] {
	reg := llm.NewRegistry()
	reg.RegisterFactory(ollama.ProviderName, ollama.Factory())
	reg.RegisterFactory(openai.ProviderName, openai.Factory())
	c := provider.Probe(ctx, provider.Resolve(reg, cfg.LLM.Provider, cfg.LLM.Options), probeTimeout)
	backend, ok := c.Get()
	if !ok {
		return provider.Unavailable[*enrichment.Enricher](c.Reason())
	}
	return provider.Available(enrichment.New(backend, cfg.Enrichment, log.WithComponent("enrichment")))
}
