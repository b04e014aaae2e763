// Command careerflow is an interactive career assistant REPL.
//
// Commands inside the chat:
//
//	/upload <path>        attach a CV (pdf, markdown, or plain text)
//	/mode think|no_think  toggle visible reasoning
//	/quit                 exit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/careerflow"
	"github.com/nevindra/careerflow/ingest"
	"github.com/nevindra/careerflow/internal/config"
	"github.com/nevindra/careerflow/observer"
	"github.com/nevindra/careerflow/provider/openaicompat"
	"github.com/nevindra/careerflow/store/postgres"
	"github.com/nevindra/careerflow/store/sqlite"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CAREERFLOW_CONFIG"), "path to TOML config")
		threadID   = flag.String("thread", "", "thread id to resume (default: new thread)")
		userID     = flag.String("user", "local", "user id")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg := config.Load(*configPath)
	ctx := context.Background()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var provider careerflow.Provider = openaicompat.NewProvider(
		cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL,
		openaicompat.WithLogger(logger))
	embedder := openaicompat.NewEmbedding(
		cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimensions)

	var tracer careerflow.Tracer
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("observer shutdown", "error", err)
			}
		}()
		provider = observer.WrapProvider(provider, inst)
		tracer = observer.NewTracer()
	}

	var (
		checkpoints careerflow.Checkpointer
		memory      careerflow.MemoryStore
		jobs        careerflow.JobStore
	)
	if dsn := cfg.Database.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			log.Fatalf("postgres connect: %v", err)
		}
		defer pool.Close()
		st := postgres.New(pool, postgres.WithEmbeddingDimension(cfg.Embedding.Dimensions))
		if err := st.Init(ctx); err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		checkpoints, memory, jobs = st, st, st
	} else {
		st := sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
		defer st.Close()
		if err := st.Init(ctx); err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		checkpoints, memory, jobs = st, st, st
	}

	opts := []careerflow.EngineOption{
		careerflow.WithLogger(logger),
		careerflow.WithDefaultJobID(cfg.Engine.DefaultJobID),
		careerflow.WithSearchTuning(cfg.Engine.SearchTopK, cfg.Engine.SearchMin),
	}
	if tracer != nil {
		opts = append(opts, careerflow.WithTracer(tracer))
	}
	engine := careerflow.NewEngine(provider, embedder, checkpoints, memory, jobs, opts...)

	thread := *threadID
	if thread == "" {
		thread = careerflow.NewID()
	}
	if cfg.Engine.Mode != "" {
		if err := engine.SetMode(ctx, thread, *userID, careerflow.Mode(cfg.Engine.Mode)); err != nil {
			log.Fatalf("set mode: %v", err)
		}
	}

	fmt.Printf("careerflow ready (thread %s). /upload <path> to attach a CV, /quit to exit.\n", thread)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return
		case strings.HasPrefix(line, "/upload "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/upload "))
			text, err := ingest.CVFile(path)
			if err != nil {
				fmt.Printf("upload failed: %v\n", err)
				continue
			}
			if err := engine.UploadCV(ctx, thread, *userID, text); err != nil {
				fmt.Printf("upload failed: %v\n", err)
				continue
			}
			fmt.Printf("CV attached (%d characters).\n", len(text))
		case strings.HasPrefix(line, "/mode "):
			mode := careerflow.Mode(strings.TrimSpace(strings.TrimPrefix(line, "/mode ")))
			if err := engine.SetMode(ctx, thread, *userID, mode); err != nil {
				fmt.Printf("mode: %v\n", err)
				continue
			}
			fmt.Printf("mode set to %s.\n", mode)
		default:
			start := time.Now()
			reply, err := engine.Turn(ctx, thread, *userID, line)
			if inst != nil {
				inst.Turns.Add(ctx, 1)
				inst.TurnDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
			}
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println(reply)
		}
	}
}
