package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mosaic/internal/queue"
	mid "mosaic/internal/server/middleware"
	"mosaic/internal/storage"
	"mosaic/internal/util"
	"mosaic/pkg/ai"
	oai "mosaic/pkg/ai/ollama"
	gai "mosaic/pkg/ai/openai"
	"mosaic/pkg/graph"
	"mosaic/pkg/logger"
	"mosaic/pkg/pipeline"
	"mosaic/pkg/projection"
	dbstore "mosaic/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewAIClientFromEnv builds the configured AI client. AI_ADAPTER selects the
// backend; anything but "ollama" means OpenAI-compatible.
func NewAIClientFromEnv() ai.NoteAIClient {
	adapter := util.GetEnv("AI_ADAPTER")
	switch adapter {
	case "ollama":
		client, err := oai.NewNoteOllamaClient(oai.NewNoteOllamaClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			SummaryModel:    util.GetEnv("AI_CHAT_SUMMARY_MODEL"),
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 1)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewNoteOpenAIClient(gai.NewNoteOpenAIClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			SummaryModel:    util.GetEnv("AI_CHAT_SUMMARY_MODEL"),
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			AudioModel:      util.GetEnv("AI_AUDIO_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
			AudioURL:     util.GetEnv("AI_AUDIO_URL"),
			AudioKey:     util.GetEnv("AI_AUDIO_KEY"),

			MaxConcurrentEmbeds: int64(util.GetEnvNumeric("AI_PARALLEL_EMBEDS", 4)),
		})
	}
}

// RunMigrations applies pending schema migrations. Missing migrations
// directory or an up-to-date schema are not errors.
func RunMigrations() {
	path := util.GetEnvString("MIGRATIONS_PATH", "migrations")
	m, err := migrate.New("file://"+path, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to initialize migrations", "err", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
	}
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	RunMigrations()

	conn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	conn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	var key *keyfunc.Keyfunc
	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		key = &k
	}

	// Without RabbitMQ the process route falls back to the in-process runner.
	var ch *amqp091.Channel
	if util.GetEnv("RABBITMQ_HOST") != "" {
		que := queue.Init()
		defer que.Close()
		ch, err = que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
	}

	files := storage.NewFileStore(ctx)
	aiClient := NewAIClientFromEnv()
	st := dbstore.NewDBStorage(conn)
	graphEngine := graph.NewEngine(st, aiClient)
	var fetcher pipeline.FileFetcher
	if files != nil {
		fetcher = files
	}
	processor := pipeline.NewProcessor(st, aiClient, fetcher)
	runner := pipeline.NewRunner(processor, 0)

	app := &mid.App{
		Store:      st,
		Queue:      ch,
		Key:        key,
		Files:      files,
		AIClient:   aiClient,
		Runner:     runner,
		Graph:      graphEngine,
		Projection: projection.NewEngine(st, graphEngine),

		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
		MasterUserID: util.GetEnv("MASTER_USER_ID"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
