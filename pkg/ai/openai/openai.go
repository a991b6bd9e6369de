package openai

import (
	"sync"

	"mosaic/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// NoteOpenAIClient is an OpenAI-backed implementation of ai.NoteAIClient.
// It manages separate clients for embeddings, chat/completion, and audio
// transcription so each concern can point at a different endpoint.
//
// A NoteOpenAIClient should be created using NewNoteOpenAIClient.
type NoteOpenAIClient struct {
	embeddingModel  string
	summaryModel    string
	extractionModel string
	audioModel      string

	embeddingURL string
	embeddingKey string
	chatURL      string
	chatKey      string
	audioURL     string
	audioKey     string

	timeoutMin    int64
	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
	AudioClient     *openai.Client
}

// NewNoteOpenAIClientParams defines the configuration parameters for creating
// a new NoteOpenAIClient.
//
// EmbeddingModel specifies the model used for embeddings.
// SummaryModel specifies the model used for summaries, titles, and tags.
// ExtractionModel specifies the model used for entity extraction.
// AudioModel specifies the model used for audio transcription.
type NewNoteOpenAIClientParams struct {
	EmbeddingModel  string
	SummaryModel    string
	ExtractionModel string
	AudioModel      string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string
	AudioURL     string
	AudioKey     string

	TimeoutMin          int64
	MaxConcurrentEmbeds int64
}

// NewNoteOpenAIClient creates and returns a new NoteOpenAIClient configured
// with the provided parameters.
//
// Example:
//
//	params := openai.NewNoteOpenAIClientParams{
//		EmbeddingModel:  "text-embedding-3-small",
//		SummaryModel:    "gpt-4o-mini",
//		ExtractionModel: "gpt-4o-mini",
//		AudioModel:      "whisper-1",
//		EmbeddingKey:    os.Getenv("OPENAI_API_KEY"),
//		ChatKey:         os.Getenv("OPENAI_API_KEY"),
//	}
//	client := openai.NewNoteOpenAIClient(params)
func NewNoteOpenAIClient(
	params NewNoteOpenAIClientParams,
) *NoteOpenAIClient {
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)
	embedClient := newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey)
	audioClient := newOpenaiClient(params.AudioURL, params.AudioKey)

	timeoutMin := params.TimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}
	maxEmbeds := params.MaxConcurrentEmbeds
	if maxEmbeds <= 0 {
		maxEmbeds = 4
	}

	return &NoteOpenAIClient{
		embeddingModel:  params.EmbeddingModel,
		summaryModel:    params.SummaryModel,
		extractionModel: params.ExtractionModel,
		audioModel:      params.AudioModel,

		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,
		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,
		audioURL:     params.AudioURL,
		audioKey:     params.AudioKey,

		timeoutMin:    timeoutMin,
		embeddingLock: semaphore.NewWeighted(maxEmbeds),

		metricsLock: sync.Mutex{},
		metrics: ai.ModelMetrics{
			InputTokens:  0,
			OutputTokens: 0,
			TotalTokens:  0,
			DurationMs:   0,
		},

		ChatClient:      chatClient,
		EmbeddingClient: embedClient,
		AudioClient:     audioClient,
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
