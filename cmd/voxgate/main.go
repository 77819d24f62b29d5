// Command voxgate runs the real-time voice assistant gateway: a websocket
// endpoint at /ws/chat that streams microphone PCM through speech
// recognition, an LLM, and speech synthesis, plus a small REST API for
// session management and a Prometheus /metrics endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/voxgate-ai/voxgate/internal/config"
	"github.com/voxgate-ai/voxgate/internal/gateway"
	"github.com/voxgate-ai/voxgate/internal/history"
	"github.com/voxgate-ai/voxgate/internal/httpapi"
	"github.com/voxgate-ai/voxgate/internal/observe"
	"github.com/voxgate-ai/voxgate/internal/resilience"
	"github.com/voxgate-ai/voxgate/internal/router"
	"github.com/voxgate-ai/voxgate/internal/search"
	"github.com/voxgate-ai/voxgate/internal/store"
	"github.com/voxgate-ai/voxgate/pkg/provider/llm/anyllm"
	"github.com/voxgate-ai/voxgate/pkg/provider/llm/groq"
	"github.com/voxgate-ai/voxgate/pkg/provider/stt/deepgram"
	"github.com/voxgate-ai/voxgate/pkg/provider/stt/whisper"
	"github.com/voxgate-ai/voxgate/pkg/provider/tts"
	"github.com/voxgate-ai/voxgate/pkg/provider/tts/cartesia"
	"github.com/voxgate-ai/voxgate/pkg/provider/tts/elevenlabs"
	"github.com/voxgate-ai/voxgate/pkg/provider/vad/energy"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// Model and voice selection. The fast model serves "faster" mode; the deep
// model serves "planning" and "detailed".
const (
	fastModel     = "llama-3.1-8b-instant"
	deepModel     = "llama-3.3-70b-versatile"
	fallbackModel = "gemini-2.0-flash"

	defaultVoiceID   = "21m00Tcm4TlvDq8ikWAM"
	defaultVoiceName = "Rachel"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxgate: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	slog.Info("voxgate starting",
		"version", version,
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxgate",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── History and response cache (Redis) ────────────────────────────────────
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "err", err)
		return 1
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// The gateway degrades to context-free answers without Redis, so this
		// is not fatal.
		slog.Warn("redis unreachable, conversation memory degraded", "err", err)
	}
	cancel()

	hist := history.NewRedis(rdb)
	respCache := history.NewResponseCache(rdb)

	// ── Providers ─────────────────────────────────────────────────────────────
	sttProvider, err := deepgram.New(cfg.DeepgramAPIKey, deepgram.WithSampleRate(gateway.SampleRate))
	if err != nil {
		slog.Error("failed to create stt provider", "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "stt", "name", "deepgram")

	fast, err := groq.New(cfg.GroqAPIKey, fastModel)
	if err != nil {
		slog.Error("failed to create llm provider", "err", err)
		return 1
	}
	deep, err := groq.New(cfg.GroqAPIKey, deepModel)
	if err != nil {
		slog.Error("failed to create llm provider", "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "llm", "name", "groq", "fast_model", fastModel, "deep_model", deepModel)

	primaryTTS, err := elevenlabs.New(cfg.ElevenLabsAPIKey)
	if err != nil {
		slog.Error("failed to create tts provider", "err", err)
		return 1
	}
	ttsGroup := resilience.NewFallbackGroup[tts.Provider]("elevenlabs", primaryTTS, resilience.BreakerConfig{Name: "tts"})
	slog.Info("provider created", "kind", "tts", "name", "elevenlabs")

	if cfg.CartesiaAPIKey != "" {
		fallbackTTS, err := cartesia.New(cfg.CartesiaAPIKey)
		if err != nil {
			slog.Error("failed to create tts fallback", "err", err)
			return 1
		}
		ttsGroup.Add("cartesia", fallbackTTS)
		slog.Info("provider created", "kind", "tts", "name", "cartesia")
	}

	detector, err := energy.New(gateway.SampleRate)
	if err != nil {
		slog.Error("failed to create vad detector", "err", err)
		return 1
	}

	// ── Router factory ────────────────────────────────────────────────────────
	routerOpts := []router.Option{router.WithCache(respCache)}
	if cfg.GeminiAPIKey != "" {
		fallbackLLM, err := anyllm.NewGemini(fallbackModel, anyllmlib.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			slog.Error("failed to create fallback llm", "err", err)
			return 1
		}
		routerOpts = append(routerOpts, router.WithFallback(fallbackLLM))
		slog.Info("provider created", "kind", "llm", "name", "gemini", "role", "fallback")
	}
	if cfg.TavilyAPIKey != "" {
		searcher, err := search.NewTavily(cfg.TavilyAPIKey)
		if err != nil {
			slog.Error("failed to create search client", "err", err)
			return 1
		}
		routerOpts = append(routerOpts, router.WithSearch(searcher))
		slog.Info("web search enabled", "name", "tavily")
	}
	newRouter := func() *router.Router {
		return router.New(fast, deep, routerOpts...)
	}

	// ── Gateway ───────────────────────────────────────────────────────────────
	gwOpts := []gateway.Option{
		gateway.WithVoice(tts.Voice{ID: defaultVoiceID, Name: defaultVoiceName}),
		gateway.WithDetector(detector),
	}
	if cfg.OpenAIAPIKey != "" {
		batch, err := whisper.New(cfg.OpenAIAPIKey)
		if err != nil {
			slog.Error("failed to create batch recogniser", "err", err)
			return 1
		}
		gwOpts = append(gwOpts, gateway.WithBatchRecognizer(batch))
		slog.Info("provider created", "kind", "stt", "name", "whisper", "role", "batch-fallback")
	}

	var sessions store.Store
	if cfg.PostgresDSN != "" {
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pg.Close()
		sessions = pg
		gwOpts = append(gwOpts, gateway.WithStore(pg))
		slog.Info("session persistence enabled")
	}

	gw, err := gateway.New(sttProvider, ttsGroup, newRouter, hist, gwOpts...)
	if err != nil {
		slog.Error("failed to initialise gateway", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := mux.NewRouter()
	r.HandleFunc("/ws/chat", gw.HandleWS)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if sessions != nil {
		httpapi.NewSessionsAPI(sessions).Register(r)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
