package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/manager"
	"inferd/internal/memtrack"
	"inferd/internal/model"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// Flags with environment variable defaults
	defaultAddr := ":9876"
	if v := os.Getenv("INFERD_ADDR"); v != "" {
		defaultAddr = v
	}
	defaultModel := "all-MiniLM-L6-v2"
	if v := os.Getenv("INFERD_MODEL"); v != "" {
		defaultModel = v
	}

	var cfgPath string
	var flags config.Config

	cmd := &cobra.Command{
		Use:           "inferd",
		Short:         "Local embedding and transcription daemon",
		Long:          "inferd serves text embeddings and audio transcription over a small local HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfgPath, flags)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Optional config file (.yaml/.json/.toml)")
	cmd.Flags().StringVar(&flags.Addr, "addr", defaultAddr, "HTTP listen address, e.g. :9876")
	cmd.Flags().StringVar(&flags.ModelName, "model", defaultModel, "Embedding model name")
	cmd.Flags().IntVar(&flags.Dimensions, "dimensions", 0, "Embedding dimensions (0 = from model catalog)")
	cmd.Flags().StringVar(&flags.Backend, "backend", "local", "Embedding backend: local, openai, llama")
	cmd.Flags().StringVar(&flags.Device, "device", "cpu", "Device for the llama backend: cpu or gpu")
	cmd.Flags().StringVar(&flags.ModelPath, "model-path", "", "gguf file or directory for the llama backend")
	cmd.Flags().StringVar(&flags.WhisperModel, "whisper-model", "", "Transcription model name (default whisper-1)")
	cmd.Flags().IntVar(&flags.MaxBodyMB, "max-body-mb", 0, "Max JSON request body size in MB (0 = default 1)")
	cmd.Flags().IntVar(&flags.MaxUploadMB, "max-upload-mb", 0, "Max audio upload size in MB (0 = default 32)")
	cmd.Flags().BoolVar(&flags.Preload, "preload", false, "Load the embedding model at startup instead of on first request")
	return cmd
}

// mergeConfig overlays flag values onto the file config: an explicitly set
// flag always wins; otherwise the file value wins when present.
func mergeConfig(cmd *cobra.Command, cfgPath string, flags config.Config) (config.Config, error) {
	cfg := flags
	if cfgPath == "" {
		return cfg, nil
	}
	fileCfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if fileCfg.Addr != "" && !set("addr") {
		cfg.Addr = fileCfg.Addr
	}
	if fileCfg.ModelName != "" && !set("model") {
		cfg.ModelName = fileCfg.ModelName
	}
	if fileCfg.Dimensions != 0 && !set("dimensions") {
		cfg.Dimensions = fileCfg.Dimensions
	}
	if fileCfg.Backend != "" && !set("backend") {
		cfg.Backend = fileCfg.Backend
	}
	if fileCfg.Device != "" && !set("device") {
		cfg.Device = fileCfg.Device
	}
	if fileCfg.ModelPath != "" && !set("model-path") {
		cfg.ModelPath = fileCfg.ModelPath
	}
	if fileCfg.WhisperModel != "" && !set("whisper-model") {
		cfg.WhisperModel = fileCfg.WhisperModel
	}
	if fileCfg.MaxBodyMB != 0 && !set("max-body-mb") {
		cfg.MaxBodyMB = fileCfg.MaxBodyMB
	}
	if fileCfg.MaxUploadMB != 0 && !set("max-upload-mb") {
		cfg.MaxUploadMB = fileCfg.MaxUploadMB
	}
	if fileCfg.Preload && !set("preload") {
		cfg.Preload = true
	}
	return cfg, nil
}

func run(cmd *cobra.Command, cfgPath string, flags config.Config) error {
	// Best-effort .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := mergeConfig(cmd, cfgPath, flags)
	if err != nil {
		logger.Error().Err(err).Str("config", cfgPath).Msg("failed to load config")
		return err
	}

	opts := model.Options{
		Backend:      cfg.Backend,
		ModelName:    cfg.ModelName,
		Dimensions:   cfg.Dimensions,
		ModelPath:    cfg.ModelPath,
		Device:       cfg.Device,
		APIKey:       os.Getenv("OPENAI_API_KEY"),
		BaseURL:      os.Getenv("OPENAI_BASE_URL"),
		WhisperModel: cfg.WhisperModel,
	}
	openEnc, err := model.EncoderOpener(opts)
	if err != nil {
		logger.Error().Err(err).Msg("invalid backend")
		return err
	}
	embMgr := manager.NewEmbedding(cfg.ModelName, model.DimensionsHint(opts), openEnc, manager.Config{})
	trMgr := manager.NewTranscription(model.TranscriberOpener(opts), manager.Config{})

	if cfg.Preload {
		logger.Info().Str("model", cfg.ModelName).Msg("preloading embedding model")
		if err := embMgr.EnsureReady(); err != nil {
			logger.Error().Err(err).Msg("preload failed")
			return err
		}
	}

	httpapi.SetLogger(logger)
	if cfg.MaxBodyMB > 0 {
		httpapi.SetMaxBodyBytes(int64(cfg.MaxBodyMB) << 20)
	}
	if cfg.MaxUploadMB > 0 {
		httpapi.SetMaxUploadBytes(int64(cfg.MaxUploadMB) << 20)
	}
	if origins := os.Getenv("INFERD_CORS_ORIGINS"); origins != "" {
		httpapi.SetCORSOptions(true, strings.Split(origins, ","),
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Accept", "Content-Type", "X-Log-Level"})
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	sampler := memtrack.NewOSSampler()
	mux := httpapi.NewMux(embMgr, trMgr, sampler)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s, err := sampler.Sample(); err == nil {
		logger.Info().Float64("process_memory_mb", s.ProcessRSSMB).Msg("initial memory usage")
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("model", cfg.ModelName).
			Str("backend", opts.Backend).
			Bool("transcription_available", trMgr.Available()).
			Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-stop:
	}
	logger.Info().Msg("shutting down")
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	if s, err := sampler.Sample(); err == nil {
		logger.Info().Float64("process_memory_mb", s.ProcessRSSMB).Msg("final memory usage")
	}
	return nil
}
