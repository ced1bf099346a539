package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ItshMoh/ExamPrepAgent/internal/config"
	"github.com/ItshMoh/ExamPrepAgent/internal/logger"
	"github.com/ItshMoh/ExamPrepAgent/internal/server"
	"github.com/ItshMoh/ExamPrepAgent/pkg/agent"
	"github.com/ItshMoh/ExamPrepAgent/pkg/llm"
	"github.com/ItshMoh/ExamPrepAgent/pkg/mcptool"
	"github.com/ItshMoh/ExamPrepAgent/pkg/store"
	"github.com/ItshMoh/ExamPrepAgent/pkg/transcribe"
	"github.com/ItshMoh/ExamPrepAgent/pkg/tts"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ExamPrepAgent API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Close()
	log := appLogger.GetZerolog()

	sessionStore, err := store.Open(cfg.Store.DBPath, log)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessionStore.Close()

	cleaner := store.NewCleaner(
		sessionStore,
		time.Duration(cfg.Store.RetentionDays)*24*time.Hour,
		cfg.Store.CleanupSchedule,
		log,
	)
	if err := cleaner.Start(); err != nil {
		return err
	}
	defer cleaner.Stop()

	var toolClient *mcptool.Client
	var broker agent.ToolBroker
	if cfg.MCP.Command != "" {
		toolClient = mcptool.NewClient(cfg.MCP.Command, cfg.MCP.Args, log)
		defer toolClient.Stop()
		broker = mcptool.NewAdapter(toolClient, log)
	} else {
		broker = mcptool.NewAdapter(noToolServer{}, log)
	}

	completer := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Logger:      log,
	})

	var transcriber agent.Transcriber
	if cfg.STT.BaseURL != "" {
		transcriber = transcribe.NewClient(transcribe.Config{
			BaseURL: cfg.STT.BaseURL,
			APIKey:  cfg.STT.APIKey,
			Model:   cfg.STT.Model,
			Logger:  log,
		})
	}

	var speech server.SpeechService
	if cfg.TTS.BaseURL != "" {
		speech = tts.NewClient(tts.Config{
			BaseURL: cfg.TTS.BaseURL,
			APIKey:  cfg.TTS.APIKey,
			Model:   cfg.TTS.Model,
			Voice:   cfg.TTS.Voice,
			Logger:  log,
		})
	}

	runner, err := agent.NewRunner(agent.Config{
		Completer:    completer,
		Tools:        broker,
		Store:        sessionStore,
		Transcriber:  transcriber,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	apiServer, err := server.NewServer(server.Options{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		MaxAudioBytes: int64(cfg.Server.MaxAudioMB) << 20,
	}, runner, sessionStore, speech, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		return apiServer.Stop()
	}
}
