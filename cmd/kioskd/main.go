package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arkumar/medscan/internal/analysis"
	"github.com/arkumar/medscan/internal/audio"
	"github.com/arkumar/medscan/internal/config"
	"github.com/arkumar/medscan/internal/device"
	"github.com/arkumar/medscan/internal/language"
	"github.com/arkumar/medscan/internal/logging"
	"github.com/arkumar/medscan/internal/monitor"
	"github.com/arkumar/medscan/internal/session"
	"github.com/arkumar/medscan/internal/store"
)

const buttonDebounce = 300 * time.Millisecond

var (
	configFlag   string
	headlessFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "kioskd",
	Short: "Unattended medical document kiosk daemon",
	Long: `Kioskd runs the scanning kiosk end to end: a button press captures the
document on the scanner, the image is classified by modality and
analyzed locally or through the remote API, and the findings are read
back over the speaker in the selected language.

Examples:
  kioskd --config /etc/medscan/config.yaml
  kioskd --headless    # no GPIO; trigger sessions with SIGUSR1`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Path to the configuration file (default $MEDSCAN_CONFIG, then config.yaml)")
	rootCmd.Flags().BoolVar(&headlessFlag, "headless", false, "Run without GPIO hardware; trigger sessions with SIGUSR1")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := store.NewDB(cfg.Paths.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audit database")
	}
	defer db.Close()
	audit := store.NewAuditRepo(db)

	results, err := store.NewResultStore(cfg.Paths.Results)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize result store")
	}

	scanner, err := device.NewSaneScanner(cfg.Scanner.Device, cfg.Paths.Temp, cfg.ScanTimeout())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize scanner")
	}
	if err := scanner.Configure(device.ScanSettings{
		Resolution:  cfg.ScanResolution,
		ColorMode:   cfg.Scanner.ColorMode,
		MaxWidthIn:  cfg.Scanner.MaxWidthIn,
		MaxHeightIn: cfg.Scanner.MaxHeightIn,
	}); err != nil {
		log.Fatal().Err(err).Msg("invalid scanner settings")
	}

	extractor, err := analysis.NewTextExtractor()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize text extraction")
	}

	registry, err := analysis.NewRegistry(cfg.Paths.Models, cfg.UseLocalModels, cfg.UseAPIFallback, cfg.ConfidenceThreshold, cfg.Models.Weights)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build analyzer registry")
	}

	var local analysis.LocalAnalyzer
	if cfg.UseLocalModels {
		runner, err := analysis.NewLocalRunner(cfg.Models.Runner, cfg.Paths.Models, cfg.LocalTimeout())
		if err != nil {
			if !cfg.UseAPIFallback {
				log.Fatal().Err(err).Msg("local model runner unavailable and api fallback is disabled")
			}
			log.Warn().Err(err).Msg("local model runner unavailable, relying on api fallback")
		} else {
			local = runner
		}
	}
	var remote analysis.RemoteAnalyzer
	if cfg.UseAPIFallback {
		remote = analysis.NewRemoteClient(cfg.APIEndpoint, cfg.APIKey, cfg.RemoteTimeout())
	}
	coordinator := analysis.NewCoordinator(registry, local, remote)

	player, err := device.NewExecPlayer(cfg.Audio.PlayerCommand, cfg.AudioVolume)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audio player")
	}
	synth, err := audio.NewGoogleTTS(cfg.Paths.Temp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize speech synthesis")
	}
	queue := audio.NewQueue(synth, player)

	gpio := cfg.GPIO.Enabled && !headlessFlag

	var source language.Source = language.StaticSource(cfg.DefaultLanguage)
	if gpio && len(cfg.GPIO.LanguagePins) > 0 {
		switchSource, err := device.NewSwitchSource(cfg.GPIO.Chip, cfg.GPIO.LanguagePins, cfg.SupportedLanguages)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize language selector switch")
		}
		defer switchSource.Close()
		source = switchSource
	}
	selector := language.NewSelector(source, cfg.SupportedLanguages, cfg.DefaultLanguage)

	var trigger device.Trigger
	var indicator device.Indicator
	if gpio {
		button, err := device.NewButtonTrigger(cfg.GPIO.Chip, cfg.GPIO.ButtonPin, buttonDebounce)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize button")
		}
		leds, err := device.NewLEDIndicator(cfg.GPIO.Chip, cfg.GPIO.StatusLEDPin, cfg.GPIO.ErrorLEDPin)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize leds")
		}
		defer leds.Close()
		if err := leds.SelfTest(); err != nil {
			log.Fatal().Err(err).Msg("led self-test failed")
		}
		trigger = button
		indicator = leds
	} else {
		log.Info().Msg("gpio disabled, send SIGUSR1 to trigger a session")
		trigger = device.NewSignalTrigger()
		indicator = device.LogIndicator{}
	}

	controller := session.NewController(scanner, extractor, coordinator, indicator, queue, results, audit, selector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go queue.Run(ctx)

	sweeper := store.NewSweeper(cfg.Paths.Temp, cfg.Paths.Results, cfg.Retention.ScanDays, cfg.Retention.ResultDays)
	go sweeper.Run(ctx)

	if err := audio.PrebuildPrompts(ctx, synth, supportedLanguages(cfg.SupportedLanguages)); err != nil {
		log.Warn().Err(err).Msg("prompt pre-synthesis incomplete, continuing")
	}

	go func() {
		if err := controller.Run(ctx, trigger.Events()); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("controller stopped")
		}
	}()

	var srv *http.Server
	if cfg.ServerMode {
		srv = &http.Server{
			Addr:         cfg.Monitor.Addr,
			Handler:      monitor.NewRouter(monitor.NewHandlers(audit, controller, queue)),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Monitor.Addr).Msg("monitor server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("monitor server failed")
			}
		}()
	}

	welcome := selector.Resolve()
	queue.Enqueue(audio.Message{
		Text:     language.Prompt(welcome, language.PromptWelcome),
		Language: welcome,
		Priority: audio.PriorityNarration,
	})
	log.Info().Str("language", welcome.Name).Str("config", configPath()).Msg("kiosk ready")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	trigger.Close()
	cancel()

	// Let an in-flight session settle so the indicator and audit row land.
	settle := time.Now().Add(5 * time.Second)
	for controller.State() != session.StateIdle && time.Now().Before(settle) {
		time.Sleep(100 * time.Millisecond)
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("monitor shutdown error")
		}
	}
	queue.Close()
}

func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	if v := os.Getenv("MEDSCAN_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

func supportedLanguages(names []string) []language.Language {
	langs := make([]language.Language, 0, len(names))
	for _, name := range names {
		if lang, ok := language.Lookup(name); ok {
			langs = append(langs, lang)
		}
	}
	return langs
}
