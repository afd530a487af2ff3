package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/arkumar/medscan/internal/analysis"
	"github.com/arkumar/medscan/internal/config"
	"github.com/arkumar/medscan/internal/store"
)

func main() {
	configFlag := flag.String("config", defaultConfigPath(), "Path to the configuration file")
	flag.Parse()

	fmt.Println("🔍 Checking kiosk installation")
	fmt.Println("==============================")

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Printf("❌ Configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Configuration loaded from %s\n", *configFlag)
	fmt.Printf("   Local models: %v, API fallback: %v\n", cfg.UseLocalModels, cfg.UseAPIFallback)
	fmt.Printf("   Languages: %v (default %s)\n", cfg.SupportedLanguages, cfg.DefaultLanguage)

	checkBinaries(cfg)
	checkModels(cfg)
	checkGPIO(cfg)
	checkAPI(cfg)
	checkStore(cfg)
}

func checkBinaries(cfg *config.Config) {
	fmt.Println("\n🔍 Checking external binaries...")

	binaries := []string{"scanimage", "tesseract", cfg.Audio.PlayerCommand}
	if cfg.UseLocalModels {
		binaries = append(binaries, cfg.Models.Runner)
	}
	for _, name := range binaries {
		path, err := exec.LookPath(name)
		if err != nil {
			fmt.Printf("⚠️  %s not found in PATH\n", name)
			continue
		}
		fmt.Printf("✅ %s (%s)\n", name, path)
	}
}

func checkModels(cfg *config.Config) {
	fmt.Println("\n🔍 Checking analyzer registry...")

	registry, err := analysis.NewRegistry(cfg.Paths.Models, cfg.UseLocalModels, cfg.UseAPIFallback, cfg.ConfidenceThreshold, cfg.Models.Weights)
	if err != nil {
		fmt.Printf("❌ Registry: %v\n", err)
		return
	}
	for _, desc := range registry.Descriptors() {
		switch {
		case desc.LocalSupported:
			fmt.Printf("✅ %-12s local (%s)\n", desc.DocumentType, filepath.Join(cfg.Paths.Models, desc.WeightsFile))
		case cfg.UseAPIFallback:
			fmt.Printf("⚠️  %-12s remote only\n", desc.DocumentType)
		default:
			fmt.Printf("❌ %-12s unavailable\n", desc.DocumentType)
		}
	}
}

func checkGPIO(cfg *config.Config) {
	fmt.Println("\n🔍 Checking GPIO...")

	if !cfg.GPIO.Enabled {
		fmt.Println("⚠️  GPIO disabled in configuration, kiosk runs with signal trigger")
		return
	}
	chip, err := gpiocdev.NewChip(cfg.GPIO.Chip)
	if err != nil {
		fmt.Printf("❌ GPIO chip %s: %v\n", cfg.GPIO.Chip, err)
		return
	}
	defer chip.Close()
	fmt.Printf("✅ GPIO chip %s (%d lines)\n", cfg.GPIO.Chip, chip.Lines())
	fmt.Printf("   Button pin %d, status LED %d, error LED %d\n", cfg.GPIO.ButtonPin, cfg.GPIO.StatusLEDPin, cfg.GPIO.ErrorLEDPin)
	if len(cfg.GPIO.LanguagePins) > 0 {
		fmt.Printf("   Language switch pins %v\n", cfg.GPIO.LanguagePins)
	}
}

func checkAPI(cfg *config.Config) {
	fmt.Println("\n🔍 Checking analysis API...")

	if !cfg.UseAPIFallback {
		fmt.Println("⚠️  API fallback disabled, skipping")
		return
	}
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodHead, cfg.APIEndpoint, nil)
	if err != nil {
		fmt.Printf("❌ API endpoint %s: %v\n", cfg.APIEndpoint, err)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("⚠️  API endpoint %s unreachable: %v\n", cfg.APIEndpoint, err)
		return
	}
	resp.Body.Close()
	fmt.Printf("✅ API endpoint %s reachable (HTTP %d)\n", cfg.APIEndpoint, resp.StatusCode)
}

func checkStore(cfg *config.Config) {
	fmt.Println("\n🔍 Checking session store...")

	db, err := store.NewDB(cfg.Paths.DB)
	if err != nil {
		fmt.Printf("❌ Database %s: %v\n", cfg.Paths.DB, err)
		return
	}
	defer db.Close()

	audit := store.NewAuditRepo(db)
	total, failed, err := audit.Counts()
	if err != nil {
		fmt.Printf("❌ Session counts: %v\n", err)
		return
	}
	fmt.Printf("✅ Database %s (%d sessions, %d failed)\n", cfg.Paths.DB, total, failed)

	recent, err := audit.Recent(5)
	if err != nil {
		fmt.Printf("⚠️  Recent sessions: %v\n", err)
	}
	for _, rec := range recent {
		status := "ok"
		if rec.Error != "" {
			status = rec.Error
		}
		fmt.Printf("   %s  %-10s %-12s %-7s %s\n", rec.StartedAt.Format("2006-01-02 15:04"), rec.Language, rec.DocumentType, rec.AnalyzerSource, status)
	}

	results, _ := filepath.Glob(filepath.Join(cfg.Paths.Results, "result_*.json"))
	cached, _ := filepath.Glob(filepath.Join(cfg.Paths.Temp, "tts_*.mp3"))
	fmt.Printf("✅ %d result files in %s, %d cached prompts in %s\n", len(results), cfg.Paths.Results, len(cached), cfg.Paths.Temp)
}

func defaultConfigPath() string {
	if v := os.Getenv("MEDSCAN_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}
