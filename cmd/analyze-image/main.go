package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arkumar/medscan/internal/analysis"
	"github.com/arkumar/medscan/internal/config"
	"github.com/arkumar/medscan/internal/language"
	"github.com/arkumar/medscan/internal/logging"
	"github.com/arkumar/medscan/internal/store"
)

func main() {
	imagePath := flag.String("image", "", "Path to the scanned image to analyze")
	typeFlag := flag.String("type", "", "Document type override (xray, mri, ct, ecg, text_report, unknown); detected from the image when empty")
	configFlag := flag.String("config", defaultConfigPath(), "Path to the configuration file")
	saveFlag := flag.Bool("save", false, "Persist the finding to the results directory")
	flag.Parse()

	logging.Init()

	if *imagePath == "" {
		log.Fatal().Msg("provide an image with -image")
	}
	info, err := os.Stat(*imagePath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot read image")
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	docType := analysis.TypeUnknown
	if *typeFlag != "" {
		docType, err = parseDocumentType(*typeFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -type")
		}
		fmt.Printf("Document type: %s (override)\n", docType)
	} else {
		extractor, err := analysis.NewTextExtractor()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize text extraction")
		}
		lang, ok := language.Lookup(cfg.DefaultLanguage)
		if !ok {
			lang = language.English
		}
		text, err := extractor.ExtractText(ctx, *imagePath, lang.OCRCode)
		if err != nil {
			log.Warn().Err(err).Msg("text extraction failed, treating document type as unknown")
		}
		docType = analysis.DetectDocumentType(text)
		fmt.Printf("Document type: %s (detected from %d extracted characters)\n", docType, len(text))
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

	finding, err := analysis.NewCoordinator(registry, local, remote).Analyze(ctx, docType, *imagePath)
	if err != nil {
		log.Fatal().Err(err).Msg("analysis failed")
	}

	fmt.Printf("\nAnalysis complete (source: %s)\n", finding.Source)
	fmt.Println("----------------------------------------")
	if len(finding.Labels) == 0 {
		fmt.Println("No labels returned, finding is inconclusive")
	}
	for _, label := range finding.Labels {
		fmt.Printf("  %-24s %5.1f%%\n", label.Name, label.Confidence*100)
	}
	if finding.Narrative != "" {
		fmt.Printf("\nNarrative: %s\n", finding.Narrative)
	}
	fmt.Printf("\nSpoken result: %s\n", finding.SpokenText())

	if *saveFlag {
		results, err := store.NewResultStore(cfg.Paths.Results)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize result store")
		}
		path, err := results.Save(&store.ResultRecord{
			SessionID:    uuid.New().String(),
			Language:     cfg.DefaultLanguage,
			CapturedAt:   info.ModTime(),
			CompletedAt:  time.Now(),
			ArtifactPath: *imagePath,
			Finding:      finding,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to save finding")
		}
		fmt.Printf("\n✓ Finding saved to %s\n", path)
	}
}

func parseDocumentType(raw string) (analysis.DocumentType, error) {
	dt := analysis.DocumentType(raw)
	if dt == analysis.TypeUnknown {
		return dt, nil
	}
	for _, known := range analysis.DocumentTypes {
		if dt == known {
			return dt, nil
		}
	}
	return "", fmt.Errorf("unknown document type %q", raw)
}

func defaultConfigPath() string {
	if v := os.Getenv("MEDSCAN_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}
