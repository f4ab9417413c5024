package main

import (
	"fmt"

	"github.com/mcdev12/stillpoint/go/internal/audio"
	"github.com/mcdev12/stillpoint/go/internal/config"
	"github.com/mcdev12/stillpoint/go/internal/content"
	"github.com/rs/zerolog/log"
)

// loadCatalog builds the built-in catalog and merges the programs file, if any.
func loadCatalog(cfg config.Config) (*content.Catalog, error) {
	catalog, err := content.LoadCatalog(cfg.ProgramsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load programs: %w", err)
	}
	if cfg.ProgramsFile != "" {
		log.Info().Str("file", cfg.ProgramsFile).Msg("loaded programs file")
	}
	return catalog, nil
}

func loadManifest(cfg config.Config) (*audio.Manifest, error) {
	if cfg.CuesFile == "" {
		return audio.DefaultManifest(), nil
	}

	m, err := audio.LoadManifest(cfg.CuesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load cue manifest: %w", err)
	}
	log.Info().Str("file", cfg.CuesFile).Int("cues", len(m.Cues)).Msg("loaded cue manifest")
	return m, nil
}
