package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func initProjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the .brief state directory and install a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			briefDir := ".brief"
			log.Info().Str("dir", briefDir).Msg("creating brief directory")
			if err := os.MkdirAll(filepath.Join(briefDir, "reports"), 0o755); err != nil {
				return fmt.Errorf("create reports dir: %w", err)
			}
			if err := os.MkdirAll(filepath.Join(briefDir, "trash"), 0o755); err != nil {
				return fmt.Errorf("create trash dir: %w", err)
			}

			configPath := filepath.Join(briefDir, "config.json")
			if _, err := os.Stat(configPath); err == nil {
				log.Info().Msg("config.json already exists, skipping")
			} else {
				log.Info().Str("path", configPath).Msg("installing default config")
				defaultConfig := map[string]any{
					"root_dir":          briefDir,
					"lock_wait_ms":      5000,
					"require_citations": true,
					"retention": map[string]any{
						"keep_last": 50,
						"keep_days": 30,
					},
				}
				data, err := json.MarshalIndent(defaultConfig, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal default config: %w", err)
				}
				if err := os.WriteFile(configPath, data, 0o644); err != nil {
					return fmt.Errorf("write default config: %w", err)
				}
			}

			fmt.Println("brief initialized successfully")
			return nil
		},
	}
}
