package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/briefkit/brief/internal/config"
	"github.com/briefkit/brief/internal/history"
	"github.com/briefkit/brief/internal/index"
	"github.com/briefkit/brief/internal/service"
)

// openService wires the full stack for one CLI invocation: config, index,
// query history, and the service façade over them. The returned cleanup
// closes the history database.
func openService() (*service.Service, *history.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, func() {}, err
	}
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return nil, nil, func() {}, fmt.Errorf("create state dir: %w", err)
	}
	ix, err := index.Load(cfg.IndexPath())
	if err != nil {
		return nil, nil, func() {}, err
	}
	hist, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, nil, func() {}, err
	}
	svc := service.New(cfg, ix, hist)
	return svc, hist, func() { _ = hist.Close() }, nil
}

func loadConfig() (config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = cfgFile
	}
	return config.Load(path)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
