package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/briefkit/brief/internal/logging"
)

const version = "0.3.0"

var (
	cfgFile string
	debug   bool
	rootCmd = &cobra.Command{
		Use:   "brief",
		Short: "brief manages living reports that evolve, audit, and revert",
	}
)

// Execute runs the root command.
func Execute() error {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", filepath.Join(".brief", "config.json"), "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return fmt.Errorf("bind config flag: %w", err)
	}
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.Init(debug)
	}
	rootCmd.AddCommand(initProjectCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(evolveCmd())
	rootCmd.AddCommand(revertCmd())
	rootCmd.AddCommand(forkCmd())
	rootCmd.AddCommand(synthesizeCmd())
	rootCmd.AddCommand(tagCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(pruneCmd())
	rootCmd.AddCommand(execCmd())
	rootCmd.AddCommand(serveCmd())
	return rootCmd.Execute()
}

func initConfig() {
	path := cfgFile
	if path == "" {
		path = filepath.Join(".brief", "config.json")
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
}
