package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/briefkit/brief/internal/storage"
)

func pruneCmd() *cobra.Command {
	var dryRun bool
	var keepLast, keepDays int
	cmd := &cobra.Command{
		Use:          "prune",
		Short:        "Prune old backups per the retention policy",
		Long:         "Prune backup files across every indexed report. The configured retention policy applies unless overridden by flags; the earliest backup of each report is always kept.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			policy := storage.RetentionPolicy{
				KeepLast: cfg.Retention.KeepLast,
				KeepDays: cfg.Retention.KeepDays,
			}
			if cmd.Flags().Changed("keep-last") {
				policy.KeepLast = keepLast
			}
			if cmd.Flags().Changed("keep-days") {
				policy.KeepDays = keepDays
			}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				return fmt.Errorf("no retention policy: set retention in config or pass --keep-last/--keep-days")
			}

			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.PruneBackups(policy, dryRun)
			if err != nil {
				return err
			}
			verb := "deleted"
			if dryRun {
				verb = "would delete"
			}
			fmt.Printf("Considered %d backup(s): kept %d, %s %d, skipped %d\n",
				res.Considered, res.Kept, verb, res.Deleted, res.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "keep the newest N backups per report")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "keep backups newer than N days")
	return cmd
}
