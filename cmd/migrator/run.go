package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/services"
)

func scanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the host database for legacy video URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.scanner.Scan(ctx, printProgress); err != nil {
				return err
			}

			total, err := eng.store.Findings().Count(ctx)
			if err != nil {
				return err
			}
			color.Green("Scan finished: %d legacy URL(s) found", total)
			return nil
		},
	}
}

func replaceCommand() *cobra.Command {
	var (
		course int64
		dryRun bool
		style  string
	)

	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace detected legacy URLs with Kaltura embeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			embedStyle := models.EmbedStyle(style)
			if embedStyle != models.EmbedStyleScript && embedStyle != models.EmbedStyleLink {
				return fmt.Errorf("invalid embed style %q", style)
			}

			eng, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.connectCatalog(ctx); err != nil {
				return err
			}

			opts := services.ReplaceOptions{DryRun: dryRun, Style: embedStyle}
			if cmd.Flags().Changed("course") {
				opts.Course = &course
			}

			result, err := eng.rewriter.Replace(ctx, opts, printProgress)
			if err != nil {
				return err
			}
			printReplaceSummary(result.Total, result.Replaced, result.Errors, dryRun)
			return nil
		},
	}

	cmd.Flags().Int64Var(&course, "course", 0, "Restrict the pass to one course id")
	cmd.Flags().BoolVar(&dryRun, "dryrun", false, "Log every decision without writing anything")
	cmd.Flags().StringVar(&style, "style", string(models.EmbedStyleLink), "Embed style: script or link")
	return cmd
}

func modulesCommand() *cobra.Command {
	var (
		mode   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Migrate legacy course activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			moduleMode := services.ModuleMode(mode)
			if moduleMode != services.ModuleModeLTI && moduleMode != services.ModuleModeCourseMedia {
				return fmt.Errorf("invalid module mode %q", mode)
			}

			eng, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.connectCatalog(ctx); err != nil {
				return err
			}

			result, err := eng.migrator.ReplaceModules(ctx, services.ModuleOptions{Mode: moduleMode, DryRun: dryRun}, printProgress)
			if err != nil {
				return err
			}
			printReplaceSummary(result.Total, result.Migrated, result.Errors, dryRun)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(services.ModuleModeLTI), "Migration mode: lti or coursemedia")
	cmd.Flags().BoolVar(&dryRun, "dryrun", false, "Log every decision without writing anything")
	return cmd
}

func printProgress(p string) {
	fmt.Printf("\r%s", p)
}

func printReplaceSummary(total, done int, errs []string, dryRun bool) {
	fmt.Println()
	if dryRun {
		color.Yellow("Dry run: %d of %d item(s) would be migrated", done, total)
	} else {
		color.Green("%d of %d item(s) migrated", done, total)
	}
	for _, e := range errs {
		color.Red("  %s", e)
	}
}
