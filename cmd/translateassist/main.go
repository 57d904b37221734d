package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codeberg.org/snonux/translateassist/internal/app"
	"codeberg.org/snonux/translateassist/internal/cli"
	"codeberg.org/snonux/translateassist/internal/config"
	"codeberg.org/snonux/translateassist/internal/models"
	"codeberg.org/snonux/translateassist/internal/processor"
	"codeberg.org/snonux/translateassist/internal/translation"
)

func main() {
	// Create flags instance
	flags := cli.NewFlags()

	// Create root command
	rootCmd := cli.CreateRootCommand(flags, cli.Actions{
		Translate: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, args, flags)
		},
		CacheEvict: func(cmd *cobra.Command) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				n, err := a.EvictExpired(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Evicted %d expired cache entries\n", n)
				return nil
			})
		},
		CachePrune: func(cmd *cobra.Command) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				n, err := a.Prune(ctx, flags.PruneKeep)
				if err != nil {
					return err
				}
				fmt.Printf("Pruned %d cache entries\n", n)
				return nil
			})
		},
		GlossaryAdd: func(cmd *cobra.Command, term, canonical string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				hit := translation.GlossaryHit{
					Term:      term,
					Domain:    flags.GlossaryDomain,
					Canonical: canonical,
					Note:      flags.GlossaryNote,
				}
				if err := a.AddGlossary(ctx, hit); err != nil {
					return err
				}
				fmt.Printf("Glossary: %s -> %s\n", term, canonical)
				return nil
			})
		},
		GlossaryList: func(cmd *cobra.Command) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				hits, err := a.Glossary.List(ctx)
				if err != nil {
					return err
				}
				for _, h := range hits {
					fmt.Printf("%s\t%s\t%s\t%s\n", h.Term, h.Domain, h.Canonical, h.Note)
				}
				return nil
			})
		},
	})

	// Set up command initialization
	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
	})

	// Execute command
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCommand(cmd *cobra.Command, args []string, flags *cli.Flags) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Handle --list-models flag
	if flags.ListModels {
		lister := models.NewLister(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		return lister.ListAvailableModels(cmd.Context(), os.Stdout)
	}

	if flags.BatchFile == "" && len(args) == 0 {
		return cmd.Help()
	}

	return withConfig(cmd, cfg, flags, func(ctx context.Context, a *app.App) error {
		proc := processor.NewProcessor(a.Orchestrator, a.Request, processor.WithJSON(flags.JSON))

		// Handle batch processing
		if flags.BatchFile != "" {
			return proc.ProcessBatch(ctx, flags.BatchFile)
		}
		return proc.ProcessSingleTerm(ctx, args[0], flags.Context)
	})
}

func withApp(cmd *cobra.Command, flags *cli.Flags, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return withConfig(cmd, cfg, flags, fn)
}

func withConfig(cmd *cobra.Command, cfg *config.Config, flags *cli.Flags, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{
		DryRun: flags.DryRun,
		Logger: app.NewLogger(os.Stderr, flags.Verbose),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	return fn(ctx, a)
}
