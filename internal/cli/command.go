package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codeberg.org/snonux/translateassist/internal"
	"codeberg.org/snonux/translateassist/internal/config"
)

// Actions are the handlers the commands dispatch to. Nil handlers leave
// the corresponding command without a RunE.
type Actions struct {
	Translate    func(cmd *cobra.Command, args []string) error
	CacheEvict   func(cmd *cobra.Command) error
	CachePrune   func(cmd *cobra.Command) error
	GlossaryAdd  func(cmd *cobra.Command, term, canonical string) error
	GlossaryList func(cmd *cobra.Command) error
}

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags, actions Actions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "translateassist [term]",
		Short: "Context aware translation assistant",
		Long: `translateassist translates a term with machine translation, lets a
language model pick the best sense for the given context and shows
example sentences.

Examples:
  translateassist "hello, world!"                 # Translate to the default target (fa)
  translateassist bank --context "river bank"     # Disambiguate with context
  translateassist --batch terms.txt               # Translate one term per line
  translateassist --dry-run model                 # Use offline fake providers
  translateassist cache prune --keep 500          # Shrink the response cache`,
		Args:    cobra.MaximumNArgs(1),
		Version: internal.Version,
		RunE:    actions.Translate,
	}

	// Set up flags
	setupFlags(rootCmd, flags)

	rootCmd.AddCommand(newCacheCommand(flags, actions), newGlossaryCommand(flags, actions))

	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	// Global flags
	cmd.PersistentFlags().StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.translateassist.yaml)")
	cmd.PersistentFlags().StringVar(&flags.DatabasePath, "db", "", "SQLite database path (default is ~/.local/state/translateassist/translateassist.db)")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")

	// Local flags
	cmd.Flags().StringVarP(&flags.Source, "source", "s", "", "Source language code (auto-detected when empty)")
	cmd.Flags().StringVarP(&flags.Target, "target", "t", "", "Target language code (default fa)")
	cmd.Flags().StringVarP(&flags.Context, "context", "c", "", "Context sentence used to pick the right sense")
	cmd.Flags().StringVar(&flags.Persona, "persona", "", "Persona hint for the decision model, e.g. business")
	cmd.Flags().StringVar(&flags.Domains, "domains", "", "Comma separated domain priority for glossary lookups")
	cmd.Flags().StringVar(&flags.BatchFile, "batch", "", "Translate terms from file (one per line, optional 'term | context')")
	cmd.Flags().BoolVar(&flags.ListModels, "list-models", false, "List models available at the OpenAI compatible endpoint")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Use offline fake providers instead of the network")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Print every pipeline update as a JSON line")

	// Bind flags to viper
	bindFlagsToViper(cmd)
}

func bindFlagsToViper(cmd *cobra.Command) {
	viper.BindPFlag("database.path", cmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("languages.source", cmd.Flags().Lookup("source"))
	viper.BindPFlag("languages.target", cmd.Flags().Lookup("target"))
	viper.BindPFlag("pipeline.persona", cmd.Flags().Lookup("persona"))
	viper.BindPFlag("pipeline.domains", cmd.Flags().Lookup("domains"))
}

func newCacheCommand(flags *Flags, actions Actions) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the response cache",
	}

	evictCmd := &cobra.Command{
		Use:   "evict",
		Short: "Delete expired cache entries",
		Args:  cobra.NoArgs,
	}
	if actions.CacheEvict != nil {
		evictCmd.RunE = func(cmd *cobra.Command, _ []string) error {
			return actions.CacheEvict(cmd)
		}
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Keep only the newest cache entries per kind",
		Args:  cobra.NoArgs,
	}
	pruneCmd.Flags().IntVar(&flags.PruneKeep, "keep", 0, "Entries to keep per kind (default cache.max_entries)")
	if actions.CachePrune != nil {
		pruneCmd.RunE = func(cmd *cobra.Command, _ []string) error {
			return actions.CachePrune(cmd)
		}
	}

	cacheCmd.AddCommand(evictCmd, pruneCmd)
	return cacheCmd
}

func newGlossaryCommand(flags *Flags, actions Actions) *cobra.Command {
	glossaryCmd := &cobra.Command{
		Use:   "glossary",
		Short: "Manage preferred domain translations",
	}

	addCmd := &cobra.Command{
		Use:   "add <term> <canonical>",
		Short: "Add or replace a glossary entry",
		Args:  cobra.ExactArgs(2),
	}
	addCmd.Flags().StringVar(&flags.GlossaryDomain, "domain", "", "Domain of the entry, e.g. AI/CS")
	addCmd.Flags().StringVar(&flags.GlossaryNote, "note", "", "Free form note")
	if actions.GlossaryAdd != nil {
		addCmd.RunE = func(cmd *cobra.Command, args []string) error {
			return actions.GlossaryAdd(cmd, args[0], args[1])
		}
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List glossary entries",
		Args:  cobra.NoArgs,
	}
	if actions.GlossaryList != nil {
		listCmd.RunE = func(cmd *cobra.Command, _ []string) error {
			return actions.GlossaryList(cmd)
		}
	}

	glossaryCmd.AddCommand(addCmd, listCmd)
	return glossaryCmd
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		// Use config file from the flag
		v.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".translateassist" (without extension)
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".translateassist")
	}

	// Environment variables
	if err := config.BindEnv(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding environment: %v\n", err)
	}

	// Read config file
	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}
}
