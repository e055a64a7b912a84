// Package cli builds the symblink command tree.
package cli

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/symblink/internal/version"
	"github.com/arthur-debert/symblink/pkg/cobrax/topics"
	"github.com/arthur-debert/symblink/pkg/config"
	"github.com/arthur-debert/symblink/pkg/logging"
	"github.com/arthur-debert/symblink/pkg/ui"
)

//go:embed topics/*.md
var topicFiles embed.FS

// globals holds the persistent flags every command sees.
type globals struct {
	verbosity  int
	configFile string
	format     string
}

func (g *globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, fmt.Errorf(MsgErrLoadConfig, err)
	}
	return cfg, nil
}

func (g *globals) renderer(cmd *cobra.Command) (ui.Renderer, error) {
	format, err := ui.ParseFormat(g.format)
	if err != nil {
		return nil, err
	}
	return ui.NewRenderer(format, cmd.OutOrStdout())
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	initTemplateFormatting()

	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "symblink",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(g.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf(MsgErrNoCommand)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&g.verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVar(&g.configFile, "config", "", MsgFlagConfig)
	rootCmd.PersistentFlags().StringVar(&g.format, "format", "auto", MsgFlagFormat)
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return ui.FormatNames, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "COMMANDS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})
	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newWatchCmd(g))
	rootCmd.AddCommand(newIngestCmd(g))
	rootCmd.AddCommand(newConfigCmd(g))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	helpFS, err := fs.Sub(topicFiles, "topics")
	if err == nil {
		_, err = topics.Initialize(rootCmd, helpFS, topics.Options{
			Extensions: []string{".md"},
			Renderer:   topicRenderer(),
		})
	}
	if err != nil {
		log.Warn().Err(err).Msg("Help topics unavailable")
	}

	return rootCmd
}

func topicRenderer() topics.Renderer {
	r := topics.NewGlamourRenderer()
	if !stdoutIsTerminal() {
		r.Style = "notty"
	}
	return r
}
