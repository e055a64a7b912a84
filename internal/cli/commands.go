package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/symblink/internal/version"
	"github.com/arthur-debert/symblink/pkg/logging"
	"github.com/arthur-debert/symblink/pkg/paths"
	"github.com/arthur-debert/symblink/pkg/service"
	"github.com/arthur-debert/symblink/pkg/types"
)

func newWatchCmd(g *globals) *cobra.Command {
	var scanExisting bool

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   MsgWatchShort,
		Long:    MsgWatchLong,
		Example: MsgWatchExample,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.GetLogger("cmd.watch")

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("scan-existing") {
				cfg.Watch.ScanExisting = scanExisting
			}

			renderer, err := g.renderer(cmd)
			if err != nil {
				return err
			}

			svc, err := service.New(cfg, service.WithResultHandler(func(res types.Result) {
				if err := renderer.RenderResult(res); err != nil {
					logger.Warn().Err(err).Msg("Failed to render result")
				}
			}))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_ = renderer.RenderMessage(fmt.Sprintf(MsgWatching, cfg.DownloadDir, cfg.ModsDir()))
			runErr := svc.Run(ctx)
			_ = renderer.RenderSummary(svc.Tally())
			return runErr
		},
	}

	cmd.Flags().BoolVar(&scanExisting, "scan-existing", false, MsgFlagScanExisting)
	return cmd
}

func newIngestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "ingest <file>...",
		Short:   MsgIngestShort,
		Long:    MsgIngestLong,
		Example: MsgIngestExample,
		GroupID: "core",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			renderer, err := g.renderer(cmd)
			if err != nil {
				return err
			}
			svc, err := service.New(cfg)
			if err != nil {
				return err
			}

			failed := ingestAll(cmd.Context(), svc, renderer, args)
			if len(args) > 1 {
				_ = renderer.RenderSummary(svc.Tally())
			}
			if failed > 0 {
				return fmt.Errorf(MsgErrIngestFailed, failed, len(args))
			}
			return nil
		},
	}
}

type resultRenderer interface {
	RenderResult(types.Result) error
	RenderError(error) error
}

// ingestAll runs every path through svc in order and returns how many did
// not end in success, ignored or no-assets.
func ingestAll(ctx context.Context, svc *service.Service, r resultRenderer, files []string) int {
	failed := 0
	for _, path := range files {
		res, err := svc.Ingest(ctx, path)
		if err != nil {
			_ = r.RenderError(err)
			failed++
			continue
		}
		_ = r.RenderResult(res)
		if res.Outcome == types.OutcomeFailed || res.Outcome == types.OutcomeSkippedLocked {
			failed++
		}
	}
	return failed
}

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		GroupID: "misc",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: MsgConfigShowShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			source, err := configPath(g)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgConfigSource, source)
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: MsgConfigInitShort,
		Long:  MsgConfigInitLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			path, err := configPath(g)
			if err != nil {
				return err
			}
			if err := cfg.Save(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgConfigWritten+"\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, MsgFlagForce)
	cmd.AddCommand(initCmd)

	return cmd
}

// configPath is --config, or the default location.
func configPath(g *globals) (string, error) {
	if g.configFile != "" {
		return g.configFile, nil
	}
	p, err := paths.New()
	if err != nil {
		return "", err
	}
	return p.ConfigFile(), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.String())
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		GroupID:               "misc",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
