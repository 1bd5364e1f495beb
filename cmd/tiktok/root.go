package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	tiktok "github.com/RavensCloud/tiktok-fyp"
	"github.com/RavensCloud/tiktok-fyp/internal/config"
	"github.com/RavensCloud/tiktok-fyp/internal/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configFile string
	logLevel   string
	proxy      string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tiktok",
		Short: "Collect For You feed videos and hydrate trending sounds",
		Long: `tiktok drives a logged-in browser session through the For You feed and
writes the distinct videos it sees. It also ranks trending videos and looks
up sound usage counts to flag emerging sounds.

Sessions are captured elsewhere and passed in as a storage-state or cookie
JSON file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default tiktok.yaml or ~/.config/tiktok-fyp/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.proxy, "proxy", "", "proxy URL (http, https, socks5) or host:port, overrides AU_PROXY")

	root.AddCommand(newFypCmd(a), newHydrateCmd(a), newTrendingCmd(a))
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.proxy != "" {
		cfg.Network.Proxy = a.proxy
	}

	log, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	tiktok.SetLogger(log)
	return nil
}

// newScraper builds a scraper from the loaded configuration.
func (a *app) newScraper() (*tiktok.Scraper, error) {
	s := tiktok.New().
		WithAPIDelay(a.cfg.Network.APIDelay).
		WithSoundDelay(a.cfg.Hydrate.Sleep).
		WithHeadless(a.cfg.Feed.Headless).
		WithLocale(a.cfg.Feed.Locale)
	if a.cfg.Network.Proxy != "" {
		if err := s.SetProxy(a.cfg.Network.Proxy); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
		a.log.Debug().Str("proxy", a.cfg.Network.Proxy).Msg("using proxy")
	}
	if a.cfg.Session.MsToken != "" {
		s.SetMsToken(a.cfg.Session.MsToken)
	}
	return s, nil
}

// runInfo describes the current invocation for output metadata.
func (a *app) runInfo(source, input, output string, started time.Time) tiktok.RunInfo {
	return tiktok.RunInfo{
		Source:   source,
		Input:    input,
		Output:   output,
		Started:  started,
		Finished: time.Now(),
		MsToken:  a.cfg.Session.MsToken != "",
		Proxy:    a.cfg.Network.Proxy != "",
	}
}
