package servecmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/config"
	"github.com/papercomputeco/parley/pkg/keys"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/server"
)

const serveLongDesc string = `Run the HTTP chat server.

Sessions are created on demand and live in memory for the lifetime of
the process. All sessions share one credential store, loaded once from
the keys resource on first use.

Examples:
  parley serve
  parley serve --listen :9000 --keys ~/.parley/keys.txt
  parley serve --config parley.toml`

const serveShortDesc string = "Run the HTTP chat server"

type serveCommander struct {
	configPath string
	listenAddr string
	keysPath   string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config file")
	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on (overrides config)")
	cmd.Flags().StringVarP(&cmder.keysPath, "keys", "k", "", "Path or URL of the keys resource (overrides config)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if c.listenAddr != "" {
		cfg.ListenAddr = c.listenAddr
	}
	if c.keysPath != "" {
		cfg.KeysPath = c.keysPath
	}
	if c.debug {
		cfg.Debug = true
	}

	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()

	store := keys.NewStore(keys.NewSource(cfg.KeysPath))
	client := llm.NewClient(llm.ClientConfig{
		Endpoint:    cfg.Completion.Endpoint,
		Model:       cfg.Completion.Model,
		MaxTokens:   cfg.Completion.MaxTokens,
		Temperature: cfg.Completion.Temperature,
		Timeout:     cfg.Completion.Timeout(),
	}, log)

	srv := server.New(server.Config{
		ListenAddr:     cfg.ListenAddr,
		CredentialName: cfg.Credential,
	}, store, client, log)

	if err := srv.Run(); err != nil {
		log.Error("chat server failed", zap.Error(err))
		return err
	}

	return nil
}
