package chatcmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/parley/chat"
	"github.com/papercomputeco/parley/config"
	"github.com/papercomputeco/parley/pkg/keys"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/tui"
)

const chatLongDesc string = `Start an interactive chat session in the terminal.

The transcript lives in memory for the duration of the session. The API
credential is resolved by name from the keys resource on the first
submission.

Examples:
  parley chat
  parley chat --keys ~/.parley/keys.txt
  parley chat --config parley.toml --debug`

const chatShortDesc string = "Start an interactive chat session"

type chatCommander struct {
	configPath string
	keysPath   string
	debug      bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config file")
	cmd.Flags().StringVarP(&cmder.keysPath, "keys", "k", "", "Path or URL of the keys resource (overrides config)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *chatCommander) run() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("chat requires an interactive terminal")
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
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

	orch := chat.NewOrchestrator(store, client, cfg.Credential, log)

	return tui.Run(orch)
}
