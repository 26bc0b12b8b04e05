package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stupiduntilnot/csast/internal/chat"
	"github.com/stupiduntilnot/csast/internal/config"
	ctxpkg "github.com/stupiduntilnot/csast/internal/context"
	"github.com/stupiduntilnot/csast/internal/db"
	"github.com/stupiduntilnot/csast/internal/dummy"
	"github.com/stupiduntilnot/csast/internal/knowledge"
	"github.com/stupiduntilnot/csast/internal/logging"
	modelpkg "github.com/stupiduntilnot/csast/internal/model"
	"github.com/stupiduntilnot/csast/internal/openai"
)

const appTitle = "CSAST"

type app struct {
	v   *viper.Viper
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "csast",
		Short:         "Customer-service assistant grounded on a spreadsheet knowledge base",
		Long:          "With no subcommand csast serves the chat page, like csast serve.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "", "log level, overrides LOG_LEVEL")
	flags.String("data", "", "knowledge workbook, overrides DATA_DIR")
	flags.String("model", "", "model identifier, overrides MODEL")
	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyDataDir, flags.Lookup("data"))
	_ = a.v.BindPFlag(config.KeyModel, flags.Lookup("model"))

	root.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newEventsCmd(a),
	)
	return root
}

// setup reads .env and builds the logger. Config validation is left to the
// commands that need a model.
func (a *app) setup(cmd *cobra.Command) error {
	if _, err := config.ReadEnvFile(a.v); err != nil {
		return err
	}
	log, err := logging.New(a.v.GetString(config.KeyLogLevel), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// runtime is everything a chat front end needs.
type runtime struct {
	orch  *chat.Orchestrator
	close func()
}

func (r *runtime) Close() {
	if r.close != nil {
		r.close()
	}
}

// build loads config and knowledge and wires the orchestrator. A knowledge
// load failure is fatal: there is no fallback data.
func (a *app) build(role string) (config.Config, *runtime, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return cfg, nil, err
	}
	if cfg.EnvFile != "" {
		a.log.WithField("path", cfg.EnvFile).Debug("loaded env file")
	}

	kb, err := knowledge.NewLoader(a.log).Load(cfg.DataDir)
	if err != nil {
		return cfg, nil, err
	}
	instructions, err := loadInstructions(cfg.InstructionsFile)
	if err != nil {
		return cfg, nil, err
	}
	provider, err := newModelProvider(cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to init model provider: %w", err)
	}

	rt := &runtime{}
	chatCfg := chat.Config{
		Provider:     provider,
		Model:        cfg.Model,
		Instructions: instructions,
		Knowledge:    ctxpkg.Format(kb),
		Log:          a.log,
	}

	if cfg.DBPath != "" {
		database, err := db.OpenDB(cfg.DBPath)
		if err != nil {
			return cfg, nil, err
		}
		if err := db.InitSchema(database); err != nil {
			database.Close()
			return cfg, nil, fmt.Errorf("failed to init schema: %w", err)
		}
		turns, err := db.NewTurnLog(database, map[string]any{
			"role":     role,
			"pid":      os.Getpid(),
			"provider": cfg.ModelProvider,
			"model":    cfg.Model,
		}, a.log)
		if err != nil {
			database.Close()
			return cfg, nil, fmt.Errorf("failed to log process.started: %w", err)
		}
		turns.RecordProcess(db.EventKnowledgeLoaded, map[string]any{
			"path":   kb.Source,
			"tables": len(kb.Tables),
			"rows":   kb.RowCount(),
		})
		chatCfg.Recorder = turns
		rt.close = func() {
			turns.RecordProcess(db.EventProcessStopped, nil)
			database.Close()
		}
	}

	rt.orch = chat.New(chatCfg)
	a.log.WithFields(logrus.Fields{
		"role":     role,
		"provider": cfg.ModelProvider,
	}).Info("orchestrator ready " + rt.orch.Describe())
	return cfg, rt, nil
}

func newModelProvider(cfg config.Config) (modelpkg.Provider, error) {
	switch cfg.ModelProvider {
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIChatCompURL, cfg.ModelTimeout), nil
	case "dummy":
		return dummy.NewProvider(cfg.DummyScript)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}

// loadInstructions reads an instruction override. The built-in text is used
// when path is empty.
func loadInstructions(path string) (string, error) {
	if path == "" {
		return ctxpkg.DefaultInstructions, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read instructions %s: %w", path, err)
	}
	return string(data), nil
}

func sweepSessions(ctx context.Context, sweep func() int, every time.Duration, log logrus.FieldLogger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := sweep(); n > 0 {
				log.WithField("evicted", n).Info("idle sessions evicted")
			}
		}
	}
}
