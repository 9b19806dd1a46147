package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/client"
	"github.com/t77yq/roma-console/internal/config"
	"github.com/t77yq/roma-console/internal/model"
	"github.com/t77yq/roma-console/internal/notify"
	"github.com/t77yq/roma-console/internal/storage"
	"github.com/t77yq/roma-console/internal/transport"
)

// console holds everything a command needs once configuration is loaded
type console struct {
	configPath string
	apiURL     string
	logLevel   string
	jsonOutput bool

	out    io.Writer
	errOut io.Writer

	cfg         *config.Config
	logger      *zap.Logger
	dispatcher  *notify.Dispatcher
	client      *client.Client
	history     *storage.SQLiteNotificationHistory
	nc          *nats.Conn
	natsChannel *notify.NATSChannel
}

func newRootCmd() *cobra.Command {
	c := &console{}

	root := &cobra.Command{
		Use:               "roma-console",
		Short:             "Monitor and control ROMA executions",
		Long:              "roma-console talks to a ROMA backend to list, create, watch and restore executions.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) { c.close() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ./config/console.yaml)")
	flags.StringVar(&c.apiURL, "api-url", "", "backend base URL (overrides ROMA_API_URL)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&c.jsonOutput, "json", false, "print raw JSON instead of formatted output")

	root.AddCommand(
		c.newHealthCmd(),
		c.newExecutionsCmd(),
		c.newWatchCmd(),
		c.newCheckpointsCmd(),
		c.newTracesCmd(),
		c.newConfigCmd(),
		c.newNotificationsCmd(),
		c.newServeCmd(),
	)
	return root
}

func (c *console) setup(cmd *cobra.Command, _ []string) error {
	c.out = cmd.OutOrStdout()
	c.errOut = cmd.ErrOrStderr()

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.API.BaseURL = c.apiURL
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	c.cfg = cfg

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	c.logger = logger

	c.dispatcher = notify.NewDispatcher(logger)
	c.dispatcher.Register("terminal", notify.ChannelFunc(c.printNotification))

	if cfg.History.Path != "" {
		history, err := storage.NewSQLiteNotificationHistory(cfg.History.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to open notification history: %w", err)
		}
		c.history = history
		c.dispatcher.Register("history", history)
	}

	if cfg.NATS.URL != "" {
		if err := c.connectNATS(); err != nil {
			return err
		}
	}

	tr, err := transport.New(cfg.API.BaseURL, c.dispatcher, logger, transport.WithTimeout(cfg.API.Timeout))
	if err != nil {
		return err
	}
	c.client = client.New(tr, logger)
	return nil
}

func (c *console) connectNATS() error {
	opts := []nats.Option{
		nats.Name(c.cfg.NATS.Name),
		nats.MaxReconnects(c.cfg.NATS.MaxReconnects),
		nats.ReconnectWait(c.cfg.NATS.ReconnectWait),
		nats.Timeout(c.cfg.NATS.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			c.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(c.cfg.NATS.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	channel := notify.NewNATSChannel(js, c.cfg.NATS.Stream, c.cfg.NATS.Subject, c.logger)
	if err := channel.EnsureStream(); err != nil {
		nc.Close()
		return err
	}

	c.nc = nc
	c.natsChannel = channel
	c.dispatcher.Register("nats", channel)
	c.logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return nil
}

func (c *console) close() {
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
	if c.history != nil {
		c.history.Close()
		c.history = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func (c *console) printNotification(n *model.Notification) error {
	switch n.Level {
	case model.NotificationLevelSuccess:
		fmt.Fprintln(c.errOut, successStyle.Sprintf("%s %s", checkmark, n.Message))
	case model.NotificationLevelError:
		fmt.Fprintln(c.errOut, errorStyle.Sprintf("%s %s", xmark, n.Message))
	case model.NotificationLevelWarning:
		fmt.Fprintln(c.errOut, warningStyle.Sprint(n.Message))
	default:
		fmt.Fprintln(c.errOut, infoStyle.Sprint(n.Message))
	}
	return nil
}

// commandContext bounds one-shot commands by the configured timeout
func (c *console) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.cfg.API.Timeout+5*time.Second)
}
