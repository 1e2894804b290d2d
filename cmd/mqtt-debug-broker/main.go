package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rasp-lab/mqtt-debug-broker/internal/broker"
	"github.com/rasp-lab/mqtt-debug-broker/internal/config"
	"github.com/rasp-lab/mqtt-debug-broker/internal/event"
	"github.com/rasp-lab/mqtt-debug-broker/internal/journal"
	"github.com/rasp-lab/mqtt-debug-broker/internal/logger"
)

var (
	configFile string
	port       int
	maxClients int
	logPackets bool
	traceSub   bool
	noTraceMsg bool
	quiet      bool
	delayMs    int
	journalURI string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "mqtt-debug-broker",
	Short: "Minimal MQTT 3.1.1 debug broker for embedded-device development",
	Long: `mqtt-debug-broker is a development stand-in for a real MQTT broker.

It accepts multiple TCP clients, decodes MQTT 3.1.1 control packets,
tracks per-client topic subscriptions and fans published messages out to
subscribers. QoS 2, retained messages, wildcards, TLS and authentication
are intentionally not implemented.`,
	Example: `  # Listen on the default port 1883
  mqtt-debug-broker

  # Custom port, two clients max, raw packet tracing
  mqtt-debug-broker --port 2883 --max-clients 2 --raw

  # Simulate a slow broker: stall 500ms before every CONNACK
  mqtt-debug-broker --delay 500

  # Record observed packets into MongoDB
  mqtt-debug-broker --journal mongodb://localhost:27017`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to JSON configuration file")
	rootCmd.Flags().IntVarP(&port, "port", "p", 1883, "TCP port to listen on")
	rootCmd.Flags().IntVarP(&maxClients, "max-clients", "m", 8, "Maximum concurrent clients")
	rootCmd.Flags().BoolVar(&logPackets, "raw", false, "Dump every extracted packet in hex")
	rootCmd.Flags().BoolVar(&traceSub, "trace-sub", false, "Trace subscription changes")
	rootCmd.Flags().BoolVar(&noTraceMsg, "no-trace-msg", false, "Disable message tracing")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress everything except errors")
	rootCmd.Flags().IntVar(&delayMs, "delay", 0, "Artificial delay before each CONNACK in milliseconds")
	rootCmd.Flags().StringVar(&journalURI, "journal", "", "MongoDB URI for the packet journal (empty = in-memory)")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFile(configFile); err != nil {
			return cfg, err
		}
	}

	// 命令行显式给出的参数覆盖配置文件
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("max-clients") {
		cfg.MaxClients = maxClients
	}
	if flags.Changed("raw") {
		cfg.LogPackets = logPackets
	}
	if flags.Changed("trace-sub") {
		cfg.TraceSubscriptions = traceSub
	}
	if flags.Changed("no-trace-msg") {
		cfg.TraceMessages = !noTraceMsg
	}
	if flags.Changed("quiet") {
		cfg.Quiet = quiet
	}
	if flags.Changed("delay") {
		cfg.ArtificialDelayMs = delayMs
	}
	if flags.Changed("journal") {
		cfg.JournalURI = journalURI
	}
	if flags.Changed("debug") {
		cfg.DebugMode = debugMode
	}

	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	loggerShutdown := logger.Init(cfg.DebugMode, cfg.Quiet)
	logger.Debug("Application initializing...")

	cleaner := event.NewCleaner()
	defer func() { _ = loggerShutdown.Invoke(context.Background()) }()
	defer cleaner.Clean()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := journal.Open(ctx, cfg.JournalURI, cfg.AppName)
	if err != nil {
		logger.FatalF("Error occured while initializing journal, details: %v", err)
		return err
	}
	cleaner.Add(event.CallableFunc(j.Close))

	b := broker.New(cfg, j)
	if err := b.Serve(ctx); err != nil {
		logger.FatalF("%v", err)
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
