package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/meter-fleet/internal/telemetry"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest meter telemetry from MQTT",
	Long:  `Subscribe to the configured MQTT topic and store every reading through the same path as POST /api/meter-data`,
	Run: func(cmd *cobra.Command, args []string) {
		startIngestWorker()
	},
}

var janitorCmd = &cobra.Command{
	Use:   "janitor",
	Short: "Remove expired report downloads",
	Long:  `Sweep expired report registrations and delete their workbooks. Runs once with --once, otherwise every reports.janitor_interval`,
	Run: func(cmd *cobra.Command, args []string) {
		startJanitor()
	},
}

var (
	mqttBroker  string
	mqttTopic   string
	janitorOnce bool
)

func startIngestWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.MQTT.Broker = getStringFlag(mqttBroker, config.MQTT.Broker)
	config.MQTT.Topic = getStringFlag(mqttTopic, config.MQTT.Topic)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	logger := deps.Logger
	logger.Info("starting mqtt ingest worker",
		"broker", config.MQTT.Broker,
		"topic", config.MQTT.Topic,
		"client_id", config.MQTT.ClientID)

	subscriber := telemetry.NewSubscriber(config.MQTT, deps.Telemetry, logger)
	if err := subscriber.Run(ctx); err != nil {
		logger.Error("mqtt ingest worker stopped", "error", err)
		return
	}

	logger.Info("mqtt ingest worker shutdown complete")
}

func startJanitor() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	if janitorOnce {
		sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		removed, err := deps.Report.Sweep(sweepCtx)
		if err != nil {
			deps.Logger.Error("report sweep failed", "error", err)
			return
		}
		deps.Logger.Info("report sweep complete", "removed", removed)
		return
	}

	deps.Logger.Info("report janitor is running. Press Ctrl+C to stop.", "interval", config.Reports.JanitorInterval)
	deps.Report.RunJanitor(ctx, config.Reports.JanitorInterval)
	deps.Logger.Info("report janitor shutdown complete")
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	ingestCmd.Flags().StringVar(&mqttBroker, "broker", "", "MQTT broker URL (overrides config)")
	ingestCmd.Flags().StringVar(&mqttTopic, "topic", "", "MQTT topic filter (overrides config)")
	janitorCmd.Flags().BoolVar(&janitorOnce, "once", false, "sweep once and exit")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(janitorCmd)
}
