package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/meter-fleet/internal/alarm"
	"github.com/frahmantamala/meter-fleet/internal/core/events"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test alarms through the configured notification channel`,
}

var publishAlarmCmd = &cobra.Command{
	Use:   "alarm [device-id]",
	Short: "Publish a test telemetry alarm",
	Long:  `Publish a telemetry.alarm event for device-id and deliver it through the alarm worker pool (SNS when configured, the log otherwise)`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestAlarm(args[0])
	},
}

var (
	alarmLocation string
	alarmNames    []string
)

func publishTestAlarm(deviceID string) {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger := logger.LoggerWrapper()

	notifier, err := alarm.NewNotifier(ctx, config.Alarms, logger)
	if err != nil {
		logger.Error("failed to create alarm notifier", "error", err)
		return
	}
	pool := alarm.NewPool(notifier, 1, 1, logger)
	eventBus := events.NewEventBus(logger)
	alarm.NewEventHandler(pool, logger).RegisterEventHandlers(eventBus)

	event := events.NewTelemetryAlarmEvent(0, deviceID, alarmLocation, time.Now().UTC(), alarmNames)
	logger.Info("publishing test alarm", "device_id", deviceID, "event_id", event.EventID())

	if err := eventBus.PublishSync(ctx, event); err != nil {
		logger.Error("failed to publish event", "error", err)
		return
	}

	// delivery is asynchronous; shutdown waits for the worker to finish it
	time.Sleep(100 * time.Millisecond)
	pool.Shutdown()
	logger.Info("test alarm published successfully")
}

func init() {
	publishAlarmCmd.Flags().StringVar(&alarmLocation, "location", "test bench", "meter location shown in the notification")
	publishAlarmCmd.Flags().StringSliceVar(&alarmNames, "alarms", []string{"low_oil_pressure_alarm"}, "alarm names to raise")

	eventCmd.AddCommand(publishAlarmCmd)

	rootCmd.AddCommand(eventCmd)
}
