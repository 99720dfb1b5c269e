package events_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/meter-fleet/internal/core/events"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(logger.Discard())
	})

	It("delivers asynchronously and survives the publisher's context", func() {
		received := make(chan events.Event, 1)
		ctxErrs := make(chan error, 1)
		bus.Subscribe(events.EventTypeTelemetryRecorded, func(ctx context.Context, e events.Event) error {
			ctxErrs <- ctx.Err()
			received <- e
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		event := events.NewTelemetryRecordedEvent(7, "GEN-7", time.Now(), map[string]int{"id": 1})
		Expect(bus.Publish(ctx, event)).To(Succeed())

		var got events.Event
		Eventually(received).Should(Receive(&got))
		Expect(<-ctxErrs).NotTo(HaveOccurred())
		Expect(got.EventID()).To(Equal(event.EventID()))
		Expect(got.(*events.TelemetryRecordedEvent).DeviceID).To(Equal("GEN-7"))
	})

	It("ignores events nobody listens to", func() {
		Expect(bus.Publish(context.Background(), events.NewTelemetryAlarmEvent(1, "GEN-1", "", time.Now(), nil))).To(Succeed())
		Expect(bus.PublishSync(context.Background(), events.NewTelemetryAlarmEvent(1, "GEN-1", "", time.Now(), nil))).To(Succeed())
	})

	It("stops at the first failing handler when publishing synchronously", func() {
		var calls int32
		bus.Subscribe(events.EventTypeTelemetryAlarm, func(context.Context, events.Event) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("sns down")
		})
		bus.Subscribe(events.EventTypeTelemetryAlarm, func(context.Context, events.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})

		err := bus.PublishSync(context.Background(), events.NewTelemetryAlarmEvent(1, "GEN-1", "Roof", time.Now(), []string{"low_fuel_alarm"}))
		Expect(err).To(MatchError(ContainSubstring("sns down")))
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
	})
})
