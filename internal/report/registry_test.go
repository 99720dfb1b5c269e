package report_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/meter-fleet/internal/report"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

// registryContract runs the single-use download rules against any Registry.
func registryContract(newRegistry func() report.Registry) {
	var (
		ctx      context.Context
		registry report.Registry
		name     string
	)

	BeforeEach(func() {
		ctx = context.Background()
		registry = newRegistry()
		name = "report-" + uuid.NewString() + ".xlsx"
	})

	It("claims a registered report exactly once", func() {
		Expect(registry.Register(ctx, name, time.Now().Add(time.Hour))).To(Succeed())

		ok, err := registry.Claim(ctx, name, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = registry.Claim(ctx, name, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("refuses unknown reports", func() {
		ok, err := registry.Claim(ctx, name, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("lets only one of many concurrent downloads win", func() {
		Expect(registry.Register(ctx, name, time.Now().Add(time.Hour))).To(Succeed())

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, err := registry.Claim(ctx, name, time.Now()); err == nil && ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		Expect(atomic.LoadInt32(&wins)).To(Equal(int32(1)))
	})

	It("hands an expired report to the janitor once and no longer serves it", func() {
		expiresAt := time.Now().Add(2 * time.Second)
		Expect(registry.Register(ctx, name, expiresAt)).To(Succeed())

		later := expiresAt.Add(time.Second)
		expired, err := registry.Expired(ctx, later)
		Expect(err).NotTo(HaveOccurred())
		Expect(expired).To(ContainElement(name))

		again, err := registry.Expired(ctx, later)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).NotTo(ContainElement(name))

		ok, err := registry.Claim(ctx, name, later)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("does not sweep a report that was already downloaded", func() {
		expiresAt := time.Now().Add(2 * time.Second)
		Expect(registry.Register(ctx, name, expiresAt)).To(Succeed())

		ok, err := registry.Claim(ctx, name, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		expired, err := registry.Expired(ctx, expiresAt.Add(time.Second))
		Expect(err).NotTo(HaveOccurred())
		Expect(expired).NotTo(ContainElement(name))
	})
}

var _ = Describe("MemoryRegistry", func() {
	registryContract(func() report.Registry { return report.NewMemoryRegistry() })
})

var _ = Describe("RedisRegistry", func() {
	var client *redis.Client

	BeforeEach(func() {
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			Skip("REDIS_ADDR not set")
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
		Expect(client.Ping(context.Background()).Err()).To(Succeed())
		DeferCleanup(client.Close)
	})

	registryContract(func() report.Registry { return report.NewRedisRegistry(client) })
})
