package persistence_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
)

var _ = Describe("RedisLocker", func() {
	const ttl = 2 * time.Second

	var (
		ctx    context.Context
		server *miniredis.Miniredis
		client *persistence.Redis
		locker *persistence.RedisLocker
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = miniredis.RunT(GinkgoT())
		client = persistence.NewRedis(ctx, config.RedisConfig{Addr: server.Addr()}, zap.NewNop())
		DeferCleanup(client.Close)
		locker = persistence.NewRedisLocker(client.Client, ttl, zap.NewNop())
	})

	It("answers readiness pings", func() {
		Expect(client.Ping(ctx)).To(Succeed())
	})

	It("stores the lock with the configured ttl", func() {
		release, err := locker.Lock(ctx, "ticket:1")
		Expect(err).NotTo(HaveOccurred())
		defer release()

		Expect(server.Exists("helpdesk:lock:ticket:1")).To(BeTrue())
		Expect(server.TTL("helpdesk:lock:ticket:1")).To(Equal(ttl))
	})

	It("excludes a second holder until the first releases", func() {
		release, err := locker.Lock(ctx, "ticket:1")
		Expect(err).NotTo(HaveOccurred())

		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(waitCtx, "ticket:1")
		Expect(err).To(MatchError(context.DeadlineExceeded))

		other, err := locker.Lock(ctx, "ticket:2")
		Expect(err).NotTo(HaveOccurred())
		other()

		release()
		Expect(server.Exists("helpdesk:lock:ticket:1")).To(BeFalse())

		again, err := locker.Lock(ctx, "ticket:1")
		Expect(err).NotTo(HaveOccurred())
		again()
	})

	It("wakes a waiter once the lock is released", func() {
		release, err := locker.Lock(ctx, "column:pending")
		Expect(err).NotTo(HaveOccurred())

		acquired := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			next, err := locker.Lock(ctx, "column:pending")
			Expect(err).NotTo(HaveOccurred())
			close(acquired)
			next()
		}()

		Consistently(acquired, 100*time.Millisecond).ShouldNot(BeClosed())
		release()
		Eventually(acquired, time.Second).Should(BeClosed())
	})

	It("does not delete a lock that expired and was taken by someone else", func() {
		stale, err := locker.Lock(ctx, "ticket:1")
		Expect(err).NotTo(HaveOccurred())

		server.FastForward(ttl + time.Millisecond)
		Expect(server.Exists("helpdesk:lock:ticket:1")).To(BeFalse())

		current, err := locker.Lock(ctx, "ticket:1")
		Expect(err).NotTo(HaveOccurred())

		stale()
		Expect(server.Exists("helpdesk:lock:ticket:1")).To(BeTrue())

		current()
		Expect(server.Exists("helpdesk:lock:ticket:1")).To(BeFalse())
	})

	It("reports an unreachable server instead of blocking", func() {
		gone := miniredis.NewMiniRedis()
		Expect(gone.Start()).To(Succeed())
		addr := gone.Addr()
		gone.Close()

		down := persistence.NewRedis(ctx, config.RedisConfig{Addr: addr}, zap.NewNop())
		DeferCleanup(down.Close)
		Expect(down.Ping(ctx)).NotTo(Succeed())

		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := persistence.NewRedisLocker(down.Client, ttl, zap.NewNop()).Lock(waitCtx, "ticket:1")
		Expect(err).To(HaveOccurred())
	})
})
