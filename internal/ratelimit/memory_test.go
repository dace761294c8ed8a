package ratelimit_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigdesk.app/server/internal/ratelimit"
)

var _ = Describe("MemoryStore", func() {
	var (
		ctx   context.Context
		clock *fakeClock
		store *ratelimit.MemoryStore
		cfg   ratelimit.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = newFakeClock()
		store = ratelimit.NewMemoryStore(clock)
		cfg = ratelimit.Config{MaxRequests: 3, Window: time.Minute}
	})

	It("allows requests up to the limit and counts down remaining", func() {
		for want := 2; want >= 0; want-- {
			res, err := store.Hit(ctx, "ip:1.2.3.4", cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Success).To(BeTrue())
			Expect(res.Limit).To(Equal(3))
			Expect(res.Remaining).To(Equal(want))
			clock.Advance(time.Second)
		}
	})

	It("returns success false once the count exceeds max requests within the window", func() {
		for i := 0; i < 3; i++ {
			_, err := store.Hit(ctx, "ip:1.2.3.4", cfg)
			Expect(err).NotTo(HaveOccurred())
		}

		res, err := store.Hit(ctx, "ip:1.2.3.4", cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Success).To(BeFalse())
		Expect(res.Remaining).To(Equal(0))
		Expect(res.Reset).To(Equal(clock.Now().Add(time.Minute)))
		Expect(res.RetryAfter(clock.Now())).To(Equal(time.Minute))
		Expect(res.At).To(Equal(clock.Now()))
	})

	It("slides the window instead of resetting it all at once", func() {
		_, _ = store.Hit(ctx, "k", cfg) // t=0
		clock.Advance(20 * time.Second)
		_, _ = store.Hit(ctx, "k", cfg) // t=20
		clock.Advance(20 * time.Second)
		_, _ = store.Hit(ctx, "k", cfg) // t=40

		clock.Advance(10 * time.Second) // t=50, window still holds three
		res, _ := store.Hit(ctx, "k", cfg)
		Expect(res.Success).To(BeFalse())
		Expect(res.Reset).To(Equal(clock.Now().Add(10 * time.Second)))

		clock.Advance(10 * time.Second) // t=60, the t=0 request left the window
		res, _ = store.Hit(ctx, "k", cfg)
		Expect(res.Success).To(BeTrue())
		Expect(res.Remaining).To(Equal(0))
	})

	It("does not record rejected requests", func() {
		for i := 0; i < 3; i++ {
			_, _ = store.Hit(ctx, "k", cfg)
		}
		for i := 0; i < 10; i++ {
			_, _ = store.Hit(ctx, "k", cfg)
		}

		clock.Advance(time.Minute + time.Millisecond)
		res, _ := store.Hit(ctx, "k", cfg)
		Expect(res.Success).To(BeTrue())
		Expect(res.Remaining).To(Equal(2))
	})

	It("keeps keys independent", func() {
		for i := 0; i < 3; i++ {
			_, _ = store.Hit(ctx, "user:1", cfg)
		}
		res, _ := store.Hit(ctx, "user:2", cfg)
		Expect(res.Success).To(BeTrue())
	})

	It("resets a key", func() {
		for i := 0; i < 3; i++ {
			_, _ = store.Hit(ctx, "k", cfg)
		}
		Expect(store.Reset(ctx, "k")).To(Succeed())

		res, _ := store.Hit(ctx, "k", cfg)
		Expect(res.Success).To(BeTrue())
	})

	It("rejects invalid configs", func() {
		_, err := store.Hit(ctx, "k", ratelimit.Config{MaxRequests: 0, Window: time.Second})
		Expect(err).To(MatchError(ratelimit.ErrInvalidConfig))
	})

	It("cleans up keys whose window has passed", func() {
		_, _ = store.Hit(ctx, "a", cfg)
		_, _ = store.Hit(ctx, "b", ratelimit.Config{MaxRequests: 1, Window: time.Hour})
		Expect(store.Len()).To(Equal(2))

		clock.Advance(2 * time.Minute)
		Expect(store.Cleanup()).To(Equal(1))
		Expect(store.Len()).To(Equal(1))
	})

	It("never admits more than max requests under concurrency", func() {
		cfg = ratelimit.Config{MaxRequests: 50, Window: time.Minute}
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := store.Hit(ctx, "shared", cfg)
				Expect(err).NotTo(HaveOccurred())
				if res.Success {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		Expect(allowed).To(Equal(50))
	})
})

var _ = Describe("Limiter", func() {
	It("namespaces keys by limiter name", func() {
		store := ratelimit.NewMemoryStore(newFakeClock())
		auth, err := ratelimit.New(store, "auth", ratelimit.Config{MaxRequests: 1, Window: time.Minute})
		Expect(err).NotTo(HaveOccurred())
		api, err := ratelimit.New(store, "api", ratelimit.Config{MaxRequests: 1, Window: time.Minute})
		Expect(err).NotTo(HaveOccurred())

		res, _ := auth.Check(context.Background(), "ip:10.0.0.1")
		Expect(res.Success).To(BeTrue())
		res, _ = api.Check(context.Background(), "ip:10.0.0.1")
		Expect(res.Success).To(BeTrue())
		res, _ = auth.Check(context.Background(), "ip:10.0.0.1")
		Expect(res.Success).To(BeFalse())

		Expect(auth.Reset(context.Background(), "ip:10.0.0.1")).To(Succeed())
		res, _ = auth.Check(context.Background(), "ip:10.0.0.1")
		Expect(res.Success).To(BeTrue())
	})

	It("validates its config", func() {
		_, err := ratelimit.New(ratelimit.NewMemoryStore(nil), "api", ratelimit.Config{MaxRequests: 5})
		Expect(err).To(MatchError(ratelimit.ErrInvalidConfig))
		_, err = ratelimit.New(ratelimit.NewMemoryStore(nil), "", ratelimit.API)
		Expect(err).To(MatchError(ratelimit.ErrInvalidConfig))
	})

	DescribeTable("Identifier",
		func(userID int64, ip, want string) {
			Expect(ratelimit.Identifier(userID, ip)).To(Equal(want))
		},
		Entry("authenticated user", int64(42), "10.0.0.1", "user:42"),
		Entry("anonymous", int64(0), "10.0.0.1", "ip:10.0.0.1"),
		Entry("no ip", int64(0), "", "ip:unknown"),
	)
})
