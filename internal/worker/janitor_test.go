package worker_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigdesk.app/server/internal/worker"
)

var _ = Describe("Janitor", func() {
	It("purges sessions and expires invitations on each sweep", func() {
		sessions := &mockPurger{n: 3}
		invitations := &mockPurger{n: 1}

		worker.NewJanitor(sessions, invitations, time.Hour).Sweep(context.Background())
		Expect(sessions.calls).To(Equal(1))
		Expect(invitations.calls).To(Equal(1))
	})

	It("keeps going when one cleanup fails", func() {
		sessions := &mockPurger{err: errors.New("db down")}
		invitations := &mockPurger{}

		worker.NewJanitor(sessions, invitations, time.Hour).Sweep(context.Background())
		Expect(invitations.calls).To(Equal(1))
	})

	It("sweeps at start and stops cleanly", func() {
		sessions := &mockPurger{}
		invitations := &mockPurger{}
		j := worker.NewJanitor(sessions, invitations, time.Hour)

		done := make(chan struct{})
		go func() {
			j.Run(context.Background())
			close(done)
		}()

		j.Stop()
		Eventually(done).Should(BeClosed())
		Expect(sessions.calls).To(Equal(1))
	})
})
