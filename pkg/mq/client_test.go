package mq_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrovista.dev/panel/pkg/mq"
)

func TestMQ(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MQ Suite")
}

var _ = Describe("MQ Client", func() {
	var log *slog.Logger

	BeforeEach(func() {
		log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("New", func() {
		It("should create a client that connects in the background", func() {
			client := mq.New("alerts", "amqp://localhost:5672", log)
			Expect(client).NotTo(BeNil())
			_ = client.Close()
		})
	})

	Describe("Push", func() {
		Context("when not connected", func() {
			It("should give up when the context expires", func() {
				client := mq.New("alerts", "amqp://invalid:5672", log)
				time.Sleep(100 * time.Millisecond)

				ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()

				start := time.Now()
				err := client.Push(ctx, []byte(`{"kind":"test"}`))
				elapsed := time.Since(start)

				Expect(err).To(HaveOccurred())
				// Backoff must have waited at least one interval before
				// the deadline cut it off.
				Expect(elapsed).To(BeNumerically(">=", 50*time.Millisecond))

				_ = client.Close()
			})

			It("should stop retrying after the attempt budget", func() {
				client := mq.New("alerts", "amqp://invalid:5672", log)
				time.Sleep(100 * time.Millisecond)

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				start := time.Now()
				err := client.Push(ctx, []byte(`{"kind":"test"}`))
				elapsed := time.Since(start)

				Expect(err).To(MatchError(ContainSubstring("not connected")))
				// Several exponential intervals must have elapsed, but
				// well under the context deadline.
				Expect(elapsed).To(BeNumerically(">=", time.Second))
				Expect(elapsed).To(BeNumerically("<", 20*time.Second))

				_ = client.Close()
			})

			It("should fail UnsafePush immediately", func() {
				client := mq.New("alerts", "amqp://invalid:5672", log)
				time.Sleep(100 * time.Millisecond)

				err := client.UnsafePush(context.Background(), []byte(`{}`))
				Expect(err).To(MatchError(ContainSubstring("not connected")))

				_ = client.Close()
			})
		})
	})

	Describe("Consume", func() {
		Context("when not connected", func() {
			It("should return an error", func() {
				client := mq.New("alerts", "amqp://invalid:5672", log)
				time.Sleep(100 * time.Millisecond)

				_, err := client.Consume()
				Expect(err).To(MatchError(ContainSubstring("not connected")))

				_ = client.Close()
			})
		})
	})

	Describe("Close", func() {
		It("should report already closed for a client that never connected", func() {
			client := mq.New("alerts", "amqp://invalid:5672", log)
			time.Sleep(100 * time.Millisecond)

			err := client.Close()
			Expect(err).To(MatchError(ContainSubstring("already closed")))
		})
	})
})
