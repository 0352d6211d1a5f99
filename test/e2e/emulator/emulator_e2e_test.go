package emulator_test

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrovista.dev/panel/internal/aggregate"
	"agrovista.dev/panel/internal/upstream"
	"agrovista.dev/panel/pkg/session"
)

var _ = Describe("Panel client against the emulator", Ordered, func() {
	var (
		ctx      context.Context
		sessions *session.Store
		client   *upstream.Client

		accountEmail    = "ana@finca.mx"
		accountPassword = "Secreta1!"
	)

	BeforeAll(func() {
		ctx = context.Background()
		sessions = session.NewStore(
			session.WithPath(filepath.Join(GinkgoT().TempDir(), "session")),
			session.WithLogger(testLogger),
		)

		var err error
		client, err = upstream.NewClient(&upstream.ClientConfig{
			BaseURL:  emulatorURL,
			Sessions: sessions,
			Logger:   testLogger,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("registers an account and stores the credential", func() {
		creds, err := client.Register(ctx, accountEmail, accountPassword, "Ana")
		Expect(err).NotTo(HaveOccurred())
		Expect(creds.Token).NotTo(BeEmpty())
		Expect(creds.User.Email).To(Equal(accountEmail))
		Expect(sessions.IsActive()).To(BeTrue())
	})

	It("rejects a duplicate registration without touching the session", func() {
		_, err := client.Register(ctx, accountEmail, accountPassword, "Ana")
		Expect(err).To(HaveOccurred())
		Expect(upstream.IsAuth(err)).To(BeFalse())
		Expect(sessions.IsActive()).To(BeTrue())
	})

	It("returns the profile for the stored credential", func() {
		user, err := client.CurrentUser(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(user.Email).To(Equal(accountEmail))
		Expect(user.Name).To(Equal("Ana"))
	})

	It("rotates the credential on login", func() {
		before := sessions.Token()

		creds, err := client.Login(ctx, accountEmail, accountPassword)
		Expect(err).NotTo(HaveOccurred())
		Expect(creds.Token).NotTo(BeEmpty())
		Expect(sessions.Token()).To(Equal(creds.Token))
		Expect(sessions.Token()).NotTo(Equal(before))
	})

	It("serves the seeded snapshot with both plot partitions", func() {
		snap, err := client.FetchSnapshot(ctx)
		Expect(err).NotTo(HaveOccurred())

		active := aggregate.ActivePlots(snap)
		deleted := aggregate.DeletedPlots(snap)
		Expect(active).NotTo(BeEmpty())
		Expect(deleted).NotTo(BeEmpty())
		Expect(len(active) + len(deleted)).To(Equal(len(snap.Plots)))

		Expect(snap.History).NotTo(BeEmpty())
		for _, p := range snap.Plots {
			Expect(p.Latitude).NotTo(BeNil())
			Expect(p.Longitude).NotTo(BeNil())
		}
	})

	It("serves a timestamped latest reading", func() {
		reading, err := client.FetchLatestReading(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(reading.RecordedAt.IsZero()).To(BeFalse())
	})

	It("serves irrigation zones with display colors", func() {
		zones, err := client.FetchIrrigationZones(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(zones).NotTo(BeEmpty())
		for _, z := range zones {
			Expect(z.Status.Known()).To(BeTrue(), string(z.Status))
			Expect(z.Color).NotTo(BeEmpty())
		}
	})

	It("applies a partial plot update", func() {
		snap, err := client.FetchSnapshot(ctx)
		Expect(err).NotTo(HaveOccurred())
		target := aggregate.ActivePlots(snap)[0]

		newName := "Parcela renombrada"
		updated, err := client.UpdatePlot(ctx, target.ID, upstream.PlotUpdate{Name: &newName})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.ID).To(Equal(target.ID))
		Expect(updated.Name).To(Equal(newName))
		Expect(updated.CropType).To(Equal(target.CropType))

		after, err := client.FetchSnapshot(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, p := range after.Plots {
			if p.ID == target.ID {
				Expect(p.Name).To(Equal(newName))
			}
		}
	})

	It("accepts a new sensor reading", func() {
		snap, err := client.FetchSnapshot(ctx)
		Expect(err).NotTo(HaveOccurred())
		plot := aggregate.ActivePlots(snap)[0]
		historyLen := len(snap.History)

		created, err := client.CreateSensorReading(ctx, upstream.NewReading{
			PlotID:      plot.ID,
			RecordedAt:  time.Now().UTC().Format("2006-01-02 15:04:05"),
			Temperature: 27.5,
			Humidity:    63,
			Rain:        0.4,
			Sunlight:    77,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(created.ID).NotTo(BeZero())
		Expect(created.PlotID).To(Equal(plot.ID))

		after, err := client.FetchSnapshot(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(after.History).To(HaveLen(historyLen + 1))
	})

	It("follows the legacy bare-path redirect", func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, emulatorURL+"/dump", nil)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Authorization", "Bearer "+sessions.Token())

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("parcelas"))
	})

	It("tears the session down on an unauthorized response", func() {
		sessions.Set("bogus-token")

		_, err := client.FetchSnapshot(ctx)
		Expect(err).To(HaveOccurred())
		Expect(upstream.IsAuth(err)).To(BeTrue())
		Expect(sessions.IsActive()).To(BeFalse())
	})
})
