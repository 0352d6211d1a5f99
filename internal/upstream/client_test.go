package upstream_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrovista.dev/panel/internal/upstream"
	"agrovista.dev/panel/pkg/session"
)

var _ = Describe("Client", func() {
	var (
		logger *slog.Logger
		store  *session.Store
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		store = session.NewStore(session.WithPath(filepath.Join(GinkgoT().TempDir(), "session")))
	})

	newClient := func(baseURL string) *upstream.Client {
		client, err := upstream.NewClient(&upstream.ClientConfig{
			BaseURL:  baseURL,
			Sessions: store,
			Logger:   logger,
		})
		Expect(err).NotTo(HaveOccurred())
		return client
	}

	Describe("NewClient", func() {
		It("should reject nil config", func() {
			client, err := upstream.NewClient(nil)
			Expect(err).To(HaveOccurred())
			Expect(client).To(BeNil())
		})

		It("should reject an empty base URL", func() {
			_, err := upstream.NewClient(&upstream.ClientConfig{
				Sessions: store,
				Logger:   logger,
			})
			Expect(err).To(MatchError(ContainSubstring("base URL")))
		})

		It("should reject a nil session store", func() {
			_, err := upstream.NewClient(&upstream.ClientConfig{
				BaseURL: "http://localhost:3001",
				Logger:  logger,
			})
			Expect(err).To(MatchError(ContainSubstring("session store")))
		})
	})

	Describe("bearer decoration", func() {
		It("should attach the stored credential to requests", func() {
			var got string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				w.Write([]byte(`{"parcelas":[],"historico":[]}`))
			}))
			defer server.Close()

			store.Set("tok-abc")
			_, err := newClient(server.URL).FetchSnapshot(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("Bearer tok-abc"))
		})

		It("should omit the header when no credential is stored", func() {
			var got string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				w.Write([]byte(`{"parcelas":[],"historico":[]}`))
			}))
			defer server.Close()

			_, err := newClient(server.URL).FetchSnapshot(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})
	})

	Describe("unauthorized handling", func() {
		It("should clear the session and return a terminal AuthError", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer server.Close()

			store.Set("expired")
			_, err := newClient(server.URL).FetchSnapshot(context.Background())

			Expect(upstream.IsAuth(err)).To(BeTrue())
			Expect(store.IsActive()).To(BeFalse())
		})
	})

	Describe("transport failures", func() {
		It("should wrap 5xx responses without retrying", func() {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			_, err := newClient(server.URL).FetchSnapshot(context.Background())

			var te *upstream.TransportError
			Expect(err).To(BeAssignableToTypeOf(te))
			Expect(calls.Load()).To(BeEquivalentTo(1))
		})

		It("should wrap network errors", func() {
			client := newClient("http://127.0.0.1:1")
			_, err := client.FetchSnapshot(context.Background())

			var te *upstream.TransportError
			Expect(err).To(BeAssignableToTypeOf(te))
			Expect(upstream.IsAuth(err)).To(BeFalse())
		})
	})

	Describe("Login", func() {
		It("should store the returned token", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"token":"tok-login","user":{"id":7,"email":"user@test.com","nombre":"Ana"}}`))
			}))
			defer server.Close()

			creds, err := newClient(server.URL).Login(context.Background(), "user@test.com", "Abc123!")
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Token).To(Equal("tok-login"))
			Expect(creds.User.Name).To(Equal("Ana"))
			Expect(store.Token()).To(Equal("tok-login"))
		})

		It("should reject a malformed email before any network call", func() {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				calls.Add(1)
			}))
			defer server.Close()

			_, err := newClient(server.URL).Login(context.Background(), "user@test", "Abc123!")

			Expect(upstream.IsValidation(err)).To(BeTrue())
			Expect(calls.Load()).To(BeZero())
		})

		It("should reject a weak password before any network call", func() {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				calls.Add(1)
			}))
			defer server.Close()

			_, err := newClient(server.URL).Login(context.Background(), "user@test.com", "abc123")

			Expect(upstream.IsValidation(err)).To(BeTrue())
			Expect(calls.Load()).To(BeZero())
		})

		It("should surface a token-less response as a shape failure", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"user":{"id":7}}`))
			}))
			defer server.Close()

			_, err := newClient(server.URL).Login(context.Background(), "user@test.com", "Abc123!")

			var de *upstream.DataShapeError
			Expect(err).To(BeAssignableToTypeOf(de))
			Expect(store.IsActive()).To(BeFalse())
		})
	})

	Describe("FetchSnapshot", func() {
		It("should coerce string coordinates and the deletion flag", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{
					"parcelas": [
						{"id":1,"nombre":"Norte","latitud":"21.0619","longitud":"-86.8918","is_deleted":0},
						{"id":2,"nombre":"Sur","latitud":null,"longitud":"oops","is_deleted":"1"}
					],
					"historico": [
						{"id":10,"parcela_id":1,"fecha_registro":"2026-03-01T10:00:00Z","temperatura":"24.5","humedad":61,"lluvia":null,"sol":80}
					]
				}`))
			}))
			defer server.Close()

			snap, err := newClient(server.URL).FetchSnapshot(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(snap.Plots).To(HaveLen(2))
			Expect(*snap.Plots[0].Latitude).To(BeNumerically("~", 21.0619, 1e-9))
			Expect(snap.Plots[0].Deleted).To(BeFalse())
			Expect(snap.Plots[1].Latitude).To(BeNil())
			Expect(snap.Plots[1].Longitude).To(BeNil())
			Expect(snap.Plots[1].Deleted).To(BeTrue())

			Expect(snap.History).To(HaveLen(1))
			Expect(snap.History[0].Temperature).To(Equal(24.5))
			Expect(snap.History[0].Rain).To(BeZero())
		})

		It("should treat non-finite coordinate strings as missing", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{
					"parcelas": [
						{"id":1,"nombre":"Norte","latitud":"NaN","longitud":"-86.8918","is_deleted":0},
						{"id":2,"nombre":"Sur","latitud":"21.05","longitud":"+Inf","is_deleted":0}
					],
					"historico": []
				}`))
			}))
			defer server.Close()

			snap, err := newClient(server.URL).FetchSnapshot(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(snap.Plots[0].Latitude).To(BeNil())
			Expect(*snap.Plots[0].Longitude).To(BeNumerically("~", -86.8918, 1e-9))
			Expect(snap.Plots[1].Longitude).To(BeNil())
		})
	})

	Describe("FetchLatestReading", func() {
		It("should substitute zero for unparseable channels", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"status":"success","data":{"temperatura":"not-a-number","humedad":"55.5","lluvia":2,"sol":null,"fecha":"2026-03-01T10:00:00Z"}}`))
			}))
			defer server.Close()

			reading, err := newClient(server.URL).FetchLatestReading(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(reading.Temperature).To(BeZero())
			Expect(reading.Humidity).To(Equal(55.5))
			Expect(reading.Rain).To(Equal(2.0))
			Expect(reading.Sunlight).To(BeZero())
		})

		It("should stamp a missing registration date with the current time", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"status":"success","data":{"temperatura":20,"humedad":50,"lluvia":0,"sol":70}}`))
			}))
			defer server.Close()

			reading, err := newClient(server.URL).FetchLatestReading(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(reading.RecordedAt).NotTo(BeZero())
		})
	})

	Describe("FetchIrrigationZones", func() {
		It("should cache-bust the request", func() {
			var r1, r2 *http.Request
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r1 == nil {
					r1 = r.Clone(context.Background())
				} else {
					r2 = r.Clone(context.Background())
				}
				w.Write([]byte(`{"zonas":[]}`))
			}))
			defer server.Close()

			client := newClient(server.URL)
			_, err := client.FetchIrrigationZones(context.Background())
			Expect(err).NotTo(HaveOccurred())
			_, err = client.FetchIrrigationZones(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(r1.URL.Query().Get("t")).NotTo(BeEmpty())
			Expect(r1.URL.Query().Get("nocache")).NotTo(BeEmpty())
			Expect(r1.URL.Query().Get("nocache")).NotTo(Equal(r2.URL.Query().Get("nocache")))
			Expect(r1.Header.Get("Cache-Control")).To(ContainSubstring("no-store"))
			Expect(r1.Header.Get("Pragma")).To(Equal("no-cache"))
		})

		It("should decode zones, tolerating null coordinates and unknown statuses", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"zonas":[
					{"id":1,"sector":"A","nombre":"Zona A","tipo_riego":"aspersion","estado":"encendido","latitud":21.06,"longitud":-86.89,"motivo":null,"fecha":"2026-03-01T10:00:00Z","color":"#4CAF50"},
					{"id":2,"sector":"B","nombre":"Zona B","tipo_riego":"goteo","estado":"experimental","latitud":null,"longitud":null,"motivo":"prueba","fecha":"2026-03-01T11:00:00Z","color":""}
				]}`))
			}))
			defer server.Close()

			zones, err := newClient(server.URL).FetchIrrigationZones(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(zones).To(HaveLen(2))

			Expect(zones[0].Status).To(Equal(upstream.ZoneOn))
			Expect(zones[0].Status.Known()).To(BeTrue())
			Expect(*zones[0].Latitude).To(BeNumerically("~", 21.06, 1e-9))

			Expect(zones[1].Status.Known()).To(BeFalse())
			Expect(zones[1].Color).NotTo(BeEmpty()) // fallback color applied
			Expect(zones[1].Latitude).To(BeNil())
		})

		It("should reject a payload without the zonas array", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"data":[]}`))
			}))
			defer server.Close()

			_, err := newClient(server.URL).FetchIrrigationZones(context.Background())

			var de *upstream.DataShapeError
			Expect(err).To(BeAssignableToTypeOf(de))
		})
	})

	Describe("UpdatePlot", func() {
		It("should PUT the partial update to the plot path", func() {
			var method, path string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method, path = r.Method, r.URL.Path
				w.Write([]byte(`{"id":5,"nombre":"Renamed","is_deleted":0}`))
			}))
			defer server.Close()

			name := "Renamed"
			plot, err := newClient(server.URL).UpdatePlot(context.Background(), 5, upstream.PlotUpdate{Name: &name})
			Expect(err).NotTo(HaveOccurred())
			Expect(method).To(Equal(http.MethodPut))
			Expect(path).To(Equal("/api/parcelas/5"))
			Expect(plot.Name).To(Equal("Renamed"))
		})
	})
})

var _ = Describe("Validation", func() {
	DescribeTable("ValidateEmail",
		func(email string, valid bool) {
			err := upstream.ValidateEmail(email)
			if valid {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(upstream.IsValidation(err)).To(BeTrue())
			}
		},
		Entry("plain address", "user@test.com", true),
		Entry("subdomain", "a@b.co.uk", true),
		Entry("missing TLD", "user@test", false),
		Entry("missing at sign", "usertest.com", false),
		Entry("embedded space", "us er@test.com", false),
		Entry("empty", "", false),
	)

	DescribeTable("ValidatePassword",
		func(password string, valid bool) {
			err := upstream.ValidatePassword(password)
			if valid {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(upstream.IsValidation(err)).To(BeTrue())
			}
		},
		Entry("meets all classes", "Abc123!", true),
		Entry("exactly six chars", "Ab1!xy", true),
		Entry("too short", "Ab1!", false),
		Entry("no uppercase", "abc123!", false),
		Entry("no lowercase", "ABC123!", false),
		Entry("no digit", "Abcdef!", false),
		Entry("no symbol", "Abc1234", false),
	)
})
