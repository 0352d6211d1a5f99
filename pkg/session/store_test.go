package session_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrovista.dev/panel/pkg/session"
)

func TestSession(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Suite")
}

var _ = Describe("Store", func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "session")
	})

	Describe("Set and IsActive", func() {
		It("should start unauthenticated", func() {
			store := session.NewStore(session.WithPath(path))
			Expect(store.IsActive()).To(BeFalse())
			Expect(store.Token()).To(BeEmpty())
		})

		It("should become active once a credential is set", func() {
			store := session.NewStore(session.WithPath(path))
			store.Set("tok-123")
			Expect(store.IsActive()).To(BeTrue())
			Expect(store.Token()).To(Equal("tok-123"))
		})

		It("should persist the credential across stores", func() {
			session.NewStore(session.WithPath(path)).Set("tok-456")

			reloaded := session.NewStore(session.WithPath(path))
			Expect(reloaded.IsActive()).To(BeTrue())
			Expect(reloaded.Token()).To(Equal("tok-456"))
		})
	})

	Describe("Clear", func() {
		It("should remove the credential and the persisted file", func() {
			store := session.NewStore(session.WithPath(path))
			store.Set("tok-789")
			store.Clear()

			Expect(store.IsActive()).To(BeFalse())
			_, err := os.Stat(path)
			Expect(err).To(MatchError(os.ErrNotExist))
		})

		It("should notify OnClear observers exactly once per teardown", func() {
			store := session.NewStore(session.WithPath(path))
			calls := 0
			store.OnClear(func() { calls++ })

			store.Set("tok")
			store.Clear()
			store.Clear() // already cleared, no second notification

			Expect(calls).To(Equal(1))
		})

		It("should present the cleared state to observers", func() {
			store := session.NewStore(session.WithPath(path))
			store.Set("tok")

			activeDuringObserver := true
			store.OnClear(func() { activeDuringObserver = store.IsActive() })
			store.Clear()

			Expect(activeDuringObserver).To(BeFalse())
		})
	})
})
