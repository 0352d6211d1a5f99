package geomap_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestGeomap(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Geomap Suite")
}
