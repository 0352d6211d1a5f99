package geomap

import (
	"math"
	"sort"
)

// spreadRadius is the minimum pairwise separation, in degrees, between
// rendered markers. Roughly 25 meters at the equator, enough to make
// neighbouring plot markers individually clickable.
const spreadRadius = 0.00025

// Spread returns a copy of entities where members closer together than
// the minimum separation are nudged onto a small circle around their
// cluster's centroid, so every such pair ends up at least the
// separation apart. Clustering is transitive: a chain of near
// neighbours forms one cluster. The pass is deterministic, with ring
// position following slice order, so the same input always yields the
// same output. Entities without usable coordinates and isolated
// positions pass through unchanged; order and count are preserved.
func Spread(entities []Entity) []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)

	located := make([]int, 0, len(entities))
	for i, e := range entities {
		if e.Located() {
			located = append(located, i)
		}
	}

	// Union-find over pairs below the separation threshold.
	parent := make(map[int]int, len(located))
	for _, i := range located {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for x := 0; x < len(located); x++ {
		for y := x + 1; y < len(located); y++ {
			i, j := located[x], located[y]
			dLat := *entities[i].Latitude - *entities[j].Latitude
			dLng := *entities[i].Longitude - *entities[j].Longitude
			if math.Hypot(dLat, dLng) < spreadRadius {
				parent[find(i)] = find(j)
			}
		}
	}

	clusters := make(map[int][]int)
	for _, i := range located {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}

	for _, indices := range clusters {
		if len(indices) < 2 {
			continue
		}
		sort.Ints(indices)

		var centerLat, centerLng float64
		for _, i := range indices {
			centerLat += *entities[i].Latitude
			centerLng += *entities[i].Longitude
		}
		n := float64(len(indices))
		centerLat /= n
		centerLng /= n

		// Ring radius keeping the chord between ring neighbours at or
		// above the separation threshold, with headroom for rounding.
		radius := 1.05 * spreadRadius / (2 * math.Sin(math.Pi/n))
		if radius < spreadRadius {
			radius = spreadRadius
		}
		step := 2 * math.Pi / n
		for ring, idx := range indices {
			angle := step * float64(ring)
			lat := centerLat + radius*math.Sin(angle)
			lng := centerLng + radius*math.Cos(angle)
			out[idx].Latitude = &lat
			out[idx].Longitude = &lng
		}
	}

	return out
}
