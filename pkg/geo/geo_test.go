package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetersSamePoint(t *testing.T) {
	p := Point{Latitude: 51.5074, Longitude: -0.1278}
	assert.Equal(t, 0, DistanceMeters(p, p))
}

func TestDistanceMetersKnownPair(t *testing.T) {
	// London to Paris is roughly 343.5km along the great circle.
	london := Point{Latitude: 51.5074, Longitude: -0.1278}
	paris := Point{Latitude: 48.8566, Longitude: 2.3522}
	d := DistanceMeters(london, paris)
	assert.InDelta(t, 343500, d, 1500)
	assert.Equal(t, d, DistanceMeters(paris, london))
}

func TestWithin(t *testing.T) {
	center := Point{Latitude: 53.4808, Longitude: -2.2426}
	// About 55m north.
	near := Point{Latitude: 53.4813, Longitude: -2.2426}
	ok, d := Within(near, center, 100)
	assert.True(t, ok)
	assert.InDelta(t, 55, d, 3)

	far := Point{Latitude: 53.4840, Longitude: -2.2426}
	ok, d = Within(far, center, 100)
	assert.False(t, ok)
	assert.Greater(t, d, 300)
}
