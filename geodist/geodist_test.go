package geodist_test

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/revierkompass/revierkompass/geodist"
)

var (
	stuttgart = orb.Point{9.1829, 48.7758}
	karlsruhe = orb.Point{8.4037, 49.0069}
)

func TestHaversine(t *testing.T) {
	d := geodist.Haversine(stuttgart, karlsruhe)
	// Stuttgart to Karlsruhe is roughly 62 km as the crow flies.
	if d < 60 || d > 65 {
		t.Fatalf("expected ~62 km, got %f", d)
	}

	if rev := geodist.Haversine(karlsruhe, stuttgart); math.Abs(rev-d) > 1e-9 {
		t.Fatalf("expected symmetric distance, got %f and %f", d, rev)
	}

	if z := geodist.Haversine(stuttgart, stuttgart); z != 0 {
		t.Fatalf("expected zero distance, got %f", z)
	}
}

func TestValid(t *testing.T) {
	if !geodist.Valid(stuttgart) {
		t.Fatal("expected stuttgart to be valid")
	}
	if geodist.Valid(orb.Point{181, 0}) {
		t.Fatal("expected longitude 181 to be invalid")
	}
	if geodist.Valid(orb.Point{0, -91}) {
		t.Fatal("expected latitude -91 to be invalid")
	}
}

func TestBounds(t *testing.T) {
	if !geodist.BadenWuerttemberg.Contains(stuttgart) {
		t.Fatal("expected stuttgart inside baden-württemberg")
	}
	berlin := orb.Point{13.405, 52.52}
	if geodist.BadenWuerttemberg.Contains(berlin) {
		t.Fatal("expected berlin outside baden-württemberg")
	}
	if !geodist.Germany.Contains(berlin) {
		t.Fatal("expected berlin inside germany")
	}

	want := "7.51,47.53,10.5,49.79"
	if got := geodist.BadenWuerttemberg.String(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
