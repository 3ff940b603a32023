package heiretsu

import "testing"

func TestTickIsNewerThan(t *testing.T) {
	cases := []struct {
		tick, lastRun, thisRun Tick
		want                   bool
	}{
		{5, 4, 6, true},
		{5, 5, 6, false}, // exclusive lower bound
		{5, 4, 5, true},  // inclusive upper bound
		{5, 4, 4, false}, // empty window
		{0, 0, 10, false},
		{1, 0, 10, true},
	}
	for _, c := range cases {
		if got := c.tick.isNewerThan(c.lastRun, c.thisRun); got != c.want {
			t.Errorf("Tick(%d).isNewerThan(%d, %d) = %v, want %v",
				c.tick, c.lastRun, c.thisRun, got, c.want)
		}
	}
}

func TestBitmaskEachBit(t *testing.T) {
	m := maskOf(0, 63, 64, 129, 255)
	var got []uint8
	m.eachBit(func(b uint8) { got = append(got, b) })
	want := []uint8{0, 63, 64, 129, 255}
	if len(got) != len(want) {
		t.Fatalf("Expected bits %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected bits %v, got %v", want, got)
		}
	}
}

func TestBitmaskContains(t *testing.T) {
	m := maskOf(1, 2, 3)
	if !m.contains(maskOf(1, 3)) {
		t.Error("Expected superset to contain subset")
	}
	if m.contains(maskOf(1, 4)) {
		t.Error("Expected missing bit to fail containment")
	}
	if m.intersects(maskOf(9)) {
		t.Error("Expected disjoint masks not to intersect")
	}
	if !m.intersects(maskOf(2, 9)) {
		t.Error("Expected overlapping masks to intersect")
	}
}
