package creature

import (
	"math"
	"sync"
	"testing"
)

func TestParseType(t *testing.T) {
	cases := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"Lizard", Lizard, true},
		{"frog", Frog, true},
		{" Snake ", Snake, true},
		{"Dragon", DefaultType, false},
		{"", DefaultType, false},
	}
	for _, c := range cases {
		got, ok := ParseType(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseType(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestProfilesAreFixed(t *testing.T) {
	for _, typ := range Types() {
		p := ProfileOf(typ)
		if p.SegmentCount() != len(p.Radii()) {
			t.Fatalf("%s: segment count %d, radii %d", typ, p.SegmentCount(), len(p.Radii()))
		}
		c := New(typ, Vec2{})
		before := c.Radii()
		c.Update(Vec2{100, 100}, 0.5)
		c.SetPositions(make([]Vec2, 100))
		after := c.Radii()
		if len(before) != len(after) || c.Len() != len(before) {
			t.Fatalf("%s: segment count changed", typ)
		}
		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("%s: radius %d changed", typ, i)
			}
		}
	}
	if got := len(ProfileOf(Lizard).Radii()); got != 15 {
		t.Fatalf("lizard has %d segments, want 15", got)
	}
}

func TestPartsCoverFlattenedChain(t *testing.T) {
	c := New(Lizard, Vec2{0, 0})
	c.Update(Vec2{100, 0}, 0.1)
	var flat []Vec2
	names := []string{}
	for _, p := range c.Parts() {
		names = append(names, p.Name)
		flat = append(flat, p.Positions...)
	}
	if len(names) != 3 || names[0] != "Head" || names[1] != "Body" || names[2] != "Tail" {
		t.Fatalf("unexpected parts %v", names)
	}
	ps := c.Positions()
	for i := range ps {
		if !ps[i].Equal(flat[i]) {
			t.Fatalf("part position %d differs", i)
		}
	}
}

func TestRegistryApplyPositions(t *testing.T) {
	r := NewRegistry()
	if created := r.ApplyPositions(4, []Vec2{{10, 20}, {10, 0}}); !created {
		t.Fatalf("expected new entry")
	}
	s, ok := r.Get(4)
	if !ok || s.Type != DefaultType {
		t.Fatalf("got %+v", s)
	}
	if !s.Positions[0].Equal(Vec2{10, 20}) || !s.Positions[1].Equal(Vec2{10, 0}) {
		t.Fatalf("positions not applied: %v", s.Positions[:2])
	}
	if r.ApplyPositions(4, nil) {
		t.Fatalf("empty update must not create")
	}
}

func TestRegistryApplyTypeKeepsHead(t *testing.T) {
	r := NewRegistry()
	r.ApplyPositions(2, []Vec2{{33, 44}})
	if !r.ApplyType(2, Frog, Vec2{}) {
		t.Fatalf("expected replacement")
	}
	s, _ := r.Get(2)
	if s.Type != Frog || !s.Positions[0].Equal(Vec2{33, 44}) {
		t.Fatalf("got %v at %v", s.Type, s.Positions[0])
	}
	if len(s.Radii) != ProfileOf(Frog).SegmentCount() {
		t.Fatalf("radii not rebuilt")
	}
	if r.ApplyType(2, Frog, Vec2{}) {
		t.Fatalf("same type must be a no-op")
	}
}

func TestRegistryLocal(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.StepLocal(Vec2{1, 1}, 0.1); ok {
		t.Fatalf("step without local creature")
	}
	r.SetLocal(7, Snake, Vec2{100, 100})
	id, ok := r.LocalID()
	if !ok || id != 7 || !r.IsLocal(7) {
		t.Fatalf("local id = %d,%v", id, ok)
	}
	ps, ok := r.StepLocal(Vec2{200, 100}, 0.1)
	if !ok || ps[0].X <= 100 {
		t.Fatalf("local creature did not move: %v", ps)
	}
	r.Remove(7)
	if _, ok := r.LocalID(); ok {
		t.Fatalf("local id survived removal")
	}
}

func TestRegistrySnapshotOrdered(t *testing.T) {
	r := NewRegistry()
	for _, id := range []int{5, 1, 3} {
		r.ApplyPositions(id, []Vec2{{float64(id), 0}})
	}
	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].ID != 1 || snap[1].ID != 3 || snap[2].ID != 5 {
		t.Fatalf("snapshot order %v", snap)
	}
	snap[0].Positions[0] = Vec2{999, 999}
	s, _ := r.Get(1)
	if s.Positions[0].X == 999 {
		t.Fatalf("snapshot aliases registry storage")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	r.SetLocal(1, Lizard, Vec2{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r.ApplyPositions(w+2, []Vec2{{float64(i), 0}})
				r.StepLocal(Vec2{float64(i), 10}, 0.01)
				_ = r.Snapshot()
			}
		}(w)
	}
	wg.Wait()
	if r.Len() != 5 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestVecEqual(t *testing.T) {
	if !(Vec2{1.5, -2}).Equal(Vec2{1.5, -2}) {
		t.Fatalf("equal vectors reported different")
	}
	if (Vec2{1, 2}).Equal(Vec2{1, 2.0000001}) {
		t.Fatalf("different vectors reported equal")
	}
	if NoTarget.Equal(NoTarget) {
		t.Fatalf("NaN must not compare equal")
	}
}

func TestRegistryInfersTypeFromSegmentCount(t *testing.T) {
	r := NewRegistry()
	n := ProfileOf(Snake).SegmentCount()
	ps := make([]Vec2, n)
	for i := range ps {
		ps[i] = Vec2{X: 100 - float64(i)*25, Y: 50}
	}
	r.ApplyPositions(5, ps)
	s, _ := r.Get(5)
	if s.Type != Snake || len(s.Positions) != n {
		t.Fatalf("got %v with %d segments", s.Type, len(s.Positions))
	}
	for i := range ps {
		if !s.Positions[i].Equal(ps[i]) {
			t.Fatalf("segment %d = %v, want %v", i, s.Positions[i], ps[i])
		}
	}

	// 种类声明之后不再推断
	r.ApplyType(5, Frog, Vec2{})
	r.ApplyPositions(5, ps)
	s, _ = r.Get(5)
	if s.Type != Frog || len(s.Positions) != ProfileOf(Frog).SegmentCount() {
		t.Fatalf("declared type overridden: %v with %d segments", s.Type, len(s.Positions))
	}
}

func TestShortUpdateKeepsTailAttached(t *testing.T) {
	c := New(Lizard, Vec2{})
	c.SetPositions([]Vec2{{500, 500}, {500, 480}})
	ps, radii := c.Positions(), c.Radii()
	if !ps[0].Equal(Vec2{500, 500}) || !ps[1].Equal(Vec2{500, 480}) {
		t.Fatalf("reported segments not applied: %v", ps[:2])
	}
	for i := 2; i < len(ps); i++ {
		if d := ps[i-1].Dist(ps[i]); math.Abs(d-float64(radii[i])) > 1e-9 {
			t.Fatalf("segment %d detached: distance %v, radius %d", i, d, radii[i])
		}
	}
}
