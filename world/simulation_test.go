package world

import "testing"

func TestVelocityAxes(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		want Vector
	}{
		{"idle", Input{}, Vector{}},
		{"up", Input{Up: true}, Vector{X: 0, Y: 1}},
		{"down", Input{Down: true}, Vector{X: 0, Y: -1}},
		{"left", Input{Left: true}, Vector{X: -1, Y: 0}},
		{"right", Input{Right: true}, Vector{X: 1, Y: 0}},
		{"opposites cancel", Input{Left: true, Right: true}, Vector{}},
		{"diagonal keeps both axes", Input{Up: true, Right: true}, Vector{X: 1, Y: 1}},
		{"all held", Input{Up: true, Down: true, Left: true, Right: true}, Vector{}},
	}

	for _, tc := range cases {
		if got := tc.in.Velocity(); got != tc.want {
			t.Errorf("%s: velocity = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// Covering one second of held input must land on the same displacement no
// matter how the second is sliced into ticks, up to float tolerance.
func TestStepDisplacementIndependentOfTickRate(t *testing.T) {
	const (
		speed     = 100.0
		duration  = 1.0
		threshold = 1e-6
	)

	for _, ticks := range []int{1, 3, 4, 60, 144} {
		l := NewLobby()
		l.Add(1).Input = Input{Right: true}

		dt := duration / float64(ticks)
		for i := 0; i < ticks; i++ {
			Step(l, speed, dt)
		}

		got := l.Get(1).Pos
		want := speed * duration
		if diff := got.X - want; diff < -threshold || diff > threshold {
			t.Errorf("%d ticks: x = %v, want %v within %v", ticks, got.X, want, threshold)
		}
		if got.Y != 0 {
			t.Errorf("%d ticks: y = %v, want 0", ticks, got.Y)
		}
	}
}

func TestStepMovesOnlyPlayersWithInput(t *testing.T) {
	const speed = 100.0

	l := NewLobby()
	l.Add(1).Input = Input{Up: true}
	l.Add(2)

	for i := 0; i < 60; i++ {
		Step(l, speed, 1.0/60.0)
	}

	a := l.Get(1).Pos
	if a.X != 0 {
		t.Fatalf("a.x = %v, want 0", a.X)
	}
	if diff := a.Y - 100; diff < -1e-6 || diff > 1e-6 {
		t.Fatalf("a.y = %v, want 100 within 1e-6", a.Y)
	}
	if b := l.Get(2).Pos; b != (Vector{}) {
		t.Fatalf("idle player moved to %v", b)
	}
}

func TestStepZeroDtIsExactNoOp(t *testing.T) {
	l := NewLobby()
	p := l.Add(1)
	p.Input = Input{Right: true, Up: true}

	// Land on an awkward float first so the no-op check is not trivially
	// satisfied by round numbers.
	Step(l, 100, 1.0/3.0)
	before := p.Pos

	for i := 0; i < 5; i++ {
		Step(l, 100, 0)
	}
	if p.Pos != before {
		t.Fatalf("zero-dt step changed position: %v -> %v", before, p.Pos)
	}
}

func TestStepDiagonalIsNotNormalized(t *testing.T) {
	l := NewLobby()
	l.Add(1).Input = Input{Up: true, Right: true}

	Step(l, 100, 1)

	got := l.Get(1).Pos
	if got != (Vector{X: 100, Y: 100}) {
		t.Fatalf("diagonal after 1s = %v, want (100, 100)", got)
	}
}
