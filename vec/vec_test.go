package vec

import "testing"

func TestNormalizedDiagonal(t *testing.T) {
	n := Vec2f{X: 1, Y: 1}.Normalized()
	if d := n.LengthSquared() - 1; d > 1e-6 || d < -1e-6 {
		t.Fatalf("expected unit length, got %v (len²=%v)", n, n.LengthSquared())
	}
	if n.X != n.Y {
		t.Fatalf("expected symmetric components, got %v", n)
	}
}

func TestNormalizedZero(t *testing.T) {
	if got := (Vec2f{}).Normalized(); !got.IsZero() {
		t.Fatalf("zero vector should stay zero, got %v", got)
	}
}

func TestLerpEndpoints(t *testing.T) {
	a := Vec2f{X: 1, Y: 2}
	b := Vec2f{X: 5, Y: -2}
	if got := a.Lerp(b, 0); got != a {
		t.Fatalf("lerp(0) = %v, want %v", got, a)
	}
	if got := a.Lerp(b, 1); got != b {
		t.Fatalf("lerp(1) = %v, want %v", got, b)
	}
	if got := a.Lerp(b, 0.5); got != (Vec2f{X: 3, Y: 0}) {
		t.Fatalf("lerp(0.5) = %v", got)
	}
}
