package prediction

import (
	"testing"

	"gridsync/vec"
)

func TestInterpolationFirstSightSettled(t *testing.T) {
	in := NewInterpolation()
	in.SetTarget(3, vec.Vec2f{X: 4, Y: 4})
	if got := in.Position(3, vec.Vec2f{}); got != (vec.Vec2f{X: 4, Y: 4}) {
		t.Fatalf("first sight should be settled, got %v", got)
	}
	if got := in.Position(9, vec.Vec2f{X: 1}); got != (vec.Vec2f{X: 1}) {
		t.Fatalf("untracked should return fallback, got %v", got)
	}
}

func TestInterpolationMovesTowardTarget(t *testing.T) {
	in := NewInterpolation()
	in.SetTarget(1, vec.Vec2f{X: 0, Y: 0})
	in.SetTarget(1, vec.Vec2f{X: 2, Y: 0})
	if got := in.Position(1, vec.Vec2f{}); got.X != 0 {
		t.Fatalf("new target should start from previous position, got %v", got)
	}
	in.Update(InterpolationDuration / 2)
	if got := in.Position(1, vec.Vec2f{}); got.X < 0.99 || got.X > 1.01 {
		t.Fatalf("halfway = %v", got)
	}

	// 中途换目标，从当前插值点出发，不跳变
	before := in.Position(1, vec.Vec2f{})
	in.SetTarget(1, vec.Vec2f{X: 2, Y: 2})
	if after := in.Position(1, vec.Vec2f{}); after != before {
		t.Fatalf("retarget popped from %v to %v", before, after)
	}

	in.Update(InterpolationDuration * 3)
	if got := in.Position(1, vec.Vec2f{}); got != (vec.Vec2f{X: 2, Y: 2}) {
		t.Fatalf("should clamp at target, got %v", got)
	}
}

func TestInterpolationRemove(t *testing.T) {
	in := NewInterpolation()
	in.SetTarget(1, vec.Vec2f{X: 1})
	in.Remove(1)
	if in.IsTracking(1) || in.Len() != 0 {
		t.Fatalf("remove failed")
	}
}
