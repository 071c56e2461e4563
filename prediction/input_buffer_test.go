package prediction

import (
	"testing"

	"gridsync/game"
)

func snap(tick uint32, x int8) game.InputSnapshot {
	return game.InputSnapshot{Tick: tick, MoveX: x}
}

func TestInputBufferRoundTrip(t *testing.T) {
	b := NewInputBuffer()
	for tick := uint32(1); tick <= 300; tick++ {
		b.Add(snap(tick, int8(tick%3)-1))
	}
	for tick := uint32(300 - BufferSize + 1); tick <= 300; tick++ {
		got, ok := b.Get(tick)
		if !ok || got != snap(tick, int8(tick%3)-1) {
			t.Fatalf("tick %d: got %+v ok=%v", tick, got, ok)
		}
	}
	if _, ok := b.Get(300 - BufferSize); ok {
		t.Fatalf("overwritten tick must be absent")
	}
	if _, ok := b.Get(301); ok {
		t.Fatalf("future tick must be absent")
	}
	if b.LatestTick() != 300 || b.OldestTick() != 300-BufferSize+1 {
		t.Fatalf("latest=%d oldest=%d", b.LatestTick(), b.OldestTick())
	}
}

func TestInputBufferStaleSlotRejected(t *testing.T) {
	b := NewInputBuffer()
	b.Add(snap(5, 1))
	b.Add(snap(5+BufferSize, -1))
	if _, ok := b.Get(5); ok {
		t.Fatalf("slot now holds a newer tick")
	}
	// 有空洞时槽位残留的旧 Tick 不可被误认
	if _, ok := b.Get(5 + 2*BufferSize); ok {
		t.Fatalf("tick beyond latest")
	}
}

func TestInputsAfterMonotonic(t *testing.T) {
	b := NewInputBuffer()
	for _, tick := range []uint32{1, 2, 4, 7, 8, 9} {
		b.Add(snap(tick, 1))
	}
	for after := uint32(0); after <= 10; after++ {
		prev := after
		for _, in := range b.InputsAfter(after) {
			if in.Tick <= prev {
				t.Fatalf("InputsAfter(%d) returned tick %d out of order", after, in.Tick)
			}
			prev = in.Tick
		}
	}
	got := b.InputsAfter(3)
	if len(got) != 4 || got[0].Tick != 4 || got[3].Tick != 9 {
		t.Fatalf("InputsAfter(3) = %+v", got)
	}
	if b.InputsAfter(9) != nil {
		t.Fatalf("nothing after latest")
	}
}

func TestAcknowledgeMonotonic(t *testing.T) {
	b := NewInputBuffer()
	for tick := uint32(1); tick <= 10; tick++ {
		b.Add(snap(tick, 0))
	}
	b.Acknowledge(6)
	b.Acknowledge(3)
	if b.LastAckedTick() != 6 {
		t.Fatalf("ack went backwards: %d", b.LastAckedTick())
	}
	un := b.Unacknowledged()
	if len(un) != 4 || un[0].Tick != 7 {
		t.Fatalf("unacknowledged = %+v", un)
	}
	// 确认后数据保留，用于重放
	if _, ok := b.Get(2); !ok {
		t.Fatalf("acknowledged inputs stay retrievable")
	}

	b.Clear()
	if b.LastAckedTick() != 0 || b.LatestTick() != 0 || b.Unacknowledged() != nil {
		t.Fatalf("clear did not reset")
	}
	if _, ok := b.Get(7); ok {
		t.Fatalf("cleared buffer returned data")
	}
}
