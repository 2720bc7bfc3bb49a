package audio

import (
	"sync"
	"testing"
	"time"
)

type countingEngine struct {
	mu      sync.Mutex
	updates int
}

func (e *countingEngine) Update() {
	e.mu.Lock()
	e.updates++
	e.mu.Unlock()
}

func (e *countingEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updates
}

func TestBufferOutput(t *testing.T) {
	b := NewBufferOutput()
	if err := b.Write([]int16{1}); err == nil {
		t.Error("Write before Open succeeded")
	}

	if err := b.Open(44100, 2, 2048); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !b.IsPlaying() {
		t.Error("IsPlaying false after Open")
	}
	b.Write([]int16{1, 2})
	b.Write([]int16{3, 4})

	got := b.Samples()
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Errorf("Samples = %v, want [1 2 3 4]", got)
	}

	b.Close()
	if b.IsPlaying() {
		t.Error("IsPlaying true after Close")
	}
}

func TestOutputSinkForwardsAndCounts(t *testing.T) {
	b := NewBufferOutput()
	b.Open(44100, 2, 2048)
	sink := NewOutputSink(b)

	sink.WritePCM([]int16{5, 6, 7, 8}, 2)
	sink.FramesMixed(2)
	sink.FramesMixed(512)

	if got := b.Samples(); len(got) != 4 {
		t.Errorf("forwarded %d samples, want 4", len(got))
	}
	if got := sink.FramesWritten(); got != 514 {
		t.Errorf("FramesWritten = %d, want 514", got)
	}
}

func TestPlayerPumpsEngine(t *testing.T) {
	engine := &countingEngine{}
	player := NewPlayer(engine, NewBufferOutput(), time.Millisecond)

	if err := player.Start(44100, 2, 2048); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := player.Start(44100, 2, 2048); err == nil {
		t.Error("second Start succeeded")
	}

	deadline := time.Now().Add(2 * time.Second)
	for engine.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if engine.count() < 3 {
		t.Fatal("pump never ran")
	}

	player.Stop()
	player.Stop() // second stop is a no-op
	settled := engine.count()
	time.Sleep(20 * time.Millisecond)
	if engine.count() != settled {
		t.Error("engine updated after Stop")
	}
}

func TestPlayerDoSerializesWithPump(t *testing.T) {
	engine := &countingEngine{}
	player := NewPlayer(engine, NewBufferOutput(), time.Millisecond)
	if err := player.Start(44100, 2, 2048); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer player.Stop()

	ran := false
	player.Do(func() { ran = true })
	if !ran {
		t.Error("Do did not run the callback")
	}
}
