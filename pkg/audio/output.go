// Package audio bridges the dmx engine to a host PCM device. Output is the
// device abstraction; Player pumps the engine's poll entry point on a
// steady ticker and serializes access to the engine.
package audio

import (
	"errors"
	"sync"
	"time"
)

// Output is an audio device accepting interleaved int16 PCM.
type Output interface {
	Open(sampleRate, channels, bufferSize int) error
	Close() error
	Write(samples []int16) error
	IsPlaying() bool
}

// Pollable is the engine-side surface the player pumps. dmx.Engine
// satisfies it.
type Pollable interface {
	Update()
}

// OutputSink adapts an Output to the engine's PCM sink. Frame-count
// notifications are tallied for progress display.
type OutputSink struct {
	output Output
	mu     sync.Mutex
	frames uint64
}

// NewOutputSink wraps an Output as an engine sink.
func NewOutputSink(output Output) *OutputSink {
	return &OutputSink{output: output}
}

// WritePCM forwards a finished slice to the device.
func (s *OutputSink) WritePCM(samples []int16, frames int) {
	_ = s.output.Write(samples)
}

// FramesMixed accumulates the engine's frame-count notifications.
func (s *OutputSink) FramesMixed(frames int) {
	s.mu.Lock()
	s.frames += uint64(frames)
	s.mu.Unlock()
}

// FramesWritten returns the total frames delivered so far.
func (s *OutputSink) FramesWritten() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Player drives a Pollable engine from a background goroutine. The engine
// is single-threaded by design, so every outside call into it must go
// through Do to share the player's lock.
type Player struct {
	engine   Pollable
	output   Output
	interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewPlayer creates a player pumping the engine every interval. A zero
// interval defaults to 5ms, comfortably under one slice's duration.
func NewPlayer(engine Pollable, output Output, interval time.Duration) *Player {
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	return &Player{engine: engine, output: output, interval: interval}
}

// Start opens the output device and begins pumping.
func (p *Player) Start(sampleRate, channels, bufferSize int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("audio: already running")
	}
	if err := p.output.Open(sampleRate, channels, bufferSize); err != nil {
		return err
	}
	p.running = true
	p.done = make(chan struct{})
	go p.pump(p.done)
	return nil
}

// Stop halts the pump and closes the device.
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	done := p.done
	p.mu.Unlock()

	<-done
	p.output.Close()
}

// Do runs fn holding the same lock as the pump, so engine calls from the
// UI thread never race a poll.
func (p *Player) Do(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

func (p *Player) pump(done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if !p.running {
			p.mu.Unlock()
			return
		}
		p.engine.Update()
		p.mu.Unlock()
	}
}

// BufferOutput collects everything written to it; used by tests and by
// offline rendering.
type BufferOutput struct {
	mu         sync.Mutex
	buffer     []int16
	sampleRate int
	channels   int
	open       bool
}

// NewBufferOutput creates an empty buffer output.
func NewBufferOutput() *BufferOutput {
	return &BufferOutput{}
}

func (b *BufferOutput) Open(sampleRate, channels, bufferSize int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sampleRate = sampleRate
	b.channels = channels
	b.buffer = b.buffer[:0]
	b.open = true
	return nil
}

func (b *BufferOutput) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	return nil
}

func (b *BufferOutput) Write(samples []int16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return errors.New("audio: buffer not open")
	}
	b.buffer = append(b.buffer, samples...)
	return nil
}

func (b *BufferOutput) IsPlaying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Samples returns a copy of everything written so far.
func (b *BufferOutput) Samples() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int16, len(b.buffer))
	copy(out, b.buffer)
	return out
}
