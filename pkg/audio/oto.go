package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Oto allows a single context per process, so it is shared by every
// StreamingOtoOutput and kept alive across reopens.
var (
	otoMu      sync.Mutex
	otoContext *oto.Context
	otoPlayers int
)

// StreamingOtoOutput plays PCM through oto v3. Samples are pushed into a
// pipe the oto player drains, so Write blocks only when the device buffer
// is full, which is what paces offline producers.
type StreamingOtoOutput struct {
	player     *oto.Player
	writer     *io.PipeWriter
	reader     *io.PipeReader
	sampleRate int
	channels   int
	mu         sync.Mutex
	closed     bool
	wg         sync.WaitGroup
}

// NewStreamingOtoOutput creates an unopened oto output.
func NewStreamingOtoOutput() (*StreamingOtoOutput, error) {
	return &StreamingOtoOutput{}, nil
}

// Open creates or reuses the process-wide oto context and starts a player
// draining this output's pipe.
func (s *StreamingOtoOutput) Open(sampleRate, channels, bufferSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil {
		return fmt.Errorf("audio: oto output already open")
	}

	s.sampleRate = sampleRate
	s.channels = channels
	s.reader, s.writer = io.Pipe()

	otoMu.Lock()
	if otoContext == nil {
		bufferBytes := bufferSize * channels * 2
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(bufferBytes) * time.Second / time.Duration(sampleRate*channels*2),
		}
		context, ready, err := oto.NewContext(op)
		if err != nil {
			otoMu.Unlock()
			return fmt.Errorf("audio: create oto context: %w", err)
		}
		<-ready
		otoContext = context
	}
	otoPlayers++
	context := otoContext
	otoMu.Unlock()

	s.player = context.NewPlayer(s.reader)
	s.closed = false

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.player.Play()
	}()

	return nil
}

// Close signals EOF to the player, lets the device buffer drain, and
// releases the player. The shared context stays alive for reuse.
func (s *StreamingOtoOutput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.writer != nil {
		s.writer.Close()
		s.writer = nil
	}
	time.Sleep(100 * time.Millisecond)
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
	if s.reader != nil {
		s.reader.Close()
		s.reader = nil
	}

	otoMu.Lock()
	otoPlayers--
	otoMu.Unlock()

	s.wg.Wait()
	return nil
}

// Write pushes samples into the pipe as little-endian bytes.
func (s *StreamingOtoOutput) Write(samples []int16) error {
	s.mu.Lock()
	if s.closed || s.writer == nil {
		s.mu.Unlock()
		return fmt.Errorf("audio: oto output not open")
	}
	writer := s.writer
	s.mu.Unlock()

	buf := make([]byte, len(samples)*2)
	for i, sample := range samples {
		buf[i*2] = byte(sample)
		buf[i*2+1] = byte(sample >> 8)
	}
	_, err := writer.Write(buf)
	return err
}

// IsPlaying reports whether the output is open.
func (s *StreamingOtoOutput) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.player != nil
}

// FallbackOutput consumes samples in real time without a device, for
// systems where no audio backend works.
type FallbackOutput struct {
	sampleRate int
	channels   int
	closed     bool
	mu         sync.Mutex
}

// NewFallbackOutput creates a timing-only output.
func NewFallbackOutput() (*FallbackOutput, error) {
	return &FallbackOutput{}, nil
}

func (f *FallbackOutput) Open(sampleRate, channels, bufferSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sampleRate = sampleRate
	f.channels = channels
	f.closed = false
	return nil
}

func (f *FallbackOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FallbackOutput) Write(samples []int16) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return fmt.Errorf("audio: output closed")
	}
	sampleRate := f.sampleRate
	channels := f.channels
	f.mu.Unlock()

	if sampleRate <= 0 || channels <= 0 {
		return nil
	}
	duration := time.Duration(len(samples)/channels) * time.Second / time.Duration(sampleRate)
	time.Sleep(duration)
	return nil
}

func (f *FallbackOutput) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}
