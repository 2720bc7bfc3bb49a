package dmx

import (
	"encoding/binary"
	"testing"

	"github.com/olivierh59500/dmx-player/pkg/wad"
)

// sfxLump builds a valid digitized-sound lump around raw unsigned 8-bit PCM.
func sfxLump(rate uint16, pcm []byte) []byte {
	lump := make([]byte, sfxHeaderSize+16+len(pcm)+16)
	lump[0] = 0x03
	lump[1] = 0x00
	binary.LittleEndian.PutUint16(lump[2:4], rate)
	binary.LittleEndian.PutUint32(lump[4:8], uint32(len(pcm)+sfxPadTotal))
	copy(lump[sfxPCMOffset:], pcm)
	return lump
}

// musScore wraps an event stream in a MUS header with the score starting
// right after the 16-byte header.
func musScore(events []byte) []byte {
	data := make([]byte, musHeaderSize+len(events))
	copy(data, "MUS\x1A")
	binary.LittleEndian.PutUint16(data[4:6], uint16(len(events)))
	binary.LittleEndian.PutUint16(data[6:8], musHeaderSize)
	copy(data[musHeaderSize:], events)
	return data
}

type testLump struct {
	name string
	data []byte
}

func buildWAD(t *testing.T, lumps []testLump) *wad.File {
	t.Helper()

	dataSize := 0
	for _, l := range lumps {
		dataSize += len(l.data)
	}
	blob := make([]byte, 12+dataSize+16*len(lumps))
	copy(blob, "PWAD")
	binary.LittleEndian.PutUint32(blob[4:8], uint32(len(lumps)))
	binary.LittleEndian.PutUint32(blob[8:12], uint32(12+dataSize))

	off := 12
	dir := 12 + dataSize
	for _, l := range lumps {
		copy(blob[off:], l.data)
		binary.LittleEndian.PutUint32(blob[dir:], uint32(off))
		binary.LittleEndian.PutUint32(blob[dir+4:], uint32(len(l.data)))
		copy(blob[dir+8:dir+16], l.name)
		off += len(l.data)
		dir += 16
	}

	f, err := wad.Load(blob)
	if err != nil {
		t.Fatalf("buildWAD: %v", err)
	}
	return f
}

type fakeClock struct {
	ms uint32
}

func (c *fakeClock) NowMS() uint32 { return c.ms }

type captureSink struct {
	writes int
	frames int
	pcm    []int16
}

func (s *captureSink) WritePCM(samples []int16, frames int) {
	s.writes++
	s.pcm = append(s.pcm, samples...)
}

func (s *captureSink) FramesMixed(frames int) {
	s.frames += frames
}

func newTestEngine(t *testing.T, lumps []testLump, sink Sink, clock Clock) *Engine {
	t.Helper()
	var w *wad.File
	if lumps != nil {
		w = buildWAD(t, lumps)
	}
	e := NewEngine(Config{Wad: w, Sink: sink, Clock: clock})
	e.InitSound(true)
	e.InitMusic()
	return e
}

// constantPCM returns n bytes of a fixed non-center value, decoding to a
// non-zero DC signal.
func constantPCM(n int, value byte) []byte {
	pcm := make([]byte, n)
	for i := range pcm {
		pcm[i] = value
	}
	return pcm
}

func TestUpdateCreditAccounting(t *testing.T) {
	clock := &fakeClock{ms: 1000}
	sink := &captureSink{}
	e := newTestEngine(t, []testLump{
		{name: "DSTEST", data: sfxLump(11025, constantPCM(5000, 200))},
	}, sink, clock)

	if e.StartSound(e.SfxLumpNum("test"), 0, 127, 127) != 0 {
		t.Fatal("StartSound failed")
	}

	// 5 polls of 10ms each: 2205 frames of credit covers exactly 4
	// slices, leaving a sub-slice remainder.
	for i := 0; i < 5; i++ {
		clock.ms += 10
		e.Update()
	}

	if sink.writes != 4 {
		t.Errorf("slices emitted = %d, want 4", sink.writes)
	}
	if e.creditFrames != 2205-4*SliceFrames {
		t.Errorf("remaining credit = %d, want %d", e.creditFrames, 2205-4*SliceFrames)
	}
	if sink.frames != 4*SliceFrames {
		t.Errorf("frames notified = %d, want %d", sink.frames, 4*SliceFrames)
	}
}

func TestUpdateDiscardsCreditOnSilence(t *testing.T) {
	clock := &fakeClock{ms: 1000}
	sink := &captureSink{}
	e := newTestEngine(t, nil, sink, clock)

	clock.ms += 40
	e.Update()

	if sink.writes != 0 {
		t.Errorf("slices emitted = %d, want 0", sink.writes)
	}
	if e.creditFrames != 0 {
		t.Errorf("credit after silent slice = %d, want 0", e.creditFrames)
	}
}

func TestUpdateClampsPollDelta(t *testing.T) {
	clock := &fakeClock{ms: 1000}
	sink := &captureSink{}
	e := newTestEngine(t, []testLump{
		{name: "DSTEST", data: sfxLump(11025, constantPCM(20000, 200))},
	}, sink, clock)
	e.StartSound(e.SfxLumpNum("test"), 0, 127, 127)

	// A 10-second stall is clamped to 80ms of catch-up.
	clock.ms += 10000
	e.Update()

	want := uint32(80*OutputRate/1000) / SliceFrames
	if uint32(sink.writes) != want {
		t.Errorf("slices after stall = %d, want %d", sink.writes, want)
	}
}

func TestUpdateWrapSafeClock(t *testing.T) {
	clock := &fakeClock{ms: 0xFFFFFFF0}
	sink := &captureSink{}
	e := newTestEngine(t, []testLump{
		{name: "DSTEST", data: sfxLump(11025, constantPCM(5000, 200))},
	}, sink, clock)
	e.StartSound(e.SfxLumpNum("test"), 0, 127, 127)

	// Wraps around zero: 16ms before + 8ms after.
	clock.ms = 8
	e.Update()

	if sink.writes != 2 {
		t.Errorf("slices across wrap = %d, want 2", sink.writes)
	}
	if e.creditFrames != 24*OutputRate/1000-2*SliceFrames {
		t.Errorf("credit across wrap = %d", e.creditFrames)
	}
}

func TestShutdownSoundStopsChannels(t *testing.T) {
	clock := &fakeClock{ms: 1000}
	e := newTestEngine(t, []testLump{
		{name: "DSTEST", data: sfxLump(11025, constantPCM(5000, 200))},
	}, &captureSink{}, clock)
	e.StartSound(e.SfxLumpNum("test"), 3, 127, 127)

	if !e.SoundIsPlaying(3) {
		t.Fatal("channel should be playing")
	}
	e.ShutdownSound()
	if e.SoundIsPlaying(3) {
		t.Error("channel still playing after shutdown")
	}

	// Cache survives shutdown.
	if len(e.sampleCache) != 1 {
		t.Errorf("cache size after shutdown = %d, want 1", len(e.sampleCache))
	}
}

func TestCapabilities(t *testing.T) {
	e := newTestEngine(t, nil, &captureSink{}, &fakeClock{ms: 1})
	caps := e.Capabilities()
	if caps&CapSFX == 0 || caps&CapMusic == 0 || caps&CapStereo == 0 {
		t.Errorf("capabilities = %#x, want sfx|music|stereo", caps)
	}
}
