package dmx

import "errors"

// Output format
const (
	OutputRate     = 44100
	OutputChannels = 2
	SliceFrames    = 512
)

// Mixer constants
const (
	NumSfxChannels = 16

	masterGainNum = 9
	masterGainDen = 8

	limitTarget       = 28500
	limitAttackShift  = 1
	limitReleaseShift = 4
	softClipThreshold = 22000
	softClipKnee      = 10000
	panDen            = 127 * 254
	unityGainQ15      = 32767
)

// Real-time pacing
const (
	maxSlicesPerUpdate = 6
	maxDeltaMS         = 80
	maxCreditFrames    = SliceFrames * 6
)

// Music sequencer and synthesizer
const (
	NumMusicChannels = 16
	NumVoices        = 32

	percussionChannel = 15
	ticksPerSecond    = 140

	envelopeMax      = 32767
	releaseStep      = 12
	releaseStepPerc  = 64
	baseAmplitude    = 9000
	semitoneNum      = 1059463
	semitoneDen      = 1000000
	parseGuard       = 2048
	musicFilterShift = 1

	defaultVelocity    = 100
	defaultChanVolume  = 127
	defaultChanPan     = 64
	defaultMusicVolume = 92
)

// MUS event kinds, high nibble of the descriptor byte
const (
	eventReleaseKey  = 0x00
	eventPressKey    = 0x10
	eventPitchWheel  = 0x20
	eventSystemEvent = 0x30
	eventChangeCtrl  = 0x40
	eventScoreEnd    = 0x60
)

// Waveform selects the oscillator of a synthesizer voice.
type Waveform uint8

const (
	WaveSquare Waveform = iota
	WaveSaw
	WaveTriangle
	WaveNoise
)

// Capability describes what the backend can do, as a bitmask so callers
// can probe individual features.
type Capability uint32

const (
	CapSFX Capability = 1 << iota
	CapMusic
	CapStereo
)

// Sentinel errors for asset loading.
var (
	ErrNotFound  = errors.New("dmx: lump not found")
	ErrBadFormat = errors.New("dmx: malformed asset")
)

// Clock supplies wall-clock milliseconds. Values may wrap; the engine
// handles wraparound when computing deltas.
type Clock interface {
	NowMS() uint32
}

// Sink receives finished audio. WritePCM hands over one slice of
// interleaved 16-bit stereo frames at OutputRate; FramesMixed follows each
// delivery with the frame count (and fires once with 0 on init).
type Sink interface {
	WritePCM(samples []int16, frames int)
	FramesMixed(frames int)
}
