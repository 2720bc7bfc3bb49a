// Package dmx implements the Doom sound backend: DMX digitized-sound
// playback over sixteen mixing channels, a MUS score sequencer driving a
// 32-voice software synthesizer, and a master limiter, paced into fixed
// 512-frame stereo slices by wall-clock polling.
package dmx

import (
	"log"
	"time"

	"github.com/olivierh59500/dmx-player/pkg/wad"
)

// Config carries the host collaborators. Wad supplies lump data, Sink
// receives finished PCM, Clock paces slice production. A nil Clock uses the
// system clock; a nil Logger is silent.
type Config struct {
	Wad    *wad.File
	Sink   Sink
	Clock  Clock
	Logger *log.Logger
}

// Engine owns all audio state. Entry points are not safe for concurrent
// use; the engine is built for a single poll-driven game loop.
type Engine struct {
	wad    *wad.File
	sink   Sink
	clock  Clock
	logger *log.Logger

	// SFX
	soundInitialized bool
	useSfxPrefix     bool
	sampleCache      map[int]*CachedSample
	channels         [NumSfxChannels]sfxChannel

	// Scheduler
	lastUpdateMS uint32
	creditFrames uint32

	// Mix and output buffers, reused every slice
	mixBuffer [SliceFrames * OutputChannels]int32
	pcmBuffer [SliceFrames * OutputChannels]int16

	// Master limiter, carried across slices
	limiterGainQ15 uint32

	// Music
	song          *Song
	musicPlaying  bool
	musicPaused   bool
	musicLooping  bool
	musicVolume   uint8
	scoreEndSeen  bool
	cursor        uint32
	delayTicks    uint32
	tickPhase     uint32
	voiceAge      uint32
	musicFilterL  int32
	musicFilterR  int32
	musicChannels [NumMusicChannels]musicChannel
	voices        [NumVoices]synthVoice
}

// SystemClock implements Clock over the wall clock.
type SystemClock struct{}

func (SystemClock) NowMS() uint32 {
	return uint32(time.Now().UnixMilli())
}

// NewEngine creates an engine around the given host collaborators.
func NewEngine(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	e := &Engine{
		wad:            cfg.Wad,
		sink:           cfg.Sink,
		clock:          clock,
		logger:         cfg.Logger,
		sampleCache:    make(map[int]*CachedSample),
		limiterGainQ15: unityGainQ15,
		voiceAge:       1,
		musicVolume:    defaultMusicVolume,
	}
	e.resetMusicChannels()
	return e
}

// Capabilities reports what this backend supports.
func (e *Engine) Capabilities() Capability {
	return CapSFX | CapMusic | CapStereo
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

func (e *Engine) wadLumpData(lump int) []byte {
	if e.wad == nil {
		return nil
	}
	return e.wad.LumpData(lump)
}

// InitSound readies the SFX mixer and the slice scheduler. The prefix flag
// selects whether lump lookup prepends "ds" to sound names.
func (e *Engine) InitSound(useSfxPrefix bool) bool {
	e.useSfxPrefix = useSfxPrefix
	e.soundInitialized = true
	e.lastUpdateMS = e.clock.NowMS()
	e.creditFrames = 0
	e.limiterGainQ15 = unityGainQ15
	for i := range e.channels {
		e.channels[i] = sfxChannel{}
	}
	if e.sink != nil {
		e.sink.FramesMixed(0)
	}
	return true
}

// ShutdownSound stops all channels. Cached samples are kept; the cache is
// permanent for the session.
func (e *Engine) ShutdownSound() {
	e.soundInitialized = false
	e.creditFrames = 0
	e.limiterGainQ15 = unityGainQ15
	for i := range e.channels {
		e.channels[i].active = false
	}
}

// SfxLumpNum resolves a sound name to its lump number, applying the "ds"
// prefix when configured. Returns -1 when the lump does not exist.
func (e *Engine) SfxLumpNum(name string) int {
	if e.wad == nil {
		return -1
	}
	if e.useSfxPrefix {
		name = "ds" + name
	}
	return e.wad.LumpNumForName(name)
}

// CacheSounds eagerly decodes a batch of sounds so the first playback of
// each does not pay the decode cost mid-game.
func (e *Engine) CacheSounds(names []string) {
	for _, name := range names {
		lump := e.SfxLumpNum(name)
		if lump < 0 {
			continue
		}
		if _, err := e.resolveSample(lump); err != nil {
			e.logf("cache sounds: %s: %v", name, err)
		}
	}
}

// Update is the per-poll entry point. It converts elapsed wall time into a
// bounded frame credit and renders as many complete slices as the credit
// covers, up to a fixed cap per call. If a slice renders with no signal the
// remaining credit is discarded rather than carried as a silence backlog.
func (e *Engine) Update() {
	if !e.soundInitialized {
		return
	}

	nowMS := e.clock.NowMS()
	if e.lastUpdateMS == 0 {
		e.lastUpdateMS = nowMS
	}
	var deltaMS uint32
	if nowMS >= e.lastUpdateMS {
		deltaMS = nowMS - e.lastUpdateMS
	} else {
		deltaMS = (^uint32(0) - e.lastUpdateMS) + nowMS + 1
	}
	e.lastUpdateMS = nowMS
	if deltaMS > maxDeltaMS {
		deltaMS = maxDeltaMS
	}

	e.creditFrames += deltaMS * OutputRate / 1000
	if e.creditFrames > maxCreditFrames {
		e.creditFrames = maxCreditFrames
	}
	if e.creditFrames < SliceFrames {
		return
	}

	for produced := 0; e.creditFrames >= SliceFrames && produced < maxSlicesPerUpdate; produced++ {
		if !e.mixSlice() {
			e.creditFrames = 0
			break
		}
		e.creditFrames -= SliceFrames
	}
}
