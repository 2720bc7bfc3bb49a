package dmx

import "encoding/binary"

// Song is an immutable view into MUS score bytes. The engine holds only a
// borrowed reference while the song is current; the bytes belong to the
// caller.
type Song struct {
	data       []byte
	scoreStart uint32
	scoreEnd   uint32
}

// MUS header: 4-byte magic, little-endian 16-bit score length, little-endian
// 16-bit score start offset.
var musMagic = [4]byte{'M', 'U', 'S', 0x1A}

const musHeaderSize = 16

func parseSong(data []byte) (*Song, error) {
	if len(data) < musHeaderSize {
		return nil, ErrBadFormat
	}
	if data[0] != musMagic[0] || data[1] != musMagic[1] ||
		data[2] != musMagic[2] || data[3] != musMagic[3] {
		return nil, ErrBadFormat
	}

	scoreLen := uint32(binary.LittleEndian.Uint16(data[4:6]))
	scoreStart := uint32(binary.LittleEndian.Uint16(data[6:8]))
	if scoreStart >= uint32(len(data)) {
		return nil, ErrBadFormat
	}

	scoreEnd := scoreStart + scoreLen
	if scoreEnd > uint32(len(data)) {
		scoreEnd = uint32(len(data))
	}
	if scoreEnd <= scoreStart {
		return nil, ErrBadFormat
	}

	return &Song{data: data, scoreStart: scoreStart, scoreEnd: scoreEnd}, nil
}

// InitMusic resets the sequencer and voice pool.
func (e *Engine) InitMusic() bool {
	e.song = nil
	e.musicPlaying = false
	e.musicPaused = false
	e.musicLooping = false
	e.musicVolume = defaultMusicVolume
	e.delayTicks = 0
	e.tickPhase = 0
	e.cursor = 0
	e.voiceAge = 1
	e.scoreEndSeen = false
	e.resetMusicChannels()
	e.stopAllVoices()
	e.resetMusicFilter()
	return true
}

// ShutdownMusic silences the synthesizer and drops the current song.
func (e *Engine) ShutdownMusic() {
	e.song = nil
	e.musicPlaying = false
	e.musicPaused = false
	e.musicLooping = false
	e.delayTicks = 0
	e.tickPhase = 0
	e.cursor = 0
	e.stopAllVoices()
	e.resetMusicFilter()
}

// SetMusicVolume sets the music master volume (0..127).
func (e *Engine) SetMusicVolume(volume int) {
	e.musicVolume = uint8(clampInt(volume, 0, 127))
}

// PauseMusic suspends event processing and music rendering.
func (e *Engine) PauseMusic() {
	e.musicPaused = true
}

// ResumeMusic resumes a paused song. A no-op with no song registered.
func (e *Engine) ResumeMusic() {
	if e.song != nil {
		e.musicPaused = false
	}
}

// RegisterSong validates raw MUS bytes and returns a playable handle.
func (e *Engine) RegisterSong(data []byte) (*Song, error) {
	if len(data) == 0 {
		return nil, ErrBadFormat
	}
	song, err := parseSong(data)
	if err != nil {
		e.logf("register song: %v", err)
		return nil, err
	}
	return song, nil
}

// UnregisterSong releases a song handle. If the song is current, playback
// stops and all voices are silenced.
func (e *Engine) UnregisterSong(song *Song) {
	if song == nil {
		return
	}
	if e.song == song {
		e.song = nil
		e.musicPlaying = false
		e.musicPaused = false
		e.delayTicks = 0
		e.tickPhase = 0
		e.cursor = 0
		e.stopAllVoices()
		e.resetMusicFilter()
	}
}

// PlaySong starts a registered song from the top. Loading a new song fully
// resets channel and voice state first. A nil handle stops music.
func (e *Engine) PlaySong(song *Song, looping bool) {
	if song == nil {
		e.song = nil
		e.musicPlaying = false
		e.musicPaused = false
		e.musicLooping = false
		e.stopAllVoices()
		e.resetMusicFilter()
		return
	}

	e.song = song
	e.musicLooping = looping
	e.musicPlaying = true
	e.musicPaused = false
	e.cursor = song.scoreStart
	e.delayTicks = 0
	e.tickPhase = 0
	e.scoreEndSeen = false
	e.resetMusicChannels()
	e.stopAllVoices()
	e.resetMusicFilter()
	e.processEventsUntilDelay()
	if !e.musicPlaying {
		e.song = nil
	}
}

// StopSong stops playback and silences every voice immediately.
func (e *Engine) StopSong() {
	e.musicPlaying = false
	e.musicPaused = false
	e.delayTicks = 0
	e.tickPhase = 0
	e.cursor = 0
	e.song = nil
	e.stopAllVoices()
	e.resetMusicFilter()
}

// MusicIsPlaying reports whether the sequencer is running or any voice is
// still sounding out its release.
func (e *Engine) MusicIsPlaying() bool {
	if e.musicPaused {
		return false
	}
	return e.musicPlaying || e.anyVoiceActive()
}

// PollMusic advances pending event processing when the delay has elapsed.
func (e *Engine) PollMusic() {
	if e.musicPlaying && e.delayTicks == 0 && !e.musicPaused {
		e.processEventsUntilDelay()
	}
}

func (e *Engine) readByte() (uint8, bool) {
	if e.song == nil || e.cursor >= e.song.scoreEnd {
		return 0, false
	}
	b := e.song.data[e.cursor]
	e.cursor++
	return b, true
}

// readVarLen decodes a base-128 delay with 0x80 continuation bits. More
// than five digits is treated as stream corruption.
func (e *Engine) readVarLen() (uint32, bool) {
	var value uint32
	for guard := 0; ; {
		b, ok := e.readByte()
		if !ok {
			return 0, false
		}
		value = value*128 + uint32(b&0x7F)
		guard++
		if guard > 5 {
			return 0, false
		}
		if b&0x80 == 0 {
			return value, true
		}
	}
}

// songEnd handles running off the score: loop back to the score start with
// fully reset state, or stop and silence everything.
func (e *Engine) songEnd() {
	if e.song == nil || !e.musicLooping {
		e.musicPlaying = false
		e.stopAllVoices()
		e.resetMusicFilter()
		return
	}

	e.cursor = e.song.scoreStart
	e.delayTicks = 0
	e.tickPhase = 0
	e.resetMusicChannels()
	e.stopAllVoices()
	e.resetMusicFilter()
	e.musicPlaying = true
	e.musicPaused = false
}

// handleEvent decodes one event byte plus its payload. The high nibble is
// the event kind, the low nibble the channel. Any malformed payload stops
// the song rather than propagating.
func (e *Engine) handleEvent(descriptor uint8) {
	event := descriptor & 0x70
	channel := descriptor & 0x0F

	if channel >= NumMusicChannels {
		return
	}

	switch event {
	case eventReleaseKey:
		key, ok := e.readByte()
		if !ok {
			e.songEnd()
			return
		}
		e.noteOff(channel, key&0x7F)

	case eventPressKey:
		key, ok := e.readByte()
		if !ok {
			e.songEnd()
			return
		}
		velocity := e.musicChannels[channel].velocity
		if key&0x80 != 0 {
			velocity, ok = e.readByte()
			if !ok {
				e.songEnd()
				return
			}
			e.musicChannels[channel].velocity = velocity & 0x7F
		}
		e.noteOn(channel, key&0x7F, velocity&0x7F)

	case eventPitchWheel:
		value, ok := e.readByte()
		if !ok {
			e.songEnd()
			return
		}
		e.musicChannels[channel].pitch = int16((int(value) - 128) * 64)
		e.rebuildChannelSteps(channel)

	case eventSystemEvent:
		controller, ok := e.readByte()
		if !ok {
			e.songEnd()
			return
		}
		switch controller {
		case 10, 11: // all notes off
			e.releaseChannelVoices(channel)
		case 14: // channel reset
			e.resetMusicChannel(channel)
			e.rebuildChannelSteps(channel)
		}

	case eventChangeCtrl:
		controller, ok := e.readByte()
		if !ok {
			e.songEnd()
			return
		}
		value, ok := e.readByte()
		if !ok {
			e.songEnd()
			return
		}
		switch controller {
		case 0:
			e.musicChannels[channel].program = value & 0x7F
		case 3:
			e.musicChannels[channel].volume = value & 0x7F
		case 4:
			e.musicChannels[channel].pan = value & 0x7F
		}

	case eventScoreEnd:
		e.scoreEndSeen = true
		e.songEnd()

	default:
		e.songEnd()
	}
}

// processEventsUntilDelay parses grouped events until a non-zero delay is
// pending. A guard bounds the zero-delay groups handled per call so a
// malformed score cannot spin forever.
func (e *Engine) processEventsUntilDelay() {
	for guard := 0; e.musicPlaying && e.delayTicks == 0 && guard < parseGuard; guard++ {
		e.scoreEndSeen = false
		for {
			descriptor, ok := e.readByte()
			if !ok {
				e.songEnd()
				return
			}
			e.handleEvent(descriptor)
			if !e.musicPlaying {
				return
			}
			if descriptor&0x80 != 0 {
				break
			}
		}

		// A looping score-end rewound the cursor; the next group starts
		// fresh with no trailing delay to read.
		if e.scoreEndSeen {
			continue
		}
		delay, ok := e.readVarLen()
		if !ok {
			e.songEnd()
			return
		}
		e.delayTicks = delay
	}
}

// advanceTimeline moves the 140 Hz tick clock forward by one output frame,
// firing event groups as their delays expire. Running inside the per-frame
// render loop keeps event timing sample-accurate.
func (e *Engine) advanceTimeline() {
	if !e.musicPlaying || e.musicPaused {
		return
	}

	e.tickPhase += ticksPerSecond
	for e.tickPhase >= OutputRate {
		e.tickPhase -= OutputRate
		if e.delayTicks > 0 {
			e.delayTicks--
		}
		if e.delayTicks == 0 {
			e.processEventsUntilDelay()
			if !e.musicPlaying {
				break
			}
		}
	}
}
