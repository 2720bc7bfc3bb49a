package dmx

// synthVoice is one of the 32 pooled voices. Voices have no stable
// identity; the allocation policy reuses and steals them freely.
type synthVoice struct {
	active     bool
	releasing  bool
	channel    uint8
	note       uint8
	velocity   uint8
	waveform   Waveform
	pan        uint8
	percussion bool
	envQ15     uint16
	relStep    uint16
	phaseFP    uint32
	stepFP     uint32
	noiseState uint32
	age        uint32
}

// musicChannel is the per-channel synthesizer state the sequencer mutates.
type musicChannel struct {
	velocity uint8
	volume   uint8
	pan      uint8
	program  uint8
	pitch    int16
}

func (e *Engine) stopAllVoices() {
	for i := range e.voices {
		e.voices[i].active = false
		e.voices[i].releasing = false
		e.voices[i].envQ15 = 0
	}
}

func (e *Engine) resetMusicChannels() {
	for i := range e.musicChannels {
		e.resetMusicChannel(uint8(i))
	}
}

func (e *Engine) resetMusicChannel(channel uint8) {
	if channel >= NumMusicChannels {
		return
	}
	e.musicChannels[channel] = musicChannel{
		velocity: defaultVelocity,
		volume:   defaultChanVolume,
		pan:      defaultChanPan,
	}
}

func (e *Engine) anyVoiceActive() bool {
	for i := range e.voices {
		if e.voices[i].active {
			return true
		}
	}
	return false
}

func waveformForChannel(channel, program uint8) Waveform {
	if channel == percussionChannel {
		return WaveNoise
	}
	switch program & 0x07 {
	case 3, 4:
		return WaveSaw
	case 0, 1, 2, 7:
		return WaveTriangle
	default:
		return WaveSquare
	}
}

// noteStepFP derives the 32-bit phase step for a MIDI note and channel
// pitch bend. Iterative multiplication by the fixed semitone ratio keeps
// this free of transcendental math; frequency is carried in milli-hertz.
func noteStepFP(note uint8, pitch int16) uint32 {
	semitones := int(note) - 69
	semitones += int(pitch) / 4096

	freqMilliHz := uint64(440000)
	if semitones > 0 {
		for i := 0; i < semitones; i++ {
			freqMilliHz = freqMilliHz * semitoneNum / semitoneDen
		}
	} else if semitones < 0 {
		for i := 0; i < -semitones; i++ {
			freqMilliHz = freqMilliHz * semitoneDen / semitoneNum
		}
	}
	if freqMilliHz == 0 {
		freqMilliHz = 1
	}

	stepFP := (freqMilliHz << 32) / (OutputRate * 1000)
	if stepFP == 0 {
		stepFP = 1
	} else if stepFP > 0xFFFFFFFF {
		stepFP = 0xFFFFFFFF
	}
	return uint32(stepFP)
}

// releaseChannelVoices transitions every active voice of a channel into
// release.
func (e *Engine) releaseChannelVoices(channel uint8) {
	for i := range e.voices {
		if e.voices[i].active && e.voices[i].channel == channel {
			e.voices[i].releasing = true
		}
	}
}

// findVoice implements the allocation order: same (channel, note) first,
// then a free voice, then a releasing one, finally the oldest by age stamp.
func (e *Engine) findVoice(channel, note uint8) *synthVoice {
	var firstFree, firstReleasing *synthVoice
	oldest := &e.voices[0]

	for i := range e.voices {
		voice := &e.voices[i]
		if voice.active && voice.channel == channel && voice.note == note {
			return voice
		}
		if !voice.active && firstFree == nil {
			firstFree = voice
		} else if voice.active && voice.releasing && firstReleasing == nil {
			firstReleasing = voice
		}
		if voice.age < oldest.age {
			oldest = voice
		}
	}

	if firstFree != nil {
		return firstFree
	}
	if firstReleasing != nil {
		return firstReleasing
	}
	return oldest
}

// rebuildChannelSteps recomputes phase steps after a pitch-bend change.
// Percussion voices keep their step.
func (e *Engine) rebuildChannelSteps(channel uint8) {
	for i := range e.voices {
		voice := &e.voices[i]
		if !voice.active || voice.channel != channel || voice.percussion {
			continue
		}
		voice.stepFP = noteStepFP(voice.note, e.musicChannels[channel].pitch)
	}
}

func (e *Engine) noteOn(channel, note, velocity uint8) {
	if channel >= NumMusicChannels {
		return
	}
	if velocity == 0 {
		e.noteOff(channel, note)
		return
	}

	ch := &e.musicChannels[channel]
	voice := e.findVoice(channel, note)

	perc := channel == percussionChannel
	voice.active = true
	voice.releasing = perc // percussion is a one-shot decay
	voice.channel = channel
	voice.note = note
	voice.velocity = velocity & 0x7F
	voice.waveform = waveformForChannel(channel, ch.program)
	voice.pan = ch.pan
	voice.percussion = perc
	voice.envQ15 = envelopeMax
	voice.relStep = releaseStep
	if perc {
		voice.relStep = releaseStepPerc
	}
	voice.phaseFP = 0
	voice.stepFP = noteStepFP(note, ch.pitch)
	if voice.stepFP == 0 {
		voice.stepFP = 1
	}
	voice.noiseState = 0xA341316C ^ (uint32(channel) << 16) ^ uint32(note)
	voice.age = e.voiceAge
	e.voiceAge++
	if e.voiceAge == 0 {
		e.voiceAge = 1
	}
}

func (e *Engine) noteOff(channel, note uint8) {
	for i := range e.voices {
		voice := &e.voices[i]
		if voice.active && voice.channel == channel && voice.note == note {
			voice.releasing = true
		}
	}
}

// voiceSample produces one mono sample for a voice and advances its state,
// freeing the voice once the release envelope reaches zero.
func (v *synthVoice) voiceSample() int32 {
	if !v.active {
		return 0
	}

	if v.releasing {
		if v.envQ15 <= v.relStep {
			v.active = false
			v.envQ15 = 0
			return 0
		}
		v.envQ15 -= v.relStep
	}

	var wave int32
	switch v.waveform {
	case WaveSaw:
		wave = int32((v.phaseFP>>16)&0xFFFF) - 32768
	case WaveTriangle:
		tri := int32((v.phaseFP >> 15) & 0x1FFFF)
		if tri&0x10000 != 0 {
			tri = 0x1FFFF - tri
		}
		wave = (tri - 0x8000) * 2
	case WaveNoise:
		v.noiseState = v.noiseState*1664525 + 1013904223
		wave = int32((v.noiseState>>16)&0xFFFF) - 32768
	default: // WaveSquare
		wave = 32767
		if v.phaseFP&0x80000000 != 0 {
			wave = -32767
		}
	}

	v.phaseFP += v.stepFP
	gain := int32(baseAmplitude) * int32(v.envQ15) / envelopeMax
	return wave * gain / 32768
}
