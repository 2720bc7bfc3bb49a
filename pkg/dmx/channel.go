package dmx

// sfxChannel is one of the sixteen playback slots. The playback cursor is
// 16.16 fixed point over the cached sample.
type sfxChannel struct {
	sfx        *CachedSample
	positionFP uint32
	stepFP     uint32
	volume     int
	separation int
	active     bool
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func validChannel(channel int) bool {
	return channel >= 0 && channel < NumSfxChannels
}

// StartSound begins playing a digitized-sound lump on the given channel and
// returns the channel index, or -1 if the lump cannot be played.
func (e *Engine) StartSound(lump, channel, vol, sep int) int {
	if !validChannel(channel) {
		return -1
	}

	cached, err := e.resolveSample(lump)
	if err != nil {
		e.logf("start sound: lump %d: %v", lump, err)
		return -1
	}
	if len(cached.Samples) == 0 || cached.SampleRate == 0 {
		return -1
	}

	stepFP := (uint64(cached.SampleRate) << 16) / OutputRate
	if stepFP == 0 {
		stepFP = 1 << 16
	}

	ch := &e.channels[channel]
	ch.sfx = cached
	ch.positionFP = 0
	ch.stepFP = uint32(stepFP)
	ch.volume = clampInt(vol, 0, 127)
	ch.separation = clampInt(sep, 0, 254)
	ch.active = true
	return channel
}

// StopSound deactivates a channel. Out-of-range indices are ignored.
func (e *Engine) StopSound(channel int) {
	if !validChannel(channel) {
		return
	}
	e.channels[channel].active = false
}

// SoundIsPlaying reports whether a channel is still producing audio.
func (e *Engine) SoundIsPlaying(channel int) bool {
	if !validChannel(channel) {
		return false
	}
	return e.channels[channel].active
}

// UpdateSoundParams adjusts volume and stereo separation of an active
// channel. A no-op on inactive or out-of-range channels.
func (e *Engine) UpdateSoundParams(channel, vol, sep int) {
	if !validChannel(channel) || !e.channels[channel].active {
		return
	}
	e.channels[channel].volume = clampInt(vol, 0, 127)
	e.channels[channel].separation = clampInt(sep, 0, 254)
}

// sampleFrame reads the channel's current sample with linear interpolation
// between the two PCM values bracketing the fractional cursor.
func (ch *sfxChannel) sampleFrame() int32 {
	if ch.sfx == nil || len(ch.sfx.Samples) == 0 {
		return 0
	}

	index := ch.positionFP >> 16
	if index >= uint32(len(ch.sfx.Samples)) {
		return 0
	}

	frac := ch.positionFP & 0xFFFF
	s0 := int32(ch.sfx.Samples[index])
	if frac == 0 || index+1 >= uint32(len(ch.sfx.Samples)) {
		return s0
	}
	s1 := int32(ch.sfx.Samples[index+1])
	return s0 + ((s1-s0)*int32(frac))>>16
}

// mixChannel renders one slice of the channel into the accumulation buffer,
// deactivating it once the cursor passes the end of the sample.
func (e *Engine) mixChannel(ch *sfxChannel) {
	if !ch.active || ch.sfx == nil {
		return
	}

	gain := int32(clampInt(ch.volume, 0, 127))
	separation := clampInt(ch.separation, 0, 254)
	leftWeight := int32(254 - separation)
	rightWeight := int32(separation)

	for frame := 0; frame < SliceFrames; frame++ {
		if ch.positionFP>>16 >= uint32(len(ch.sfx.Samples)) {
			ch.active = false
			break
		}

		sample := ch.sampleFrame()
		e.mixBuffer[frame*2] += sample * gain * leftWeight / panDen
		e.mixBuffer[frame*2+1] += sample * gain * rightWeight / panDen

		// Saturating cursor advance.
		if ch.positionFP > ^uint32(0)-ch.stepFP {
			ch.positionFP = ^uint32(0)
		} else {
			ch.positionFP += ch.stepFP
		}
	}
}
