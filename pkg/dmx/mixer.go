package dmx

// softClipSample is the identity up to the threshold; above it, a rational
// knee compresses the overshoot so the result approaches but never exceeds
// the 16-bit ceiling.
func softClipSample(sample int32) int32 {
	abs := int64(sample)
	if abs < 0 {
		abs = -abs
	}
	if abs <= softClipThreshold {
		return sample
	}

	extra := abs - softClipThreshold
	compressed := int64(softClipThreshold) + extra*softClipKnee/(extra+softClipKnee)
	if compressed > 32767 {
		compressed = 32767
	}
	if sample < 0 {
		return -int32(compressed)
	}
	return int32(compressed)
}

func (e *Engine) resetMusicFilter() {
	e.musicFilterL = 0
	e.musicFilterR = 0
}

// mixMusicSlice renders the synthesizer into the accumulation buffer and
// reports whether it produced any signal. Skipped entirely while paused,
// and when neither the sequencer nor any releasing voice is live.
func (e *Engine) mixMusicSlice(frames int) bool {
	if frames == 0 || e.musicPaused {
		return false
	}
	if !e.musicPlaying && !e.anyVoiceActive() {
		return false
	}
	if e.musicPlaying && e.delayTicks == 0 {
		e.processEventsUntilDelay()
	}

	hasSignal := false
	for frame := 0; frame < frames; frame++ {
		var left, right int32

		e.advanceTimeline()
		for i := range e.voices {
			voice := &e.voices[i]
			sample := voice.voiceSample()
			if sample == 0 || !voice.active {
				continue
			}

			gain := int32(voice.velocity)
			gain = gain * int32(e.musicChannels[voice.channel].volume) / 127
			gain = gain * int32(e.musicVolume) / 127
			if gain <= 0 {
				continue
			}

			sample = sample * gain / 127
			pan := int32(clampInt(int(voice.pan), 0, 127))
			left += sample * (127 - pan) / 127
			right += sample * pan / 127
		}

		// One-pole smoothing carried across slices; the state only resets
		// on song transitions.
		e.musicFilterL += (left - e.musicFilterL) >> musicFilterShift
		e.musicFilterR += (right - e.musicFilterR) >> musicFilterShift
		left = e.musicFilterL
		right = e.musicFilterR

		if left != 0 || right != 0 {
			hasSignal = true
		}
		e.mixBuffer[frame*2] += left
		e.mixBuffer[frame*2+1] += right
	}
	return hasSignal
}

// mixSlice renders one full slice: SFX channels and music into the cleared
// accumulator, then master gain, adaptive limiting, soft-knee clipping and
// quantization to 16 bits. Returns whether anything contributed; a slice
// that contributed but quantized to pure silence is produced without being
// handed to the sink.
func (e *Engine) mixSlice() bool {
	for i := range e.mixBuffer {
		e.mixBuffer[i] = 0
	}

	hasActive := false
	for i := range e.channels {
		if e.channels[i].active {
			hasActive = true
		}
		e.mixChannel(&e.channels[i])
		if e.channels[i].active {
			hasActive = true
		}
	}
	if e.mixMusicSlice(SliceFrames) {
		hasActive = true
	} else if e.anyVoiceActive() {
		hasActive = true
	}

	if !hasActive {
		return false
	}

	// Master gain, tracking the peak for the limiter.
	var peak int64
	for i := range e.mixBuffer {
		scaled := int64(e.mixBuffer[i]) * masterGainNum / masterGainDen
		abs := scaled
		if abs < 0 {
			abs = -abs
		}
		if scaled > 2147483647 {
			scaled = 2147483647
		} else if scaled < -2147483648 {
			scaled = -2147483648
		}
		e.mixBuffer[i] = int32(scaled)
		if abs > peak {
			peak = abs
		}
	}

	// Smooth the limiter gain toward its target: fast attack when gain
	// must fall, slow release when it may rise, so slices never step.
	targetGainQ15 := uint32(unityGainQ15)
	if peak > limitTarget {
		targetGainQ15 = uint32(limitTarget * unityGainQ15 / peak)
		if targetGainQ15 == 0 {
			targetGainQ15 = 1
		}
	}
	if targetGainQ15 < e.limiterGainQ15 {
		e.limiterGainQ15 = targetGainQ15 + (e.limiterGainQ15-targetGainQ15)>>limitAttackShift
	} else if targetGainQ15 > e.limiterGainQ15 {
		e.limiterGainQ15 += (targetGainQ15 - e.limiterGainQ15) >> limitReleaseShift
	}
	if e.limiterGainQ15 == 0 {
		e.limiterGainQ15 = 1
	} else if e.limiterGainQ15 > unityGainQ15 {
		e.limiterGainQ15 = unityGainQ15
	}

	var absSum uint64
	for frame := 0; frame < SliceFrames; frame++ {
		left := e.mixBuffer[frame*2]
		right := e.mixBuffer[frame*2+1]

		if e.limiterGainQ15 < unityGainQ15 {
			left = int32(int64(left) * int64(e.limiterGainQ15) / unityGainQ15)
			right = int32(int64(right) * int64(e.limiterGainQ15) / unityGainQ15)
		}

		left = softClipSample(left)
		right = softClipSample(right)
		left = int32(clampInt(int(left), -32768, 32767))
		right = int32(clampInt(int(right), -32768, 32767))

		e.pcmBuffer[frame*2] = int16(left)
		e.pcmBuffer[frame*2+1] = int16(right)
		if left < 0 {
			left = -left
		}
		if right < 0 {
			right = -right
		}
		absSum += uint64(left) + uint64(right)
	}

	if absSum == 0 {
		return hasActive
	}

	if e.sink != nil {
		e.sink.WritePCM(e.pcmBuffer[:], SliceFrames)
		e.sink.FramesMixed(SliceFrames)
	}
	return hasActive
}
