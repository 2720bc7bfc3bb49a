package dmx

import "testing"

func TestSoftClipSample(t *testing.T) {
	// Identity region.
	for _, v := range []int32{0, 1, -1, 12345, -12345, softClipThreshold, -softClipThreshold} {
		if got := softClipSample(v); got != v {
			t.Errorf("softClipSample(%d) = %d, want identity", v, got)
		}
	}

	// Above the threshold the knee compresses but never folds back, and
	// the output stays strictly below threshold+knee.
	prev := int32(softClipThreshold)
	for v := int32(softClipThreshold + 1); v < 200000; v += 997 {
		got := softClipSample(v)
		if got < prev {
			t.Fatalf("softClipSample(%d) = %d, not monotonic (prev %d)", v, got, prev)
		}
		if got >= softClipThreshold+softClipKnee {
			t.Fatalf("softClipSample(%d) = %d, exceeds the knee asymptote", v, got)
		}
		prev = got
	}

	// Symmetry.
	if softClipSample(-50000) != -softClipSample(50000) {
		t.Error("soft clip not symmetric")
	}
}

func TestMixSliceAppliesMasterGain(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(t, []testLump{{"DSITEM", dcLump(44100, 2048)}}, sink, &fakeClock{ms: 1})

	e.StartSound(0, 0, 127, 127)
	if !e.mixSlice() {
		t.Fatal("mixSlice reported silence with an active channel")
	}
	if sink.writes != 1 || sink.frames != SliceFrames {
		t.Fatalf("sink got %d writes / %d frames, want 1 / %d", sink.writes, sink.frames, SliceFrames)
	}

	// Center pan puts dcValue/2 on each side; the master stage scales it
	// by 9/8, well under the limiter and clip thresholds.
	want := int16(dcValue / 2 * masterGainNum / masterGainDen)
	if sink.pcm[0] != want || sink.pcm[1] != want {
		t.Errorf("frame 0 = (%d, %d), want (%d, %d)", sink.pcm[0], sink.pcm[1], want, want)
	}
	if e.limiterGainQ15 != unityGainQ15 {
		t.Errorf("limiter engaged at %d on a quiet slice", e.limiterGainQ15)
	}
}

func TestMixSliceLimiterAttackAndRelease(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(t, []testLump{{"DSLOUD", sfxLump(44100, constantPCM(65000, 255))}}, sink, &fakeClock{ms: 1})

	// Two full-volume hard-left copies push the left bus far past the
	// limit target.
	e.StartSound(0, 0, 127, 0)
	e.StartSound(0, 1, 127, 0)

	e.mixSlice()
	first := e.limiterGainQ15
	if first >= unityGainQ15 {
		t.Fatalf("limiter gain = %d after a hot slice, want below unity", first)
	}
	for _, s := range sink.pcm {
		if s < -32767 || int32(s) >= softClipThreshold+softClipKnee {
			t.Fatalf("output sample %d escaped the clipper", s)
		}
	}

	// Attack keeps pulling gain toward the target while the input stays
	// hot.
	e.mixSlice()
	second := e.limiterGainQ15
	if second >= first {
		t.Fatalf("limiter gain %d -> %d, want continued attack", first, second)
	}

	// Once the input drops to a quiet signal the gain releases back up.
	quiet := newTestEngine(t, []testLump{{"DSITEM", dcLump(44100, 65000)}}, &captureSink{}, &fakeClock{ms: 1})
	quiet.limiterGainQ15 = second
	quiet.StartSound(0, 0, 64, 127)
	quiet.mixSlice()
	if quiet.limiterGainQ15 <= second {
		t.Errorf("limiter gain stayed at %d on a quiet slice, want release", quiet.limiterGainQ15)
	}
}

func TestMixMusicSliceIdleIsSilent(t *testing.T) {
	e := newTestEngine(t, nil, &captureSink{}, &fakeClock{ms: 1})
	if e.mixMusicSlice(SliceFrames) {
		t.Error("idle synthesizer reported signal")
	}
}

func TestMusicFilterPersistsAcrossSlices(t *testing.T) {
	e := newTestEngine(t, nil, &captureSink{}, &fakeClock{ms: 1})

	playScore(t, e, []byte{0x90, 60, 0x7F, 0xE0}, false)
	if !e.mixMusicSlice(SliceFrames) {
		t.Fatal("live voice produced no signal")
	}
	carried := e.musicFilterL
	if carried == 0 && e.musicFilterR == 0 {
		t.Fatal("filter state empty after a rendered slice")
	}

	// State carries into the next slice and only a song transition clears
	// it.
	e.mixMusicSlice(SliceFrames)
	e.StopSong()
	if e.musicFilterL != 0 || e.musicFilterR != 0 {
		t.Error("song transition left filter state behind")
	}
}

func TestMixSliceMusicContributes(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(t, nil, sink, &fakeClock{ms: 1})

	playScore(t, e, []byte{0x90, 60, 0x7F, 0xE0}, false)
	if !e.mixSlice() {
		t.Fatal("mixSlice silent with a playing song")
	}
	if sink.writes != 1 {
		t.Fatalf("sink writes = %d, want 1", sink.writes)
	}
	nonZero := false
	for _, s := range sink.pcm {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("music slice quantized to pure silence")
	}
}
