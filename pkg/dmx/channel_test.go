package dmx

import "testing"

// dcLump is a constant-value sample: PCM byte 228 decodes to 25600.
func dcLump(rate uint16, samples int) []byte {
	return sfxLump(rate, constantPCM(samples, 228))
}

const dcValue = 25600

func TestStartSoundValidatesChannel(t *testing.T) {
	e := newTestEngine(t, []testLump{{"DSITEM", dcLump(11025, 64)}}, &captureSink{}, &fakeClock{ms: 1})

	if got := e.StartSound(0, -1, 127, 128); got != -1 {
		t.Errorf("StartSound on channel -1 = %d, want -1", got)
	}
	if got := e.StartSound(0, NumSfxChannels, 127, 128); got != -1 {
		t.Errorf("StartSound on channel %d = %d, want -1", NumSfxChannels, got)
	}
	if got := e.StartSound(0, 3, 127, 128); got != 3 {
		t.Errorf("StartSound = %d, want 3", got)
	}
	if !e.SoundIsPlaying(3) {
		t.Error("channel 3 not playing after StartSound")
	}
}

func TestStartSoundResamplingStep(t *testing.T) {
	e := newTestEngine(t, []testLump{
		{"DSLOW", dcLump(11025, 64)},
		{"DSFULL", dcLump(44100, 64)},
	}, &captureSink{}, &fakeClock{ms: 1})

	e.StartSound(0, 0, 127, 128)
	if got := e.channels[0].stepFP; got != 1<<14 {
		t.Errorf("11025Hz step = %#x, want %#x", got, 1<<14)
	}
	e.StartSound(1, 1, 127, 128)
	if got := e.channels[1].stepFP; got != 1<<16 {
		t.Errorf("44100Hz step = %#x, want %#x", got, 1<<16)
	}
}

func TestUpdateSoundParamsIgnoresInactive(t *testing.T) {
	e := newTestEngine(t, []testLump{{"DSITEM", dcLump(11025, 64)}}, &captureSink{}, &fakeClock{ms: 1})

	e.UpdateSoundParams(0, 50, 50)
	if e.channels[0].volume != 0 || e.channels[0].separation != 0 {
		t.Error("UpdateSoundParams touched an inactive channel")
	}

	e.StartSound(0, 0, 127, 128)
	e.UpdateSoundParams(0, 300, -7)
	if e.channels[0].volume != 127 {
		t.Errorf("volume = %d, want clamp to 127", e.channels[0].volume)
	}
	if e.channels[0].separation != 0 {
		t.Errorf("separation = %d, want clamp to 0", e.channels[0].separation)
	}
}

func TestMixChannelPanLaw(t *testing.T) {
	tests := []struct {
		name       string
		separation int
		wantLeft   int32
		wantRight  int32
	}{
		{"hard left", 0, dcValue, 0},
		{"hard right", 254, 0, dcValue},
		{"center", 127, dcValue / 2, dcValue / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, []testLump{{"DSITEM", dcLump(44100, 2048)}}, &captureSink{}, &fakeClock{ms: 1})
			e.StartSound(0, 0, 127, tt.separation)
			e.mixChannel(&e.channels[0])

			if e.mixBuffer[0] != tt.wantLeft || e.mixBuffer[1] != tt.wantRight {
				t.Errorf("frame 0 = (%d, %d), want (%d, %d)",
					e.mixBuffer[0], e.mixBuffer[1], tt.wantLeft, tt.wantRight)
			}
		})
	}
}

func TestMixChannelVolumeScales(t *testing.T) {
	e := newTestEngine(t, []testLump{{"DSITEM", dcLump(44100, 2048)}}, &captureSink{}, &fakeClock{ms: 1})
	e.StartSound(0, 0, 64, 0)
	e.mixChannel(&e.channels[0])

	want := int32(dcValue) * 64 * 254 / panDen
	if e.mixBuffer[0] != want {
		t.Errorf("half-volume frame 0 = %d, want %d", e.mixBuffer[0], want)
	}
}

func TestChannelDeactivatesAtSampleEnd(t *testing.T) {
	e := newTestEngine(t, []testLump{{"DSSHORT", dcLump(44100, 64)}}, &captureSink{}, &fakeClock{ms: 1})
	e.StartSound(0, 0, 127, 128)

	e.mixChannel(&e.channels[0])
	if e.SoundIsPlaying(0) {
		t.Error("64-sample sound survived a 512-frame slice")
	}

	// Only the first 64 frames carried signal.
	if e.mixBuffer[63*2] == 0 {
		t.Error("frame 63 silent, want signal")
	}
	if e.mixBuffer[64*2] != 0 {
		t.Errorf("frame 64 = %d, want silence past the sample end", e.mixBuffer[64*2])
	}
}

func TestSampleFrameInterpolates(t *testing.T) {
	ch := sfxChannel{
		sfx:    &CachedSample{Samples: []int16{0, 1000}, SampleRate: 44100},
		active: true,
	}

	ch.positionFP = 1 << 15 // halfway between samples 0 and 1
	if got := ch.sampleFrame(); got != 500 {
		t.Errorf("midpoint = %d, want 500", got)
	}
	ch.positionFP = 1 << 16 // exactly on the last sample
	if got := ch.sampleFrame(); got != 1000 {
		t.Errorf("last sample = %d, want 1000", got)
	}
	ch.positionFP = 2 << 16 // past the end
	if got := ch.sampleFrame(); got != 0 {
		t.Errorf("past end = %d, want 0", got)
	}
}

func TestStopSound(t *testing.T) {
	e := newTestEngine(t, []testLump{{"DSITEM", dcLump(11025, 64)}}, &captureSink{}, &fakeClock{ms: 1})

	e.StartSound(0, 5, 127, 128)
	e.StopSound(5)
	if e.SoundIsPlaying(5) {
		t.Error("channel playing after StopSound")
	}
	e.StopSound(-1) // ignored
	e.StopSound(NumSfxChannels)
}
