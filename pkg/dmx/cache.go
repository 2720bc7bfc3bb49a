package dmx

import "encoding/binary"

// DMX digitized-sound lump layout: a 2-byte format tag (0x03 0x00), a
// little-endian 16-bit sample rate, a little-endian 32-bit declared length,
// then 16 pad bytes before the unsigned 8-bit PCM payload. The declared
// length covers the payload plus 16 pad bytes at each end.
const (
	sfxHeaderSize = 8
	sfxPCMOffset  = 24
	sfxPadTotal   = 32
	sfxMinLength  = 48
)

// CachedSample is a digitized sound decoded to signed 16-bit PCM. Decoded
// once per lump and shared read-only by every channel that plays it; cache
// entries live for the whole session.
type CachedSample struct {
	Samples    []int16
	SampleRate uint32
}

// resolveSample returns the decoded PCM for a lump, decoding and caching it
// on first use. Malformed lumps are rejected without caching anything.
func (e *Engine) resolveSample(lump int) (*CachedSample, error) {
	if cached, ok := e.sampleCache[lump]; ok {
		return cached, nil
	}

	data := e.wadLumpData(lump)
	if data == nil {
		return nil, ErrNotFound
	}
	cached, err := decodeSampleLump(data)
	if err != nil {
		return nil, err
	}
	e.sampleCache[lump] = cached
	return cached, nil
}

func decodeSampleLump(data []byte) (*CachedSample, error) {
	if len(data) < sfxHeaderSize {
		return nil, ErrBadFormat
	}
	if data[0] != 0x03 || data[1] != 0x00 {
		return nil, ErrBadFormat
	}

	sampleRate := uint32(binary.LittleEndian.Uint16(data[2:4]))
	declaredLen := binary.LittleEndian.Uint32(data[4:8])
	if declaredLen > uint32(len(data)-sfxHeaderSize) || declaredLen <= sfxMinLength {
		return nil, ErrBadFormat
	}
	if sampleRate == 0 {
		return nil, ErrBadFormat
	}

	// The pad bytes around the payload are not part of the sound.
	pcm := data[sfxPCMOffset:]
	pcmLen := int(declaredLen - sfxPadTotal)
	if pcmLen <= 0 || pcmLen > len(pcm) {
		return nil, ErrBadFormat
	}

	samples := make([]int16, pcmLen)
	for i := 0; i < pcmLen; i++ {
		samples[i] = int16(int(pcm[i])-128) << 8
	}
	return &CachedSample{Samples: samples, SampleRate: sampleRate}, nil
}
