package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// NullOutput discards all audio while keeping real-time pacing.
type NullOutput struct{}

func (n *NullOutput) Open(sampleRate, channels, bufferSize int) error {
	return nil
}

func (n *NullOutput) Close() error {
	return nil
}

func (n *NullOutput) Write(samples []int16) error {
	duration := time.Duration(len(samples)/2) * time.Second / time.Duration(44100)
	time.Sleep(duration)
	return nil
}

func (n *NullOutput) IsPlaying() bool {
	return true
}

// WAVOutput writes audio to a WAV file.
type WAVOutput struct {
	file       *os.File
	filename   string
	sampleRate int
	channels   int
	written    int64
}

func NewWAVOutput(filename string) (*WAVOutput, error) {
	return &WAVOutput{
		filename: filename,
	}, nil
}

func (w *WAVOutput) Open(sampleRate, channels, bufferSize int) error {
	w.sampleRate = sampleRate
	w.channels = channels

	file, err := os.Create(w.filename)
	if err != nil {
		return err
	}
	w.file = file

	// Write WAV header; sizes are patched on Close.
	header := make([]byte, 44)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], 0)
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	byteRate := sampleRate * channels * 2
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	blockAlign := channels * 2
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], 0)

	_, err = w.file.Write(header)
	return err
}

func (w *WAVOutput) Close() error {
	if w.file == nil {
		return nil
	}

	w.file.Seek(4, 0)
	binary.Write(w.file, binary.LittleEndian, uint32(w.written+36))
	w.file.Seek(40, 0)
	binary.Write(w.file, binary.LittleEndian, uint32(w.written))

	return w.file.Close()
}

func (w *WAVOutput) Write(samples []int16) error {
	if w.file == nil {
		return fmt.Errorf("file not open")
	}

	buf := make([]byte, len(samples)*2)
	for i, sample := range samples {
		buf[i*2] = byte(sample)
		buf[i*2+1] = byte(sample >> 8)
	}

	n, err := w.file.Write(buf)
	w.written += int64(n)
	return err
}

func (w *WAVOutput) IsPlaying() bool {
	return w.file != nil
}
