//go:build gui
// +build gui

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"

	"github.com/olivierh59500/dmx-player/pkg/dmx"
)

// wavWriter streams interleaved int16 PCM into a RIFF container. The size
// fields are patched on Close.
type wavWriter struct {
	file       *os.File
	sampleRate int
	channels   int
	written    int64
}

func newWavWriter(path string, sampleRate, channels int) (*wavWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")

	if _, err := file.Write(header); err != nil {
		file.Close()
		return nil, err
	}
	return &wavWriter{file: file, sampleRate: sampleRate, channels: channels}, nil
}

func (w *wavWriter) Write(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	n, err := w.file.Write(buf)
	w.written += int64(n)
	return err
}

func (w *wavWriter) Close() error {
	var sizes [4]byte
	binary.LittleEndian.PutUint32(sizes[:], uint32(36+w.written))
	if _, err := w.file.WriteAt(sizes[:], 4); err != nil {
		w.file.Close()
		return err
	}
	binary.LittleEndian.PutUint32(sizes[:], uint32(w.written))
	if _, err := w.file.WriteAt(sizes[:], 40); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// wavSink feeds finished slices straight into the writer and tracks rendered
// frames so the export loop can bound itself.
type wavSink struct {
	writer *wavWriter
	frames uint64
	err    error
}

func (s *wavSink) WritePCM(samples []int16, frames int) {
	if s.err == nil {
		s.err = s.writer.Write(samples)
	}
}

func (s *wavSink) FramesMixed(frames int) {
	s.frames += uint64(frames)
}

// stepClock hands the engine a synthetic timeline that advances a fixed
// interval per poll, so an export renders as fast as the CPU allows.
type stepClock struct {
	ms   uint32
	step uint32
}

func (c *stepClock) NowMS() uint32 {
	c.ms += c.step
	return c.ms
}

// exportMaxFrames caps a render at ten minutes in case of a degenerate score.
const exportMaxFrames = 10 * 60 * dmx.OutputRate

// renderLumpToWAV plays one lump through a fresh engine into a WAV file,
// offline and faster than real time.
func (g *DMXPlayerGUI) renderLumpToWAV(entry lumpEntry, path string) error {
	writer, err := newWavWriter(path, dmx.OutputRate, dmx.OutputChannels)
	if err != nil {
		return err
	}

	sink := &wavSink{writer: writer}
	clock := &stepClock{step: 40}
	engine := dmx.NewEngine(dmx.Config{Wad: g.wadFile, Sink: sink, Clock: clock})
	engine.InitSound(false)
	engine.InitMusic()
	engine.SetMusicVolume(int(g.volSlider.Value))

	if entry.music {
		song, err := engine.RegisterSong(g.wadFile.LumpData(entry.index))
		if err != nil {
			writer.Close()
			return err
		}
		engine.PlaySong(song, false)
		for engine.MusicIsPlaying() && sink.frames < exportMaxFrames && sink.err == nil {
			engine.Update()
		}
	} else {
		if engine.StartSound(entry.index, 0, 127, 127) < 0 {
			writer.Close()
			return errors.New("lump is not a playable sound")
		}
		for engine.SoundIsPlaying(0) && sink.frames < exportMaxFrames && sink.err == nil {
			engine.Update()
		}
	}
	engine.ShutdownSound()

	if sink.err != nil {
		writer.Close()
		return sink.err
	}
	return writer.Close()
}

func (g *DMXPlayerGUI) exportWAV() {
	if g.wadFile == nil || g.selected < 0 || g.selected >= len(g.entries) {
		dialog.ShowInformation("Export WAV", "Select a lump to export first.", g.window)
		return
	}
	entry := g.entries[g.selected]

	saveDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		path := writer.URI().Path()
		writer.Close()

		g.statusLabel.SetText("Exporting " + entry.name + "...")
		go func() {
			renderErr := g.renderLumpToWAV(entry, path)
			fyne.Do(func() {
				if renderErr != nil {
					dialog.ShowError(renderErr, g.window)
					g.statusLabel.SetText("Export failed")
					return
				}
				g.statusLabel.SetText(fmt.Sprintf("Exported %s", entry.name))
			})
		}()
	}, g.window)
	saveDialog.SetFileName(entry.name + ".wav")
	saveDialog.Show()
}
