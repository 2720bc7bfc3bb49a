//go:build gui
// +build gui

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/olivierh59500/dmx-player/pkg/audio"
	"github.com/olivierh59500/dmx-player/pkg/dmx"
	"github.com/olivierh59500/dmx-player/pkg/wad"
)

// lumpEntry is one playable row in the browser.
type lumpEntry struct {
	index int
	name  string
	size  int
	music bool
}

type DMXPlayerGUI struct {
	app    fyne.App
	window fyne.Window

	// Player
	engine      *dmx.Engine
	player      *audio.Player
	audioOutput audio.Output
	sink        *audio.OutputSink
	song        *dmx.Song

	// WAD
	wadFile *wad.File
	wadName string
	entries []lumpEntry

	// UI elements
	wadLabel    *widget.Label
	statusLabel *widget.Label
	timeLabel   *widget.Label
	lumpList    *widget.List
	playButton  *widget.Button
	pauseButton *widget.Button
	stopButton  *widget.Button
	loopCheck   *widget.Check
	volSlider   *widget.Slider

	// State
	selected int
	loop     bool
	paused   bool

	ticker *time.Ticker
	done   chan bool
}

func NewDMXPlayerGUI() *DMXPlayerGUI {
	g := &DMXPlayerGUI{
		app:      app.New(),
		selected: -1,
		done:     make(chan bool),
	}
	g.createUI()
	return g
}

func (g *DMXPlayerGUI) createUI() {
	g.window = g.app.NewWindow("DMX Player")
	g.window.Resize(fyne.NewSize(700, 520))

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open WAD...", g.openWAD),
		fyne.NewMenuItem("Export WAV...", g.exportWAV),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", g.app.Quit),
	)
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", g.showAbout),
	)
	g.window.SetMainMenu(fyne.NewMainMenu(fileMenu, helpMenu))

	g.wadLabel = widget.NewLabel("No WAD loaded")
	g.wadLabel.TextStyle = fyne.TextStyle{Bold: true}
	g.statusLabel = widget.NewLabel("Ready")
	g.timeLabel = widget.NewLabel("00:00 mixed")
	g.timeLabel.Alignment = fyne.TextAlignCenter

	g.lumpList = widget.NewList(
		func() int { return len(g.entries) },
		func() fyne.CanvasObject {
			name := widget.NewLabel("")
			kind := widget.NewLabel("")
			return container.NewBorder(nil, nil, nil, kind, name)
		},
		func(id widget.ListItemID, item fyne.CanvasObject) {
			box := item.(*fyne.Container)
			nameLabel := box.Objects[0].(*widget.Label)
			kindLabel := box.Objects[1].(*widget.Label)
			entry := g.entries[id]
			nameLabel.SetText(fmt.Sprintf("%-8s  %d bytes", entry.name, entry.size))
			if entry.music {
				kindLabel.SetText("music")
			} else {
				kindLabel.SetText("sfx")
			}
		},
	)
	g.lumpList.OnSelected = func(id widget.ListItemID) {
		g.selected = id
		g.playButton.Enable()
	}

	g.playButton = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), g.play)
	g.pauseButton = widget.NewButtonWithIcon("", theme.MediaPauseIcon(), g.togglePause)
	g.stopButton = widget.NewButtonWithIcon("", theme.MediaStopIcon(), g.stop)
	g.playButton.Disable()
	g.pauseButton.Disable()
	g.stopButton.Disable()

	buttons := container.NewHBox(
		layout.NewSpacer(),
		g.playButton,
		g.pauseButton,
		g.stopButton,
		layout.NewSpacer(),
	)

	g.loopCheck = widget.NewCheck("Loop Music", func(checked bool) {
		g.loop = checked
	})

	g.volSlider = widget.NewSlider(0, 127)
	g.volSlider.Value = 127
	volLabel := widget.NewLabel("127")
	g.volSlider.OnChanged = func(value float64) {
		volLabel.SetText(fmt.Sprintf("%.0f", value))
		if g.player != nil {
			g.player.Do(func() {
				g.engine.SetMusicVolume(int(value))
			})
		}
	}
	volumeRow := container.NewBorder(
		nil, nil,
		container.NewHBox(widget.NewIcon(theme.VolumeUpIcon()), widget.NewLabel("Music Volume:")),
		volLabel,
		g.volSlider,
	)

	statusBar := container.NewBorder(widget.NewSeparator(), nil, nil, g.statusLabel, nil)

	controls := container.NewVBox(
		g.wadLabel,
		widget.NewSeparator(),
		g.timeLabel,
		buttons,
		container.NewHBox(g.loopCheck),
		volumeRow,
		statusBar,
	)

	content := container.NewBorder(nil, controls, nil, nil,
		widget.NewCard("Lumps", "", container.NewScroll(g.lumpList)))
	g.window.SetContent(container.NewPadded(content))
	g.window.SetOnClosed(g.cleanup)

	g.startUpdateTicker()
}

func (g *DMXPlayerGUI) openWAD() {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		defer reader.Close()
		path := reader.URI().Path()
		data, err := os.ReadFile(path)
		if err != nil {
			dialog.ShowError(err, g.window)
			return
		}
		g.loadWAD(path, data)
	}, g.window)
}

// loadWAD parses a WAD blob and rebuilds the playable lump browser. Only
// lumps that look like MUS scores or DMX sounds are listed.
func (g *DMXPlayerGUI) loadWAD(path string, data []byte) {
	g.stop()

	wadFile, err := wad.Load(data)
	if err != nil {
		dialog.ShowError(err, g.window)
		return
	}

	g.wadFile = wadFile
	g.wadName = filepath.Base(path)
	g.entries = g.entries[:0]
	for i := 0; i < wadFile.NumLumps(); i++ {
		lump := wadFile.LumpData(i)
		name := wadFile.LumpName(i)
		switch {
		case len(lump) >= 4 && string(lump[0:3]) == "MUS" && lump[3] == 0x1A:
			g.entries = append(g.entries, lumpEntry{index: i, name: name, size: len(lump), music: true})
		case strings.HasPrefix(name, "DS") && len(lump) >= 8 && lump[0] == 0x03 && lump[1] == 0x00:
			g.entries = append(g.entries, lumpEntry{index: i, name: name, size: len(lump), music: false})
		}
	}

	g.selected = -1
	g.playButton.Disable()
	g.wadLabel.SetText(fmt.Sprintf("%s - %d playable lumps", g.wadName, len(g.entries)))
	g.statusLabel.SetText("WAD loaded")
	g.lumpList.Refresh()
}

// ensurePlayer lazily builds the engine and output pipeline.
func (g *DMXPlayerGUI) ensurePlayer() error {
	if g.player != nil {
		return nil
	}

	out, err := audio.NewStreamingOtoOutput()
	if err != nil {
		return err
	}
	g.audioOutput = out
	g.sink = audio.NewOutputSink(out)
	g.engine = dmx.NewEngine(dmx.Config{
		Wad:    g.wadFile,
		Sink:   g.sink,
		Logger: log.New(os.Stderr, "dmx: ", 0),
	})
	g.engine.InitSound(false)
	g.engine.InitMusic()
	g.engine.SetMusicVolume(int(g.volSlider.Value))

	g.player = audio.NewPlayer(g.engine, out, 0)
	return g.player.Start(dmx.OutputRate, dmx.OutputChannels, 2048)
}

func (g *DMXPlayerGUI) play() {
	if g.wadFile == nil || g.selected < 0 || g.selected >= len(g.entries) {
		return
	}
	if err := g.ensurePlayer(); err != nil {
		dialog.ShowError(err, g.window)
		return
	}

	entry := g.entries[g.selected]
	var failed error
	g.player.Do(func() {
		if entry.music {
			g.engine.StopSong()
			song, err := g.engine.RegisterSong(g.wadFile.LumpData(entry.index))
			if err != nil {
				failed = err
				return
			}
			g.song = song
			g.engine.PlaySong(song, g.loop)
		} else {
			g.engine.StartSound(entry.index, 0, 127, 127)
		}
	})
	if failed != nil {
		dialog.ShowError(failed, g.window)
		return
	}

	g.paused = false
	g.pauseButton.Enable()
	g.stopButton.Enable()
	g.statusLabel.SetText("Playing " + entry.name)
}

func (g *DMXPlayerGUI) togglePause() {
	if g.player == nil {
		return
	}
	g.paused = !g.paused
	paused := g.paused
	g.player.Do(func() {
		if paused {
			g.engine.PauseMusic()
		} else {
			g.engine.ResumeMusic()
		}
	})
	if paused {
		g.statusLabel.SetText("Paused")
	} else {
		g.statusLabel.SetText("Playing")
	}
}

func (g *DMXPlayerGUI) stop() {
	if g.player == nil {
		return
	}
	g.player.Do(func() {
		g.engine.StopSong()
		for ch := 0; ch < 16; ch++ {
			g.engine.StopSound(ch)
		}
	})
	g.paused = false
	g.pauseButton.Disable()
	g.stopButton.Disable()
	g.statusLabel.SetText("Stopped")
}

func (g *DMXPlayerGUI) startUpdateTicker() {
	g.ticker = time.NewTicker(250 * time.Millisecond)
	go func() {
		for {
			select {
			case <-g.ticker.C:
				if g.sink == nil {
					continue
				}
				seconds := g.sink.FramesWritten() / dmx.OutputRate
				text := fmt.Sprintf("%02d:%02d mixed", seconds/60, seconds%60)
				fyne.Do(func() {
					g.timeLabel.SetText(text)
				})
			case <-g.done:
				return
			}
		}
	}()
}

func (g *DMXPlayerGUI) showAbout() {
	dialog.ShowInformation("About DMX Player",
		"DMX Player\n\nPlays Doom sound effects and MUS music from WAD files.",
		g.window)
}

func (g *DMXPlayerGUI) cleanup() {
	g.ticker.Stop()
	close(g.done)
	if g.player != nil {
		g.player.Stop()
	}
}

func (g *DMXPlayerGUI) Run() {
	g.window.ShowAndRun()
}
