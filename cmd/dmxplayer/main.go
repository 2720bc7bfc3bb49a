package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/olivierh59500/dmx-player/pkg/audio"
	"github.com/olivierh59500/dmx-player/pkg/dmx"
	"github.com/olivierh59500/dmx-player/pkg/wad"
)

var (
	listLumps  = flag.Bool("list", false, "List WAD lumps and exit")
	musicName  = flag.String("music", "", "Music lump to play (e.g. D_E1M1)")
	sfxName    = flag.String("sfx", "", "Sound effect to play (e.g. pistol)")
	loop       = flag.Bool("loop", false, "Loop music playback")
	volume     = flag.Int("volume", 127, "Music volume (0 to 127)")
	sfxVolume  = flag.Int("sfxvol", 127, "Sound effect volume (0 to 127)")
	separation = flag.Int("sep", 127, "Sound effect stereo separation (0 to 254)")
	bufferSize = flag.Int("buffer", 2048, "Output buffer size in frames")
	output     = flag.String("output", "oto", "Output backend (oto, wav, null)")
	wavFile    = flag.String("wav", "", "Output WAV file (when using wav output)")
	maxSecs    = flag.Int("max", 0, "Stop after this many seconds (0 = play to the end)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <wad-file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "DMX Player - Play Doom sound effects and MUS music from a WAD\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	wadPath := flag.Arg(0)
	data, err := os.ReadFile(wadPath)
	if err != nil {
		log.Fatalf("Failed to read WAD: %v", err)
	}

	wadFile, err := wad.Load(data)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", filepath.Base(wadPath), err)
	}
	fmt.Printf("Loaded %s: %d lumps\n", filepath.Base(wadPath), wadFile.NumLumps())

	if *listLumps {
		for i := 0; i < wadFile.NumLumps(); i++ {
			fmt.Printf("%5d  %-8s  %d bytes\n", i, wadFile.LumpName(i), len(wadFile.LumpData(i)))
		}
		return
	}

	if *musicName == "" && *sfxName == "" {
		log.Fatal("Nothing to play: use -music or -sfx (or -list to browse)")
	}

	// Create audio output
	var audioOut audio.Output
	switch *output {
	case "oto":
		audioOut, err = audio.NewStreamingOtoOutput()
		if err != nil {
			fmt.Printf("Warning: Failed to create audio output (%v)\n", err)
			fmt.Printf("Falling back to timing-based output...\n")
			audioOut, err = audio.NewFallbackOutput()
		}
	case "wav":
		if *wavFile == "" {
			*wavFile = strings.TrimSuffix(wadPath, filepath.Ext(wadPath)) + ".wav"
		}
		audioOut, err = NewWAVOutput(*wavFile)
	case "null":
		audioOut = &NullOutput{}
	default:
		log.Fatalf("Unknown output backend: %s", *output)
	}
	if err != nil {
		log.Fatalf("Failed to create audio output: %v", err)
	}

	sink := audio.NewOutputSink(audioOut)
	engine := dmx.NewEngine(dmx.Config{
		Wad:    wadFile,
		Sink:   sink,
		Logger: log.New(os.Stderr, "dmx: ", 0),
	})
	engine.InitSound(true)
	engine.InitMusic()
	engine.SetMusicVolume(*volume)

	if *musicName != "" {
		lump := wadFile.LumpNumForName(*musicName)
		if lump < 0 {
			log.Fatalf("Music lump not found: %s", *musicName)
		}
		song, err := engine.RegisterSong(wadFile.LumpData(lump))
		if err != nil {
			log.Fatalf("Failed to register song %s: %v", *musicName, err)
		}
		engine.PlaySong(song, *loop)
		fmt.Printf("Playing music %s", *musicName)
		if *loop {
			fmt.Printf(" (looping)")
		}
		fmt.Printf("\n")
	}

	if *sfxName != "" {
		lump := engine.SfxLumpNum(*sfxName)
		if lump < 0 {
			log.Fatalf("Sound lump not found: ds%s", *sfxName)
		}
		if engine.StartSound(lump, 0, *sfxVolume, *separation) < 0 {
			log.Fatalf("Failed to start sound: %s", *sfxName)
		}
		fmt.Printf("Playing sound ds%s\n", *sfxName)
	}

	player := audio.NewPlayer(engine, audioOut, 0)
	if err := player.Start(dmx.OutputRate, dmx.OutputChannels, *bufferSize); err != nil {
		log.Fatalf("Failed to start playback: %v", err)
	}
	defer player.Stop()

	fmt.Printf("Press Ctrl+C to stop\n\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	start := time.Now()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Printf("\n\nStopping...\n")
			return

		case <-ticker.C:
			if *maxSecs > 0 && time.Since(start) >= time.Duration(*maxSecs)*time.Second {
				fmt.Printf("\n\nTime limit reached.\n")
				return
			}

			var playing bool
			player.Do(func() {
				playing = engine.MusicIsPlaying() || engine.SoundIsPlaying(0)
			})
			seconds := sink.FramesWritten() / dmx.OutputRate
			fmt.Printf("\r%s mixed", formatDuration(seconds))
			if !playing {
				// Let the device buffer drain before closing.
				time.Sleep(200 * time.Millisecond)
				fmt.Printf("\n\nPlayback finished.\n")
				return
			}
		}
	}
}

func formatDuration(seconds uint64) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
