//go:build gui
// +build gui

package main

import (
	"log"
	"os"
)

func main() {
	// Disable Fyne thread checks to avoid console errors
	os.Setenv("FYNE_DISABLETHREAD", "1")

	gui := NewDMXPlayerGUI()

	// Open a WAD passed on the command line
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			log.Printf("Failed to load initial WAD: %v", err)
		} else {
			gui.loadWAD(os.Args[1], data)
		}
	}

	gui.Run()
}
