package main

import (
	"fmt"
	"log"
	"os"

	"icoforge/src/common"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./src/cmd/inspect_icon <icon-file>")
		os.Exit(1)
	}

	iconPath := os.Args[1]

	frames, err := common.ReadIcon(iconPath)
	if err != nil {
		log.Fatalf("Failed to read icon: %v", err)
	}

	fmt.Printf("%s: %d frame(s)\n", iconPath, len(frames))
	for i, frame := range frames {
		b := frame.Bounds()
		fmt.Printf("  #%d  %dx%d\n", i, b.Dx(), b.Dy())
	}
}
