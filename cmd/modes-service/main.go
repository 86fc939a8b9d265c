package main

import (
	"os"

	"github.com/onoff-automations/schedule-modes/modeservice"
)

func main() {
	if err := modeservice.Run(); err != nil {
		os.Exit(1)
	}
}
