package main

import (
	"log"

	"tipbridge/internal/app"
)

func main() {
	app, err := app.NewApp()
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}

	if err := app.BuildTipbotLayer(); err != nil {
		log.Fatalf("failed to build tipbot layer: %v", err)
	}
	if err := app.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
