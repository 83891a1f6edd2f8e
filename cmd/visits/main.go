package main

import (
	"context"
	"log"

	"github.com/MrSnakeDoc/visits/internal/app"
)

func main() {
	a, err := app.New(context.Background())
	if err != nil {
		log.Fatalf("❌ visits failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ visits stopped with an error: %v", err)
	}
}
