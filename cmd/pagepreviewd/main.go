package main

import (
	"context"
	"log"
	"os"

	"pagepreview/internal/config"
	"pagepreview/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("PAGEPREVIEW_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: os.Getenv("PAGEPREVIEW_LOG_LEVEL"),
	}); err != nil {
		log.Fatalf("pagepreviewd: %v", err)
	}
}
