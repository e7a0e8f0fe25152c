// Package main is the entry point for the om2bms API server
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/james-see/om2bms/pkg/api"
	"github.com/james-see/om2bms/pkg/config"
)

func main() {
	port := flag.Int("port", 8080, "Server port")
	configPath := flag.String("config", "", "Config file (default: user config dir)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting om2bms API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
