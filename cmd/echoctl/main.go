package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/echoctl/internal/logging"
	"github.com/danmuck/echoctl/internal/observability"
	"github.com/danmuck/echoctl/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to echoctl TOML config")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "echoctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	observability.InitLogger(cfg.NodeID)

	svc := server.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "echoctl: %v\n", err)
		os.Exit(1)
	}
}
