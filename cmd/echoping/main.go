package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danmuck/echoctl/internal/client"
	"github.com/danmuck/echoctl/internal/logging"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "echoctl server address")
	message := flag.String("message", "hello", "payload to frame and send")
	count := flag.Int("count", 1, "number of messages to send on one connection")
	timeout := flag.Duration("timeout", 5*time.Second, "read/write timeout per message")
	attempts := flag.Int("attempts", 3, "max connect attempts (0 = unbounded)")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := client.DefaultConfig()
	cfg.Address = *addr
	cfg.ReadTimeout = *timeout
	cfg.WriteTimeout = *timeout
	cfg.MaxConnectAttempts = *attempts

	c, err := client.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "echoping: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "echoping: connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer c.Close()

	for i := 0; i < *count; i++ {
		reply, err := c.SendString(*message)
		if err != nil {
			fmt.Fprintf(os.Stderr, "echoping: send: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s -> %s\n", *message, reply)
	}
}
