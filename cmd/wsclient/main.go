// wsclient connects to a dragonhub server, subscribes to channels and prints
// everything it receives.
// Usage: go run ./cmd/wsclient --url ws://localhost:8080/ws --channels news,alerts
//
// Publish once after subscribing:
//
//	go run ./cmd/wsclient --channels news --publish news --data '{"headline":"hi"}'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/dragonhub/internal/normalize"
	"github.com/rickgao/dragonhub/internal/transport"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "server WebSocket URL")
	channels := flag.String("channels", "", "comma-separated channels to subscribe to")
	publish := flag.String("publish", "", "channel to publish to after subscribing")
	data := flag.String("data", "{}", "JSON payload for --publish")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := transport.DefaultClientConfig()
	cfg.URL = *url
	client, err := transport.Dial(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if subs := splitList(*channels); len(subs) > 0 {
		if err := client.Subscribe(callCtx, subs...); err != nil {
			logger.Error("failed to subscribe", "channels", subs, "error", err)
			os.Exit(1)
		}
		logger.Info("subscribed", "channels", subs)
	}

	if *publish != "" {
		delivered, err := client.Publish(callCtx, *publish, normalize.ToJSON(*data))
		if err != nil {
			logger.Error("failed to publish", "channel", *publish, "error", err)
			os.Exit(1)
		}
		logger.Info("published", "channel", *publish, "delivered", delivered)
	}

	logger.Info("streaming started - press Ctrl+C to stop")

	var received int
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down...", "received", received)
			return
		case ev, ok := <-client.Events():
			if !ok {
				if err := client.Err(); err != nil {
					logger.Error("connection ended", "error", err, "received", received)
					os.Exit(1)
				}
				logger.Info("connection closed", "received", received)
				return
			}
			received++
			printEvent(ev, *verbose)
		}
	}
}

func printEvent(ev transport.Event, verbose bool) {
	switch {
	case ev.Binary:
		fmt.Printf("[BINARY] %d bytes\n", len(ev.Raw))
	case verbose:
		out, _ := json.MarshalIndent(normalize.ToJSON(ev.Raw), "", "  ")
		fmt.Printf("[%s] %s\n", ev.ReceivedAt.Format("15:04:05.000"), out)
	case ev.Published != nil:
		fmt.Printf("[%s] %v\n", ev.Published.Channel, ev.Published.Data)
	case ev.Reply != nil:
		fmt.Printf("[REPLY %s] %s: %v\n", ev.Reply.Context.State, ev.Reply.Context.ClientCallbackName, ev.Reply.Data)
	default:
		fmt.Printf("[RAW] %s\n", ev.Raw)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
