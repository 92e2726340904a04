// Command tail follows one collection through the live gateway and prints
// every snapshot it receives.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tail: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		wsURL      string
		token      string
		collection string
		parent     string
		window     int
		logLevel   string
	)

	flag.StringVar(&wsURL, "url", envOrDefault("FELLOWSHIP_WS_URL", "ws://localhost:8081/ws"), "gateway websocket URL")
	flag.StringVar(&token, "token", envOrDefault("FELLOWSHIP_TOKEN", ""), "access token")
	flag.StringVar(&collection, "collection", "messages", "collection to follow")
	flag.StringVar(&parent, "parent", "", "parent thread as <kind>/<id> when following replies")
	flag.IntVar(&window, "window", 0, "initial window size (server default when 0)")
	flag.StringVar(&logLevel, "log-level", "warn", "log level")
	flag.Parse()

	logging.Setup(logLevel)

	if token == "" {
		return errors.New("a token is required (-token or FELLOWSHIP_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &gateway.Client{
		URL:        wsURL,
		Token:      token,
		Collection: collection,
		Parent:     parent,
		Window:     window,
		Logger:     slog.Default(),
	}

	// Typing "more" (or just pressing enter) grows the window.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && line != gateway.OpMore {
				continue
			}
			if err := client.More(); err != nil {
				slog.Warn("load more failed", "error", err)
			}
		}
	}()

	if err := client.Run(ctx, printFrame); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printFrame(f gateway.Frame) {
	if f.Type == gateway.FrameError {
		fmt.Printf("! %s %s\n", f.Reason, f.Message)
		return
	}

	fmt.Printf("== %s (window %d, %d items) ==\n", f.Collection, f.Window, len(f.Items))
	if f.Empty {
		fmt.Println("   (nothing yet)")
		return
	}
	for _, it := range f.Items {
		created := time.UnixMilli(it.CreatedAt).Format(time.DateTime)
		edited := ""
		if it.Edited {
			edited = " (edited)"
		}
		if it.Title != "" {
			fmt.Printf("%s  %s: [%s] %s%s\n", created, it.Author, it.Title, it.Text, edited)
			continue
		}
		fmt.Printf("%s  %s: %s%s\n", created, it.Author, it.Text, edited)
	}
}
