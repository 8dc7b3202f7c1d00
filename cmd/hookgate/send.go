package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/webhook"
)

const sendUserAgent = "GitHub-Hookshot/hookgate-send"

func printSendHelp() {
	fmt.Println("Usage: hookgate send [--config PATH] [--url URL] [--event NAME] [--data JSON | --file PATH]")
	fmt.Println("                     [--secret KEY | --secret-env VAR] [--forwarded-for IP] [--timeout 10s]")
	fmt.Println("Sign a delivery like GitHub does and POST it. Without --url the target is built from the config.")
}

type sendOptions struct {
	URL          string
	Event        string
	Body         []byte
	Secret       []byte
	Sign         bool
	ForwardedFor string
	Timeout      time.Duration
}

type sendResult struct {
	DeliveryID string
	Status     int
	Body       []byte
}

func runSend(args []string) int {
	var configPath, url, event, data, file, secret, secretEnv, forwardedFor string
	var timeout time.Duration
	var unsigned bool

	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration (for url and secret)")
	fs.StringVar(&url, "url", "", "Target URL")
	fs.StringVar(&event, "event", "ping", "X-GitHub-Event value")
	fs.StringVar(&data, "data", "", "JSON body")
	fs.StringVar(&file, "file", "", "Read the JSON body from a file")
	fs.StringVar(&secret, "secret", "", "HMAC key")
	fs.StringVar(&secretEnv, "secret-env", "", "Environment variable holding the HMAC key")
	fs.StringVar(&forwardedFor, "forwarded-for", "", "X-Forwarded-For value to send")
	fs.DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	fs.BoolVar(&unsigned, "unsigned", false, "Omit X-Hub-Signature")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if data != "" && file != "" {
		fmt.Fprintln(os.Stderr, "Error: use only one of --data or --file")
		return 1
	}

	opts := sendOptions{
		URL:          url,
		Event:        event,
		Sign:         !unsigned,
		ForwardedFor: forwardedFor,
		Timeout:      timeout,
	}

	switch {
	case file != "":
		body, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read body: %v\n", err)
			return 1
		}
		opts.Body = body
	case data != "":
		opts.Body = []byte(data)
	default:
		opts.Body = defaultSendBody(event)
	}

	switch {
	case secretEnv != "":
		opts.Secret = []byte(os.Getenv(secretEnv))
	case secret != "":
		opts.Secret = []byte(secret)
	}

	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		if opts.URL == "" {
			opts.URL = targetURL(cfg.Server)
		}
		if opts.Secret == nil {
			resolved, err := cfg.Validation.ResolveSecret()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to resolve secret: %v\n", err)
				return 1
			}
			opts.Secret = []byte(resolved)
		}
	}
	if opts.URL == "" {
		opts.URL = targetURL(config.Defaults().Server)
	}

	res, err := sendDelivery(context.Background(), http.DefaultClient, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		return 1
	}

	fmt.Printf("delivery: %s\n", res.DeliveryID)
	fmt.Printf("status: %d\n", res.Status)
	fmt.Println(string(bytes.TrimSpace(res.Body)))

	if res.Status < 200 || res.Status > 299 {
		return 1
	}
	return 0
}

// sendDelivery POSTs one signed delivery and returns the server's answer.
func sendDelivery(ctx context.Context, client *http.Client, opts sendOptions) (*sendResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(opts.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	deliveryID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", sendUserAgent)
	req.Header.Set(webhook.HeaderEvent, opts.Event)
	req.Header.Set(webhook.HeaderDelivery, deliveryID)
	if opts.Sign {
		req.Header.Set(webhook.HeaderSignature, webhook.ComputeSignature(opts.Secret, opts.Body))
	}
	if opts.ForwardedFor != "" {
		req.Header.Set(webhook.HeaderForwarded, opts.ForwardedFor)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &sendResult{DeliveryID: deliveryID, Status: resp.StatusCode, Body: body}, nil
}

// defaultSendBody mimics the shape of GitHub's ping payload.
func defaultSendBody(event string) []byte {
	body, _ := json.Marshal(map[string]any{
		"zen":     "Design for failure.",
		"hook_id": 0,
		"event":   event,
	})
	return body
}

// targetURL builds a loopback URL for the configured listener.
func targetURL(s config.ServerConfig) string {
	host, port, err := net.SplitHostPort(s.Listen)
	if err != nil {
		return "http://" + s.Listen + s.Path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + s.Path
}
