// Command chorus is the relay client: it generates keypairs, publishes
// signed notes, and follows subscriptions, printing verified events as they
// arrive.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chorus-relay/chorus/internal/client"
	"github.com/chorus-relay/chorus/internal/crypto"
	"github.com/chorus-relay/chorus/internal/filter"
)

const defaultRelay = "ws://127.0.0.1:7447"

func usage() {
	fmt.Fprintf(os.Stderr, `usage: chorus <command> [flags]

commands:
  keygen     generate a keypair and write it to a directory
  publish    sign and publish a text note
  subscribe  open a subscription and print matching events
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(os.Args[2:])
	case "publish":
		err = runPublish(os.Args[2:], logger)
	case "subscribe":
		err = runSubscribe(os.Args[2:], logger)
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "chorus:", err)
		os.Exit(1)
	}
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	dir := fs.String("dir", ".chorus", "directory to write priv.hex and pub.hex into")
	fs.Parse(args)

	priv, err := crypto.GenerateKeypair()
	if err != nil {
		return err
	}
	if err := crypto.SaveKeypair(*dir, priv); err != nil {
		return err
	}
	fmt.Println(crypto.PubKeyHex(priv))
	return nil
}

// loadOrEphemeralKey loads the keypair from dir, or generates a throwaway
// one when dir is empty.
func loadOrEphemeralKey(c *client.Client, dir string) error {
	if dir == "" {
		_, err := c.GenerateKey()
		return err
	}
	priv, err := crypto.LoadKeypair(dir)
	if err != nil {
		return fmt.Errorf("load keypair from %s: %w", dir, err)
	}
	c.SetKey(priv)
	return nil
}

func runPublish(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	relay := fs.String("relay", defaultRelay, "relay websocket URL")
	keys := fs.String("keys", "", "keypair directory (default: ephemeral key)")
	message := fs.String("message", "", "note content to publish")
	fs.Parse(args)

	if *message == "" {
		return fmt.Errorf("publish: -message is required")
	}

	c := client.New(logger)
	if err := loadOrEphemeralKey(c, *keys); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Dial(ctx, *relay); err != nil {
		return err
	}
	defer c.Close()

	ev, err := c.PublishNote(*message, nil)
	if err != nil {
		return err
	}
	fmt.Println(ev.ID)
	return nil
}

func runSubscribe(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("subscribe", flag.ExitOnError)
	relay := fs.String("relay", defaultRelay, "relay websocket URL")
	subID := fs.String("sub", "chorus", "subscription id")
	rawFilter := fs.String("filter", `{"kinds":[1],"limit":10}`, "JSON filter")
	fs.Parse(args)

	var f filter.Filter
	if err := json.Unmarshal([]byte(*rawFilter), &f); err != nil {
		return fmt.Errorf("parse filter: %w", err)
	}

	c := client.New(logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Dial(ctx, *relay); err != nil {
		return err
	}
	defer c.Close()

	if err := c.Subscribe(*subID, &f); err != nil {
		return err
	}
	logger.Info("subscribed", "relay", *relay, "sub", *subID)

	for {
		d, err := c.Receive()
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(d.Event, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
}
