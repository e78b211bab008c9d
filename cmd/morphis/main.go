package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/sahabi/morphis/internal/crypto"
	"github.com/sahabi/morphis/internal/datastore"
	"github.com/sahabi/morphis/internal/directory"
	"github.com/sahabi/morphis/internal/node"
	"github.com/sahabi/morphis/internal/protocol"
	"github.com/sahabi/morphis/internal/transport"
)

const (
	defaultDataDir = "~/.morphis"
	keyFile        = "node_key.json"
)

var rootCmd = &cobra.Command{
	Use:   "morphis",
	Short: "Chord DHT node.",
	Long: `morphis is a node on a Chord-style distributed hash table.

Peers exchange a fixed catalog of binary messages to discover each other
and to store and fetch content-addressed blocks.`,
}

func dataDir(cmd *cobra.Command) (string, error) {
	raw, _ := cmd.Flags().GetString("data")
	return homedir.Expand(raw)
}

func loadKey(dir string) (*crypto.NodeKey, error) {
	path := filepath.Join(dir, keyFile)
	k, err := crypto.LoadNodeKey(path)
	if err != nil {
		return nil, fmt.Errorf("no node key at %s, run 'morphis keygen' first", path)
	}
	return k, nil
}

// ─── keygen ─────────────────────────────────────────────────────────────────

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new node key",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := dataDir(cmd)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, keyFile)
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("node key already exists at %s (use --force to replace it)", path)
		}

		k, err := crypto.GenerateNodeKey()
		if err != nil {
			return err
		}
		if err := k.Save(path); err != nil {
			return err
		}
		fmt.Printf("\n✓ Node key generated\n")
		fmt.Printf("  Node ID  : %s\n", hex.EncodeToString(k.NodeID()))
		fmt.Printf("  Saved to : %s\n\n", path)
		return nil
	},
}

// ─── daemon ──────────────────────────────────────────────────────────────────

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := dataDir(cmd)
		if err != nil {
			return err
		}
		listen, _ := cmd.Flags().GetString("listen")
		address, _ := cmd.Flags().GetString("address")
		bootstrapList, _ := cmd.Flags().GetStringSlice("bootstrap")
		debug, _ := cmd.Flags().GetBool("debug")

		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		k, err := loadKey(dir)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}

		peers, err := directory.New(dir)
		if err != nil {
			return fmt.Errorf("open directory: %w", err)
		}
		defer peers.Close()

		store, err := datastore.New(dir)
		if err != nil {
			return fmt.Errorf("open datastore: %w", err)
		}
		defer store.Close()

		tr := transport.NewTCP(listen, logger)
		n, err := node.New(node.Config{
			Key:       k,
			Transport: tr,
			Directory: peers,
			Store:     store,
			Logger:    logger,
			Listen:    listen,
			Address:   address,
			Bootstrap: bootstrapList,
		})
		if err != nil {
			return err
		}
		if err := n.Start(); err != nil {
			return err
		}
		defer n.Stop()

		go func() {
			for r := range n.Responses() {
				logger.Info("response", "peer", r.From, "msg", protocol.Describe(r.Message))
			}
		}()

		fmt.Printf("\n")
		fmt.Printf("  Node ID   : %s\n", hex.EncodeToString(k.NodeID()))
		fmt.Printf("  Listening : %s\n", tr.Addr())
		fmt.Printf("  Address   : %s\n", n.Self().Address)
		fmt.Printf("  Data      : %s\n", dir)
		fmt.Printf("  Peers     : %d known\n", peers.Len())
		if len(bootstrapList) > 0 {
			fmt.Printf("  Bootstrap : %s\n", strings.Join(bootstrapList, ", "))
		}
		fmt.Printf("\n")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		fmt.Println("\nShutting down.")
		return nil
	},
}

// ─── status ──────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node identity, known peers and stored blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := dataDir(cmd)
		if err != nil {
			return err
		}
		k, err := loadKey(dir)
		if err != nil {
			fmt.Println("No node key found. Run 'morphis keygen' to create one.")
			return nil
		}

		peers, err := directory.New(dir)
		if err != nil {
			return err
		}
		defer peers.Close()

		store, err := datastore.New(dir)
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Printf("Node ID : %s\n", hex.EncodeToString(k.NodeID()))
		fmt.Printf("Blocks  : %d stored\n", store.Len())
		all := peers.All()
		fmt.Printf("Peers   : %d known\n", len(all))
		for _, p := range all {
			fmt.Printf("  %-24s %s...\n", p.Address, hex.EncodeToString(p.NodeID)[:16])
		}
		return nil
	},
}

// ─── decode ──────────────────────────────────────────────────────────────────

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a hex-encoded message and print its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := hex.DecodeString(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("not hex: %w", err)
		}
		msg, err := protocol.Parse(buf)
		if err != nil {
			return err
		}
		fmt.Println(protocol.Describe(msg))

		relay, ok := msg.(*protocol.Relay)
		if !ok {
			return nil
		}
		return protocol.Walk(relay, func(depth int, path []int, m protocol.Message) error {
			fmt.Printf("%s%v %s\n", strings.Repeat("  ", depth), path, protocol.Describe(m))
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{keygenCmd, daemonCmd, statusCmd} {
		cmd.Flags().String("data", defaultDataDir, "Data directory")
	}

	keygenCmd.Flags().Bool("force", false, "Replace an existing node key")

	daemonCmd.Flags().String("listen", "0.0.0.0:4250", "TCP listen address for peer connections")
	daemonCmd.Flags().String("address", "", "Address advertised to peers (defaults to --listen)")
	daemonCmd.Flags().StringSlice("bootstrap", []string{}, "Bootstrap peer addresses (host:port)")
	daemonCmd.Flags().Bool("debug", false, "Log every message")

	rootCmd.AddCommand(keygenCmd, daemonCmd, statusCmd, decodeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
