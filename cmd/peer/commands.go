package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/homeboy445/fileSharerApp/internal/config"
	"github.com/homeboy445/fileSharerApp/internal/p2p"
	"github.com/homeboy445/fileSharerApp/internal/session"
	"github.com/homeboy445/fileSharerApp/internal/stun"
	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/homeboy445/fileSharerApp/internal/ws"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
	"github.com/spf13/cobra"
)

type flags struct {
	relayOnly bool
	verbose   bool
	output    string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "peer",
		Short:         "Send and receive files through a coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&f.relayOnly, "relay-only", false, "never attempt a direct channel")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "write logs to stdout as well as the log file")

	send := &cobra.Command{
		Use:   "send <file>...",
		Short: "Share files and print the room id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), f, args)
		},
	}
	receive := &cobra.Command{
		Use:   "receive <room-id>",
		Short: "Join a room and download its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(cmd.Context(), f, args[0])
		},
	}
	receive.Flags().StringVarP(&f.output, "output", "o", "", "download directory (defaults to DOWNLOAD_DIR)")

	root.AddCommand(send, receive)
	return root
}

// peerEnv is everything a session needs from the environment.
type peerEnv struct {
	cfg    *config.Config
	client *ws.Client
	opts   session.Options
}

func setup(parent context.Context, f *flags) (*peerEnv, context.Context, context.CancelFunc, error) {
	cfg := config.New()
	logger.Init(cfg.LogFile(), f.verbose)
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	client := ws.NewClient(ctx, cfg.CoordinatorURL(), cfg.UserID())
	if err := client.Connect(); err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("cannot reach coordinator at %s: %w", cfg.CoordinatorURL(), err)
	}
	client.RunPumps()

	opts := session.Options{
		ChunkSize:      cfg.ChunkSize(),
		WindowSize:     cfg.AckWindow(),
		MaxSessionSize: cfg.MaxSessionSize(),
		AckTimeout:     cfg.AckTimeout(),
		ConnectTimeout: cfg.ChannelTimeout(),
		Threshold:      cfg.ChannelThreshold(),
		DownloadDir:    cfg.DownloadDir(),
		OnProgress:     newProgressPrinter().print,
	}
	if f.output != "" {
		opts.DownloadDir = f.output
	}
	if !f.relayOnly {
		prober := stun.NewClient(cfg.StunServer())
		opts.Prober = prober
		opts.NewNegotiator = func() (p2p.Negotiator, error) {
			return p2p.NewPionNegotiator(prober.ICEServerURLs(), nil)
		}
	}
	return &peerEnv{cfg: cfg, client: client, opts: opts}, ctx, cancel, nil
}

func runSend(parent context.Context, f *flags, paths []string) error {
	env, ctx, cancel, err := setup(parent, f)
	if err != nil {
		return err
	}
	defer cancel()
	defer env.client.Close()

	sources := make([]*transfer.Source, 0, len(paths))
	defer func() {
		for _, src := range sources {
			src.Close()
		}
	}()
	var total int64
	for _, p := range paths {
		src, err := transfer.OpenSource(p)
		if err != nil {
			return err
		}
		sources = append(sources, src)
		total += src.Size
	}

	sender := session.NewSender(env.client, env.opts)
	color.New(color.FgCyan, color.Bold).Printf("Room id: %s\n", sender.RoomID())
	fmt.Printf("Sharing %d file(s), %s. Waiting for a receiver...\n", len(sources), humanize.IBytes(uint64(total)))

	if err := sender.Run(ctx, sources); err != nil {
		return fmt.Errorf("transfer failed (%s): %w", transfer.ReasonCode(err), err)
	}
	color.Green("✔ All files delivered over %s", sender.Mode())
	return nil
}

func runReceive(parent context.Context, f *flags, roomID string) error {
	env, ctx, cancel, err := setup(parent, f)
	if err != nil {
		return err
	}
	defer cancel()
	defer env.client.Close()

	paths, err := session.NewReceiver(env.client, env.opts).Run(ctx, roomID)
	for _, p := range paths {
		color.Green("✔ Saved %s", p)
	}
	if err != nil {
		return fmt.Errorf("receive failed (%s): %w", transfer.ReasonCode(err), err)
	}
	return nil
}
