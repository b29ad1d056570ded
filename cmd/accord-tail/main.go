// accord-tail is a diagnostic client for the Accord event stream. It
// connects with a user token, hydrates the session, and prints events
// as they arrive. Useful for watching what a session actually receives
// and for smoke-testing gateway deployments.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/accordlabs/accord-go/pkg/cache"
	"github.com/accordlabs/accord-go/pkg/gateway"
	"github.com/accordlabs/accord-go/pkg/pref"
	"github.com/accordlabs/accord-go/pkg/rest"
	"github.com/accordlabs/accord-go/pkg/wire"
)

func main() {
	var (
		token       string
		gatewayURL  string
		baseURL     string
		device      string
		prefsPath   string
		metricsAddr string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "accord-tail",
		Short: "Tail the Accord event stream",
		Long: `Connect to the Accord gateway and print events as they arrive.

The token is read from --token or the ACCORD_TOKEN environment
variable. The session stays connected, reconnecting with backoff,
until interrupted.

Examples:
  accord-tail --token=$TOKEN
  accord-tail --gateway-url=wss://staging.accord.chat --verbose
  accord-tail --metrics-addr=:9102`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("ACCORD_TOKEN")
			}
			if token == "" {
				return fmt.Errorf("no token: pass --token or set ACCORD_TOKEN")
			}
			return runTail(tailOptions{
				token:       token,
				gatewayURL:  gatewayURL,
				baseURL:     baseURL,
				device:      device,
				prefsPath:   prefsPath,
				metricsAddr: metricsAddr,
				verbose:     verbose,
			})
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "Bearer token (default from ACCORD_TOKEN)")
	cmd.Flags().StringVar(&gatewayURL, "gateway-url", gateway.DefaultGatewayURL, "Gateway WebSocket endpoint")
	cmd.Flags().StringVar(&baseURL, "base-url", rest.DefaultBaseURL, "REST API endpoint")
	cmd.Flags().StringVar(&device, "device", string(wire.DeviceDesktop), "Device tag sent in identify (desktop|web)")
	cmd.Flags().StringVar(&prefsPath, "prefs", defaultPrefsPath(), "Preference file path")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log frame-level diagnostics")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

type tailOptions struct {
	token       string
	gatewayURL  string
	baseURL     string
	device      string
	prefsPath   string
	metricsAddr string
	verbose     bool
}

func runTail(opts tailOptions) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := pref.Open(opts.prefsPath)
	if err != nil {
		logger.Warn("preference store unavailable", "path", opts.prefsPath, "error", err)
	}

	client := gateway.New(gateway.Config{
		GatewayURL: opts.gatewayURL,
		Token:      opts.token,
		Device:     wire.Device(opts.device),
		REST:       rest.New(rest.Config{BaseURL: opts.baseURL, Token: opts.token, Logger: logger}),
		Prefs:      store,
		Logger:     logger,
	})

	if opts.metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("serving metrics", "addr", opts.metricsAddr)
			if err := http.ListenAndServe(opts.metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	printEvents(client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = client.Connect(dialCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	self := client.Cache().ClientUser()
	fmt.Printf("connected as %s (%d), %d guilds, %d DM channels\n",
		self.Username, self.ID,
		len(client.Cache().GuildList()), len(client.Cache().DMOrder()))

	<-ctx.Done()
	fmt.Println("shutting down")
	return nil
}

// printEvents registers listeners for the event kinds worth watching
// on a terminal. Cache folding has already happened when these run, so
// entity lookups reflect the event.
func printEvents(client *gateway.Client) {
	cc := client.Cache()

	client.On(wire.EventMessageCreate, func(ev wire.Event, _ func()) {
		e := ev.(*wire.MessageCreateEvent)
		name := authorName(cc, &e.Message)
		fmt.Printf("[%d] <%s> %s\n", e.Message.ChannelID, name, e.Message.Content)
	})
	client.On(wire.EventMessageDelete, func(ev wire.Event, _ func()) {
		e := ev.(*wire.MessageDeleteEvent)
		fmt.Printf("[%d] message %d deleted\n", e.ChannelID, e.MessageID)
	})
	client.On(wire.EventTypingStart, func(ev wire.Event, _ func()) {
		e := ev.(*wire.TypingStartEvent)
		fmt.Printf("[%d] user %d is typing\n", e.ChannelID, e.UserID)
	})
	client.On(wire.EventPresenceUpdate, func(ev wire.Event, _ func()) {
		e := ev.(*wire.PresenceUpdateEvent)
		fmt.Printf("presence: user %d is %s\n", e.Presence.UserID, e.Presence.Status)
	})
	client.On(wire.EventGuildCreate, func(ev wire.Event, _ func()) {
		e := ev.(*wire.GuildCreateEvent)
		fmt.Printf("joined guild %q (%d)\n", e.Guild.Name, e.Guild.ID)
	})
	client.On(wire.EventGuildRemove, func(ev wire.Event, _ func()) {
		e := ev.(*wire.GuildRemoveEvent)
		fmt.Printf("left guild %d (%s)\n", e.GuildID, e.Type)
	})
	client.On(wire.EventChannelAck, func(ev wire.Event, _ func()) {
		e := ev.(*wire.ChannelAckEvent)
		fmt.Printf("[%d] read up to %d\n", e.ChannelID, e.LastMessageID)
	})
}

func authorName(cc *cache.Cache, msg *wire.Message) string {
	if msg.Author != nil && msg.Author.Username != "" {
		return msg.Author.Username
	}
	if u, ok := cc.User(msg.AuthorID); ok {
		return u.Username
	}
	return fmt.Sprintf("user %d", msg.AuthorID)
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "accord-prefs.json"
	}
	return filepath.Join(dir, "accord", "prefs.json")
}
