// fakestaff simulates Croquetia producers against a running broker.
//
// Usage:
//
//	fakestaff start          stream a rotating dragon-staff gradient until Ctrl+C
//	fakestaff stop           stop pixel streaming
//	fakestaff 0.25           send a colour-picker hue
//	fakestaff pickhue        switch controllers to the ColorFromVar program
//	fakestaff discover       ask the broker to rediscover controllers
//	fakestaff startcroquet | halfway | endcroquet
//	fakestaff                send a random hue
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/pflag"

	"github.com/nerrad567/croquetia-core/internal/firestorm"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/config"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/logging"
	"github.com/nerrad567/croquetia-core/internal/message"
)

var version = "dev"

const (
	defaultSendInterval = 10 * time.Millisecond
	dialTimeout         = 5 * time.Second
	writeTimeout        = 2 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	brokerURL    string
	firestormURL string
	envFile      string
	pixels       int
	huePeriod    time.Duration
	sendInterval time.Duration
	command      string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("fakestaff", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.brokerURL, "broker", "", "broker WebSocket URL (default ws://localhost:$BROKER_PORT/)")
	fs.StringVar(&opts.firestormURL, "firestorm", "", "Firestorm URL for pixel-count discovery (default from FIRESTORM_HOSTNAME/FIRESTORM_PORT)")
	fs.StringVar(&opts.envFile, "env-file", ".env", "dotenv file")
	fs.IntVar(&opts.pixels, "pixels", 0, "strip length; 0 asks Firestorm")
	fs.DurationVar(&opts.huePeriod, "hue-period", defaultHuePeriod, "time for the gradient to rotate once")
	fs.DurationVar(&opts.sendInterval, "interval", defaultSendInterval, "time between dragon-staff frames")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("parsing flags: %w", err)
	}
	if fs.NArg() > 1 {
		return opts, fmt.Errorf("expected at most one command, got %v", fs.Args())
	}
	opts.command = fs.Arg(0)
	if opts.sendInterval <= 0 {
		return opts, fmt.Errorf("interval must be positive")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, logOut io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	log := logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, version, logOut)

	if err := config.LoadDotEnv(opts.envFile, false); err != nil {
		return err
	}
	if opts.brokerURL == "" || opts.firestormURL == "" {
		cfg, err := config.Load("")
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if opts.brokerURL == "" {
			opts.brokerURL = fmt.Sprintf("ws://localhost:%d%s", cfg.Broker.Port, cfg.Broker.WebSocket.Path)
		}
		if opts.firestormURL == "" {
			opts.firestormURL = cfg.FirestormURL()
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, opts.brokerURL, nil)
	if err != nil {
		return fmt.Errorf("connecting to broker %s: %w", opts.brokerURL, err)
	}
	defer conn.Close(websocket.StatusInternalError, "fakestaff exiting")

	// The broker never sends data; this keeps ping and close frames flowing.
	conn.CloseRead(context.Background())

	if opts.command == "start" {
		if err := stream(ctx, conn, opts, log); err != nil {
			return err
		}
	} else {
		msgs, err := oneShot(opts.command)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if err := send(conn, m); err != nil {
				return err
			}
			log.Info("sent", "source", m.Source())
		}
	}

	return conn.Close(websocket.StatusNormalClosure, "")
}

// stream sends an initial frame, selects the HsvFromOutside program, starts
// streaming, then sends a frame every interval until ctx ends. A final
// stop is always attempted.
func stream(ctx context.Context, conn *websocket.Conn, opts options, log *logging.Logger) error {
	pixels := opts.pixels
	if pixels <= 0 {
		pixels = discoverPixelCount(ctx, opts.firestormURL, log)
	}
	s := newStaff(pixels, opts.huePeriod, time.Now())
	log.Info("streaming dragon staff", "pixels", pixels, "interval", opts.sendInterval.String())

	for _, m := range []message.Message{
		s.frame(time.Now()),
		message.ProgramName{Name: programHsvFromOutside},
		message.Start{},
	} {
		if err := send(conn, m); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(opts.sendInterval)
	defer ticker.Stop()

	frames := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping", "frames", frames)
			return send(conn, message.Stop{})
		case now := <-ticker.C:
			if err := send(conn, s.frame(now)); err != nil {
				return err
			}
			frames++
		}
	}
}

// discoverPixelCount asks Firestorm for the first controller's strip
// length, falling back to the default.
func discoverPixelCount(ctx context.Context, url string, log *logging.Logger) int {
	client := firestorm.New(url, firestorm.WithTimeout(dialTimeout))
	controllers, err := client.Discover(ctx)
	if err != nil {
		log.Warn("discovery failed, using default pixel count", "error", err, "pixels", defaultPixelCount)
		return defaultPixelCount
	}
	if len(controllers) == 0 || controllers[0].PixelCount <= 0 {
		return defaultPixelCount
	}
	return controllers[0].PixelCount
}

// send writes one message. Writes use their own deadline so a cancelled
// run context still lets the final stop through.
func send(conn *websocket.Conn, m message.Message) error {
	payload, err := message.Encode(m)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("sending %s: %w", m.Source(), err)
	}
	return nil
}
