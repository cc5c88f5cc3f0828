// Command srt-echo runs a minimal SRT echo server: every chunk received on
// an accepted connection is written straight back to the same connection.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/srtgo/srtgo"
	"github.com/srtgo/srtgo/internal/chunkio"
	"github.com/srtgo/srtgo/internal/logging"
	"github.com/srtgo/srtgo/internal/srtnative"
)

func main() {
	var (
		address = flag.String("address", "0.0.0.0", "local interface to bind")
		port    = flag.Uint("port", 9000, "listener port")
		verbose = flag.Bool("v", false, "verbose output")
		useStub = flag.Bool("stub", false, "use the in-process stub binding instead of native SRT")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	binding, err := resolveBinding(*useStub)
	if err != nil {
		logger.Error("failed to initialize binding", "error", err)
		os.Exit(1)
	}

	cfg := srtgo.DefaultConfig()
	cfg.Address = *address
	cfg.Port = uint16(*port)
	cfg.Logger = logger

	srv := srtgo.NewServer(binding, cfg)
	srv.Events.On("connection", func(args ...any) {
		conn := args[0].(*srtgo.Connection)
		logger.Info("connection accepted", "fd", conn.Fd())
		conn.Events.On("data", func(args ...any) {
			buf := args[0].([]byte)
			echoed := chunkio.NewDetachedBuffer(append([]byte(nil), buf...))
			if _, err := conn.Write(echoed); err != nil {
				logger.Warn("echo write failed", "fd", conn.Fd(), "error", err)
			}
		})
	})
	srv.Events.On("disconnection", func(args ...any) {
		logger.Info("connection closed", "fd", args[0])
	})

	if err := srv.Open(); err != nil {
		logger.Error("failed to open server", "error", err)
		os.Exit(1)
	}
	defer srv.Dispose()

	fmt.Printf("srt-echo listening on %s:%d\n", *address, *port)
	fmt.Printf("Press Ctrl+C to stop...\n")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
}

func resolveBinding(useStub bool) (srtnative.Binding, error) {
	if useStub {
		return srtnative.NewStubBinding(), nil
	}
	return srtnative.NewCgoBinding()
}
