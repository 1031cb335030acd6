// Command mqttbuf-echo is a minimal TCP server that accepts MQTT-shaped
// connections and reassembles each full frame through Core and
// internal/eventloop over real sockets. Each reassembled frame is
// logged at debug level; nothing is written back to the sender.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/mqttbuf/mqttbuf"
	"github.com/mqttbuf/mqttbuf/internal/config"
	"github.com/mqttbuf/mqttbuf/internal/eventloop"
	"github.com/mqttbuf/mqttbuf/internal/logging"
)

func main() {
	var (
		listenAddr = flag.String("listen", "127.0.0.1:1883", "address to listen on")
		verbose    = flag.Bool("v", false, "verbose output")
		maxSeg     = flag.Int("max-segments", config.DefaultConfig().MaxScatterSegments, "scatter/gather segment count recorded in the core config (must be >= 4)")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := config.DefaultConfig()
	cfg.MaxScatterSegments = *maxSeg

	core, err := mqttbuf.NewCore(
		mqttbuf.WithConfig(cfg),
		mqttbuf.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build core", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Error("failed to listen", "addr", *listenAddr, "error", err)
		os.Exit(1)
	}
	defer ln.Close()

	loop, err := eventloop.New(core, func(fd int, frame []byte) {
		logger.Debug("frame reassembled", "socket", fd, "bytes", len(frame))
	})
	if err != nil {
		logger.Error("failed to create event loop", "error", err)
		os.Exit(1)
	}
	loop.WithLogger(logger)
	defer loop.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go acceptLoop(ctx, ln, loop, logger)

	logger.Info("mqttbuf-echo listening", "addr", ln.Addr().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(ctx) }()

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case err := <-runDone:
		if err != nil && err != context.Canceled {
			logger.Error("event loop exited", "error", err)
		}
	}

	cancel()
	_ = ln.Close()
	runtime.Gosched()
}

// acceptLoop registers a non-blocking duplicate of each accepted
// connection's fd, obtained via SyscallConn, with the event loop, so the
// event loop can read/write it directly with golang.org/x/sys/unix,
// bypassing net.Conn's own blocking-mode API. The accepted net.Conn
// itself stays open.
func acceptLoop(ctx context.Context, ln net.Listener, loop *eventloop.Loop, logger *logging.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Warn("accept failed", "error", err)
				return
			}
		}

		tcpConn, ok := conn.(*net.TCPConn)
		if !ok {
			conn.Close()
			continue
		}

		fd, err := extractFd(tcpConn)
		if err != nil {
			logger.Warn("failed to extract fd", "error", err)
			conn.Close()
			continue
		}

		if err := loop.Register(fd); err != nil {
			logger.Warn("failed to register connection", "socket", fd, "error", err)
			conn.Close()
			continue
		}
		logger.Info("connection registered", "socket", fd, "remote", conn.RemoteAddr().String())
	}
}

// extractFd duplicates the connection's underlying file descriptor and
// puts it in non-blocking mode, the precondition Loop.Register
// documents.
func extractFd(conn *net.TCPConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}

	var fd int
	var dupErr error
	ctrlErr := raw.Control(func(sysfd uintptr) {
		fd, dupErr = syscall.Dup(int(sysfd))
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	if dupErr != nil {
		return 0, dupErr
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return 0, fmt.Errorf("mqttbuf-echo: set nonblock: %w", err)
	}
	return fd, nil
}
