// Command ziphub runs the ZipHub archive sharing service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"ziphub/internal/server"
)

var version = "dev"

func main() {
	var (
		configPath   string
		addr         string
		dataDir      string
		uploadsDir   string
		allowCORS    bool
		pingInterval time.Duration
		showVersion  bool
	)

	pflag.StringVar(&configPath, "config", "", "path to YAML config file")
	pflag.StringVar(&addr, "addr", "", "listen address (overrides config)")
	pflag.StringVar(&dataDir, "data-dir", "", "metadata directory (overrides config)")
	pflag.StringVar(&uploadsDir, "uploads-dir", "", "blob directory (overrides config)")
	pflag.BoolVar(&allowCORS, "cors", false, "allow cross-origin requests")
	pflag.DurationVar(&pingInterval, "ping-interval", 0, "self-ping interval, 0 disables")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Println("ziphub", version)
		return
	}

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ziphub:", err)
		os.Exit(1)
	}
	cfg.Version = version

	// Flags beat both the file and the environment.
	if addr != "" {
		cfg.Addr = addr
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if uploadsDir != "" {
		cfg.UploadsDir = uploadsDir
	}
	if allowCORS {
		cfg.AllowCORS = true
	}
	if pingInterval > 0 {
		cfg.PingInterval = server.Duration(pingInterval)
	}

	srv, err := server.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ziphub:", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	botCtx, stopBot := context.WithCancel(context.Background())
	defer stopBot()
	if d := time.Duration(cfg.PingInterval); d > 0 {
		go server.StartPingBot(botCtx, pingURL(cfg.Addr), d)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		fmt.Fprintln(os.Stderr, "ziphub: shutting down on", sig)
		stopBot()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "ziphub: shutdown:", err)
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil {
			fmt.Fprintln(os.Stderr, "ziphub:", err)
			os.Exit(1)
		}
	}
}

// pingURL turns a listen address like ":3000" into a loopback URL.
func pingURL(addr string) string {
	host := addr
	if strings.HasPrefix(addr, ":") {
		host = "127.0.0.1" + addr
	}
	return "http://" + host + "/ping"
}
