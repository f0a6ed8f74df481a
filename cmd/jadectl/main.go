package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	jadeapi "github.com/aegis-sign/jadelink/internal/api"
	"github.com/aegis-sign/jadelink/internal/config"
	"github.com/aegis-sign/jadelink/internal/jade"
	"github.com/aegis-sign/jadelink/internal/relay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const usage = `usage: jadectl [-config file] <command> [args]

commands:
  ping                       query device status (0 ready, 1 locked, 2 uninitialised)
  version                    print firmware version info
  xpub [network] [path...]   print the extended public key at path (e.g. 84h 1h 0h)
  fingerprint [network]      print the master key fingerprint
  auth [network]             unlock the device, relaying PIN server requests
  serve                      expose the device over local HTTP with /metrics
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "jadectl:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("jadectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", os.Getenv("JADE_CONFIG"), "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if _, ok := commands[cmd]; !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	dev, err := jade.Connect(ctx, cfg.Device, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("connect device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Warn("device close failed", "err", err)
		}
	}()

	return commands[cmd](ctx, &env{cfg: cfg, dev: dev, logger: logger, out: stdout}, rest)
}

type env struct {
	cfg    config.Config
	dev    *jade.Device
	logger *slog.Logger
	out    io.Writer
}

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"ping":        cmdPing,
	"version":     cmdVersion,
	"xpub":        cmdXpub,
	"fingerprint": cmdFingerprint,
	"auth":        cmdAuth,
	"serve":       cmdServe,
}

func cmdPing(ctx context.Context, e *env, _ []string) error {
	status, err := e.dev.Ping(ctx)
	if err != nil {
		return err
	}
	return e.print(map[string]int{"status": status})
}

func cmdVersion(ctx context.Context, e *env, _ []string) error {
	info, err := e.dev.GetVersionInfo(ctx, false)
	if err != nil {
		return err
	}
	return e.print(info)
}

func cmdXpub(ctx context.Context, e *env, args []string) error {
	network, args := e.network(args)
	path, err := parsePath(args)
	if err != nil {
		return err
	}
	xpub, err := e.dev.GetXpub(ctx, network, path)
	if err != nil {
		return err
	}
	return e.print(map[string]string{"xpub": xpub})
}

func cmdFingerprint(ctx context.Context, e *env, args []string) error {
	network, _ := e.network(args)
	fp, err := e.dev.GetMasterFingerprint(ctx, network)
	if err != nil {
		return err
	}
	return e.print(map[string]string{"fingerprint": fp})
}

func cmdAuth(ctx context.Context, e *env, args []string) error {
	network, _ := e.network(args)
	exec := relay.New(e.cfg.Relay, relay.WithLogger(e.logger))
	ok, err := e.dev.AuthUser(ctx, network, exec, nil)
	if err != nil {
		return err
	}
	return e.print(map[string]bool{"authenticated": ok})
}

func cmdServe(ctx context.Context, e *env, _ []string) error {
	mux := http.NewServeMux()
	jadeapi.NewHTTPHandler(e.dev, e.cfg.Network).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              e.cfg.Bridge.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("HTTP bridge listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-e.dev.Channel.Errors():
		e.logger.Error("device channel failed", "err", err)
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http bridge: %w", err)
		}
	}
	e.logger.Info("shutting down HTTP bridge")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (e *env) network(args []string) (string, []string) {
	if len(args) > 0 && !isPathElement(args[0]) {
		return args[0], args[1:]
	}
	return e.cfg.Network, args
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const hardenedOffset = 0x80000000

// parsePath 解析 BIP32 路径元素，支持 "m/84'/1'/0'" 或分开的 "84h" "1h" "0h"。
func parsePath(args []string) ([]uint32, error) {
	var parts []string
	for _, arg := range args {
		for _, p := range strings.Split(arg, "/") {
			if p == "" || p == "m" {
				continue
			}
			parts = append(parts, p)
		}
	}
	path := make([]uint32, 0, len(parts))
	for _, p := range parts {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		p = strings.TrimRight(p, "'h")
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil || n >= hardenedOffset {
			return nil, fmt.Errorf("invalid path element %q", p)
		}
		if hardened {
			n += hardenedOffset
		}
		path = append(path, uint32(n))
	}
	return path, nil
}

func isPathElement(s string) bool {
	if s == "m" || strings.HasPrefix(s, "m/") {
		return true
	}
	_, err := parsePath([]string{s})
	return err == nil
}
