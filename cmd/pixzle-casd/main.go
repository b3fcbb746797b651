package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"xdao.co/pixzle/storage"
	"xdao.co/pixzle/storage/casconfig"
	"xdao.co/pixzle/storage/casregistry"
	"xdao.co/pixzle/storage/grpccas"

	_ "xdao.co/pixzle/storage/ipfs"
	_ "xdao.co/pixzle/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("pixzle-casd", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "CAS backend name")
	casConfig := fs.String("cas-config", "", "JSON CAS config to serve instead of a single --backend")
	maxMsg := fs.Int("max-msg-bytes", grpccas.DefaultMaxMsgBytes, "Max gRPC message size in bytes (send+recv)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	verbose := fs.BoolP("verbose", "v", false, "Log every request")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	var cas storage.CAS
	var closeFn func() error
	var err error
	if *casConfig != "" {
		var cc casconfig.Config
		if cc, err = casconfig.LoadFile(*casConfig); err == nil {
			cas, closeFn, err = cc.Open(casregistry.UsageDaemon, "")
		}
	} else {
		cas, closeFn, err = casregistry.Open(*backend, casregistry.UsageDaemon)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	logger.Info("listening", "addr", lis.Addr().String(), "backend", *backend, "cas_config", *casConfig)
	if err := serve(ctx, lis, cas, *maxMsg, logger); err != nil {
		logger.Error("serve failed", "error", err)
		return 1
	}
	return 0
}

// serve runs the CAS service on lis until ctx is done, then drains
// in-flight calls.
func serve(ctx context.Context, lis net.Listener, cas storage.CAS, maxMsg int, logger *slog.Logger) error {
	s := grpc.NewServer(grpc.MaxRecvMsgSize(maxMsg), grpc.MaxSendMsgSize(maxMsg))
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas, Logger: logger})

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(lis) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		s.GracefulStop()
		return nil
	case err := <-errc:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
