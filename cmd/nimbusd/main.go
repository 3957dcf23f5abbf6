// Command nimbusd is the hypervisor management daemon's entrypoint: it
// loads configuration, wires the stream-multiplexing engine's optional
// collaborators (audit log, metrics, status endpoint, JWT identity),
// and runs until signaled.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nimbusd/nimbusd/internal/auth"
	"github.com/nimbusd/nimbusd/internal/config"
	"github.com/nimbusd/nimbusd/internal/rpc/audit"
	"github.com/nimbusd/nimbusd/internal/rpc/metrics"
	"github.com/nimbusd/nimbusd/internal/rpc/status"
	"github.com/nimbusd/nimbusd/pkg/cos"
	"github.com/nimbusd/nimbusd/pkg/nlog"
)

var (
	build     string
	buildtime string

	configPath string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		cos.ExitLogf("nimbusd: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nimbusd",
		Short:   "hypervisor management daemon",
		Version: fmt.Sprintf("%s (build %s)", "0.1.0", buildtime),
		RunE:    run,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to nimbusd config file")
	return cmd
}

func run(*cobra.Command, []string) error {
	installSignalHandler()

	cfg, err := config.Load(configPath)
	if err != nil {
		cos.ExitLogf("%v", errors.Wrap(err, "failed to load configuration"))
	}
	if err := updateLogOptions(cfg); err != nil {
		cos.ExitLogf("%v", errors.Wrap(err, "failed to set up logger"))
	}
	if cfg.Verbose {
		nlog.Infof("nimbusd %s (build %s) starting", "0.1.0", buildtime)
	}

	cos.InitIDGen(uint64(time.Now().UnixNano()))
	go logFlush(flushInterval(cfg))

	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheus(reg)
	_ = rec

	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		auditLog, err = audit.Open(cfg.Audit.Path, cfg.Audit.Retain)
		if err != nil {
			cos.ExitLogf("failed to open audit log: %v", err)
		}
		defer auditLog.Close()
	}

	if cfg.Auth.Enabled {
		_ = auth.NewValidator(cfg.Auth.HMACKey, cfg.Auth.RequireExp)
	}

	if cfg.Status.Enabled {
		srv := status.New(emptySource{}, auditLog)
		go func() {
			if err := srv.ListenAndServe(cfg.Status.Listen); err != nil {
				nlog.Warningf("status server stopped: %v", err)
			}
		}()
	}

	nlog.Infof("nimbusd listening on %s", cfg.Listen)
	select {}
}

// emptySource is the status server's client table before any transport
// is wired in; the full daemon's connection registry implements
// status.Source directly once the framed transport exists.
type emptySource struct{}

func (emptySource) Snapshot() []status.ClientSnapshot { return nil }

func flushInterval(cfg *config.Config) time.Duration {
	if cfg.LogFlush <= 0 {
		return time.Minute
	}
	return cfg.LogFlush
}

func logFlush(interval time.Duration) {
	for {
		time.Sleep(interval)
		nlog.Flush()
	}
}

func updateLogOptions(cfg *config.Config) error {
	if cfg.LogDir == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log dir %q: %w", cfg.LogDir, err)
	}
	nlog.SetVerbose(cfg.Verbose)
	return nil
}

func installSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		nlog.Flush()
		os.Exit(0)
	}()
}
