// Command taskping pings any number of targets concurrently over one
// shared network stack.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/taskping/taskping/network/ping"
	"github.com/taskping/taskping/pkg/logging"
	"github.com/taskping/taskping/pkg/resolve"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "taskping [flags] target ...",
		Short: "Concurrent ICMP echo client sharing one network stack",
		Long: `taskping measures reachability and round-trip time of any number of
targets at once. Each target gets its own session over its own raw
socket; replies that the stack delivers to the wrong socket are
redistributed through a shared correlation table, so concurrent
sessions never corrupt each other's statistics.`,
		Version: Version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defaultConfig()
			if cfgPath != "" {
				loaded, err := loadConfig(cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			applyFlags(cmd, cfg)
			cfg.Targets = append(cfg.Targets, args...)
			if len(cfg.Targets) == 0 {
				return errors.New("no targets given")
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfgPath, "config", "f", "", "yaml configuration file")
	flags.IntP("count", "c", ping.DefaultCount, "echoes to send per target, 0 runs until interrupted")
	flags.DurationP("interval", "i", ping.DefaultInterval, "time between echoes")
	flags.IntP("size", "s", ping.DefaultSize, "echo payload size in bytes")
	flags.DurationP("timeout", "W", ping.DefaultTimeout, "time to wait for each reply")
	flags.String("nameserver", "", "resolve targets through this DNS server")
	flags.Duration("resolve-timeout", 0, "time limit per DNS exchange in nameserver mode")
	flags.String("metrics-listen", "", "serve Prometheus metrics on this address")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	return cmd
}

// applyFlags overrides file-loaded settings with flags the user actually
// set on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("count") {
		cfg.Count, _ = flags.GetInt("count")
	}
	if flags.Changed("interval") {
		d, _ := flags.GetDuration("interval")
		cfg.Interval = Duration(d)
	}
	if flags.Changed("size") {
		cfg.Size, _ = flags.GetInt("size")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Timeout = Duration(d)
	}
	if flags.Changed("nameserver") {
		cfg.Nameserver, _ = flags.GetString("nameserver")
	}
	if flags.Changed("resolve-timeout") {
		d, _ := flags.GetDuration("resolve-timeout")
		cfg.ResolveTimeout = Duration(d)
	}
	if flags.Changed("metrics-listen") {
		cfg.MetricsListen, _ = flags.GetString("metrics-listen")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
}

func run(cfg *Config) error {
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	var metrics *ping.Metrics
	if cfg.MetricsListen != "" {
		metrics = ping.NewMetrics(prometheus.DefaultRegisterer)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsListen, mux); err != nil {
				log.Error("metrics endpoint failed", "err", err)
			}
		}()
		log.Info("serving metrics", "addr", cfg.MetricsListen)
	}

	sessions := make([]*ping.Session, len(cfg.Targets))
	for i, target := range cfg.Targets {
		opts := []ping.Option{
			ping.CountOption(cfg.Count),
			ping.IntervalOption(time.Duration(cfg.Interval)),
			ping.SizeOption(cfg.Size),
			ping.TimeoutOption(time.Duration(cfg.Timeout)),
			ping.LoggerOption(log),
		}
		if cfg.Nameserver != "" {
			opts = append(opts, ping.NameserverOption(cfg.Nameserver))
		}
		if cfg.ResolveTimeout > 0 {
			opts = append(opts, ping.ResolveTimeoutOption(time.Duration(cfg.ResolveTimeout)))
		}
		s := ping.New(opts...)
		s.SetObserver(echoPrinter(s, target, metrics))
		sessions[i] = s
	}

	// One interrupt stops every session cooperatively; a second one kills
	// the process the hard way.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		for _, s := range sessions {
			s.Stop()
		}
		signal.Stop(sig)
	}()

	if local, err := resolve.LocalAddr(cfg.Targets[0]); err == nil {
		log.Debug("local source address", "addr", local)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	reports := make([]*ping.Report, len(sessions))
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *ping.Session, target string) {
			defer wg.Done()
			report, err := s.Run(target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("ping failed", "target", target, "err", err)
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			reports[i] = report
		}(i, s, cfg.Targets[i])
	}
	wg.Wait()

	for _, r := range reports {
		if r != nil {
			fmt.Println(r.String())
		}
	}
	return firstErr
}

// echoPrinter renders one line per echo outcome, the way ping does, and
// optionally feeds the metrics instruments.
func echoPrinter(s *ping.Session, target string, metrics *ping.Metrics) ping.Observer {
	printer := ping.ObserverFuncs{
		Receive: func(bytes int) {
			if rtt := s.LastRTT(); rtt > 0 {
				fmt.Printf("%d bytes from %s (%s): icmp_seq=%d time=%.3f ms\n",
					bytes, target, s.Target(), s.Sent(), rtt)
			} else {
				fmt.Printf("from %s (%s): icmp_seq=%d timeout\n",
					target, s.Target(), s.Sent())
			}
		},
	}
	if metrics == nil {
		return printer
	}
	return metrics.Observer(s, printer)
}
