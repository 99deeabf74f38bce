package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rbaliyan/tsdispatch"
	"github.com/rbaliyan/tsdispatch/adapter"
	"github.com/spf13/cobra"
	"syreclabs.com/go/faker"
)

type benchOptions struct {
	config      string
	producers   int
	events      int
	metrics     int
	metricsAddr string
	timeout     time.Duration
	verbose     bool
}

func newBenchCmd() *cobra.Command {
	o := benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Publish synthetic data points through the engine",
		Long: `Start an engine from the given configuration, publish data points
from concurrent producers and report throughput and per kind statistics.

Consumers named in tsd.dispatch.consumers are built as configured; a
counting consumer is always attached.`,
		Example: `  tsdispatch bench --events 1000000 --producers 4
  tsdispatch bench --config dispatch.yaml --metrics-addr :9102`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.config, "config", "c", "", "YAML configuration file")
	f.IntVarP(&o.producers, "producers", "p", 2, "concurrent producers")
	f.IntVarP(&o.events, "events", "n", 100000, "events per producer")
	f.IntVar(&o.metrics, "metrics", 100, "distinct metric names")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	f.DurationVar(&o.timeout, "timeout", 30*time.Second, "time allowed to drain on shutdown")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")
	return cmd
}

func runBench(cmd *cobra.Command, o benchOptions) error {
	if o.producers <= 0 || o.events <= 0 || o.metrics <= 0 {
		return errors.New("producers, events and metrics must be positive")
	}
	host, err := loadHost(o.config)
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var counted atomic.Int64
	counter := tsdispatch.NewConsumer("bench", tsdispatch.AllMask(), func(context.Context, *tsdispatch.Event) error {
		counted.Add(1)
		return nil
	})
	e, err := tsdispatch.New(host, tsdispatch.WithLogger(logger), tsdispatch.WithConsumers(counter))
	if err != nil {
		return err
	}

	if o.metricsAddr != "" {
		srv := serveMetrics(o.metricsAddr, e, logger)
		defer srv.Close()
	}

	names := make([]string, o.metrics)
	for i := range names {
		names[i] = fmt.Sprintf("bench.%s.%d", faker.Lorem().Word(), i)
	}
	hosts := []string{faker.Internet().DomainWord(), faker.Internet().DomainWord(), faker.Internet().DomainWord()}

	start := time.Now()
	var wg sync.WaitGroup
	var accepted atomic.Int64
	for p := 0; p < o.producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			pub := adapter.NewPublish(e)
			tags := map[string]string{"host": hosts[p%len(hosts)]}
			for i := 0; i < o.events; i++ {
				metric := names[i%len(names)]
				ts := start.Unix() + int64(i)
				if i%2 == 0 {
					pub.PublishDataPoint(metric, ts, int64(i), tags, "")
				} else {
					pub.PublishDoubleDataPoint(metric, ts, float64(i)/2, tags, "")
				}
			}
			for _, n := range pub.Received() {
				accepted.Add(n)
			}
		}(p)
	}
	wg.Wait()
	produced := time.Since(start)

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	elapsed := time.Since(start)

	total := int64(o.producers * o.events)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "engine %s, wait strategy %s, ring %d slots\n", e.ID(), e.WaitStrategy(), e.Config().BufferSize)
	fmt.Fprintf(out, "published %d events in %v (%.0f/s), drained in %v, %d rejected, %d consumed by bench\n\n",
		total, produced.Round(time.Millisecond), float64(total)/produced.Seconds(),
		elapsed.Round(time.Millisecond), total-accepted.Load(), counted.Load())
	return printStats(out, e.Stats())
}

func serveMetrics(addr string, e *tsdispatch.Engine, logger *slog.Logger) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e.Collector("tsdispatch"))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return srv
}

func printStats(out io.Writer, s tsdispatch.Snapshot) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "KIND\tRECEIVED\tCONSUMED\tFAILED\tP50\tP99\tMAX\t")
	for _, k := range s.Kinds {
		if k.Received == 0 && k.Consumed == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%v\t%v\t%v\t\n", k.Kind, k.Received, k.Consumed, k.Failed, k.P50, k.P99, k.Max)
	}
	fmt.Fprintf(w, "\ncursor %d, dispatched %d, %d of %d slots free\n", s.Cursor, s.Dispatched, s.Remaining, s.Capacity)
	return w.Flush()
}
