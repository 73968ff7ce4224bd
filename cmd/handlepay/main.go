// Command handlepay inspects the username escrow contract from a terminal.
//
//	handlepay [-config path] <command> [args]
//
// Commands:
//
//	profile <username>       profile registered under username
//	whois <address>          verified username of an account
//	payment <id>             a single payment
//	payments <username>      every payment addressed to username
//	check <username>         whether username can be registered
//	to-stroops <amount>      convert native units to stroops
//	from-stroops <stroops>   convert stroops to native units
//	disconnect <address>     forget a cached identity and stop auto-connect
//	connect <address>        clear the disconnect marker and resolve address
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitwit/handlepay"
	"github.com/vitwit/handlepay/config"
	"github.com/vitwit/handlepay/logger"
	"github.com/vitwit/handlepay/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] <command> [args]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		exitf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []handlepay.Option{handlepay.WithLogger(logger.NewZapLogger(cfg.LogLevel))}
	var reg *prometheus.Registry
	if cfg.EnableMetrics {
		reg = prometheus.NewRegistry()
		rec, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			exitf("register metrics: %v", err)
		}
		opts = append(opts, handlepay.WithMetrics(rec))
	}

	client, err := handlepay.New(ctx, cfg, opts...)
	if err != nil {
		exitf("connect: %v", err)
	}

	err = run(ctx, client, flag.Args(), os.Stdout)
	if reg != nil {
		dumpMetrics(reg, os.Stderr)
	}
	if cerr := client.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		exitf("%v", err)
	}
}

func dumpMetrics(reg *prometheus.Registry, w io.Writer) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(w, "gather metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				if lp.GetValue() != "" {
					labels += " " + lp.GetName() + "=" + lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s%s %v\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				fmt.Fprintf(w, "%s%s count=%d sum=%.3fs\n", mf.GetName(), labels,
					m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			}
		}
	}
}

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
