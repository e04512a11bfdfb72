package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/hostprep"
	"github.com/loykin/hostprep/internal/gate"
)

type command struct{}

func (c *command) orchestrator(configPath string) (*hostprep.Orchestrator, *hostprep.Config, error) {
	fc, err := hostprep.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	o, err := hostprep.New(fc)
	if err != nil {
		return nil, nil, err
	}
	return o, fc, nil
}

// RunFamily executes one phase family from its persisted marker.
func (c *command) RunFamily(family string, f RunFlags) error {
	o, _, err := c.orchestrator(f.ConfigPath)
	if err != nil {
		return err
	}
	defer func() { _ = o.Close() }()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return o.Run(ctx, family)
}

// Status prints the current status record, once or continuously with --watch.
func (c *command) Status(f StatusFlags) error {
	o, _, err := c.orchestrator(f.ConfigPath)
	if err != nil {
		return err
	}
	defer func() { _ = o.Close() }()

	printRec := func() { printJSON(o.Status()) }
	printRec()
	if !f.Watch {
		return nil
	}
	interval := f.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			printRec()
		}
	}
}

// Wait blocks until the readiness marker disappears or the timeout elapses.
// Flag values override the config's gate block.
func (c *command) Wait(f WaitFlags) error {
	fc, err := hostprep.LoadConfig(f.ConfigPath)
	if err != nil {
		return err
	}
	timeout := fc.Gate.Timeout
	if f.Timeout > 0 {
		timeout = f.Timeout
	}
	interval := fc.Gate.PollInterval
	if f.Interval > 0 {
		interval = f.Interval
	}
	return gate.WaitFor("host readiness", gate.FileAbsent(fc.ReadinessMarker), timeout, interval)
}

// Reset clears the phase marker so the next run starts over. It is
// destructive, so it requires --force.
func (c *command) Reset(f ResetFlags) error {
	o, fc, err := c.orchestrator(f.ConfigPath)
	if err != nil {
		return err
	}
	defer func() { _ = o.Close() }()
	if !f.Force {
		return fmt.Errorf("reset discards the marker at %s; re-run with --force", fc.MarkerFile)
	}
	return o.Reset()
}

// Serve runs the read-only status HTTP server, plus the metrics endpoint
// when enabled, until interrupted.
func (c *command) Serve(f ServeFlags) error {
	o, fc, err := c.orchestrator(f.ConfigPath)
	if err != nil {
		return err
	}
	defer func() { _ = o.Close() }()

	listen := fc.Server.Listen
	if f.Listen != "" {
		listen = f.Listen
	}
	if listen == "" {
		listen = ":8080"
	}
	basePath := fc.Server.BasePath
	if f.BasePath != "" {
		basePath = f.BasePath
	}

	srv := o.NewHTTPServer(listen, basePath)
	fmt.Printf("status server listening on %s\n", listen)

	metricsListen := fc.Metrics.Listen
	if f.MetricsListen != "" {
		metricsListen = f.MetricsListen
	}
	if fc.Metrics.Enabled || f.MetricsListen != "" {
		if err := hostprep.RegisterMetricsDefault(); err != nil {
			return err
		}
		if metricsListen == "" {
			metricsListen = ":9090"
		}
		go func() { _ = hostprep.ServeMetrics(metricsListen) }()
		fmt.Printf("metrics listening on %s\n", metricsListen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(b))
}
