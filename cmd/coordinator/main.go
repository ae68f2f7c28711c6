// Command coordinator runs the cluster directory service: disk and user
// registration, array configuration, the file directory, and the two-phase
// copy/read/failure/decommission protocols.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dreamware/strata/internal/coordinator"
)

func main() {
	app := &cli.App{
		Name:  "coordinator",
		Usage: "strata cluster coordinator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "address to listen on",
				Value:   ":7000",
				EnvVars: []string{"STRATA_COORDINATOR_LISTEN"},
			},
			&cli.DurationFlag{
				Name:    "probe-interval",
				Usage:   "disk reachability probe interval (0 disables)",
				Value:   5 * time.Second,
				EnvVars: []string{"STRATA_PROBE_INTERVAL"},
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	dir := coordinator.NewDirectory()
	srv := coordinator.NewServer(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if interval := c.Duration("probe-interval"); interval > 0 {
		monitor := coordinator.NewDiskMonitor(interval)
		go monitor.Start(ctx, dir.Disks)
		defer monitor.Stop()
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("coordinator listening on %s", c.String("listen"))
		errc <- srv.ListenAndServe(c.String("listen"))
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case <-stop:
	}
	_ = srv.Close()
	log.Println("coordinator stopped")
	return nil
}
