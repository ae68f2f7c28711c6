// Command disk runs one storage node: it registers with the coordinator,
// then serves block and control commands on its command port until
// interrupted, deregistering on the way out.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dreamware/strata/internal/cluster"
	"github.com/dreamware/strata/internal/disknode"
	"github.com/dreamware/strata/internal/storage"
)

func main() {
	app := &cli.App{
		Name:  "disk",
		Usage: "strata storage node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Usage:    "unique disk name",
				Required: true,
				EnvVars:  []string{"STRATA_DISK_NAME"},
			},
			&cli.StringFlag{
				Name:    "coordinator",
				Usage:   "coordinator command address",
				Value:   "127.0.0.1:7000",
				EnvVars: []string{"STRATA_COORDINATOR_ADDR"},
			},
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "address peers dial to reach this disk",
				Value:   "127.0.0.1",
				EnvVars: []string{"STRATA_DISK_ADDR"},
			},
			&cli.IntFlag{
				Name:     "cmd-port",
				Usage:    "command server port",
				Required: true,
				EnvVars:  []string{"STRATA_DISK_CMD_PORT"},
			},
			&cli.IntFlag{
				Name:    "mgmt-port",
				Usage:   "management port reported to the coordinator",
				EnvVars: []string{"STRATA_DISK_MGMT_PORT"},
			},
			&cli.StringFlag{
				Name:    "dir",
				Usage:   "block storage directory (empty for in-memory)",
				EnvVars: []string{"STRATA_DISK_DIR"},
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	name := c.String("name")

	var store storage.Store
	if dir := c.String("dir"); dir != "" {
		fs, err := storage.NewFileStore(dir)
		if err != nil {
			return err
		}
		store = fs
	} else {
		store = storage.NewMemoryStore()
	}

	node := disknode.NewNode(name, store)
	srv := disknode.NewServer(node)

	listen := fmt.Sprintf(":%d", c.Int("cmd-port"))
	errc := make(chan error, 1)
	go func() {
		log.Printf("disk[%s] listening on %s", name, listen)
		errc <- srv.ListenAndServe(listen)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	info := cluster.DiskInfo{Name: name, Addr: c.String("addr"), CmdPort: c.Int("cmd-port")}
	if err := disknode.Register(ctx, c.String("coordinator"), info, c.Int("mgmt-port")); err != nil {
		_ = srv.Close()
		return err
	}
	log.Printf("disk[%s] registered with %s", name, c.String("coordinator"))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case <-stop:
	}

	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	if err := disknode.Deregister(dctx, c.String("coordinator"), name); err != nil {
		log.Printf("disk[%s] %v", name, err)
	}
	_ = srv.Close()
	log.Printf("disk[%s] stopped", name)
	return nil
}
