// Command client runs the interactive user shell: it registers a user with
// the coordinator and drives copy, read, failure-simulation, and
// decommission operations against the cluster.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/dreamware/strata/internal/client"
	"github.com/dreamware/strata/internal/cluster"
	"github.com/dreamware/strata/internal/stripe"
)

func main() {
	app := &cli.App{
		Name:  "client",
		Usage: "strata interactive user shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Usage:    "user name to register (owner of copied files)",
				Required: true,
				EnvVars:  []string{"STRATA_USER"},
			},
			&cli.StringFlag{
				Name:    "coordinator",
				Usage:   "coordinator command address",
				Value:   "127.0.0.1:7000",
				EnvVars: []string{"STRATA_COORDINATOR_ADDR"},
			},
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "address reported on registration",
				Value:   "127.0.0.1",
				EnvVars: []string{"STRATA_CLIENT_ADDR"},
			},
			&cli.IntFlag{
				Name:    "mgmt-port",
				Usage:   "management port reported on registration",
				Value:   7101,
				EnvVars: []string{"STRATA_CLIENT_MGMT_PORT"},
			},
			&cli.IntFlag{
				Name:    "cmd-port",
				Usage:   "command port reported on registration",
				Value:   7102,
				EnvVars: []string{"STRATA_CLIENT_CMD_PORT"},
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	drv := &client.Driver{
		User:      c.String("user"),
		CoordAddr: c.String("coordinator"),
		Addr:      c.String("addr"),
		MgmtPort:  c.Int("mgmt-port"),
		CmdPort:   c.Int("cmd-port"),
	}

	ctx := context.Background()
	if err := drv.Register(ctx); err != nil {
		return err
	}
	fmt.Printf("registered as %s\n", color.GreenString(drv.User))

	shell(drv)

	if err := drv.Deregister(ctx); err != nil {
		fmt.Println(color.RedString("deregister failed: %v", err))
	}
	return nil
}

const shellHelp = `commands:
  ls                                  list arrays and files
  configure <array> <n> <unit>        configure a new array
  copy <path>                         copy a local file into the cluster
  read <array> <file> [out]           read a file back
  readv <array> <file> [out]          read with parity verification
  fail <array>                        fail a random disk and rebuild it
  decommission <array>                delete an array and free its disks
  quit                                deregister and exit`

// shell is the interactive loop. Each command is one driver call with its
// own timeout.
func shell(drv *client.Driver) {
	prompt := fmt.Sprintf("%s%s%s ",
		color.BlueString("strata"), color.RedString("[@%s]", drv.User), color.GreenString(">"))
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	fmt.Println(shellHelp)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(prompt)
		if !sc.Scan() {
			return
		}
		args := strings.Fields(sc.Text())
		if len(args) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := dispatch(ctx, drv, rng, args)
		cancel()
		if err == errQuit {
			return
		}
		if err != nil {
			fmt.Println(color.RedString("error: %v", err))
		}
	}
}

var errQuit = fmt.Errorf("quit")

func dispatch(ctx context.Context, drv *client.Driver, rng *rand.Rand, args []string) error {
	switch args[0] {
	case "quit", "exit":
		return errQuit

	case "ls":
		listings, err := drv.List(ctx)
		if err != nil {
			return err
		}
		fmt.Println(cluster.FormatListing(listings))
		return nil

	case "configure":
		if len(args) != 4 {
			return fmt.Errorf("usage: configure <array> <n> <unit>")
		}
		n, err1 := strconv.Atoi(args[2])
		unit, err2 := strconv.Atoi(args[3])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("usage: configure <array> <n> <unit>")
		}
		if err := drv.ConfigureArray(ctx, args[1], n, unit); err != nil {
			return err
		}
		fmt.Printf("configured array %s\n", color.GreenString(args[1]))
		return nil

	case "copy":
		if len(args) != 2 {
			return fmt.Errorf("usage: copy <path>")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		name := filepath.Base(args[1])
		array, err := drv.Copy(ctx, name, data)
		if err != nil {
			return err
		}
		fmt.Printf("copied %s (%d B) to array %s\n", name, len(data), color.GreenString(array))
		return nil

	case "read", "readv":
		if len(args) != 3 && len(args) != 4 {
			return fmt.Errorf("usage: %s <array> <file> [out]", args[0])
		}
		opts := stripe.ReadOptions{Verify: args[0] == "readv"}
		data, err := drv.Read(ctx, args[1], args[2], opts)
		if err != nil {
			return err
		}
		out := "read_" + args[2]
		if len(args) == 4 {
			out = args[3]
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("read %d B into %s\n", len(data), out)
		return nil

	case "fail":
		if len(args) != 2 {
			return fmt.Errorf("usage: fail <array>")
		}
		disk, err := drv.FailAndRecover(ctx, args[1], rng)
		if err != nil {
			return err
		}
		fmt.Printf("failed and rebuilt disk %s\n", color.YellowString(disk))
		return nil

	case "decommission":
		if len(args) != 2 {
			return fmt.Errorf("usage: decommission <array>")
		}
		if err := drv.Decommission(ctx, args[1]); err != nil {
			return err
		}
		fmt.Printf("decommissioned array %s\n", args[1])
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}
