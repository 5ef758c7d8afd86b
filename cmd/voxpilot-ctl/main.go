package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"voxpilot/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "S", ipc.DefaultSocketPath, "Daemon control socket")
	timeout := cli.DurationP("timeout", "t", 15*time.Second, "How long to wait for the daemon")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: voxpilot-ctl [flags] activate|deactivate|pause|resume|status|say <text>")
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := ipc.Send(ctx, *socket, ipc.ControlMessage{
		Cmd:  args[0],
		Text: strings.Join(args[1:], " "),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "voxpilot-daemon not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Fprintln(os.Stderr, reply.Error)
		os.Exit(1)
	}
	fmt.Println(reply.State)
}
