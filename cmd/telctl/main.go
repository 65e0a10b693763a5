package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/config"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/observer"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/rpc"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

const usage = `usage: telctl [-socket path] <command> [flags]

commands:
  update -slot N -kind KIND JSON   publish a state value
  dump                             print registrations and cached state
  watch [-slot N] [-kinds K,K] [-once] [-now]
                                   print notifications as JSON lines
`

func main() {
	socket := flag.String("socket", config.Default().Server.Socket, "Path of the registry socket")
	timeout := flag.Duration("timeout", 5*time.Second, "Timeout for a single call")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "update":
		err = runUpdate(ctx, *socket, *timeout, args)
	case "dump":
		err = runDump(ctx, *socket, *timeout, os.Stdout)
	case "watch":
		err = runWatch(ctx, *socket, args, os.Stdout)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "telctl: %v\n", err)
		os.Exit(1)
	}
}

func dial(ctx context.Context, socket string, timeout time.Duration) (*rpc.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return rpc.Dial(dialCtx, socket, rpc.ClientOptions{BundleName: "telctl"})
}

func runUpdate(ctx context.Context, socket string, timeout time.Duration, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	slot := fs.Int("slot", 0, "Slot to publish on")
	kindName := fs.String("kind", "", "Kind of the value, e.g. sim_state")
	fs.Parse(args)

	kind, err := telephony.ParseKind(*kindName)
	if err != nil {
		return err
	}
	raw := "{}"
	if fs.NArg() > 0 {
		raw = fs.Arg(0)
	}
	v, err := telephony.DecodeValue(kind, json.RawMessage(raw))
	if err != nil {
		return err
	}

	c, err := dial(ctx, socket, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Update(callCtx, telephony.SlotID(*slot), v)
}

func runDump(ctx context.Context, socket string, timeout time.Duration, w io.Writer) error {
	c, err := dial(ctx, socket, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	d, err := c.Dump(callCtx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

type watchLine struct {
	Slot  telephony.SlotID    `json:"slot"`
	Kind  telephony.EventKind `json:"kind"`
	Value telephony.Value     `json:"value"`
}

func parseKinds(list string) ([]telephony.EventKind, error) {
	if list == "" || list == "all" {
		return telephony.AllKinds, nil
	}
	var kinds []telephony.EventKind
	for _, name := range strings.Split(list, ",") {
		k, err := telephony.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func runWatch(ctx context.Context, socket string, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	slot := fs.Int("slot", 0, "Slot to watch, -1 for every slot (call_state only)")
	kindList := fs.String("kinds", "all", "Comma separated kinds to watch")
	once := fs.Bool("once", false, "Exit after the first notification of each kind")
	now := fs.Bool("now", true, "Ask for the current value on registration")
	fs.Parse(args)

	kinds, err := parseKinds(*kindList)
	if err != nil {
		return err
	}

	c, err := rpc.Dial(ctx, socket, rpc.ClientOptions{BundleName: "telctl"})
	if err != nil {
		return err
	}
	defer c.Close()

	mux := observer.NewMultiplexer(c, observer.Options{NotifyNow: *now})
	c.SetHandler(mux.Notify)
	loop := observer.NewLoop()
	defer loop.Close()

	enc := json.NewEncoder(w)
	var listeners []*observer.Listener
	for _, k := range kinds {
		l, err := mux.AddListener(ctx, telephony.SlotID(*slot), k, loop, func(n telephony.Notification) {
			enc.Encode(watchLine{Slot: n.Slot, Kind: n.Kind, Value: n.Value})
		}, *once)
		if err != nil {
			mux.Close(context.Background())
			return fmt.Errorf("watch %s: %w", k, err)
		}
		listeners = append(listeners, l)
	}

	allDone := make(chan struct{})
	go func() {
		for _, l := range listeners {
			<-l.Done()
		}
		close(allDone)
	}()

	select {
	case <-ctx.Done():
	case <-allDone:
	case <-c.Done():
		if err := c.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return mux.Close(closeCtx)
}
