package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/config"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/observer"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/rpc"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/tui/app"
)

// Kinds a regular application may watch. Cell info and the two indicators
// are reserved for system callers and are added with -system.
var appKinds = []telephony.EventKind{
	telephony.KindCallState,
	telephony.KindSignalStrength,
	telephony.KindNetworkState,
	telephony.KindSimState,
	telephony.KindDataConnectionState,
	telephony.KindDataFlow,
	telephony.KindIccAccountChange,
	telephony.KindSimActiveState,
}

func main() {
	socket := flag.String("socket", config.Default().Server.Socket, "Path of the registry socket")
	slotCount := flag.Int("slots", config.Default().Registry.SlotCount, "Number of SIM slots to watch")
	system := flag.Bool("system", false, "Also watch system-only kinds")
	flag.Parse()

	if err := run(*socket, *slotCount, *system); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(socket string, slotCount int, system bool) error {
	kinds := appKinds
	if system {
		kinds = telephony.AllKinds
	}
	slots := telephony.SlotRange{Count: slotCount}.Slots()

	m := app.New(slots, kinds)
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	c, err := rpc.Dial(dialCtx, socket, rpc.ClientOptions{BundleName: "telwatch"})
	dialCancel()
	if err != nil {
		return err
	}
	defer c.Close()

	mux := observer.NewMultiplexer(c, observer.Options{NotifyNow: true})
	c.SetHandler(mux.Notify)
	loop := observer.NewLoop()
	defer loop.Close()

	go func() {
		send := func(n telephony.Notification) { p.Send(app.NotificationMsg(n)) }
		for _, s := range slots {
			for _, k := range kinds {
				if _, err := mux.AddListener(ctx, s, k, loop, send, false); err != nil {
					p.Send(app.DisconnectedMsg{Err: fmt.Errorf("watch %s on slot %s: %w", k, s, err)})
					return
				}
			}
		}
		p.Send(app.ConnectedMsg{Socket: socket})
	}()

	go func() {
		select {
		case <-c.Done():
			err := c.Err()
			if err == nil {
				err = telephony.ErrServiceUnavailable
			}
			p.Send(app.DisconnectedMsg{Err: err})
		case <-ctx.Done():
		}
	}()

	_, err = p.Run()
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	mux.Close(closeCtx)
	return err
}
