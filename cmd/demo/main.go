package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/config"
	"github.com/comalice/fractalx/internal/app"
	"github.com/comalice/fractalx/internal/production"
	"github.com/comalice/fractalx/stream"
	"github.com/comalice/fractalx/tasks"
)

// printer prints every new value of the web interface.
type printer struct{}

func (printer) Attach(s *stream.Stream[any])   { s.Subscribe(printBoard) }
func (printer) Reattach(s *stream.Stream[any]) { s.Subscribe(printBoard) }

func printBoard(v any) {
	if view, ok := v.(app.BoardView); ok {
		for _, c := range view.Counters {
			fmt.Printf("  %-8s %d\n", c.Label, c.Value)
		}
	}
}

func main() {
	cfg := config.Default()

	persister, err := production.NewJSONPersister(os.TempDir())
	if err != nil {
		panic(err)
	}

	publishChan := make(chan fractalx.DispatchRecord, 100)
	publisher := production.NewChannelPublisher(publishChan)

	visualizer := &production.DefaultVisualizer{}

	log := &tasks.Log{}
	m := fractalx.Run(fractalx.ModuleDef{
		Root:  app.Board(cfg.Board),
		Tasks: app.Tasks(log, nil, 10),
		Interfaces: map[string]fractalx.HandlerFactory{
			app.WebInterface: func(fractalx.API) fractalx.InterfaceHandler { return printer{} },
			app.TUIInterface: func(fractalx.API) fractalx.InterfaceHandler { return printer{} },
		},
	},
		fractalx.WithModuleID("board-demo"),
		fractalx.WithPersister(persister),
		fractalx.WithPublisher(publisher),
		fractalx.WithVisualizer(visualizer),
	)
	defer m.Dispose()

	if err := m.Load(context.Background()); err == nil {
		fmt.Println("Restored the previous run from", os.TempDir())
	}
	fmt.Println("DOT:\n" + m.Visualize())

	timer := tasks.NewTimerSource(m, fractalx.DispatchData{ID: "Board$first", Input: "inc"}, time.Second)
	defer timer.Stop()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	cycles := 0
	for {
		select {
		case <-ticker.C:
			fmt.Printf("\n--- Cycle %d ---\n", cycles+1)
			if err := m.Dispatch(fractalx.DispatchData{ID: "Board$second", Input: "bump", Payload: cycles}); err != nil {
				fmt.Printf("Dispatch error: %v\n", err)
			}
			// Demo publish consumption
			for drained := false; !drained; {
				select {
				case rec := <-publishChan:
					fmt.Printf("Published: %s/%s\n", rec.Dispatch.ID, rec.Dispatch.Input)
				default:
					drained = true
				}
			}
			fmt.Println("Log:", log.Entries())
			cycles++
			if cycles >= 6 {
				fmt.Println("Demo complete after 6 cycles.")
				return
			}
		case <-sig:
			fmt.Println("\nShutting down gracefully...")
			return
		}
	}
}
