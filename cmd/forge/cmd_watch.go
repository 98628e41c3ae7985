package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"forge/internal/logging"
	"forge/internal/scheduler"
	"forge/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [goals...]",
	Short: "rebuild the named goals whenever a source they depend on changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := setupEngine(cmd)
		if err != nil {
			return err
		}

		goals := args
		if len(goals) == 0 {
			for _, g := range eng.sc.Goals() {
				goals = append(goals, g.Name())
			}
		}
		if len(goals) == 0 {
			return fmt.Errorf("no goals to watch")
		}

		ws, err := workspaceDir()
		if err != nil {
			return err
		}

		w, err := watch.New(eng.sc.Store(), eng.cfg.Watch.Debounce)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Add(ws); err != nil {
			return fmt.Errorf("watch %s: %w", ws, err)
		}

		build := func() {
			sink := scheduler.SinkFunc(func(ev scheduler.Event) {
				if ev.Kind == scheduler.EventProcessed && ev.Err != nil {
					fmt.Printf("FAIL %v: %v\n", ev.OutputNames, ev.Err)
				}
			})
			opts := scheduler.Options{Jobs: eng.cfg.Jobs, Sink: sink}
			if err := scheduler.Run(cmd.Context(), eng.sc.Store(), goals, opts); err != nil {
				fmt.Println(err)
			} else {
				fmt.Println("build complete, watching for changes")
			}
		}

		w.OnChange = func(paths []string) {
			logging.WatchDebug("rebuild triggered by %v", paths)
			build()
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		build()
		w.Start(ctx)
		<-ctx.Done()
		w.Stop()
		return nil
	},
}
