package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"forge/internal/logging"
	"forge/internal/scheduler"
)

var (
	buildJobs   int
	buildDryRun bool
)

var buildCmd = &cobra.Command{
	Use:   "build [goals...]",
	Short: "build the named goals, or every goal if none are given",
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
			fmt.Println("no goals to build")
			return nil
		}

		jobs := buildJobs
		if jobs <= 0 {
			jobs = eng.cfg.Jobs
		}

		sink := scheduler.SinkFunc(func(ev scheduler.Event) {
			switch ev.Kind {
			case scheduler.EventScheduled:
				logging.Get(logging.CategoryCLI).Debug("scheduled %v", ev.OutputNames)
			case scheduler.EventProcessed:
				if ev.Err != nil {
					fmt.Printf("FAIL %v: %v\n", ev.OutputNames, ev.Err)
				} else {
					fmt.Printf("done %v\n", ev.OutputNames)
				}
			}
		})

		opts := scheduler.Options{Jobs: jobs, DryRun: buildDryRun, Sink: sink}
		if err := scheduler.Run(cmd.Context(), eng.sc.Store(), goals, opts); err != nil {
			return err
		}
		if buildDryRun {
			fmt.Println("dry run: no rules were executed")
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 0, "maximum concurrent rule invocations (default: config jobs or NumCPU)")
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "schedule but do not execute out-of-date rules")
}
