package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"forge/internal/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [goals...]",
	Short: "print the rule/artifact graph reachable from the named goals",
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

		visited := make(map[uint64]bool)
		for _, name := range goals {
			a := eng.sc.Store().Get(name, graph.Phony)
			if a == nil {
				fmt.Printf("%s: unknown goal\n", name)
				continue
			}
			fmt.Printf("goal %s\n", name)
			printArtifact(a, 1, visited)
		}
		return nil
	},
}

func printArtifact(a *graph.Artifact, depth int, visited map[uint64]bool) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}

	r := a.Rule()
	if r == nil {
		fmt.Printf("%s%s (source)\n", indent, a.Name())
		return
	}

	if visited[r.ID()] {
		fmt.Printf("%s%s (rule %d, already shown)\n", indent, a.Name(), r.ID())
		return
	}
	visited[r.ID()] = true

	status := "up to date"
	if a.Outdated() {
		status = "outdated"
	}
	desc := r.Description()
	if desc == "" {
		desc = fmt.Sprintf("rule %d", r.ID())
	}
	fmt.Printf("%s%s <- %s [%s]\n", indent, a.Name(), desc, status)

	for _, in := range r.Inputs() {
		printArtifact(in, depth+1, visited)
	}
}
