package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/san-kum/robosim/internal/storage"
	"github.com/san-kum/robosim/internal/viz"
	"github.com/spf13/cobra"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROBOT\tTIME\tTICKS\tDT\tTERRAIN\tENGINE\tSEED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4fs\t%s\t%s\t%d\n",
			run.ID[:8],
			run.Robot,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Ticks,
			run.Dt,
			run.Terrain,
			run.Engine,
			run.Seed,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	joints, frames, err := st.LoadFrames(meta.ID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("robot: %s\n", meta.Robot)
	fmt.Printf("samples: %d\n\n", len(frames))

	names := joints
	if plotJoint != "" {
		names = []string{plotJoint}
	}
	const maxPlots = 6
	if len(names) > maxPlots {
		names = names[:maxPlots]
	}

	for _, name := range names {
		graph, err := viz.PlotJoint(joints, frames, name, plotWidth, 10)
		if err != nil {
			return err
		}
		fmt.Println(graph)
		fmt.Println()
	}

	if rootAxis >= 0 {
		graph, err := viz.PlotRoot(frames, rootAxis, plotWidth, 10)
		if err != nil {
			return err
		}
		fmt.Println(graph)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	joints, frames, err := storage.New(dataDir).LoadFrames(args[0])
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no data to export")
	}
	return storage.WriteFrames(os.Stdout, joints, frames)
}
