package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/logging"
	"github.com/san-kum/robosim/internal/metrics"
	"github.com/san-kum/robosim/internal/sim"
	"github.com/san-kum/robosim/internal/storage"
	"github.com/san-kum/robosim/internal/urdf"
	"github.com/san-kum/robosim/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	logFormat  string
	kinematic  bool

	dt        float64
	ticks     int
	seed      int64
	terrain   string
	driver    string
	amplitude float64
	frequency float64
	noSave    bool

	runs          int
	stepsPerFrame int

	tuneParams []string

	plotJoint string
	plotWidth int
	rootAxis  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "robosim",
		Short:         "articulated robot simulation on voxel terrain",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".robosim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")

	simFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
		cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
		cmd.Flags().BoolVar(&kinematic, "kinematic", false, "skip the physics engine")
		cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
		cmd.Flags().IntVar(&ticks, "ticks", config.DefaultTicks, "ticks to simulate")
		cmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "terrain and driver seed")
		cmd.Flags().StringVar(&terrain, "terrain", "flat", "terrain (flat, hills, steps)")
		cmd.Flags().StringVar(&driver, "driver", "sine", "joint driver (sine, hold)")
		cmd.Flags().Float64Var(&amplitude, "amp", 0.6, "sine driver amplitude")
		cmd.Flags().Float64Var(&frequency, "freq", 0.5, "sine driver frequency (Hz)")
	}

	runCmd := &cobra.Command{
		Use:   "run [urdf]",
		Short: "run an episode and save it",
		Args:  cobra.ExactArgs(1),
		RunE:  runEpisode,
	}
	simFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	liveCmd := &cobra.Command{
		Use:   "live [urdf]",
		Short: "run with the live dashboard",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	simFlags(liveCmd)
	liveCmd.Flags().IntVar(&stepsPerFrame, "steps", 2, "ticks per rendered frame")

	benchCmd := &cobra.Command{
		Use:   "bench [urdf]",
		Short: "run independent episodes in parallel",
		Args:  cobra.ExactArgs(1),
		RunE:  benchEnsemble,
	}
	simFlags(benchCmd)
	benchCmd.Flags().IntVar(&runs, "runs", runtime.GOMAXPROCS(0), "number of episodes")

	tuneCmd := &cobra.Command{
		Use:   "tune [urdf]",
		Short: "grid search controller gains for the lowest tracking error",
		Args:  cobra.ExactArgs(1),
		RunE:  tuneGains,
	}
	simFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", []string{"kinematic.kp=20,60,120", "kinematic.kd=4,12,24"},
		"parameter and candidate values, name=v1,v2,...")

	inspectCmd := &cobra.Command{
		Use:   "inspect [urdf]",
		Short: "show links and joints of a description",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectRobot,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot joint trajectories of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotJoint, "joint", "", "plot only this joint")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&rootAxis, "root", -1, "also plot root axis (0=x, 1=y, 2=z)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run frames to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range config.ListPresets() {
				fmt.Fprintf(w, "%s\t%s\n", name, config.Presets[name].Description)
			}
			return w.Flush()
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a config file with default or preset values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = config.GetPreset(preset); cfg == nil {
					return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
				}
			}
			return config.Save(args[0], cfg)
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, tuneCmd, inspectCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers the config file or preset, then any flags set on the
// command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	case preset != "":
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	f := cmd.Flags()
	if f.Changed("dt") {
		cfg.Sim.Dt = dt
	}
	if f.Changed("ticks") {
		cfg.Sim.Ticks = ticks
	}
	if f.Changed("seed") {
		cfg.Sim.Seed = seed
	}
	if f.Changed("terrain") {
		cfg.Sim.Terrain = terrain
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, cfg.Validate()
}

// loadRobot returns the parsed description and the bytes it came from.
func loadRobot(path string) (*urdf.Robot, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	desc, err := urdf.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return desc, data, nil
}

func noEngine(engine.WorldParams) (engine.Engine, error) {
	return nil, engine.ErrEngineUnavailable
}

func sessionOptions(log *zap.Logger) []sim.Option {
	opts := []sim.Option{sim.WithLogger(log)}
	if kinematic {
		opts = append(opts, sim.WithDiscoverer(noEngine))
	}
	return opts
}

// driverFactory checks --driver once and returns a per-seed constructor.
func driverFactory() (sim.DriverFactory, error) {
	switch driver {
	case "sine":
		return func(seed int64) sim.Driver { return sim.NewSineDriver(amplitude, frequency, seed) }, nil
	case "hold":
		return func(int64) sim.Driver { return sim.Hold{} }, nil
	}
	return nil, fmt.Errorf("unknown driver: %s (available: sine, hold)", driver)
}

func newDriver(seed int64) (sim.Driver, error) {
	f, err := driverFactory()
	if err != nil {
		return nil, err
	}
	return f(seed), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runEpisode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	desc, data, err := loadRobot(args[0])
	if err != nil {
		return err
	}
	drv, err := newDriver(cfg.Sim.Seed)
	if err != nil {
		return err
	}

	s, err := sim.NewSession(desc, cfg, append(sessionOptions(log), sim.WithDriver(drv))...)
	if err != nil {
		return err
	}
	defer s.Close()

	ms := metrics.Standard()
	for _, m := range ms {
		s.AddObserver(m)
	}

	ctx, cancel := signalContext()
	defer cancel()
	res, err := s.Run(ctx, cfg.Sim.Ticks)
	if err != nil && ctx.Err() == nil {
		return err
	}

	vals := metrics.Values(ms...)
	printSummary(res, vals)

	if noSave {
		return nil
	}
	meta := storage.NewMetadata(res, cfg.Sim.Dt, cfg.Sim.Terrain, vals)
	meta.Fingerprint = storage.Fingerprint(data)
	id, err := storage.New(dataDir).Save(meta, res)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved run %s\n", id)
	return nil
}

func printSummary(res *sim.Result, vals map[string]float64) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	mode := "kinematic"
	if res.Physics {
		mode = "physics"
	}
	fmt.Fprintf(w, "robot\t%s\n", res.Robot)
	fmt.Fprintf(w, "engine\t%s (%s)\n", res.Engine, mode)
	fmt.Fprintf(w, "ticks\t%d\n", len(res.Frames))
	fmt.Fprintf(w, "wall\t%v\n", res.Wall.Round(time.Millisecond))
	if f, ok := res.Final(); ok {
		fmt.Fprintf(w, "root\t%.3f %.3f %.3f\n", f.Root[0], f.Root[1], f.Root[2])
		fmt.Fprintf(w, "colliders\t%d\n", f.Colliders)
	}
	fmt.Fprintf(w, "scans\t%d full, %d incremental\n", res.Obstacles.FullScans, res.Obstacles.IncrementalScans)
	for _, name := range sortedKeys(vals) {
		fmt.Fprintf(w, "%s\t%.4f\n", name, vals[name])
	}
	w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	desc, _, err := loadRobot(args[0])
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("driver") {
		driver = "hold"
	}
	drv, err := newDriver(cfg.Sim.Seed)
	if err != nil {
		return err
	}

	// Log lines would tear the alt screen.
	s, err := sim.NewSession(desc, cfg, append(sessionOptions(zap.NewNop()), sim.WithDriver(drv))...)
	if err != nil {
		return err
	}
	defer s.Close()

	p := tea.NewProgram(viz.NewDashboard(s, stepsPerFrame), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func benchEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Log.Level = "warn"
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	desc, _, err := loadRobot(args[0])
	if err != nil {
		return err
	}
	drivers, err := driverFactory()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	results, err := sim.RunEnsemble(ctx, desc, cfg, runs, drivers, sessionOptions(log)...)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("benchmarking %s: %d runs x %d ticks\n\n", desc.Name, runs, cfg.Sim.Ticks)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tENGINE\tTICKS\tWALL\tTICKS/SEC\tTRACKING\tDRIFT")
	total := 0
	for _, res := range results {
		vals := metrics.Replay(res.Frames, metrics.NewTrackingError(), metrics.NewRootDrift())
		total += len(res.Frames)
		fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%.0f\t%.4f\t%.4f\n",
			res.Seed, res.Engine, len(res.Frames), res.Wall.Round(time.Microsecond),
			float64(len(res.Frames))/res.Wall.Seconds(),
			vals["tracking_rms"], vals["root_drift"])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\ntotal %d ticks in %v (%.0f ticks/sec)\n", total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	return nil
}

var (
	inspectHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	inspectMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func inspectRobot(cmd *cobra.Command, args []string) error {
	desc, data, err := loadRobot(args[0])
	if err != nil {
		return err
	}

	fmt.Println(inspectHeader.Render(desc.Name) + inspectMuted.Render("  "+storage.Fingerprint(data)))
	fmt.Printf("root: %s\n\n", desc.Links[desc.Root].Name)

	fmt.Println(inspectHeader.Render("LINKS"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSHAPE\tMASS\tPARENT JOINT")
	for _, li := range desc.Order() {
		l := &desc.Links[li]
		shape := "-"
		if g, _, ok := l.Shape(); ok {
			shape = g.Kind.String()
		}
		mass := "-"
		if l.Inertial.HasMass() {
			mass = fmt.Sprintf("%.3f", l.Inertial.Mass)
		}
		parent := "-"
		if ji := desc.ParentJoint(li); ji >= 0 {
			parent = desc.Joints[ji].Name
		}
		if desc.IsWorld(li) {
			shape = "(world)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Name, shape, mass, parent)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println("\n" + inspectHeader.Render("JOINTS"))
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tPARENT\tCHILD\tLIMITS")
	for _, j := range desc.Joints {
		limits := "-"
		if j.Bounded() {
			limits = fmt.Sprintf("[%.3f, %.3f]", j.Limits.Lower, j.Limits.Upper)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.Name, j.Type, desc.Links[j.Parent].Name, desc.Links[j.Child].Name, limits)
	}
	return w.Flush()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
