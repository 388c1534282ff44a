package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pairvm/internal/observ"
	"pairvm/internal/program"
	"pairvm/internal/vm"
)

// demoSource is the built-in scenario used when no script is given. It is
// the reference driver: build a pair of 44 and 22 and show the heap.
const demoSource = `push_int 22
push_int 44
push_pair
dump
stats
`

var runCmd = &cobra.Command{
	Use:   "run [flags] [script.pvm]",
	Short: "Execute a pairvm scenario script",
	Long:  `Parse a scenario script and execute it on a fresh VM. Without a script argument the built-in demo scenario runs`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExecution,
}

func init() {
	runCmd.Flags().Bool("trace", false, "enable heap and collector tracing on stderr")
	runCmd.Flags().String("record", "", "write an NDJSON execution log to this file")
	runCmd.Flags().String("replay", "", "validate the run against an execution log")
	runCmd.Flags().String("snapshot", "", "write a heap snapshot to this file after the run")
	runCmd.Flags().String("resume", "", "resume from a heap snapshot instead of an empty VM")
	runCmd.Flags().Bool("timings", false, "show timing information")
	runCmd.Flags().Int("capacity", 0, "heap capacity override")
	runCmd.Flags().Int("stack-max", 0, "evaluation stack limit override")
	runCmd.Flags().Int("gc-threshold", 0, "initial collection threshold override")
}

func runExecution(cmd *cobra.Command, args []string) error {
	configureColor(cmd)
	timer := observ.NewTimer()

	cfg, err := resolveVMConfig(cmd)
	if err != nil {
		return err
	}

	// Parse the script.
	parsePhase := timer.Begin("parse")
	var prog *program.Program
	if len(args) == 1 {
		prog, err = program.ParseFile(args[0])
	} else {
		prog, err = program.Parse(strings.NewReader(demoSource))
	}
	if err != nil {
		return err
	}
	timer.End(parsePhase, fmt.Sprintf("%d ops", len(prog.Ops)))

	v, err := buildVM(cmd, cfg)
	if err != nil {
		return err
	}

	trace, err := cmd.Flags().GetBool("trace")
	if err != nil {
		return fmt.Errorf("failed to get trace flag: %w", err)
	}
	if trace {
		v.Trace = vm.NewTracer(cmd.ErrOrStderr())
	}

	recordPath, err := cmd.Flags().GetString("record")
	if err != nil {
		return fmt.Errorf("failed to get record flag: %w", err)
	}
	if recordPath != "" {
		f, err := os.Create(recordPath)
		if err != nil {
			return fmt.Errorf("failed to create record file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		v.Recorder = vm.NewRecorder(f, v.Config())
	}

	replayPath, err := cmd.Flags().GetString("replay")
	if err != nil {
		return fmt.Errorf("failed to get replay flag: %w", err)
	}
	if replayPath != "" {
		data, err := os.ReadFile(replayPath)
		if err != nil {
			return fmt.Errorf("failed to read replay log: %w", err)
		}
		v.Replayer = vm.NewReplayerFromBytes(data)
		if err := v.Replayer.Validate(v.Config()); err != nil {
			return fmt.Errorf("invalid replay log: %w", err)
		}
	}

	// Execute.
	execPhase := timer.Begin("execute")
	vmErr := program.Exec(prog, v, cmd.OutOrStdout())
	stats := v.Stats()
	timer.End(execPhase, fmt.Sprintf("%d collections", stats.Collections))

	if vmErr == nil {
		v.Recorder.RecordExit(0)
		if replayErr := v.Replayer.FinalizeExit(0); replayErr != nil {
			vmErr = replayErr
		}
	}

	if snapErr := writeSnapshotIfRequested(cmd, v); snapErr != nil && vmErr == nil {
		return snapErr
	}

	timings, err := cmd.Flags().GetBool("timings")
	if err == nil && timings {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}

	if vmErr != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "%s\n", vmErr.Error())
		os.Exit(1)
	}
	return nil
}

// resolveVMConfig merges defaults, the nearest pairvm.toml, and flags, in
// increasing priority.
func resolveVMConfig(cmd *cobra.Command) (vm.Config, error) {
	var cfg vm.Config

	manifest, ok, err := loadProjectManifest(".")
	if err != nil {
		return vm.Config{}, err
	}
	if ok {
		cfg.Capacity = manifest.Config.VM.Capacity
		cfg.StackMax = manifest.Config.VM.StackMax
		cfg.GCThreshold = manifest.Config.VM.GCThreshold
	}

	for flag, dst := range map[string]*int{
		"capacity":     &cfg.Capacity,
		"stack-max":    &cfg.StackMax,
		"gc-threshold": &cfg.GCThreshold,
	} {
		n, err := cmd.Flags().GetInt(flag)
		if err != nil {
			return vm.Config{}, fmt.Errorf("failed to get %s flag: %w", flag, err)
		}
		if n > 0 {
			*dst = n
		}
	}
	return cfg, nil
}

// buildVM creates a fresh VM or resumes one from a snapshot.
func buildVM(cmd *cobra.Command, cfg vm.Config) (*vm.VM, error) {
	resumePath, err := cmd.Flags().GetString("resume")
	if err != nil {
		return nil, fmt.Errorf("failed to get resume flag: %w", err)
	}
	if resumePath == "" {
		return vm.New(cfg), nil
	}
	v, ok, err := vm.LoadSnapshot(resumePath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("snapshot %s does not exist", resumePath)
	}
	return v, nil
}

func writeSnapshotIfRequested(cmd *cobra.Command, v *vm.VM) error {
	snapshotPath, err := cmd.Flags().GetString("snapshot")
	if err != nil {
		return fmt.Errorf("failed to get snapshot flag: %w", err)
	}
	if snapshotPath == "" {
		return nil
	}
	if err := v.WriteSnapshot(snapshotPath); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
