package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"wat/pkg/pacer"
	"wat/pkg/profiler"
	"wat/pkg/sink"
	"wat/pkg/tracer"
)

const (
	samplingFreqHz  = 200
	windowTicks     = 2000 // 10s at 200Hz
	renderEveryTick = 20   // 10 renders/sec
)

var traceLogPath string

// RootCmd is `<prog> <pid> [-1]`: continuous sampling against pid, or a
// single round per thread if the second argument is exactly "-1".
var RootCmd = &cobra.Command{
	Use:   "wat <pid> [-1]",
	Short: "A sampling profiler for a running Linux process",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid pid %q: %w", args[0], err)
		}
		oneshot := len(args) == 2 && args[1] == "-1"

		logger, closeLogger, err := buildLogger(traceLogPath)
		if err != nil {
			return err
		}
		defer closeLogger()

		p, err := profiler.New(pid, profiler.Config{Logger: logger})
		if err != nil {
			return err
		}
		defer p.Close()

		if oneshot {
			p.EventLoop(sink.NewOneshotSink(os.Stdout), nil)
			return nil
		}

		s := sink.NewProfilingSink(os.Stdout, windowTicks, renderEveryTick)
		p.EventLoop(s, pacer.New(samplingFreqHz))
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// buildLogger picks the tracer narration sink: a file appended to across
// runs when --trace-log names one, otherwise stderr. The returned close
// func is always safe to defer, even for the stderr case.
func buildLogger(path string) (tracer.Logger, func(), error) {
	if path == "" {
		return tracer.NewStreamLogger(os.Stderr), func() {}, nil
	}
	fl, err := tracer.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace log %q: %w", path, err)
	}
	return fl, func() { fl.Close() }, nil
}

func init() {
	RootCmd.Flags().StringVar(&traceLogPath, "trace-log", "", "append tracer warnings to this file instead of stderr")
	// Stop flag parsing at the pid so a trailing "-1" reaches RunE as a
	// positional argument instead of being rejected as an unknown flag.
	RootCmd.Flags().SetInterspersed(false)
}

// Execute runs the root command, printing a one-line "Exception: ..."
// message and exiting 1 on any error, per the CLI's error-handling contract.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Exception: %v\n", err)
		os.Exit(1)
	}
}
