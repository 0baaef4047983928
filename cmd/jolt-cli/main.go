// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"jolt/internal/config"
	"jolt/internal/corpus"
	"jolt/internal/engine"
	"jolt/internal/il"
	"jolt/internal/iltext"
	"jolt/internal/lift"
	"jolt/internal/runner"

	_ "github.com/tliron/commonlog/simple"
)

var (
	flagConfig    string
	flagCorpus    string
	flagWorkers   int
	flagMutations int
	flagSeed      int64
	flagVerbose   bool
)

func main() {
	root := &cobra.Command{
		Use:   "jolt",
		Short: "JIT on/off mutation fuzzer for JavaScript engines",
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the fuzzing loop against the in-process reference engine",
		RunE:  runFuzzer,
	}
	runCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "TOML configuration file")
	runCmd.Flags().StringVar(&flagCorpus, "corpus", "", "directory of .jil seed programs (required)")
	runCmd.Flags().IntVar(&flagWorkers, "workers", 0, "number of parallel fuzzing loops")
	runCmd.Flags().IntVar(&flagMutations, "mutations", 0, "consecutive mutations per seed")
	runCmd.Flags().Int64Var(&flagSeed, "seed", 0, "PRNG seed")
	_ = runCmd.MarkFlagRequired("corpus")

	liftCmd := &cobra.Command{
		Use:   "lift <file.jil>",
		Short: "Lift a textual IL program to JavaScript",
		Args:  cobra.ExactArgs(1),
		RunE:  runLift,
	}

	printCmd := &cobra.Command{
		Use:   "print <file.jil>",
		Short: "Parse a textual IL program and dump its instructions",
		Args:  cobra.ExactArgs(1),
		RunE:  runPrint,
	}

	root.AddCommand(runCmd, liftCmd, printCmd)
	if err := root.Execute(); err != nil {
		color.Red("error: %s", err)
		os.Exit(1)
	}
}

func loadOptions() (config.Options, error) {
	opts := config.Default()
	if flagConfig != "" {
		var err error
		opts, err = config.Load(flagConfig)
		if err != nil {
			return opts, err
		}
	}
	if flagWorkers > 0 {
		opts.Workers = flagWorkers
	}
	if flagMutations > 0 {
		opts.NumConsecutiveMutations = flagMutations
	}
	if flagSeed != 0 {
		opts.RandomSeed = flagSeed
	}
	return opts, nil
}

func runFuzzer(cmd *cobra.Command, args []string) error {
	verbosity := 0
	if flagVerbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	opts, err := loadOptions()
	if err != nil {
		return err
	}

	pool := corpus.New()
	loaded, err := pool.LoadDirectory(flagCorpus)
	if err != nil {
		return err
	}
	if loaded == 0 {
		return fmt.Errorf("no .jil programs in %s", flagCorpus)
	}
	fmt.Printf("loaded %d seed program(s) from %s\n", loaded, flagCorpus)

	callbacks := engine.Callbacks{
		OnMiscompilation: reportMiscompilation,
		OnCrash: func(p *il.Program, exec runner.Execution) {
			color.Yellow("crash (signal %d) on program %s", exec.Signal, p.ID())
		},
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newRunner := func() runner.Runner { return runner.NewGojaRunner() }
	return engine.RunWorkers(ctx, pool, newRunner, opts, callbacks)
}

func reportMiscompilation(m engine.Miscompilation) {
	color.Red("=== candidate miscompilation (origin %s, %s) ===", m.Origin, m.ExecTime)
	color.Red("seed stdout:\n%s", m.SeedStdout)
	color.Red("mutant stdout:\n%s", m.MutantStdout)
	fmt.Println("mutant IL:")
	fmt.Println(m.Mutant.String())
}

func runLift(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	p, err := iltext.Parse(string(source))
	if err != nil {
		return err
	}
	script, err := lift.Lift(p)
	if err != nil {
		return err
	}
	fmt.Print(script)
	return nil
}

func runPrint(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	p, err := iltext.Parse(string(source))
	if err != nil {
		return err
	}
	fmt.Print(p.String())
	return nil
}
