// Package cli wires the flag parsing, config resolution, and
// boundary/planning/execution pipeline into the mmv and mcp entry
// points.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/ngrash/mmv/internal/backup"
	"github.com/ngrash/mmv/internal/boundary"
	"github.com/ngrash/mmv/internal/config"
	"github.com/ngrash/mmv/internal/executor"
	"github.com/ngrash/mmv/internal/fsx"
	"github.com/ngrash/mmv/internal/mmverrors"
	"github.com/ngrash/mmv/internal/pathutil"
	"github.com/ngrash/mmv/internal/renameset"
	"github.com/ngrash/mmv/internal/stage"
)

// Options distinguishes the mmv (move) and mcp (copy) product variants.
type Options struct {
	// ProductName is "mmv" or "mcp" by default, overridable at build
	// time (see cmd/mmv, cmd/mcp).
	ProductName string

	// Copy runs the copy variant: phase 1 is skipped and sources survive.
	Copy bool
}

// Run is the process entry point. Returns the process exit code.
func Run(stdin io.Reader, out, errOut io.Writer, args []string, env map[string]string, opts Options) int {
	flags := flag.NewFlagSet(opts.ProductName, flag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = func() {}
	flags.SetOutput(&strings.Builder{})

	help := flags.BoolP("help", "h", false, "Show help")
	nul := flags.BoolP("nul", "0", false, "NUL-delimit records instead of newline")
	dryrun := flags.BoolP("dryrun", "d", false, "Preview only, mutate nothing")
	encode := flags.BoolP("encode", "e", false, "Wrap helper traffic with the escape codec")
	individual := flags.BoolP("individual", "i", false, "Run the helper once per source")
	noBackup := flags.BoolP("no-backup", "n", false, "Skip the backup snapshot (move variant only)")
	verbose := flags.BoolP("verbose", "v", false, "Trace filesystem actions")
	cwd := flags.StringP("cwd", "C", "", "Run as if started in `dir`")
	cfgPath := flags.StringP("config", "c", "", "Use specified config `file`")
	printCfg := flags.Bool("print-config", false, "Show the effective configuration and exit")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, opts.ProductName)

			return 0
		}

		printErr(errOut, opts.ProductName, err)
		printUsage(errOut, opts.ProductName)

		return 1
	}

	if *help {
		printUsage(out, opts.ProductName)

		return 0
	}

	workDir := *cwd
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			printErr(errOut, opts.ProductName, err)

			return 1
		}
	}

	// The copy variant defaults to backup-off (sources survive); the
	// move variant defaults to backup-on.
	defaults, err := config.Load(config.LoadInput{
		Initial: config.Defaults{NoBackup: opts.Copy},
		WorkDir: workDir,
		ConfigPath: func() string {
			if *cfgPath != "" {
				return *cfgPath
			}

			return ""
		}(),
		Product: opts.ProductName,
		Env:     env,
	})
	if err != nil {
		printErr(errOut, opts.ProductName, err)

		return 1
	}

	applyFlagOverrides(flags, &defaults, nul, dryrun, encode, individual, noBackup, verbose)

	if *printCfg {
		printConfig(out, workDir, opts, defaults)

		return 0
	}

	if opts.Copy && flags.Changed("no-backup") {
		printErr(errOut, opts.ProductName, mmverrors.ErrBackupDisabledInCopy)

		return 1
	}

	rest := flags.Args()
	if len(rest) == 0 {
		printErr(errOut, opts.ProductName, fmt.Errorf("%w: missing helper command", mmverrors.ErrBadArguments))
		printUsage(errOut, opts.ProductName)

		return 1
	}

	return runPipeline(stdin, out, errOut, rest[0], rest[1:], workDir, env, opts, defaults)
}

func applyFlagOverrides(flags *flag.FlagSet, d *config.Defaults, nul, dryrun, encode, individual, noBackup, verbose *bool) {
	if flags.Changed("nul") {
		d.NUL = *nul
	}

	if flags.Changed("dryrun") {
		d.DryRun = *dryrun
	}

	if flags.Changed("encode") {
		d.Encode = *encode
	}

	if flags.Changed("individual") {
		d.Individual = *individual
	}

	if flags.Changed("no-backup") {
		d.NoBackup = *noBackup
	}

	if flags.Changed("verbose") {
		d.Verbose = *verbose
	}
}

func runPipeline(stdin io.Reader, out, errOut io.Writer, helperCmd string, helperArgs []string, workDir string, env map[string]string, opts Options, defaults config.Defaults) int {
	delim := byte('\n')
	if defaults.NUL {
		delim = 0
	}

	srcs, err := boundary.ReadRecords(stdin, delim)
	if err != nil {
		printErr(errOut, opts.ProductName, err)

		return 1
	}

	runner := &boundary.Runner{
		Cmd:  helperCmd,
		Args: helperArgs,
		Opts: boundary.Options{NUL: defaults.NUL, Encode: defaults.Encode, Individual: defaults.Individual},
	}

	dsts, err := runner.Run(srcs)
	if err != nil {
		if errors.Is(err, mmverrors.ErrHelperNonZero) {
			// The helper is expected to have printed its own diagnostics.
			return 1
		}

		printErr(errOut, opts.ProductName, err)

		return 1
	}

	fsys := fsx.NewReal()

	rawPairs := make([]renameset.RawPair, len(srcs))

	for i, s := range srcs {
		canon, err := pathutil.Canonicalize(fsys, workDir, s)
		if err != nil {
			printErr(errOut, opts.ProductName, err)

			return 1
		}

		rawPairs[i] = renameset.RawPair{
			Src: canon,
			Dst: pathutil.Normalize(workDir, dsts[i]),
		}
	}

	var planner *stage.Planner

	if defaults.DryRun {
		planner = stage.NewVirtual(filepath.Join(os.TempDir(), "mmv-dryrun-scratch"))
	} else {
		planner, err = stage.New(fsys, env[scratchEnvVar(opts.ProductName)])
		if err != nil {
			printErr(errOut, opts.ProductName, err)

			return 1
		}
	}

	set, err := renameset.Build(rawPairs, planner.ScratchPath)
	if err != nil {
		if !defaults.DryRun {
			_ = fsys.RemoveAll(planner.Root())
		}

		printErr(errOut, opts.ProductName, err)

		return 1
	}

	if !defaults.DryRun {
		overlapCheck := make([]string, 0, len(set.Pairs)*2)
		for _, p := range set.Pairs {
			overlapCheck = append(overlapCheck, p.Src, p.Dst)
		}

		if err := planner.ValidateDisjoint(overlapCheck); err != nil {
			_ = fsys.RemoveAll(planner.Root())
			printErr(errOut, opts.ProductName, err)

			return 1
		}
	}

	var snap *backup.Snapshot

	if !defaults.DryRun && !defaults.NoBackup {
		srcsOnly := make([]string, len(set.Pairs))
		for i, p := range set.Pairs {
			srcsOnly[i] = p.Src
		}

		mgr := backup.New(fsys, env, opts.ProductName)

		snap, err = mgr.Create(srcsOnly)
		if err != nil {
			printErr(errOut, opts.ProductName, err)

			return 1
		}
	}

	ex := executor.New(fsys)

	runErr := ex.Run(set, executor.Options{Copy: opts.Copy, DryRun: defaults.DryRun, Verbose: defaults.Verbose, Out: errOut})
	if runErr != nil {
		// Scratch and backup are left in place as the recovery artifact.
		printErr(errOut, opts.ProductName, runErr)

		return 1
	}

	if !defaults.DryRun {
		_ = fsys.RemoveAll(planner.Root())

		if snap != nil {
			_ = snap.Remove()
		}
	}

	return 0
}

func scratchEnvVar(product string) string {
	return strings.ToUpper(product) + "_SCRATCH_DIR"
}

func printErr(errOut io.Writer, productName string, err error) {
	var buildErr *mmverrors.BuildError
	if errors.As(err, &buildErr) {
		for _, e := range buildErr.Errs {
			fmt.Fprintf(errOut, "%s: %s\n", productName, e)
		}

		return
	}

	fmt.Fprintf(errOut, "%s: %s\n", productName, err)
}

func printConfig(out io.Writer, workDir string, opts Options, d config.Defaults) {
	fmt.Fprintln(out, "effective_cwd="+workDir)
	fmt.Fprintln(out, "product="+opts.ProductName)
	fmt.Fprintln(out, "nul="+strconv.FormatBool(d.NUL))
	fmt.Fprintln(out, "dryrun="+strconv.FormatBool(d.DryRun))
	fmt.Fprintln(out, "encode="+strconv.FormatBool(d.Encode))
	fmt.Fprintln(out, "individual="+strconv.FormatBool(d.Individual))
	fmt.Fprintln(out, "no_backup="+strconv.FormatBool(d.NoBackup))
	fmt.Fprintln(out, "verbose="+strconv.FormatBool(d.Verbose))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "# sources")

	if d.Sources.Global == "" && d.Sources.Project == "" {
		fmt.Fprintln(out, "(defaults only)")

		return
	}

	if d.Sources.Global != "" {
		fmt.Fprintln(out, "global_config="+d.Sources.Global)
	}

	if d.Sources.Project != "" {
		fmt.Fprintln(out, "project_config="+d.Sources.Project)
	}
}

const globalOptionsHelp = `  -h, --help             Show help
  -0, --nul              NUL-delimit records instead of newline
  -d, --dryrun           Preview only, mutate nothing
  -e, --encode           Wrap helper traffic with the escape codec
  -i, --individual       Run the helper once per source
  -n, --no-backup        Skip the backup snapshot (move variant only)
  -v, --verbose          Trace filesystem actions
  -C, --cwd <dir>        Run as if started in <dir>
  -c, --config <file>    Use specified config file
  --print-config         Show the effective configuration and exit`

func printUsage(w io.Writer, productName string) {
	fmt.Fprintf(w, "Usage: %s [-0deinv] command [argument ...]\n", productName)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, globalOptionsHelp)
}
