package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tbeaudouin05/stripe-storefront/api/logging"
)

type options struct {
	testsDir        string
	short           bool
	pkgParallel     int
	count           int
	integrationRun  string
	integrationPath string
	verbose         bool
	workDir         string
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "testrunner",
		Short:         "Run compiled test binaries: a unit pass, then an optional integration pass",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(cmd.ErrOrStderr(), "info", "text")
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.testsDir, "tests-dir", "/app/tests", "directory containing compiled test binaries")
	f.BoolVar(&opts.short, "short", false, "run tests with -test.short")
	f.IntVar(&opts.pkgParallel, "pkg-parallel", runtime.NumCPU(), "number of packages to run in parallel")
	f.IntVar(&opts.count, "count", 1, "pass -test.count to disable caching when set to 1")
	f.StringVar(&opts.integrationRun, "integration-run", "", "regex of integration test(s) to run with -test.run")
	f.StringVar(&opts.integrationPath, "integration-path", "", "relative package path like 'api/router' for integration run")
	f.BoolVarP(&opts.verbose, "verbose", "v", true, "add -test.v to test binaries")
	f.StringVar(&opts.workDir, "work-dir", "/app", "working directory for binaries without a matching package directory")
	return cmd
}

func run(ctx context.Context, opts options) error {
	bins, err := collectTestBinaries(opts.testsDir)
	if err != nil {
		return err
	}
	if len(bins) == 0 {
		return errors.New("no test binaries found")
	}

	var integrationBin string
	if opts.integrationRun != "" {
		if opts.integrationPath == "" {
			return errors.New("integration-path is required when integration-run is set")
		}
		integrationBin = filepath.Join(opts.testsDir, filepath.FromSlash(opts.integrationPath)+".test")
		if _, err := os.Stat(integrationBin); err != nil {
			return fmt.Errorf("integration binary not found at %s: %w", integrationBin, err)
		}
	}

	// Exclude the integration package from the unit pass to avoid double-running.
	unitBins := make([]string, 0, len(bins))
	for _, b := range bins {
		if integrationBin != "" && sameFile(b, integrationBin) {
			continue
		}
		unitBins = append(unitBins, b)
	}

	slog.Info("running unit tests", "binaries", len(unitBins))
	if err := runBinaries(ctx, unitBins, testArgs(opts.verbose, opts.short, opts.count, 0), opts.pkgParallel, opts.workDir); err != nil {
		return err
	}

	if integrationBin != "" {
		slog.Info("running integration tests", "package", opts.integrationPath, "run", opts.integrationRun)
		args := testArgs(opts.verbose, opts.short, opts.count, 1) // force -test.parallel=1 for integration
		args = append(args, "-test.run", opts.integrationRun)
		if err := runBinaries(ctx, []string{integrationBin}, args, 1, opts.workDir); err != nil {
			return err
		}
	}

	slog.Info("all tests passed")
	return nil
}

func collectTestBinaries(root string) ([]string, error) {
	var bins []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".test") {
			bins = append(bins, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(bins)
	return bins, nil
}

func testArgs(verbose, short bool, count, testParallel int) []string {
	args := []string{}
	if verbose {
		args = append(args, "-test.v")
	}
	if short {
		args = append(args, "-test.short")
	}
	if count > 0 {
		args = append(args, fmt.Sprintf("-test.count=%d", count))
	}
	if testParallel > 0 {
		args = append(args, fmt.Sprintf("-test.parallel=%d", testParallel))
	}
	return args
}

func runBinaries(ctx context.Context, bins []string, args []string, parallel int, fallbackDir string) error {
	if len(bins) == 0 {
		return nil
	}
	if parallel < 1 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, b := range bins {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			cmd := exec.CommandContext(ctx, b, args...)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			cmd.Env = os.Environ()
			cmd.Dir = binaryDir(b, fallbackDir)
			slog.Info("run", "binary", b, "args", strings.Join(args, " "))
			if err := cmd.Run(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s failed: %w", b, err)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// binaryDir runs a test binary from its package-like directory alongside it, if one exists.
func binaryDir(bin, fallback string) string {
	if wd := strings.TrimSuffix(bin, ".test"); wd != bin {
		if fi, err := os.Stat(wd); err == nil && fi.IsDir() {
			return wd
		}
	}
	return fallback
}

func sameFile(a, b string) bool {
	ap, _ := filepath.Abs(a)
	bp, _ := filepath.Abs(b)
	return ap == bp
}
