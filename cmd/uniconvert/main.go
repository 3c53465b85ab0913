package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"uniconverter/internal/artifacts"
	"uniconverter/internal/containers"
	"uniconverter/internal/convert"
	"uniconverter/internal/document"
	"uniconverter/internal/failure"
	"uniconverter/internal/filesystem"
	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
	"uniconverter/internal/polyglot"
	"uniconverter/internal/raster"
	"uniconverter/internal/transcoder"

	"golang.org/x/term"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2

	// stdoutName selects standard output as the destination.
	stdoutName = "-"
)

func main() {
	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "formats":
		return showFormats(rest, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	case "convert", "merge", "backends":
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(stderr)
		return exitUsage
	}

	workDir, err := os.MkdirTemp("", "uniconvert-")
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to create work directory: %v\n", err)
		return exitError
	}
	defer os.RemoveAll(workDir)

	a, err := newApp(workDir, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer a.trans.Cleanup()

	switch command {
	case "convert":
		return a.convertCmd(ctx, rest)
	case "merge":
		return a.mergeCmd(ctx, rest)
	default:
		return a.backendsCmd()
	}
}

// sanitizeCommand returns a printable form of an untrusted command name,
// keeping only [a-zA-Z0-9_-].
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "uniconvert - offline file conversion")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  uniconvert convert <input> <target-ext> [output|-] [pages]")
	fmt.Fprintln(w, "  uniconvert merge <output> <input> <input>...")
	fmt.Fprintln(w, "  uniconvert formats [ext]")
	fmt.Fprintln(w, "  uniconvert backends")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Without an output, convert writes next to the input and refuses to")
	fmt.Fprintln(w, "overwrite. \"-\" writes to standard output unless it is a terminal.")
	fmt.Fprintln(w, "pages selects document pages for image targets, e.g. 1,3-5.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  LOG_LEVEL - debug, info, warn, error (default: warn)")
}

// app holds the conversion stack over a throwaway artifact store.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	store      *artifacts.Store
	dispatcher *convert.Dispatcher
	merger     *polyglot.Merger
	trans      *transcoder.Transcoder
}

func newApp(workDir string, stdout, stderr io.Writer) (*app, error) {
	catalog := formats.Default()
	store, err := artifacts.NewStore(workDir, catalog, nil)
	if err != nil {
		return nil, err
	}

	if err := raster.InitVips(); err != nil {
		logging.Warn("libvips unavailable: %v", err)
	}

	registry, trans := convert.NewDefaultRegistry(catalog, convert.BackendOptions{})
	dispatcher := convert.NewDispatcher(catalog, registry, store, convert.Options{})
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		store:      store,
		dispatcher: dispatcher,
		merger:     polyglot.NewMerger(dispatcher, store, containers.New(trans)),
		trans:      trans,
	}, nil
}

// importFile copies a file into the work store so conversions never touch
// the original.
func (a *app) importFile(ctx context.Context, path string) (artifacts.Artifact, error) {
	ext := formats.ExtOf(path)
	if ext == "" {
		return artifacts.Artifact{}, failure.New(failure.KindInvalidRequest, "%s has no extension", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return artifacts.Artifact{}, failure.Wrap(failure.KindInvalidRequest, err, "open input")
	}
	defer f.Close()
	return a.store.SaveFrom(ctx, f, ext, filepath.Base(path))
}

// export writes an artifact to dst, or to stdout when dst is "-".
func (a *app) export(ctx context.Context, art artifacts.Artifact, dst string) error {
	src, err := filesystem.OpenWithRetry(ctx, art.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	defer src.Close()

	if dst == stdoutName {
		if isTerminal(a.stdout) {
			return failure.New(failure.KindInvalidRequest, "refusing to write %s data to a terminal", art.Ext)
		}
		_, err := io.Copy(a.stdout, src)
		return err
	}

	return filesystem.Publish(dst, func(tmp string) error {
		out, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, src); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) convertCmd(ctx context.Context, args []string) int {
	if len(args) < 2 || len(args) > 4 {
		printUsage(a.stderr)
		return exitUsage
	}
	input, target := args[0], args[1]

	var pages []int
	if len(args) == 4 {
		var err error
		if pages, err = document.ParsePages(args[3]); err != nil {
			return a.fail(err)
		}
	}

	src, err := a.importFile(ctx, input)
	if err != nil {
		return a.fail(err)
	}

	start := time.Now()
	out, err := a.dispatcher.Convert(ctx, convert.Request{
		Source: src,
		Target: target,
		Params: convert.Params{Pages: pages},
	})
	if err != nil {
		return a.fail(err)
	}

	dst := ""
	if len(args) >= 3 {
		dst = args[2]
	}
	if dst == "" {
		dst = filepath.Join(filepath.Dir(input), out.Name)
		if _, err := os.Stat(dst); err == nil {
			return a.fail(failure.New(failure.KindInvalidRequest, "%s exists; pass an output path to overwrite", dst))
		}
	}

	if err := a.export(ctx, out, dst); err != nil {
		return a.fail(err)
	}
	if dst != stdoutName {
		fmt.Fprintf(a.stderr, "%s -> %s (%v)\n", input, dst, time.Since(start).Round(time.Millisecond))
	}
	return exitOK
}

func (a *app) mergeCmd(ctx context.Context, args []string) int {
	if len(args) < 2 {
		printUsage(a.stderr)
		return exitUsage
	}
	dst, paths := args[0], args[1:]

	inputs := make([]artifacts.Artifact, 0, len(paths))
	for _, p := range paths {
		in, err := a.importFile(ctx, p)
		if err != nil {
			return a.fail(err)
		}
		inputs = append(inputs, in)
	}

	out, err := a.merger.Merge(ctx, inputs)
	if err != nil {
		return a.fail(err)
	}
	if dst != stdoutName && formats.ExtOf(dst) != out.Ext {
		fmt.Fprintf(a.stderr, "Warning: merged file is a %s; %s has a different extension\n", out.Ext, dst)
	}
	if err := a.export(ctx, out, dst); err != nil {
		return a.fail(err)
	}
	return exitOK
}

func (a *app) backendsCmd() int {
	status := a.dispatcher.Registry().Status()
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		state := "missing"
		if status[name] {
			state = "available"
		}
		fmt.Fprintf(a.stdout, "%-10s %s\n", name, state)
	}
	return exitOK
}

func showFormats(args []string, stdout, stderr io.Writer) int {
	catalog := formats.Default()
	if len(args) == 0 {
		for _, c := range []formats.Category{
			formats.CategoryImage,
			formats.CategoryAudio,
			formats.CategoryVideo,
			formats.CategoryDocument,
			formats.CategoryArchive,
		} {
			fmt.Fprintf(stdout, "%-9s %s\n", c, strings.Join(catalog.Extensions(c), " "))
		}
		return exitOK
	}

	d, ok := catalog.Lookup(args[0])
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown format %q\n", formats.Normalize(args[0]))
		return exitError
	}
	var targets []string
	for _, p := range catalog.ConvertiblePairs() {
		if p.Src == d.Ext {
			targets = append(targets, p.Dst)
		}
	}
	fmt.Fprintf(stdout, "%s: %s (%s)\n", d.Ext, d.Category, d.MimeType)
	fmt.Fprintf(stdout, "targets: %s\n", strings.Join(targets, " "))
	return exitOK
}

func (a *app) fail(err error) int {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(a.stderr, "Error: interrupted")
	} else if kind := failure.KindOf(err); kind != "" {
		fmt.Fprintf(a.stderr, "Error [%s]: %v\n", kind, err)
	} else {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	return exitError
}
