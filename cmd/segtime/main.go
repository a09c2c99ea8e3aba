// Command segtime inspects and rewrites the timing of fragmented MP4 segments.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

const usage = `usage: %s <command> [flags] <file>...

commands:
  dump     print the box tree with timing fields
  time     print the first decode time of each segment in seconds
  retime   redistribute sample durations over -duration ticks
  rebase   shift the base media decode time by -delta seconds

flags:
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintf(stderr, usage, args[0])
		return 2
	}
	cmd := args[1]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := DefaultConfig()
	configPath := bindFlags(fs, &flags)
	fs.Usage = func() {
		fmt.Fprintf(stderr, usage, args[0])
		fs.PrintDefaults()
	}
	if err := fs.Parse(args[2:]); err != nil {
		return 2
	}

	cfg, err := resolveConfig(fs, flags, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error loading config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(cmd); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	log := newLogger(stderr, cfg.LogLevel)
	r := &runner{cfg: cfg, log: log}

	switch cmd {
	case "dump":
		if err := dump(stdout, fs.Arg(0), cfg.Format, r); err != nil {
			log.Error("dump failed", "file", fs.Arg(0), "error", err)
			return 1
		}

	case "time":
		results, err := r.firstDecodeTimes(fs.Args())
		for _, res := range results {
			if res.Path == "" {
				continue
			}
			if !res.OK {
				fmt.Fprintf(stdout, "%s\tunavailable\n", res.Path)
				continue
			}
			fmt.Fprintf(stdout, "%s\t%.6f\n", res.Path, res.Seconds)
		}
		if err != nil {
			return 1
		}

	case "retime":
		if err := r.retime(fs.Args()); err != nil {
			return 1
		}

	case "rebase":
		if err := r.rebase(fs.Args()); err != nil {
			return 1
		}

	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		fs.Usage()
		return 2
	}
	return 0
}

func dump(w io.Writer, path string, format Format, r *runner) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	nodes, stop := buildTree(data, 0, len(data), nil)
	if stop < len(data) {
		r.log.Warn("box scan stopped before end of file", "file", path, "offset", stop, "size", len(data))
	}
	return printTree(w, nodes, format)
}
