package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tetsuo/segtime"
)

// runner processes segment files for one subcommand.
type runner struct {
	cfg Config
	log *slog.Logger
}

// forEach calls fn for every file, at most cfg.Jobs at a time. Every file is
// attempted; the first failure is returned.
func (r *runner) forEach(files []string, fn func(i int, path string) error) error {
	var g errgroup.Group
	g.SetLimit(r.cfg.Jobs)
	for i, path := range files {
		g.Go(func() error {
			if err := fn(i, path); err != nil {
				r.log.Error("segment failed", "file", path, "error", err)
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// timeResult is the outcome of the time subcommand for one file.
type timeResult struct {
	Path    string
	Seconds float64
	Timing  segtime.SegmentTiming
	OK      bool
}

func (r *runner) firstDecodeTimes(files []string) ([]timeResult, error) {
	results := make([]timeResult, len(files))
	err := r.forEach(files, func(i int, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		t, err := segtime.ReadSegmentTiming(data)
		if err != nil {
			return err
		}
		res := timeResult{Path: path, Timing: t}
		res.Seconds, err = t.Seconds()
		switch {
		case errors.Is(err, segtime.ErrTimingUnavailable):
			r.log.Debug("no timing", "file", path, "timescale", t.HasTimescale, "tfdt", t.HasDecodeTime)
		case err != nil:
			return err
		default:
			res.OK = true
		}
		results[i] = res
		return nil
	})
	return results, err
}

// retime rewrites the sample timing of each file to span cfg.Duration ticks.
func (r *runner) retime(files []string) error {
	return r.forEach(files, func(_ int, path string) error {
		return r.transform(path, "retimed", func(data []byte) ([]byte, error) {
			moof, err := segtime.RewriteTimestamps(data, r.cfg.Duration)
			if err != nil {
				return nil, err
			}
			if from, stale := staleSidx(data, moof); stale {
				r.log.Warn("moof size changed, sidx referenced_size not updated",
					"file", path, "from", from, "to", len(moof))
			}
			return segtime.SpliceFragment(data, moof)
		})
	})
}

// staleSidx reports whether media starts with a sidx and the replacement moof
// differs in size from the one it replaces, returning the old size.
func staleSidx(media, moof []byte) (int, bool) {
	sidx, ok := segtime.NextBox(media, 0)
	if !ok || sidx.Type != segtime.TypeSidx {
		return 0, false
	}
	old, ok := segtime.FindBox(media, sidx.End(), segtime.TypeMoof)
	if !ok {
		return 0, false
	}
	return old.Size, old.Size != len(moof)
}

// rebase shifts the decode time of each file by cfg.Delta seconds.
func (r *runner) rebase(files []string) error {
	return r.forEach(files, func(_ int, path string) error {
		return r.transform(path, "rebased", func(data []byte) ([]byte, error) {
			return segtime.RewriteFirstDecodeTime(data, r.cfg.Delta)
		})
	})
}

func (r *runner) transform(path, tag string, fn func([]byte) ([]byte, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := fn(data)
	if err != nil {
		return err
	}
	if r.cfg.Verify {
		rep, err := verifySegment(out)
		if err != nil {
			return fmt.Errorf("verifying output: %w", err)
		}
		r.log.Debug("verified", "file", path, "boxes", strings.Join(rep.Boxes, ","),
			"samples", rep.Samples, "duration", rep.Duration, "tfdt", rep.DecodeTime)
	}
	dst := outputPath(r.cfg.OutDir, path, tag)
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return err
	}
	r.log.Info("wrote segment", "file", path, "out", dst, "bytes", len(out))
	return nil
}

// outputPath places the result in dir under the input's name, or next to
// the input with tag inserted before the extension when dir is empty.
func outputPath(dir, path, tag string) string {
	if dir != "" {
		return filepath.Join(dir, filepath.Base(path))
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + tag + ext
}
