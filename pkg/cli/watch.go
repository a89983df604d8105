package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchFile calls onChange every time path is written, created or renamed
// into place, until ctx is done. The parent directory is watched because
// editors commonly replace files instead of writing them in place.
func watchFile(ctx context.Context, path string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// watchAndSolve solves once, then again after every change to the program
// file. The exit code is that of the last run.
func watchAndSolve(ctx context.Context, opts *options, stdout, stderr io.Writer) int {
	code := solveFile(ctx, opts, stdout, stderr)
	fmt.Fprintf(stderr, "Watching %s for changes (Ctrl-C to stop)\n", opts.file)

	err := watchFile(ctx, opts.file, func() {
		fmt.Fprintln(stderr, "---")
		code = solveFile(ctx, opts, stdout, stderr)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: watching %s: %s\n", opts.file, err)
		return ExitInput
	}
	return code
}
