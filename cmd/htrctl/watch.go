package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"htrweb/pkg/htr"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and transcribe images as they appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := htr.NewWorkspace()
			if err != nil {
				return err
			}
			defer ws.Remove()

			spec, err := buildSpec(ws)
			if err != nil {
				return err
			}
			inv := pickInvoker(ws)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watchDirectory(ctx, args[0], spec, inv)
		},
	}
}

func watchDirectory(ctx context.Context, dir string, spec *htr.PipelineSpec, inv htr.Invoker) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	out.ok("watching %s (debounced), Ctrl+C to stop", dir)

	// simple debounce map of pending files: a file counts as stable once no
	// new event touched it for 300ms
	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && isSupportedImage(ev.Name) {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			out.warn("watch error: %v", err)
		case <-ticker.C:
			now := time.Now()
			for path, seen := range pending {
				if now.Sub(seen) <= 300*time.Millisecond {
					continue
				}
				delete(pending, path)
				outcome := htr.Transcribe(ctx, path, spec, inv)
				if !outcome.OK() {
					out.warn("failed %s: %s", outcome.ImageID, outcome.Err)
					continue
				}
				dst := strings.TrimSuffix(path, filepath.Ext(path)) + "_transcription.txt"
				if err := writeTranscript(dst, outcome.Text); err != nil {
					out.warn("write %s: %v", dst, err)
					continue
				}
				out.ok("transcribed %s -> %s", outcome.ImageID, filepath.Base(dst))
			}
		}
	}
}

func writeTranscript(path, text string) error {
	return os.WriteFile(path, []byte(text), 0o644)
}

func isSupportedImage(name string) bool {
	// skip transcripts we write back into the watched directory
	if strings.HasSuffix(name, "_transcription.txt") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}
