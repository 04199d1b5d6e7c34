package main

import (
	"fmt"
	"path/filepath"
	"time"

	"htrweb/pkg/htr"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newTranscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <image>",
		Short: "Transcribe a single image",
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

			sp := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			sp.Suffix = " transcribing " + filepath.Base(args[0])
			sp.Start()
			outcome := htr.Transcribe(cmd.Context(), args[0], spec, inv)
			sp.Stop()

			if !outcome.OK() {
				return fmt.Errorf("transcription of %s failed: %s", outcome.ImageID, outcome.Err)
			}
			out.ok("transcribed %s", outcome.ImageID)
			return writeResult(outcome.Text)
		},
	}
}

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <image> [image...]",
		Short: "Transcribe several images and print the combined report",
		Args:  cobra.MinimumNArgs(1),
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

			bar := progressbar.NewOptions(len(args),
				progressbar.OptionSetDescription("transcribing"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionShowCount(),
			)
			report := htr.RunBatch(cmd.Context(), args, spec, inv, func(done, total int) {
				_ = bar.Set(done)
			})
			_ = bar.Finish()

			for _, id := range report.Order {
				if o := report.Outcomes[id]; !o.OK() {
					out.warn("failed %s: %s", id, o.Err)
				}
			}
			out.ok("transcribed %s images", report.Summary())
			if report.Succeeded == 0 {
				return fmt.Errorf("no image could be transcribed")
			}
			return writeResult(report.Combined())
		},
	}
}
