package cmd

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/flashkit/flashkit/internal/fastboot"
	"github.com/flashkit/flashkit/internal/output"
	"github.com/flashkit/flashkit/internal/tui"
)

var flashInteractive bool

func addFlashCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "flash <partition> <image>",
		Short: "Download an image and flash it to a partition",
		Args:  cobra.ExactArgs(2),
		RunE:  runFlash,
	}
	cmd.Flags().BoolVar(&flashInteractive, "interactive", false, "Show a live progress bar instead of plain output")
	parent.AddCommand(cmd)
}

func runFlash(cmd *cobra.Command, args []string) error {
	partition, path := args[0], args[1]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}
	if info.Size() < 0 || info.Size() > 1<<32-1 {
		return fmt.Errorf("image too large for a single Fastboot download: %d bytes", info.Size())
	}

	client, err := fastboot.Open()
	if err != nil {
		return err
	}
	defer client.Close()
	client.SetLogger(cmdLogger())

	streamer, err := client.Download(uint32(info.Size()))
	if err != nil {
		return fmt.Errorf("starting download: %w", err)
	}
	if streamer.Size() != uint32(info.Size()) {
		return fmt.Errorf("starting download: %w", &fastboot.ProtocolViolationError{
			Reason: fmt.Sprintf("device accepted %d bytes, image is %d bytes", streamer.Size(), info.Size()),
		})
	}

	if flashInteractive && !output.IsJSON() && !output.IsQuiet() {
		return runFlashInteractive(cmd, client, streamer, partition, f)
	}

	if err := streamFile(f, streamer, nil); err != nil {
		return err
	}
	if err := streamer.Finish(); err != nil {
		return fmt.Errorf("finishing download: %w", err)
	}
	if err := client.Flash(partition); err != nil {
		return err
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{"partition": partition, "bytes": info.Size()})
	}
	if !output.IsQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "Flashed %s to %s\n", path, partition)
	}
	return nil
}

// streamFile reads f to EOF, handing each chunk to streamer.ExtendFromSlice.
// If progress is non-nil, a tui.ProgressMsg is sent after every chunk.
func streamFile(f *os.File, streamer *fastboot.DownloadStreamer, progress chan<- tea.Msg) error {
	buf := make([]byte, 1<<20)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := streamer.ExtendFromSlice(buf[:n]); err != nil {
				return fmt.Errorf("streaming download: %w", err)
			}
			if progress != nil {
				progress <- tui.ProgressMsg{Sent: streamer.Size() - streamer.Left(), Total: streamer.Size()}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading image: %w", readErr)
		}
	}
}

// runFlashInteractive streams the download on a background goroutine while
// a bubbletea program in the foreground renders its progress, per
// SPEC_FULL.md §11's --interactive wiring of the teacher's bubbletea stack.
func runFlashInteractive(cmd *cobra.Command, client *fastboot.Client, streamer *fastboot.DownloadStreamer, partition string, f *os.File) error {
	updates := make(chan tea.Msg)
	go func() {
		defer close(updates)
		err := streamFile(f, streamer, updates)
		if err == nil {
			if ferr := streamer.Finish(); ferr != nil {
				err = fmt.Errorf("finishing download: %w", ferr)
			}
		}
		if err == nil {
			err = client.Flash(partition)
		}
		updates <- tui.DoneMsg{Err: err}
	}()

	model := tui.NewFlashProgress(partition, updates)
	program := tea.NewProgram(model, tea.WithOutput(cmd.OutOrStdout()))
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("running progress display: %w", err)
	}
	if fp, ok := final.(tui.FlashProgress); ok {
		return fp.Err()
	}
	return nil
}
