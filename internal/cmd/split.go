package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/flashkit/flashkit/internal/output"
	"github.com/flashkit/flashkit/internal/sparse"
)

func addSplitCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "split <image> <max-bytes> <out-prefix>",
		Short: "Split a sparse image into fragments that each fit in max-bytes",
		Long:  "Writes <out-prefix>.0, <out-prefix>.1, ... each an independently valid sparse image no larger than max-bytes.",
		Args:  cobra.ExactArgs(3),
		RunE:  runSplit,
	}
	parent.AddCommand(cmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
	maxBytes, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parsing max-bytes: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	header, chunks, err := sparse.Scan(f)
	if err != nil {
		return err
	}

	fragments, err := sparse.Split(header, chunks, maxBytes)
	if err != nil {
		return err
	}

	logger := cmdLogger()
	prefix := args[2]
	paths := make([]string, len(fragments))
	for i, frag := range fragments {
		path := fmt.Sprintf("%s.%d", prefix, i)
		logger.WithField("fragment_id", frag.ID).WithField("blocks", frag.Header.Blocks).Debug("writing fragment")
		if err := writeFragment(f, path, frag); err != nil {
			return fmt.Errorf("writing fragment %d: %w", i, err)
		}
		logger.WithField("fragment_id", frag.ID).WithField("path", path).Debug("wrote fragment")
		paths[i] = path
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{"fragments": paths})
	}
	if !output.IsQuiet() {
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
	}
	return nil
}

func writeFragment(src *os.File, path string, frag sparse.FragmentPlan) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	hdr := frag.Header.Bytes()
	if _, err := out.Write(hdr[:]); err != nil {
		return err
	}

	for _, fc := range frag.Chunks {
		ch := fc.Header.Bytes()
		if _, err := out.Write(ch[:]); err != nil {
			return err
		}
		if n := fc.Header.DataSize(); n > 0 {
			if _, err := src.Seek(fc.Offset, io.SeekStart); err != nil {
				return err
			}
			if _, err := io.CopyN(out, src, int64(n)); err != nil {
				return err
			}
		}
	}
	return nil
}
