package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/config"
	"github.com/gregLibert/rfaccess/pkg/emulation"
)

func replayCommand() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Answer hex frames (one per line) with the persisted emulation state",
		Long: "Reads command frames as hex, one per line, from stdin or --input and prints\n" +
			"each response as hex. Blank lines and lines starting with # are skipped.\n" +
			"A line reading \"deactivate\" ends the reader session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}

			in := cmd.InOrStdin()
			if input != "" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return replayRun(cmd.Context(), cfg, in, cmd.OutOrStdout(), slog.Default())
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "read frames from this file instead of stdin")
	return cmd
}

func replayRun(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	backend, closeStore, err := openStore(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("error closing storage", "error", err)
		}
	}()

	state, err := restoreState(ctx, cfg.Emulation, emulation.NewSettingsStore(backend, logger))
	if err != nil {
		return err
	}
	status := state.Status()
	logger.Info("replaying frames", "active", status.Active, "payload_bytes", status.PayloadSize)

	return replayFrames(emulation.NewDispatcher(state, nil), in, out)
}

// replayFrames feeds every frame line of in to d and writes one response
// line per frame. It stops at the first malformed line.
func replayFrames(d *emulation.Dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.EqualFold(line, "deactivate") {
			d.Deactivate(emulation.Deselected)
			fmt.Fprintln(out, "-- session ended")
			continue
		}

		frame, err := carddata.Decode(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		fmt.Fprintf(out, "%s -> %s\n", carddata.Encode(frame), carddata.Encode(d.ProcessFrame(frame)))
	}
	return scanner.Err()
}
