package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ebfe/scard"
	"github.com/spf13/cobra"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/iso7816"
	"github.com/gregLibert/rfaccess/pkg/tlv"
)

// defaultProbeAID is the proprietary AID the emulated card is registered under.
const defaultProbeAID = "F0524641434345"

type probeOptions struct {
	aid      []byte
	blocks   int
	tryWrite bool
}

func probeCommand() *cobra.Command {
	var (
		aidHex string
		reader int
		opts   probeOptions
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Act as a PC/SC reader against a card or a phone in emulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			aid, err := carddata.Decode(aidHex)
			if err != nil {
				return fmt.Errorf("--aid: %w", err)
			}
			opts.aid = aid

			ctx, card, err := connectToCard(cmd.OutOrStdout(), reader)
			if err != nil {
				return err
			}
			defer func() {
				if err := ctx.Release(); err != nil {
					slog.Warn("failed to release context", "error", err)
				}
			}()
			defer func() {
				if err := card.Disconnect(scard.LeaveCard); err != nil {
					slog.Warn("failed to disconnect card", "error", err)
				}
			}()

			return probeCard(cmd.OutOrStdout(), iso7816.NewClient(card), opts)
		},
	}
	cmd.Flags().StringVar(&aidHex, "aid", defaultProbeAID, "AID sent with SELECT")
	cmd.Flags().IntVar(&reader, "reader", 0, "index of the PC/SC reader to use")
	cmd.Flags().IntVar(&opts.blocks, "blocks", 4, "number of 16-byte blocks to read")
	cmd.Flags().BoolVar(&opts.tryWrite, "try-write", false, "send an UPDATE BINARY to block 1")
	return cmd
}

// connectToCard establishes the PC/SC context and connects to the reader at
// index. The caller releases both on success.
func connectToCard(out io.Writer, index int) (*scard.Context, *scard.Card, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, fmt.Errorf("establishing context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) <= index {
		if relErr := ctx.Release(); relErr != nil {
			slog.Warn("failed to release context during error handling", "error", relErr)
		}
		if err == nil {
			err = errors.New("no smart card reader found")
		}
		return nil, nil, err
	}

	fmt.Fprintf(out, ">> Using reader: %s\n", readers[index])

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	card, err := ctx.Connect(readers[index], scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		if relErr := ctx.Release(); relErr != nil {
			slog.Warn("failed to release context during error handling", "error", relErr)
		}
		return nil, nil, fmt.Errorf("connecting to card: %w", err)
	}
	return ctx, card, nil
}

// probeCard runs SELECT, then block reads until the card refuses, then the
// optional write attempt.
func probeCard(w io.Writer, client *iso7816.Client, opts probeOptions) error {
	cls, _ := iso7816.NewClass(0x00)

	stepHeader(w, fmt.Sprintf("Step 1: SELECT AID %X", opts.aid))
	trace, err := client.Send(iso7816.SelectByAID(cls, opts.aid))
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}
	describeTrace(w, trace)
	if !trace.IsSuccess() {
		return fmt.Errorf("selection failed with status: %s", trace.Status().Verbose())
	}
	if data := trace.Last().Response.Data; len(data) > 0 {
		if dump, err := tlv.Dump(data); err == nil {
			fmt.Fprint(w, dump)
		} else {
			fmt.Fprintf(w, "   (!) Response is not BER-TLV: %v\n", err)
		}
	}

	stepHeader(w, fmt.Sprintf("Step 2: READ BINARY (%d blocks)", opts.blocks))
	for block := 0; block < opts.blocks; block++ {
		trace, err := client.Send(iso7816.ReadBlock(cls, uint16(block)))
		if err != nil {
			return fmt.Errorf("reading block %d: %w", block, err)
		}
		if !trace.IsSuccess() {
			fmt.Fprintf(w, ">> Block %d refused: %s\n", block, trace.Status().Verbose())
			break
		}
		data := trace.Last().Response.Data
		fmt.Fprintf(w, "[Block %3d] %X |%s|\n", block, data, safeASCII(data))
	}

	if !opts.tryWrite {
		return nil
	}
	stepHeader(w, "Step 3: UPDATE BINARY (block 1)")
	trace, err = client.Send(iso7816.UpdateBinary(cls, iso7816.BlockSize, make([]byte, iso7816.BlockSize)))
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}
	describeTrace(w, trace)
	if trace.IsSuccess() {
		fmt.Fprintln(w, ">> Card accepted the write")
	} else {
		fmt.Fprintln(w, ">> Card is read-only")
	}
	return nil
}

func stepHeader(w io.Writer, title string) {
	fmt.Fprintln(w, "\n=============================================")
	fmt.Fprintln(w, " "+title)
	fmt.Fprintln(w, "=============================================")
}

func describeTrace(w io.Writer, trace iso7816.Trace) {
	for i, tx := range trace {
		fmt.Fprintf(w, "  #%d > %s\n", i+1, tx.Command)
		if tx.Response != nil {
			fmt.Fprintf(w, "  #%d < %s\n", i+1, tx.Response)
		}
	}
}

func safeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
