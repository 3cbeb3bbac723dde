// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Thermoquad/ndcterm/pkg/emvcard"
	"github.com/Thermoquad/ndcterm/pkg/terminal"
	"github.com/ebfe/scard"
	"github.com/spf13/cobra"
)

var (
	cardAID    string
	cardReader string
)

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Read a chip card's track 2 through PC/SC",
	Long: `Read Track 2 Equivalent Data from an EMV chip card in a PC/SC reader.

The payment application is found through the PSE directory unless --aid is
given. The track 2 image is printed with the card number masked, together
with the service code the terminal would use.`,
	RunE: runCard,
}

func init() {
	rootCmd.AddCommand(cardCmd)
	for _, c := range []*cobra.Command{cardCmd, runCmd} {
		c.Flags().StringVar(&cardAID, "aid", "", "Application ID to select instead of reading the PSE (hex)")
		c.Flags().StringVar(&cardReader, "reader", "", "PC/SC reader name (default: first reader)")
	}
}

// connectToCard handles the PC/SC context establishment and reader connection
func connectToCard() (*scard.Context, *scard.Card, string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, "", fmt.Errorf("error establishing context: %w", err)
	}

	reader, err := pickReader(ctx)
	if err != nil {
		ctx.Release()
		return nil, nil, "", err
	}

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		ctx.Release()
		return nil, nil, "", fmt.Errorf("error connecting to card in %s: %w", reader, err)
	}
	return ctx, card, reader, nil
}

func pickReader(ctx *scard.Context) (string, error) {
	if cardReader != "" {
		return cardReader, nil
	}
	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		return "", errors.New("no smart card reader found")
	}
	return readers[0], nil
}

// readChipTrack2 reads track 2 from a connected card
func readChipTrack2(card emvcard.Transmitter) (string, error) {
	opts := []emvcard.Option{emvcard.WithLogger(slog.Default())}
	if cardAID != "" {
		aid, err := hex.DecodeString(cardAID)
		if err != nil {
			return "", fmt.Errorf("--aid: %w", err)
		}
		opts = append(opts, emvcard.WithAID(aid))
	}
	return emvcard.NewReader(card, opts...).ReadTrack2()
}

func runCard(cmd *cobra.Command, args []string) error {
	ctx, card, reader, err := connectToCard()
	if err != nil {
		return err
	}
	defer func() {
		if err := card.Disconnect(scard.LeaveCard); err != nil {
			slog.Warn("failed to disconnect card", slog.Any("error", err))
		}
		if err := ctx.Release(); err != nil {
			slog.Warn("failed to release context", slog.Any("error", err))
		}
	}()

	fmt.Printf("ndcterm - Chip Card Read\n")
	fmt.Printf("Reader: %s\n\n", reader)

	track2, err := readChipTrack2(card)
	if err != nil {
		return err
	}

	parsed, err := terminal.ParseTrack2(track2)
	if err != nil {
		return fmt.Errorf("card returned unusable track 2: %w", err)
	}

	fmt.Printf("Card number:  %s\n", maskCardNumber(parsed.Number))
	fmt.Printf("Service code: %s\n", parsed.ServiceCode)
	fmt.Printf("Track 2:      %d characters\n", len(track2))
	return nil
}

// watchChipCards reads every card inserted into the reader and feeds it to
// the terminal as a card read
func watchChipCards(a *atm) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		a.events(fmt.Sprintf("PC/SC unavailable: %v", err), true)
		return
	}
	defer ctx.Release()

	reader, err := pickReader(ctx)
	if err != nil {
		a.events(err.Error(), true)
		return
	}
	a.events("Watching chip card reader: "+reader, false)

	states := []scard.ReaderState{{Reader: reader, CurrentState: scard.StateUnaware}}
	wasPresent := false
	for {
		select {
		case <-a.link.done:
			return
		default:
		}

		err := ctx.GetStatusChange(states, time.Second)
		if errors.Is(err, scard.ErrTimeout) {
			continue
		}
		if err != nil {
			slog.Warn("reader status failed", slog.Any("error", err))
			time.Sleep(time.Second)
			continue
		}

		present := states[0].EventState&scard.StatePresent != 0
		states[0].CurrentState = states[0].EventState
		if !present || wasPresent {
			wasPresent = present
			continue
		}
		wasPresent = true

		track2, err := readInsertedCard(ctx, reader)
		if err != nil {
			a.events(fmt.Sprintf("Chip read failed: %v", err), true)
			continue
		}
		a.events("Chip card read", false)
		a.readCard(track2)
	}
}

func readInsertedCard(ctx *scard.Context, reader string) (string, error) {
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		return "", err
	}
	defer card.Disconnect(scard.LeaveCard)
	return readChipTrack2(card)
}
