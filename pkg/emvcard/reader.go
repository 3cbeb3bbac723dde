// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package emvcard reads the magnetic stripe image (Track 2 Equivalent Data)
// from an EMV chip card so it can be used as a card read.
package emvcard

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moov-io/bertlv"
)

// PSE is the Payment System Environment directory name
const PSE = "1PAY.SYS.DDF01"

// Errors
var (
	ErrNoApplication = errors.New("no payment application found")
	ErrNoTrack2      = errors.New("no track 2 equivalent data")
)

// EMV tags
const (
	tagSFI           = "88"
	tagAID           = "4F"
	tagRecord        = "70"
	tagTrack2        = "57"
	tagGPOFormat1    = "80"
	tagGPOFormat2    = "77"
	tagAFL           = "94"
	aipLength        = 2
	aflEntryLength   = 4
	maxDirectoryRecs = 16
)

// Reader walks an EMV card from application selection to its track 2 data
type Reader struct {
	card Transmitter
	aid  []byte
	log  *slog.Logger
}

// Option configures a Reader
type Option func(*Reader)

// WithAID selects the given application directly instead of reading the PSE
func WithAID(aid []byte) Option {
	return func(r *Reader) {
		r.aid = aid
	}
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(r *Reader) {
		r.log = log
	}
}

// NewReader creates a reader over a connected card
func NewReader(card Transmitter, opts ...Option) *Reader {
	r := &Reader{card: card, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadTrack2 returns the card's track 2 as "PAN=YYMMSSS..."
func (r *Reader) ReadTrack2() (string, error) {
	aid := r.aid
	if len(aid) == 0 {
		aids, err := r.directory()
		if err != nil {
			return "", err
		}
		aid = aids[0]
	}
	r.log.Info("selecting application", slog.String("aid", fmt.Sprintf("%X", aid)))

	if _, err := r.selectName("SELECT AID", aid); err != nil {
		return "", err
	}

	gpo, err := r.send(command{
		name: "GET PROCESSING OPTIONS",
		cla:  claProprietary,
		ins:  insGetProcOpts,
		data: []byte{0x83, 0x00},
		le:   256,
	})
	if err != nil {
		return "", err
	}

	packets, err := bertlv.Decode(gpo)
	if err != nil {
		return "", fmt.Errorf("processing options: %w", err)
	}
	if track2, ok := find(packets, tagTrack2); ok {
		return Track2Text(track2), nil
	}

	afl, err := fileLocator(packets)
	if err != nil {
		return "", err
	}
	for i := 0; i+aflEntryLength <= len(afl); i += aflEntryLength {
		sfi := afl[i] >> 3
		for rec := int(afl[i+1]); rec != 0 && rec <= int(afl[i+2]); rec++ {
			data, err := r.readRecord(sfi, byte(rec))
			if err != nil {
				return "", err
			}
			records, err := bertlv.Decode(data)
			if err != nil {
				r.log.Warn("skipping malformed record",
					slog.Int("sfi", int(sfi)), slog.Int("record", rec), slog.Any("error", err))
				continue
			}
			if track2, ok := find(records, tagTrack2); ok {
				return Track2Text(track2), nil
			}
		}
	}
	return "", ErrNoTrack2
}

// directory selects the PSE and lists the application IDs in its records
func (r *Reader) directory() ([][]byte, error) {
	fci, err := r.selectName("SELECT PSE", []byte(PSE))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoApplication, err)
	}
	packets, err := bertlv.Decode(fci)
	if err != nil {
		return nil, fmt.Errorf("PSE FCI: %w", err)
	}
	sfi, ok := find(packets, tagSFI)
	if !ok || len(sfi) != 1 {
		return nil, fmt.Errorf("%w: PSE has no directory file", ErrNoApplication)
	}

	var aids [][]byte
	for rec := byte(1); rec <= maxDirectoryRecs; rec++ {
		data, sw, err := exchange(r.card, r.log, readRecordCommand(sfi[0], rec))
		if err != nil {
			return nil, err
		}
		if sw == swRecordNotFound {
			break
		}
		if sw != swOK {
			return nil, &StatusError{Command: "READ RECORD", SW: sw}
		}
		entries, err := bertlv.Decode(data)
		if err != nil {
			r.log.Warn("skipping malformed directory record", slog.Any("error", err))
			continue
		}
		aids = append(aids, findAll(entries, tagAID)...)
	}
	if len(aids) == 0 {
		return nil, ErrNoApplication
	}
	return aids, nil
}

func (r *Reader) selectName(name string, df []byte) ([]byte, error) {
	return r.send(command{
		name: name,
		cla:  claInterindustry,
		ins:  insSelect,
		p1:   0x04,
		data: df,
		le:   256,
	})
}

func (r *Reader) readRecord(sfi, rec byte) ([]byte, error) {
	return r.send(readRecordCommand(sfi, rec))
}

func readRecordCommand(sfi, rec byte) command {
	return command{
		name: "READ RECORD",
		cla:  claInterindustry,
		ins:  insReadRecord,
		p1:   rec,
		p2:   sfi<<3 | 0x04,
		le:   256,
	}
}

// send exchanges cmd and requires a 9000 status
func (r *Reader) send(cmd command) ([]byte, error) {
	data, sw, err := exchange(r.card, r.log, cmd)
	if err != nil {
		return nil, err
	}
	if sw != swOK {
		return nil, &StatusError{Command: cmd.name, SW: sw}
	}
	return data, nil
}

// fileLocator extracts the AFL from a format 1 or format 2 response
func fileLocator(packets []bertlv.TLV) ([]byte, error) {
	if len(packets) == 0 {
		return nil, errors.New("empty processing options")
	}
	switch strings.ToUpper(packets[0].Tag) {
	case tagGPOFormat1:
		if len(packets[0].Value) < aipLength {
			return nil, errors.New("processing options too short")
		}
		return packets[0].Value[aipLength:], nil
	case tagGPOFormat2:
		if afl, ok := find(packets, tagAFL); ok {
			return afl, nil
		}
		return nil, errors.New("processing options without AFL")
	default:
		return nil, fmt.Errorf("unexpected processing options tag %s", packets[0].Tag)
	}
}

// find returns the value of the first tag match, depth first
func find(packets []bertlv.TLV, tag string) ([]byte, bool) {
	for _, p := range packets {
		if strings.EqualFold(p.Tag, tag) {
			return p.Value, true
		}
		if v, ok := find(p.TLVs, tag); ok {
			return v, true
		}
	}
	return nil, false
}

func findAll(packets []bertlv.TLV, tag string) [][]byte {
	var out [][]byte
	for _, p := range packets {
		if strings.EqualFold(p.Tag, tag) {
			out = append(out, p.Value)
		}
		out = append(out, findAll(p.TLVs, tag)...)
	}
	return out
}

// Track2Text converts Track 2 Equivalent Data nibbles to text. The field
// separator D becomes '=' and trailing F padding is dropped.
func Track2Text(data []byte) string {
	s := strings.ToUpper(hex.EncodeToString(data))
	s = strings.TrimRight(s, "F")
	return strings.ReplaceAll(s, "D", "=")
}
