package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"plane-spot-system/models"
)

// LedgerEntry is one spot as written to the external ledger.
type LedgerEntry struct {
	FlightNumber  string  `json:"flightNumber"`
	Operator      string  `json:"operator"`
	Altitude      int     `json:"altitude"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	ICAO24        string  `json:"icao24"`
	WalletAddress string  `json:"walletAddress"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// NewLedgerEntry builds the ledger record for a persisted spot.
func NewLedgerEntry(spot *models.Spot, wallet string) LedgerEntry {
	f := NewFlightView(spot.Flight)
	return LedgerEntry{
		FlightNumber:  f.FlightNumber,
		Operator:      f.Airline,
		Altitude:      f.Altitude,
		Origin:        f.Origin,
		Destination:   f.Destination,
		ICAO24:        spot.Flight.FlightID,
		WalletAddress: wallet,
		Latitude:      spot.Latitude,
		Longitude:     spot.Longitude,
	}
}

// LedgerLogger writes a batch of entries as one ledger transaction and returns its group id.
type LedgerLogger interface {
	LogBatch(ctx context.Context, entries []LedgerEntry) (string, error)
}

var groupIDPattern = regexp.MustCompile(`(?i)group transaction id[:=]\s*(\S+)`)

// ParseGroupID extracts the group transaction id from ledger tool output.
func ParseGroupID(output string) (string, bool) {
	m := groupIDPattern.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExecLedger runs an external ledger tool with the JSON batch on stdin.
type ExecLedger struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// NewExecLedger splits a command line such as "node scripts/log-batch.js" on whitespace.
func NewExecLedger(commandLine string, timeout time.Duration) (*ExecLedger, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("ledger command is empty")
	}
	return &ExecLedger{Name: fields[0], Args: fields[1:], Timeout: timeout}, nil
}

func (l *ExecLedger) LogBatch(ctx context.Context, entries []LedgerEntry) (string, error) {
	payload, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, l.Name, l.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", upstreamFailure("ledger", ctx.Err())
		}
		return "", upstreamFailure("ledger", fmt.Errorf("%w: %s", err, lastLine(out.String())))
	}

	id, ok := ParseGroupID(out.String())
	if !ok {
		return "", &AppError{Kind: KindUpstreamUnavailable, Message: "ledger output has no group transaction id"}
	}
	return id, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
