package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"plane-spot-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupID(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
		ok     bool
	}{
		{"colon", "Submitting...\nGroup transaction ID: 0.0.4821@1741770000.123\nDone", "0.0.4821@1741770000.123", true},
		{"equals no space", "group transaction id=abc-123", "abc-123", true},
		{"upper case", "GROUP TRANSACTION ID:   XYZ", "XYZ", true},
		{"missing", "transaction failed", "", false},
		{"no value", "Group transaction ID:", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseGroupID(tt.output)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLedgerEntry(t *testing.T) {
	spot := &models.Spot{
		Latitude:  38.77,
		Longitude: -9.13,
		Flight: models.FlightSnapshot{
			FlightID: "4ca1b2", FlightNumber: "TP123", OperatorICAO: "TAP",
			Altitude: 32000, Origin: "LIS",
		},
	}
	entry := NewLedgerEntry(spot, "0.0.12345")

	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Equal(t, "TP123", fields["flightNumber"])
	assert.Equal(t, "TAP", fields["operator"])
	assert.Equal(t, "4ca1b2", fields["icao24"])
	assert.Equal(t, "0.0.12345", fields["walletAddress"])
	assert.Equal(t, "LIS", fields["origin"])
	assert.Equal(t, UnknownValue, fields["destination"])
	assert.InDelta(t, 32000, fields["altitude"], 0)
}

func TestExecLedger(t *testing.T) {
	entries := []LedgerEntry{{FlightNumber: "TP123"}, {FlightNumber: "BA456"}}

	t.Run("parses group id from output", func(t *testing.T) {
		l := &ExecLedger{Name: "sh", Args: []string{"-c", `n=$(cat | grep -o flightNumber | wc -l | tr -d " "); echo "logged $n"; echo "Group transaction ID: grp-$n"`}, Timeout: 5 * time.Second}
		id, err := l.LogBatch(context.Background(), entries)
		require.NoError(t, err)
		assert.Equal(t, "grp-2", id)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		l := &ExecLedger{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}, Timeout: 5 * time.Second}
		_, err := l.LogBatch(context.Background(), entries)
		appErr := requireKind(t, err, KindUpstreamUnavailable)
		assert.Contains(t, appErr.Error(), "boom")
	})

	t.Run("no group id", func(t *testing.T) {
		l := &ExecLedger{Name: "sh", Args: []string{"-c", "cat >/dev/null; echo ok"}, Timeout: 5 * time.Second}
		_, err := l.LogBatch(context.Background(), entries)
		requireKind(t, err, KindUpstreamUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		l := &ExecLedger{Name: "sleep", Args: []string{"5"}, Timeout: 100 * time.Millisecond}
		_, err := l.LogBatch(context.Background(), entries)
		requireKind(t, err, KindUpstreamTimeout)
	})
}

func TestNewExecLedger(t *testing.T) {
	l, err := NewExecLedger("node scripts/log-batch.js --network testnet", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "node", l.Name)
	assert.Equal(t, []string{"scripts/log-batch.js", "--network", "testnet"}, l.Args)

	_, err = NewExecLedger("   ", time.Second)
	assert.Error(t, err)
}
