package snmp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pontopology/internal/collectors"
	"pontopology/internal/inventory"
)

type fakeQuerier struct {
	mu      sync.Mutex
	answers map[string]string
	seen    []Target
}

func (f *fakeQuerier) SysDescr(_ context.Context, t Target) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, t)
	if d, ok := f.answers[t.Address]; ok {
		return d, nil
	}
	return "", errors.New("request timeout")
}

func probeInventory() inventory.Collections {
	return inventory.Collections{
		OLTs: []inventory.OltRecord{
			{ID: 1, Name: "OLT-1", IPAddress: "10.0.0.1", Status: "unknown"},
			{ID: 2, Name: "OLT-2", IPAddress: "10.0.0.2", Status: "online", SNMPPort: 1161, SNMPCommunity: "private"},
			{ID: 3, Name: "OLT-3", Status: "online"},
		},
		ONUs: []inventory.OnuRecord{{ID: 1, Serial: "S1"}},
	}
}

func TestStatusProbe(t *testing.T) {
	q := &fakeQuerier{answers: map[string]string{"10.0.0.1": "ZTE ZXA10 C320"}}
	src := collectors.NewStatic(probeInventory())
	p := NewStatusProbe(src, q, Credentials{Version: "2c", Community: "public"}, nil)

	olts, err := p.FetchOLTs(context.Background())
	require.NoError(t, err)
	require.Len(t, olts, 3)

	assert.Equal(t, inventory.StatusOnline, olts[0].Status)
	assert.Equal(t, "ZTE", olts[0].Vendor)
	assert.Equal(t, inventory.StatusOffline, olts[1].Status, "unreachable OLT goes offline")
	assert.Equal(t, "online", olts[2].Status, "OLT without address keeps its status")
	assert.Len(t, q.seen, 2)

	for _, target := range q.seen {
		if target.Address == "10.0.0.2:1161" {
			assert.Equal(t, "private", target.Credentials.Community)
		}
	}

	onus, err := p.FetchONUs(context.Background())
	require.NoError(t, err)
	assert.Len(t, onus, 1, "other collections pass through")

	stored, _ := src.FetchOLTs(context.Background())
	assert.Equal(t, "unknown", stored[0].Status, "source records are not mutated")
}

type blockingQuerier struct{}

func (blockingQuerier) SysDescr(ctx context.Context, _ Target) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestStatusProbeCancelled(t *testing.T) {
	p := NewStatusProbe(collectors.NewStatic(probeInventory()), blockingQuerier{}, Credentials{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.FetchOLTs(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionSettings(t *testing.T) {
	q := NewGoSNMP()

	v2 := q.session(Target{Address: "192.168.1.100"})
	assert.Equal(t, "192.168.1.100", v2.Target)
	assert.Equal(t, uint16(161), v2.Port)
	assert.Equal(t, gosnmp.Version2c, v2.Version)
	assert.Equal(t, "public", v2.Community)

	v3 := q.session(Target{
		Address: "olt.example.net:1161",
		Credentials: Credentials{
			Version: "v3",
			V3:      &AuthV3{User: "ops", AuthProto: "SHA256", AuthPass: "secretauth", PrivPass: "secretpriv"},
		},
	})
	assert.Equal(t, uint16(1161), v3.Port)
	assert.Equal(t, gosnmp.Version3, v3.Version)
	assert.Equal(t, gosnmp.AuthPriv, v3.MsgFlags)
	usm, ok := v3.SecurityParameters.(*gosnmp.UsmSecurityParameters)
	require.True(t, ok)
	assert.Equal(t, "ops", usm.UserName)
	assert.Equal(t, gosnmp.SHA256, usm.AuthenticationProtocol)
	assert.Equal(t, gosnmp.AES, usm.PrivacyProtocol)
}

func TestTargetFor(t *testing.T) {
	_, ok := TargetFor(inventory.OltRecord{ID: 1}, Credentials{})
	assert.False(t, ok)

	target, ok := TargetFor(inventory.OltRecord{ID: 1, IPAddress: "10.1.1.1", SNMPVersion: "2c"}, Credentials{Community: "ro"})
	require.True(t, ok)
	assert.Equal(t, "10.1.1.1", target.Address)
	assert.Equal(t, "ro", target.Credentials.Community)
	assert.Equal(t, "2c", target.Credentials.Version)
}

func TestGuessVendor(t *testing.T) {
	assert.Equal(t, "ZTE", guessVendor("ZXA10 C320, ZTE Corporation"))
	assert.Equal(t, "Huawei", guessVendor("Huawei MA5608T"))
	assert.Equal(t, "", guessVendor("Linux"))
}
