// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     device
// Description: Tests for discovery, connection, and history
// License:     MIT
// ============================================================================

package device

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeRadio scripts scan and connect behaviour
type fakeRadio struct {
	devices    []Device
	connectErr error
	scanErr    error
}

func (r *fakeRadio) Scan(ctx context.Context) (<-chan Device, error) {
	if r.scanErr != nil {
		return nil, r.scanErr
	}
	out := make(chan Device, len(r.devices))
	go func() {
		defer close(out)
		for _, d := range r.devices {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return out, nil
}

func (r *fakeRadio) Connect(ctx context.Context, id string) (Device, error) {
	if r.connectErr != nil {
		return Device{}, r.connectErr
	}
	for _, d := range r.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return Device{}, ErrDeviceNotFound
}

func (r *fakeRadio) Disconnect(id string) error {
	return nil
}

func waitState(t *testing.T, m *Manager, want ConnState) StateChange {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-m.Events():
			if ev.To == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v (current %v)", want, m.State())
		}
	}
}

func TestManager_ScanStreamsDevices(t *testing.T) {
	radio := &fakeRadio{devices: []Device{
		{ID: "aa", DisplayName: "Headset A", SignalStrength: -40},
		{ID: "bb", DisplayName: "Headset B", SignalStrength: -60},
	}}
	m := NewManager(Config{Radio: radio})

	stream, err := m.Scan(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	waitState(t, m, StateScanning)

	var got []Device
	for i := 0; i < 2; i++ {
		select {
		case d := <-stream:
			got = append(got, d)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for discovered device")
		}
	}
	if got[0].ID != "aa" || got[1].ID != "bb" {
		t.Errorf("unexpected devices: %+v", got)
	}

	m.StopScan()
	waitState(t, m, StateDisconnected)
}

func TestManager_ScanTimesOut(t *testing.T) {
	m := NewManager(Config{Radio: &fakeRadio{}})

	stream, err := m.Scan(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	waitState(t, m, StateScanning)

	// stream closes when the timeout fires, no explicit stop
	select {
	case _, ok := <-stream:
		if ok {
			t.Fatal("unexpected device from empty radio")
		}
	case <-time.After(time.Second):
		t.Fatal("scan did not auto-stop")
	}
	waitState(t, m, StateDisconnected)
}

func TestManager_SecondScanRefused(t *testing.T) {
	m := NewManager(Config{Radio: &fakeRadio{}})

	if _, err := m.Scan(context.Background(), time.Second); err != nil {
		t.Fatalf("first Scan failed: %v", err)
	}
	waitState(t, m, StateScanning)

	if _, err := m.Scan(context.Background(), time.Second); !errors.Is(err, ErrScanActive) {
		t.Errorf("expected ErrScanActive, got %v", err)
	}
	m.StopScan()
}

func TestManager_ConnectTouchesHistory(t *testing.T) {
	radio := &fakeRadio{devices: []Device{{ID: "aa", DisplayName: "Headset A"}}}
	var persisted []Device
	m := NewManager(Config{
		Radio:   radio,
		Persist: func(ds []Device) { persisted = ds },
	})

	dev, err := m.Connect(context.Background(), "aa")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if dev.DisplayName != "Headset A" {
		t.Errorf("unexpected device: %+v", dev)
	}
	if m.State() != StateConnected {
		t.Errorf("state = %v, want connected", m.State())
	}
	front, ok := m.History().Front()
	if !ok || front.ID != "aa" {
		t.Errorf("history front = %+v, ok = %v", front, ok)
	}
	if len(persisted) != 1 {
		t.Errorf("persist callback got %d devices, want 1", len(persisted))
	}
}

func TestManager_ConnectUnknownID(t *testing.T) {
	m := NewManager(Config{Radio: &fakeRadio{}})

	_, err := m.Connect(context.Background(), "nope")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}

	// failed connect surfaces an error state, then settles disconnected
	ev := waitState(t, m, StateError)
	if !errors.Is(ev.Err, ErrDeviceNotFound) {
		t.Errorf("error event carries %v, want ErrDeviceNotFound", ev.Err)
	}
	waitState(t, m, StateDisconnected)
	if m.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
}

func TestManager_ConnectStopsScan(t *testing.T) {
	radio := &fakeRadio{devices: []Device{{ID: "aa", DisplayName: "Headset A"}}}
	m := NewManager(Config{Radio: radio})

	stream, err := m.Scan(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	waitState(t, m, StateScanning)

	if _, err := m.Connect(context.Background(), "aa"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitState(t, m, StateConnected)

	// scan stream must drain and close once the connect cancelled it
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("scan stream still open after connect")
		}
	}
}

func TestManager_ScanFailureAcknowledged(t *testing.T) {
	m := NewManager(Config{Radio: &fakeRadio{scanErr: errors.New("radio busy")}})

	if _, err := m.Scan(context.Background(), time.Second); err == nil {
		t.Fatal("Scan succeeded with a failing radio")
	}
	waitState(t, m, StateError)
	if m.LastError() == nil {
		t.Error("LastError empty in error state")
	}

	m.Acknowledge()
	waitState(t, m, StateDisconnected)
	if m.LastError() != nil {
		t.Error("LastError survived acknowledgement")
	}
}

func TestManager_DisconnectNonConnectedIsNoop(t *testing.T) {
	m := NewManager(Config{Radio: &fakeRadio{}})
	if err := m.Disconnect("ghost"); err != nil {
		t.Errorf("Disconnect of unconnected id returned %v", err)
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
}

func TestManager_ConnectionLost(t *testing.T) {
	radio := &fakeRadio{devices: []Device{{ID: "aa", DisplayName: "Headset A"}}}
	m := NewManager(Config{Radio: radio})

	if _, err := m.Connect(context.Background(), "aa"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitState(t, m, StateConnected)

	m.ConnectionLost("aa")
	waitState(t, m, StateDisconnected)
	if m.Connected() != nil {
		t.Error("device still reported connected after loss")
	}
}

func TestManager_AutoConnect(t *testing.T) {
	radio := &fakeRadio{devices: []Device{{ID: "aa", DisplayName: "Headset A"}}}
	m := NewManager(Config{Radio: radio})
	m.History().Load([]Device{{ID: "aa", DisplayName: "Headset A"}})

	m.AutoConnect(context.Background())
	if m.State() != StateConnected {
		t.Errorf("state = %v, want connected", m.State())
	}
}

func TestManager_AutoConnectFailureSwallowed(t *testing.T) {
	m := NewManager(Config{Radio: &fakeRadio{connectErr: errors.New("radio off")}})
	m.History().Load([]Device{{ID: "aa"}})

	// must not panic or return an error path to the caller
	m.AutoConnect(context.Background())
	waitState(t, m, StateDisconnected)
}

func TestHistory_MostRecentFirst(t *testing.T) {
	h := NewHistory(0)
	h.Touch(Device{ID: "a"})
	h.Touch(Device{ID: "b"})
	h.Touch(Device{ID: "c"})
	h.Touch(Device{ID: "a"}) // re-connect moves to front

	got := h.Devices()
	want := []string{"a", "c", "b"}
	if len(got) != len(want) {
		t.Fatalf("history length = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("history[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestHistory_Bounded(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < DefaultHistoryCap+5; i++ {
		h.Touch(Device{ID: fmt.Sprintf("dev-%d", i)})
	}
	if h.Len() != DefaultHistoryCap {
		t.Errorf("history length = %d, want %d", h.Len(), DefaultHistoryCap)
	}
	front, _ := h.Front()
	if front.ID != fmt.Sprintf("dev-%d", DefaultHistoryCap+4) {
		t.Errorf("front = %s, want most recent", front.ID)
	}
}

func TestHistory_LoadDedupes(t *testing.T) {
	h := NewHistory(0)
	h.Load([]Device{{ID: "a"}, {ID: "b"}, {ID: "a"}, {ID: "c"}})
	if h.Len() != 3 {
		t.Errorf("history length = %d, want 3", h.Len())
	}
}
