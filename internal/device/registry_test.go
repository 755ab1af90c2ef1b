package device

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/croquetia-core/internal/firestorm"
)

// scriptedDiscoverer returns one scripted result per call.
type scriptedDiscoverer struct {
	mu      sync.Mutex
	results [][]firestorm.Controller
	err     error
	calls   int
	// gate, when set, blocks each call until it receives a value.
	gate chan struct{}
}

func (s *scriptedDiscoverer) Discover(ctx context.Context) ([]firestorm.Controller, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) == 0 {
		return nil, nil
	}
	next := s.results[0]
	s.results = s.results[1:]
	return next, nil
}

func controllers(ids ...int64) []firestorm.Controller {
	out := make([]firestorm.Controller, 0, len(ids))
	for _, id := range ids {
		out = append(out, firestorm.Controller{ID: id, Name: "wicket", Address: "10.0.0.1", PixelCount: 10})
	}
	return out
}

func TestRegistry_InitiallyEmpty(t *testing.T) {
	r := NewRegistry(&scriptedDiscoverer{})

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if targets := r.CurrentTargets(); targets == nil || len(targets) != 0 {
		t.Errorf("CurrentTargets() = %#v, want empty non-nil", targets)
	}
}

func TestRegistry_RefreshReplacesWholesale(t *testing.T) {
	d := &scriptedDiscoverer{results: [][]firestorm.Controller{
		controllers(1, 2, 3),
		controllers(4),
	}}
	r := NewRegistry(d)
	ctx := context.Background()

	first, err := r.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first refresh = %d devices, want 3", len(first))
	}

	if _, err := r.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := r.CurrentTargets(); !reflect.DeepEqual(got, []int64{4}) {
		t.Errorf("CurrentTargets() = %v, want [4]", got)
	}
	if d.calls != 2 {
		t.Errorf("discover calls = %d, want 2", d.calls)
	}
	if _, n := r.RefreshInfo(); n != 2 {
		t.Errorf("refresh count = %d, want 2", n)
	}
}

func TestRegistry_RefreshErrorKeepsPreviousSet(t *testing.T) {
	d := &scriptedDiscoverer{results: [][]firestorm.Controller{controllers(1, 2)}}
	r := NewRegistry(d)
	ctx := context.Background()

	if _, err := r.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	d.err = &firestorm.StatusError{Path: "/discover", StatusCode: 500, Status: "500 Internal Server Error"}
	_, err := r.Refresh(ctx)
	if !errors.Is(err, firestorm.ErrGatewayStatus) {
		t.Fatalf("Refresh() error = %v, want ErrGatewayStatus", err)
	}
	if got := r.CurrentTargets(); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Errorf("CurrentTargets() = %v, want [1 2]", got)
	}
}

func TestRegistry_RefreshToEmpty(t *testing.T) {
	d := &scriptedDiscoverer{results: [][]firestorm.Controller{controllers(1), {}}}
	r := NewRegistry(d)
	ctx := context.Background()

	_, _ = r.Refresh(ctx)
	devices, err := r.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(devices) != 0 || r.Len() != 0 {
		t.Errorf("devices = %v, want none", devices)
	}
}

func TestRegistry_ConcurrentRefreshesAreSerialized(t *testing.T) {
	d := &scriptedDiscoverer{
		results: [][]firestorm.Controller{controllers(1), controllers(2)},
		gate:    make(chan struct{}),
	}
	r := NewRegistry(d)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Refresh(ctx); err != nil {
				t.Errorf("Refresh() error = %v", err)
			}
		}()
	}

	// Release the first refresh, then check the second has not started.
	d.gate <- struct{}{}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, n := r.RefreshInfo(); n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first refresh never completed")
		}
		time.Sleep(time.Millisecond)
	}
	if got := r.CurrentTargets(); !reflect.DeepEqual(got, []int64{1}) {
		t.Errorf("after first refresh CurrentTargets() = %v, want [1]", got)
	}

	d.gate <- struct{}{}
	wg.Wait()

	if got := r.CurrentTargets(); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("CurrentTargets() = %v, want [2] (last completion wins)", got)
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	d := &scriptedDiscoverer{results: [][]firestorm.Controller{controllers(1)}}
	r := NewRegistry(d)

	devices, _ := r.Refresh(context.Background())
	devices[0].DisplayName = "mutated"

	got := r.Devices()
	if got[0].DisplayName != "wicket" {
		t.Error("Refresh() result aliases registry state")
	}
	got[0].ID = 99
	if r.CurrentTargets()[0] != 1 {
		t.Error("Devices() result aliases registry state")
	}
}

func TestRegistry_Get(t *testing.T) {
	d := &scriptedDiscoverer{results: [][]firestorm.Controller{controllers(5, 6)}}
	r := NewRegistry(d)
	_, _ = r.Refresh(context.Background())

	dev, err := r.Get(6)
	if err != nil || dev.ID != 6 {
		t.Errorf("Get(6) = %+v, %v", dev, err)
	}
	if _, err := r.Get(7); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get(7) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestFromController(t *testing.T) {
	c := firestorm.Controller{ID: 42, Address: "192.168.1.40", Name: "end wicket", PixelCount: 60, Version: "3.30"}
	d := FromController(c)

	want := Device{ID: 42, Address: "192.168.1.40", DisplayName: "end wicket", PixelCount: 60, Version: "3.30"}
	if d != want {
		t.Errorf("FromController() = %+v, want %+v", d, want)
	}
	if d.Summary() != "end wicket : 192.168.1.40" {
		t.Errorf("Summary() = %q", d.Summary())
	}
}
