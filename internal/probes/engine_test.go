package probes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/util"
)

type snapshot struct {
	processes []string
	conns     []Connection
	registry  bool
}

func engineFor(s snapshot) *Engine {
	procs := NewProcessScanner(func(ctx context.Context) ([]string, error) {
		return s.processes, nil
	})
	ports := NewPortScanner(connections(s.conns...), adapters())
	reg := NewRegistryProbe(func(path, name string) (any, bool, error) {
		if s.registry {
			return uint64(1), true, nil
		}
		return nil, false, nil
	})
	return NewEngine(procs, ports, reg)
}

func TestPlanFor(t *testing.T) {
	cfg := util.DefaultConfig()
	cfg.ScanInterval = 3
	cfg.NetworkAdapter = "Wi-Fi"

	tests := []struct {
		method string
		want   Plan
	}{
		{"process", ProcessPlan{Bucket: 3 * time.Second}},
		{"port", PortPlan{Port: 5405, Adapter: "Wi-Fi"}},
		{"registry", RegistryPlan{}},
		{"hybrid", HybridPlan{Port: 5405, Adapter: "Wi-Fi"}},
	}

	for _, tt := range tests {
		cfg.DetectionMethod = tt.method
		got := PlanFor(cfg)
		if got != tt.want {
			t.Errorf("PlanFor(%s) = %#v, want %#v", tt.method, got, tt.want)
		}
		if string(got.Method()) != tt.method {
			t.Errorf("plan method = %s, want %s", got.Method(), tt.method)
		}
	}
}

func TestHybridIsOrOfSignals(t *testing.T) {
	established := []Connection{{LocalIP: "10.0.0.5", LocalPort: 5405, Status: "ESTABLISHED"}}
	snapshots := []snapshot{
		{},
		{processes: []string{"student.exe"}},
		{conns: established},
		{registry: true},
		{processes: []string{"tutor.exe"}, conns: established, registry: true},
	}

	for i, s := range snapshots {
		e := engineFor(s)
		ctx := context.Background()

		process := e.Detect(ctx, ProcessPlan{Bucket: 2 * time.Second}).Connected
		port := e.Detect(ctx, PortPlan{Port: 5405, Adapter: "all"}).Connected
		registry := e.Detect(ctx, RegistryPlan{}).Connected
		hybrid := e.Detect(ctx, HybridPlan{Port: 5405, Adapter: "all"})

		if hybrid.Connected != (process || port || registry) {
			t.Errorf("snapshot %d: hybrid=%v process=%v port=%v registry=%v",
				i, hybrid.Connected, process, port, registry)
		}
		if hybrid.Method != model.MethodHybrid {
			t.Errorf("snapshot %d: method = %s", i, hybrid.Method)
		}
	}
}

func TestHybridEvaluatesEverySignal(t *testing.T) {
	e := engineFor(snapshot{
		processes: []string{"client32.exe"},
		conns:     []Connection{{LocalIP: "10.0.0.5", LocalPort: 5405, Status: "ESTABLISHED"}},
		registry:  true,
	})

	res := e.Detect(context.Background(), HybridPlan{Port: 5405, Adapter: "all"})
	if !res.Connected {
		t.Fatal("expected connected")
	}
	if len(res.Signals.Processes) != 1 || !res.Signals.Port || !res.Signals.Registry {
		t.Errorf("expected every signal attributed, got %+v", res.Signals)
	}
}

func TestDetectNeverFails(t *testing.T) {
	procs := NewProcessScanner(func(ctx context.Context) ([]string, error) {
		return nil, errors.New("enumeration failed")
	})
	ports := NewPortScanner(func(ctx context.Context) ([]Connection, error) {
		panic("netstat exploded")
	}, adapters())
	reg := NewRegistryProbe(func(path, name string) (any, bool, error) {
		panic("registry exploded")
	})
	e := NewEngine(procs, ports, reg)

	plans := []Plan{
		ProcessPlan{Bucket: time.Second},
		PortPlan{Port: 5405, Adapter: "all"},
		RegistryPlan{},
		HybridPlan{Port: 5405, Adapter: "all"},
	}
	for _, plan := range plans {
		res := e.Detect(context.Background(), plan)
		if res.Connected {
			t.Errorf("%s: failing scanners must not report a connection", plan.Method())
		}
	}
}

func TestDetectNoSignals(t *testing.T) {
	e := engineFor(snapshot{processes: []string{"bash"}})
	e.registry = &RegistryProbe{}

	res := e.Detect(context.Background(), HybridPlan{Port: 5405, Adapter: "all"})
	if res.Connected || res.Signals.Any() {
		t.Errorf("expected no evidence, got %+v", res)
	}
}

func TestDetectUsesClock(t *testing.T) {
	e := engineFor(snapshot{processes: []string{"student.exe"}})
	now := time.Unix(1700000000, 0)
	e.SetClock(func() time.Time { return now })

	res := e.Detect(context.Background(), ProcessPlan{Bucket: 2 * time.Second})
	if !res.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", res.Timestamp, now)
	}
	if !res.Connected || res.Signals.Processes[0] != "student.exe" {
		t.Errorf("unexpected result %+v", res)
	}
}
