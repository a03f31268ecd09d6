package probes

import (
	"context"
	"time"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/util"
)

// Plan is a detection strategy with its parameters. The set of plans is
// closed: ProcessPlan, PortPlan, RegistryPlan and HybridPlan.
type Plan interface {
	Method() model.Method
	isPlan()
}

// ProcessPlan matches the process allow-list, memoized per Bucket.
type ProcessPlan struct {
	Bucket time.Duration
}

// PortPlan looks for an established connection on Port.
type PortPlan struct {
	Port    int
	Adapter string
}

// RegistryPlan reads the registry connection flag.
type RegistryPlan struct{}

// HybridPlan evaluates every signal and ORs them.
type HybridPlan struct {
	Port    int
	Adapter string
}

func (ProcessPlan) Method() model.Method  { return model.MethodProcess }
func (PortPlan) Method() model.Method     { return model.MethodPort }
func (RegistryPlan) Method() model.Method { return model.MethodRegistry }
func (HybridPlan) Method() model.Method   { return model.MethodHybrid }

func (ProcessPlan) isPlan()  {}
func (PortPlan) isPlan()     {}
func (RegistryPlan) isPlan() {}
func (HybridPlan) isPlan()   {}

// PlanFor builds the plan selected by cfg.
func PlanFor(cfg *util.Config) Plan {
	return PlanForMethod(cfg.Method(), cfg)
}

// PlanForMethod builds the plan for method using cfg's parameters.
func PlanForMethod(method model.Method, cfg *util.Config) Plan {
	switch method {
	case model.MethodPort:
		return PortPlan{Port: cfg.Port, Adapter: cfg.NetworkAdapter}
	case model.MethodRegistry:
		return RegistryPlan{}
	case model.MethodHybrid:
		return HybridPlan{Port: cfg.Port, Adapter: cfg.NetworkAdapter}
	default:
		return ProcessPlan{Bucket: cfg.ScanEvery()}
	}
}

// Engine runs detection plans against the scanners.
type Engine struct {
	processes *ProcessScanner
	ports     *PortScanner
	registry  *RegistryProbe
	now       func() time.Time
}

// NewEngine creates an engine over the given scanners. Nil scanners are
// replaced with the live system implementations.
func NewEngine(processes *ProcessScanner, ports *PortScanner, registry *RegistryProbe) *Engine {
	if processes == nil {
		processes = NewProcessScanner(nil)
	}
	if ports == nil {
		ports = NewPortScanner(nil, nil)
	}
	if registry == nil {
		registry = NewRegistryProbe(nil)
	}
	return &Engine{
		processes: processes,
		ports:     ports,
		registry:  registry,
		now:       time.Now,
	}
}

// SetClock overrides the engine clock used for cache keys and timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Registry returns the engine's registry probe.
func (e *Engine) Registry() *RegistryProbe {
	return e.registry
}

// Detect runs plan once. It never fails: a scanner that errors or panics
// contributes no evidence.
func (e *Engine) Detect(ctx context.Context, plan Plan) model.DetectionResult {
	start := e.now()
	res := model.DetectionResult{
		Method:    plan.Method(),
		Timestamp: start,
	}

	switch p := plan.(type) {
	case ProcessPlan:
		res.Signals.Processes = e.scanProcesses(ctx, CacheKey(start, p.Bucket))
	case PortPlan:
		res.Signals.Port = e.scanPort(ctx, p.Port, p.Adapter)
	case RegistryPlan:
		res.Signals.Registry = e.scanRegistry()
	case HybridPlan:
		// All three run so the result can say which one fired.
		res.Signals.Processes = e.scanProcesses(ctx, CacheKey(start, HybridBucket))
		res.Signals.Port = e.scanPort(ctx, p.Port, p.Adapter)
		res.Signals.Registry = e.scanRegistry()
	default:
		util.Warn("Unknown detection plan %T", plan)
	}

	res.Connected = res.Signals.Any()
	res.Duration = e.now().Sub(start)
	return res
}

func (e *Engine) scanProcesses(ctx context.Context, key int64) (found []string) {
	defer guard("process", func() { found = nil })
	return e.processes.Scan(ctx, key)
}

func (e *Engine) scanPort(ctx context.Context, port int, adapter string) (found bool) {
	defer guard("port", func() { found = false })
	return e.ports.Scan(ctx, port, adapter)
}

func (e *Engine) scanRegistry() (found bool) {
	defer guard("registry", func() { found = false })
	return e.registry.Scan()
}

// guard recovers a scanner panic and resets its result.
func guard(scanner string, reset func()) {
	if r := recover(); r != nil {
		util.Warn("Panic in %s scan: %v", scanner, r)
		reset()
	}
}
