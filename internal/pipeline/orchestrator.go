// Package pipeline implements the Pipeline Orchestrator (spec.md
// §4.7): the fixed 15-stage sequence from spec.md §2 that every
// inbound request, already normalized into a ProtocolRequest by its
// protocol adapter, is driven through.
package pipeline

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/minio/highwayhash"
	"go.opentelemetry.io/otel/trace"

	"github.com/mockforge/core/internal/apierrors"
	"github.com/mockforge/core/internal/chaos"
	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/observability"
	"github.com/mockforge/core/internal/override"
	"github.com/mockforge/core/internal/proxy"
	"github.com/mockforge/core/internal/recorder"
	"github.com/mockforge/core/internal/registry"
	"github.com/mockforge/core/internal/state"
	"github.com/mockforge/core/internal/template"
	"github.com/mockforge/core/internal/validation"
)

const defaultProxyTag = "proxy"

// seedHeaderKey mirrors the zero-key convention template.streamSeed
// and state.ShouldUseReal already use: determinism here needs no
// secrecy, only a stable stream.
var seedHeaderKey = [32]byte{}

// Config carries the Orchestrator's request-independent policy knobs:
// the pieces spec.md leaves to "configuration" rather than to any one
// component (the proxy tag name, passthrough default, and per-request
// deadline).
type Config struct {
	Validation           validation.Config
	ProxyTag             string
	PassthroughByDefault bool
	DefaultSeed          int64
	RequestTimeout       time.Duration
}

// Orchestrator wires every pipeline component together and drives one
// request at a time through the sequence in spec.md §2. Components
// that are genuinely optional per spec.md (recording, state,
// observability, proxy) are nil-checked; Registry, Overrides,
// Templates, and Chaos are load-bearing on every request and must be
// non-nil.
type Orchestrator struct {
	Registry  *registry.Registry
	Overrides *override.Engine
	Templates *template.Engine
	Chaos     *chaos.Engine
	Forwarder *proxy.Forwarder // nil disables proxy fallback
	Recorder  *recorder.Recorder
	State     *state.Manager

	Metrics    *observability.Metrics
	Events     *observability.Bus
	Tracer     *observability.Tracer
	RequestLog *observability.RequestLogger

	cfg Config

	lastDropped atomic.Int64 // last DroppedWrites() value seen, for overflow-event edge detection
}

// New builds an Orchestrator. The optional fields on the returned
// value (Forwarder, Recorder, State, Metrics, Events, Tracer,
// RequestLog) start nil; callers wire in whichever collaborators their
// deployment enables.
func New(reg *registry.Registry, overrides *override.Engine, templates *template.Engine, chaosEngine *chaos.Engine, cfg Config) *Orchestrator {
	if cfg.ProxyTag == "" {
		cfg.ProxyTag = defaultProxyTag
	}
	return &Orchestrator{
		Registry:  reg,
		Overrides: overrides,
		Templates: templates,
		Chaos:     chaosEngine,
		cfg:       cfg,
	}
}

// Handle drives req through the full stage sequence and returns the
// response to serialize back out. It never panics: every fallible
// step is guarded and demoted to either a diagnostic or a terminal
// error response, per spec.md §7's propagation policy.
func (o *Orchestrator) Handle(ctx context.Context, req *model.ProtocolRequest) *Response {
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}
	if o.Tracer != nil {
		var span trace.Span
		ctx, span = o.Tracer.StartRequestSpan(ctx, req)
		defer span.End()
	}

	rc := newRequestState(req, o.snapshotState(req.WorkspaceID))

	release := o.stageAdmission(ctx, rc)
	defer release()

	o.timeStage("resolve", func() { o.stageRouteResolution(rc) })
	o.stageReplayLookup(ctx, rc)
	o.timeStage("chaos-delay", func() { o.stageLatency(ctx, rc) })
	o.stageFault(rc)

	shouldProxy := o.shouldProxy(rc)

	o.timeStage("validate", func() { o.stageRequestValidation(rc) })
	if !shouldProxy {
		o.stageResponseGeneration(ctx, rc)
		o.timeStage("override", func() { o.stageOverrideApplication(rc) })
		o.timeStage("expand", func() { o.stageTemplateExpansion(rc) })
		o.timeStage("validate", func() { o.stageResponseValidation(rc) })
	}
	o.stagePostResponseShaping(ctx, rc)
	if shouldProxy {
		o.stageProxyFallback(ctx, rc)
	}
	if rc.Response == nil {
		rc.setResponse(&Response{Status: 404, Body: []byte(`{"error":"not found"}`)})
	}

	o.stageRecording(ctx, rc)
	o.stageObservability(ctx, rc)

	return rc.Response
}

// timeStage runs fn and, when metrics are wired, records its duration
// against the per-stage histogram spec.md §4.8 requires ("resolve,
// override, expand, validate, chaos-delay, total").
func (o *Orchestrator) timeStage(stage string, fn func()) {
	if o.Metrics == nil {
		fn()
		return
	}
	start := time.Now()
	fn()
	o.Metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (o *Orchestrator) snapshotState(workspaceID string) model.UnifiedState {
	if o.State == nil {
		return model.UnifiedState{WorkspaceID: workspaceID, Reality: model.RealityPure}
	}
	return o.State.Snapshot(workspaceID)
}

// stageAdmission is stage 2: rate limiting then admission control. It
// returns the admission release func, which the caller must defer
// unconditionally (it is a harmless no-op when nothing was acquired).
// Rejection sets rc.rejected; latency injection (stage 5) still runs
// afterward per this orchestrator's always-run-latency design (see
// stageLatency).
func (o *Orchestrator) stageAdmission(ctx context.Context, rc *requestState) func() {
	if o.Chaos == nil {
		return func() {}
	}
	allowed := o.Chaos.CheckRateLimit(rc.Request.ClientAddr)
	o.recordRateLimitRemaining(rc.Request.ClientAddr)
	if !allowed {
		rc.rejected = true
		rc.setResponse(errorResponse(apierrors.NewRateLimitedError("rate limit exceeded", nil)))
		return func() {}
	}
	release, err := o.Chaos.Admission().Acquire(ctx, rc.Request.Protocol)
	if err != nil {
		rc.rejected = true
		rc.setResponse(errorResponse(err))
		return func() {}
	}
	if o.Metrics == nil {
		return release
	}
	protocol := string(rc.Request.Protocol)
	o.Metrics.ActiveConnections.WithLabelValues(protocol).Inc()
	return func() {
		o.Metrics.ActiveConnections.WithLabelValues(protocol).Dec()
		release()
	}
}

// recordRateLimitRemaining updates the rate_limit_remaining gauge for
// both the global bucket and clientIP's per-IP bucket, whichever are
// configured (spec.md §4.8).
func (o *Orchestrator) recordRateLimitRemaining(clientIP string) {
	if o.Metrics == nil {
		return
	}
	if remaining, ok := o.Chaos.RateLimitRemaining(""); ok {
		o.Metrics.RateLimitRemaining.WithLabelValues("global").Set(remaining)
	}
	if clientIP == "" {
		return
	}
	if remaining, ok := o.Chaos.RateLimitRemaining(clientIP); ok {
		o.Metrics.RateLimitRemaining.WithLabelValues(clientIP).Set(remaining)
	}
}

// stageRouteResolution is stage 3.
func (o *Orchestrator) stageRouteResolution(rc *requestState) {
	if rc.rejected || o.Registry == nil {
		return
	}
	op, params, _ := o.Registry.Resolve(rc.Request)
	rc.Operation = op
	rc.Params = params
}

// stageReplayLookup is stage 4. A hit sets rc.ReplayHit; per spec.md
// §4.6 the stored response is still subject to latency injection
// (stage 5) but not fault injection (stage 6) or anything past it.
func (o *Orchestrator) stageReplayLookup(ctx context.Context, rc *requestState) {
	if rc.rejected || o.Recorder == nil {
		return
	}
	key := o.Recorder.Key(rc.Request.Method, rc.Request.Path, rc.Request.Query)
	rc.RequestKey = key
	exchange, hit, err := o.Recorder.Lookup(ctx, key)
	if err != nil || !hit {
		return
	}
	rc.ReplayHit = true
	rc.setResponse(responseFromExchange(exchange))
}

// stageLatency is stage 5. It runs even after a rejection or a replay
// hit: rejection still incurs admission-check latency in a real
// deployment, and spec.md §4.6 explicitly keeps replayed responses
// chaotic up through latency injection.
func (o *Orchestrator) stageLatency(ctx context.Context, rc *requestState) {
	if o.Chaos == nil {
		return
	}
	cfg := o.Chaos.Config()
	if !cfg.Enabled {
		return
	}
	o.Chaos.InjectLatency(ctx, cfg.Latency, rc.Operation)
}

// stageFault is stage 6, skipped on rejection or replay hit.
func (o *Orchestrator) stageFault(rc *requestState) {
	if rc.halted() || o.Chaos == nil {
		return
	}
	cfg := o.Chaos.Config()
	if !cfg.Enabled {
		return
	}
	result := o.Chaos.InjectFault(cfg.Fault)
	if result.Kind == chaos.FaultNone {
		return
	}
	rc.TriggeredFaults = append(rc.TriggeredFaults, string(result.Kind))
	rc.rejected = true // halt generation, but recording/observability still run
	rc.setResponse(faultResponse(result))
}

func faultResponse(result chaos.FaultResult) *Response {
	switch result.Kind {
	case chaos.FaultStatus:
		return &Response{Status: result.Status, GRPCCode: result.GRPCCode, Body: []byte(`{"error":"injected fault"}`)}
	case chaos.FaultTimeout:
		return &Response{Status: 504, Body: []byte(`{"error":"injected timeout"}`)}
	case chaos.FaultConnectionError:
		return &Response{Status: 502, Body: []byte(`{"error":"injected connection error"}`)}
	default:
		return &Response{Status: 500, Body: []byte(`{"error":"injected fault"}`)}
	}
}

// shouldProxy implements spec.md §4.6's proxy-passthrough predicate.
func (o *Orchestrator) shouldProxy(rc *requestState) bool {
	if rc.halted() || o.Forwarder == nil {
		return false
	}
	if rc.Operation != nil {
		return rc.Operation.HasTag(o.cfg.ProxyTag)
	}
	return o.cfg.PassthroughByDefault
}

// stageRequestValidation is stage 7.
func (o *Orchestrator) stageRequestValidation(rc *requestState) {
	if rc.halted() {
		return
	}
	outcome := validation.ValidateRequest(o.cfg.Validation, rc.Operation, rc.Request, rc.Params)
	for _, e := range outcome.Errors {
		rc.addDiagnostic(model.Diagnostic{Stage: "request_validation", Severity: severityFor(outcome), Message: e.Message, Pointer: e.Pointer})
	}
	if outcome.Blocked {
		enforceStatus := o.cfg.Validation.EnforceStatus
		if enforceStatus == 0 {
			enforceStatus = 400
		}
		problem := validation.NewProblem(enforceStatus, "request validation failed", outcome)
		rc.rejected = true
		rc.setResponse(&Response{Status: problem.Status, Body: marshalProblem(problem), Problem: &problem})
	}
}

// marshalProblem renders problem as its wire body. A Problem is a
// plain struct built from already-validated data, so marshaling it
// cannot fail in practice; on the unreachable error path this falls
// back to Detail so the client still sees which pointer failed instead
// of an empty body.
func marshalProblem(problem validation.Problem) []byte {
	body, err := json.Marshal(problem)
	if err != nil {
		return []byte(`{"title":"` + problem.Title + `","detail":"` + problem.Detail + `"}`)
	}
	return body
}

func severityFor(outcome validation.Outcome) model.Severity {
	if outcome.Blocked {
		return model.SeverityError
	}
	return model.SeverityWarn
}

// stageResponseGeneration is stage 8: synthesize a default body from
// the resolved operation's schema for its chosen status, or, when the
// workspace's reality continuum (SPEC_FULL.md's "reality ratio
// blending") draws real, fetch the live upstream response instead. The
// draw uses state.ShouldUseReal, an independent generator stream keyed
// by (seed, request id) so it neither depends on nor perturbs chaos's
// or template's own streams (spec.md §4.5).
func (o *Orchestrator) stageResponseGeneration(ctx context.Context, rc *requestState) {
	if rc.halted() || rc.Operation == nil {
		// A routing miss leaves no response, so Handle answers 404.
		return
	}
	if o.tryRealResponse(ctx, rc) {
		return
	}
	status := pickStatus(rc.Operation)
	var schema any
	if rc.Operation != nil {
		schema, _ = rc.Operation.ResponseSchemaFor(status)
	}
	rc.setResponse(&Response{Status: statusToInt(status), Body: generateDefaultBody(schema)})
}

// tryRealResponse implements the reality continuum's "Mirror"/"Blended"
// side: when the workspace's RealityRatio draw comes up real and a
// Forwarder is configured, the upstream's live response is used in
// place of the synthesized default. A fetch failure falls back to the
// synthesized default rather than failing the request, since reality
// blending is a best-effort enrichment, not a routing requirement.
func (o *Orchestrator) tryRealResponse(ctx context.Context, rc *requestState) bool {
	if o.Forwarder == nil || rc.State.RealityRatio <= 0 {
		return false
	}
	if !state.ShouldUseReal(o.seedFor(rc.Request), rc.Request.ID, rc.State.RealityRatio) {
		return false
	}
	resp, err := o.Forwarder.Forward(ctx, rc.Request)
	if err != nil {
		return false
	}
	rc.setResponse(&Response{Status: resp.Status, Headers: resp.Headers, Body: resp.Body})
	return true
}

// stageOverrideApplication is stage 9.
func (o *Orchestrator) stageOverrideApplication(rc *requestState) {
	if rc.halted() || o.Overrides == nil || rc.Response == nil {
		return
	}
	rules := o.Overrides.Resolve(rc.Operation, rc.Request)
	if len(rules) == 0 {
		return
	}
	patched, diags := override.Apply(rules, rc.Response.Body)
	rc.Response.Body = patched
	rc.Diagnostics = append(rc.Diagnostics, diags...)
	for _, r := range rules {
		rc.AppliedOverrides = append(rc.AppliedOverrides, r.SourceFile)
	}
}

// stageTemplateExpansion is stage 10.
func (o *Orchestrator) stageTemplateExpansion(rc *requestState) {
	if rc.halted() || o.Templates == nil || rc.Response == nil || len(rc.Response.Body) == 0 {
		return
	}
	var decoded any
	if err := json.Unmarshal(rc.Response.Body, &decoded); err != nil {
		return
	}

	opName := ""
	if rc.Operation != nil {
		opName = rc.Operation.Name
	}
	tplCtx := template.Context{
		Seed:          o.seedFor(rc.Request),
		OperationName: opName,
		Request:       rc.Request,
		Params:        rc.Params,
		State:         &rc.State,
	}
	expanded, diags := o.Templates.Expand(tplCtx, decoded)
	rc.Diagnostics = append(rc.Diagnostics, diags...)

	body, err := json.Marshal(expanded)
	if err != nil {
		return
	}
	rc.Response.Body = body
}

func (o *Orchestrator) seedFor(req *model.ProtocolRequest) int64 {
	if v, ok := req.Header("X-MockForge-Seed"); ok && v != "" {
		return seedFromString(v)
	}
	return o.cfg.DefaultSeed
}

func seedFromString(s string) int64 {
	return int64(highwayhash.Sum64(append([]byte(nil), s...), seedHeaderKey[:]))
}

// stageResponseValidation is stage 11.
func (o *Orchestrator) stageResponseValidation(rc *requestState) {
	if rc.halted() || rc.Response == nil {
		return
	}
	status := intToStatus(rc.Response.Status)
	outcome, rule := validation.ValidateResponse(o.cfg.Validation, rc.Operation, status, rc.Response.Body, lastOverride(rc.AppliedOverrides))
	for _, e := range outcome.Errors {
		rc.addDiagnostic(model.Diagnostic{Stage: "response_validation", Severity: severityFor(outcome), Message: e.Message, Pointer: e.Pointer, Rule: rule})
	}
	if outcome.Blocked {
		rc.rejected = true
		rc.setResponse(&Response{Status: 500, Body: []byte(`{"error":"response failed schema validation"}`)})
	}
}

// lastOverride names "the offending override rule" for response-validation
// diagnostics (spec.md §4.4). applied is built in the priority-descending
// order Engine.Resolve returns, and override.Apply applies that slice
// back-to-front so the highest-priority rule's patch is the last one
// applied — the rule whose value survives any pointer conflict. That rule
// is applied[0], not applied[len(applied)-1].
func lastOverride(applied []string) string {
	if len(applied) == 0 {
		return ""
	}
	return applied[0]
}

// stagePostResponseShaping is stage 12, an always-run stage.
func (o *Orchestrator) stagePostResponseShaping(ctx context.Context, rc *requestState) {
	if o.Chaos == nil || rc.Response == nil {
		return
	}
	cfg := o.Chaos.Config()
	if !cfg.Enabled {
		return
	}
	dropped := o.Chaos.ShapeResponse(ctx, cfg.Shaping, len(rc.Response.Body))
	if dropped {
		rc.Response = &Response{Status: 499, Dropped: true, Body: []byte(`{"error":"packet loss"}`)}
	}
}

// stageProxyFallback is stage 13.
func (o *Orchestrator) stageProxyFallback(ctx context.Context, rc *requestState) {
	resp, err := o.Forwarder.Forward(ctx, rc.Request)
	if err != nil {
		rc.setResponse(errorResponse(err))
		return
	}
	rc.setResponse(&Response{Status: resp.Status, Headers: resp.Headers, Body: resp.Body})
}

// stageRecording is stage 14. A replay hit never rewrites the
// recording that produced it (spec.md §8).
func (o *Orchestrator) stageRecording(ctx context.Context, rc *requestState) {
	if o.Recorder == nil || rc.ReplayHit || rc.Response == nil {
		return
	}
	if rc.RequestKey == "" {
		rc.RequestKey = o.Recorder.Key(rc.Request.Method, rc.Request.Path, rc.Request.Query)
	}
	exchange := buildExchange(rc.Request, rc.Response, rc.StartedAt, time.Since(rc.StartedAt))
	o.Recorder.Record(ctx, rc.RequestKey, exchange)

	if o.Events != nil {
		dropped := o.Recorder.DroppedWrites()
		if prev := o.lastDropped.Swap(dropped); dropped > prev {
			o.Events.Publish(ctx, observability.Event{Kind: observability.EventRecordingBufferOverflow, Workspace: rc.State.WorkspaceID})
		}
	}
}

// stageObservability is stage 15, always run.
func (o *Orchestrator) stageObservability(ctx context.Context, rc *requestState) {
	if o.RequestLog == nil {
		return
	}
	opName := ""
	if rc.Operation != nil {
		opName = rc.Operation.Name
	}
	status := 0
	if rc.Response != nil {
		status = rc.Response.Status
	}
	o.RequestLog.Log(ctx, observability.RequestLogEntry{
		RequestID:        rc.Request.ID,
		Timestamp:        rc.StartedAt,
		Protocol:         rc.Request.Protocol,
		Method:           rc.Request.Method,
		Path:             rc.Request.Path,
		Status:           status,
		Duration:         time.Since(rc.StartedAt),
		OperationName:    opName,
		AppliedOverrides: rc.AppliedOverrides,
		TriggeredFaults:  rc.TriggeredFaults,
		ReplayHit:        rc.ReplayHit,
	})
}

func errorResponse(err error) *Response {
	return &Response{Status: apierrors.Code(err), Body: []byte(`{"error":"` + err.Error() + `"}`)}
}

func statusToInt(status string) int {
	n, err := strconv.Atoi(status)
	if err != nil || n == 0 {
		return 200
	}
	return n
}

func intToStatus(n int) string {
	if n == 0 {
		return "200"
	}
	return strconv.Itoa(n)
}
