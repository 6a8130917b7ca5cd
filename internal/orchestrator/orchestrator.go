// Package orchestrator sequences one conversational turn: sanitize and
// screen the message, route it to a specialist kind, check consent for the
// realized purpose, execute against a cached handler and assemble the
// uniform response.
//
// The contract with the transport layer is absolute: ProcessTurn always
// returns a well-formed result. Security blocks, consent denials, handler
// construction failures and execution errors all resolve into a terminal
// state with a safe, user-presentable response; none of them surface as
// errors to the caller.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/audit"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/cache"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/consent"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/guard"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/handler"
	chatotel "github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/otel"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
)

var tracer = chatotel.Tracer("github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/orchestrator")

// Failure reasons surfaced in result metadata.
const (
	ReasonSecurityBlock  = "security_block"
	ReasonConsentDenied  = "consent_denied"
	ReasonExecutionError = "execution_error"
	ReasonInternalError  = "internal_error"
)

// Fixed failure responses. Wording quality is out of scope; these only have
// to be short, polite and safe.
const (
	refusalText = "Sajnálom, ezt az üzenetet biztonsági okokból nem tudom feldolgozni."
	apologyText = "Elnézést, technikai hiba történt. Kérlek, próbáld meg később újra."
)

func consentRequestText(purpose string) string {
	return fmt.Sprintf("Ehhez a funkcióhoz hozzájárulásodra van szükség (%s). Kérlek, engedélyezd a fiókbeállításokban.", purpose)
}

// Timings is the per-turn wall-clock accounting.
type Timings struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
}

// TurnResult is the uniform response for one turn.
type TurnResult struct {
	ResponseText string                 `json:"response_text"`
	Confidence   float64                `json:"confidence"`
	HandlerKind  route.Kind             `json:"handler_kind,omitempty"`
	WorkflowStep Step                   `json:"workflow_step"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Timings      Timings                `json:"timings"`
}

// Config tunes one orchestrator instance.
type Config struct {
	MaxMessageLen  int           // sanitize bound; 0 selects guard.DefaultMaxLen
	MaxAttempts    int           // handler execution attempts; 0 selects 1 (no retry)
	HandlerTimeout time.Duration // per-execution bound; 0 selects handler.DefaultTimeout
}

// Orchestrator drives the turn state machine. Construct once at process
// start and share across turns; all shared state lives in the cache and
// the audit recorder.
type Orchestrator struct {
	guard       *guard.Guard
	gate        *consent.Gate
	router      *route.Router
	cache       *cache.Cache
	invoker     *handler.Invoker
	recorder    *audit.Recorder
	maxLen      int
	maxAttempts int
}

// New wires an orchestrator from its collaborators.
func New(g *guard.Guard, gate *consent.Gate, r *route.Router, c *cache.Cache, rec *audit.Recorder, cfg Config) *Orchestrator {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Orchestrator{
		guard:       g,
		gate:        gate,
		router:      r,
		cache:       c,
		invoker:     handler.NewInvoker(cfg.HandlerTimeout),
		recorder:    rec,
		maxLen:      cfg.MaxMessageLen,
		maxAttempts: maxAttempts,
	}
}

// ProcessTurn runs one full turn. It always returns a result and never
// panics outward, whatever the handlers below it do.
func (o *Orchestrator) ProcessTurn(ctx context.Context, rawMessage string, userContext map[string]interface{}, sessionID string) (result *TurnResult) {
	turnID := "turn_" + uuid.New().String()[:12]
	st := newState(turnID, sessionID, rawMessage, userContext)

	ctx, span := tracer.Start(ctx, "orchestrator.process_turn",
		trace.WithAttributes(
			attribute.String("turn_id", turnID),
			attribute.String("session_id", sessionID),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("turn_id", turnID).
				Interface("panic", r).
				Msg("turn_panic_recovered")
			span.SetStatus(codes.Error, "panic")
			st.Fail("internal", fmt.Sprintf("panic: %v", r))
			result = o.failResult(ctx, st, ReasonInternalError, apologyText)
		}
	}()

	log.Info().
		Str("turn_id", turnID).
		Str("session_id", sessionID).
		Func(chatotel.LogTraceFields(ctx)).
		Msg("turn_started")

	// Stage 1: guard. Threat screening runs on the raw message so that
	// sanitization cannot strip the very patterns it is screening for.
	st.Threat = o.guard.DetectThreat(rawMessage)
	st.SanitizedMessage = o.guard.Sanitize(rawMessage, o.maxLen)
	span.SetAttributes(attribute.String("guard.risk_level", string(st.Threat.RiskLevel)))

	o.emit(st, audit.StageGuard, string(st.Threat.RiskLevel), func(ev *audit.Event) {
		ev.RiskLevel = string(st.Threat.RiskLevel)
		ev.MessageHash = audit.HashContent(rawMessage)
		if len(st.Threat.Reasons) > 0 {
			ev.Metadata = map[string]interface{}{"reasons": st.Threat.Reasons}
		}
	})

	if st.Threat.RiskLevel == guard.RiskHigh {
		st.Fail("guard", "message blocked by threat screening")
		span.SetStatus(codes.Error, ReasonSecurityBlock)
		return o.failResult(ctx, st, ReasonSecurityBlock, refusalText)
	}
	_ = st.Advance(StepGuarded)

	// Stage 2+3: route, then check consent against the realized decision.
	// Routing is computed first so the gate sees the real purpose instead
	// of a coarse pre-classification, but the state machine still records
	// consent before routed.
	st.Routing = o.router.Route(st.SanitizedMessage, st.Threat)
	purpose, dataCategory := route.PurposeFor(st.Routing.Kind)
	userID, _ := userContext["user_id"].(string)

	st.Consent = o.gate.Check(ctx, userID, purpose, dataCategory)
	o.emit(st, audit.StageConsent, consentDecision(st.Consent), func(ev *audit.Event) {
		ev.Reason = st.Consent.Reason
		ev.Metadata = map[string]interface{}{
			"purpose":       purpose,
			"data_category": dataCategory,
		}
	})

	if !st.Consent.Granted {
		st.Fail("consent", "consent not granted for "+purpose)
		span.SetStatus(codes.Error, ReasonConsentDenied)
		return o.failResult(ctx, st, ReasonConsentDenied, consentRequestText(purpose))
	}
	_ = st.Advance(StepConsented)

	_ = st.Advance(StepRouted)
	span.SetAttributes(
		attribute.String("route.kind", string(st.Routing.Kind)),
		attribute.Float64("route.score", st.Routing.Score),
	)
	o.emit(st, audit.StageRoute, string(st.Routing.Kind), func(ev *audit.Event) {
		ev.HandlerKind = string(st.Routing.Kind)
		ev.Score = st.Routing.Score
		ev.Metadata = map[string]interface{}{"tie_break": st.Routing.TieBreak}
	})

	// Stage 4: execute against the cached handler, bounded attempts.
	for {
		execStart := time.Now()
		res, err := o.executeOnce(ctx, st)
		o.emit(st, audit.StageExecute, executeDecision(err), func(ev *audit.Event) {
			ev.HandlerKind = string(st.Routing.Kind)
			ev.DurationMS = time.Since(execStart).Milliseconds()
			if err != nil {
				ev.Reason = err.Error()
			}
		})
		if err == nil {
			st.Result = res
			_ = st.Advance(StepExecuted)
			break
		}

		st.ErrorTrail = append(st.ErrorTrail, TrailEntry{Stage: "execute", Message: err.Error(), At: time.Now()})
		log.Warn().
			Str("turn_id", st.TurnID).
			Str("handler_kind", string(st.Routing.Kind)).
			Int("attempt", st.Attempt).
			Err(err).
			Msg("handler_execution_failed")

		if st.Attempt >= o.maxAttempts {
			st.Step = StepFailed
			span.SetStatus(codes.Error, ReasonExecutionError)
			return o.failResult(ctx, st, ReasonExecutionError, apologyText)
		}
		st.ResetForRetry()
	}

	// Stage 5: assemble.
	_ = st.Advance(StepCompleted)
	st.CompletedAt = time.Now()

	result = &TurnResult{
		ResponseText: st.Result.Text,
		Confidence:   st.Result.Confidence,
		HandlerKind:  st.Routing.Kind,
		WorkflowStep: st.Step,
		Metadata: map[string]interface{}{
			"tie_break":      st.Routing.TieBreak,
			"score":          st.Routing.Score,
			"risk_level":     string(st.Threat.RiskLevel),
			"consent_reason": st.Consent.Reason,
			"attempt":        st.Attempt,
			"handler":        st.Result.Metadata,
		},
		Timings: timings(st),
	}

	o.emitTurnSummary(st, "completed", "")
	recordTurnMetrics(ctx, float64(result.Timings.DurationMS), string(st.Routing.Kind), "completed")
	log.Info().
		Str("turn_id", st.TurnID).
		Str("handler_kind", string(st.Routing.Kind)).
		Int64("duration_ms", result.Timings.DurationMS).
		Func(chatotel.LogTraceFields(ctx)).
		Msg("turn_completed")
	return result
}

// executeOnce acquires and invokes the routed handler a single time.
func (o *Orchestrator) executeOnce(ctx context.Context, st *State) (*handler.Result, error) {
	h, err := o.cache.Acquire(ctx, st.Routing.Kind)
	if err != nil {
		return nil, err
	}
	return o.invoker.Execute(ctx, h, st.SanitizedMessage, st.UserContext)
}

// failResult resolves a terminal failure into a safe response. Every
// failure still produces a valid turn result with confidence zero and a
// machine-readable reason.
func (o *Orchestrator) failResult(ctx context.Context, st *State, reason, text string) *TurnResult {
	st.CompletedAt = time.Now()

	metadata := map[string]interface{}{
		"reason":     reason,
		"risk_level": string(st.Threat.RiskLevel),
	}
	if st.Consent.Reason != "" {
		metadata["consent_reason"] = st.Consent.Reason
	}
	if len(st.ErrorTrail) > 0 {
		metadata["error_trail"] = st.ErrorTrail
	}

	res := &TurnResult{
		ResponseText: text,
		Confidence:   0,
		WorkflowStep: StepFailed,
		Metadata:     metadata,
		Timings:      timings(st),
	}
	// A routed turn keeps its kind so operators can see where failures
	// concentrate; pre-routing failures have no kind to report.
	if st.Routing.Kind != "" {
		res.HandlerKind = st.Routing.Kind
	}

	o.emitTurnSummary(st, "failed", reason)
	recordTurnMetrics(ctx, float64(res.Timings.DurationMS), string(st.Routing.Kind), "failed")
	return res
}

// emit queues one audit event for a stage; mutate customizes it.
func (o *Orchestrator) emit(st *State, stage audit.Stage, decision string, mutate func(*audit.Event)) {
	if o.recorder == nil {
		return
	}
	ev := audit.NewEvent(st.TurnID, st.SessionID, stage)
	ev.Decision = decision
	if userID, ok := st.UserContext["user_id"].(string); ok {
		ev.UserID = userID
	}
	if mutate != nil {
		mutate(ev)
	}
	o.recorder.Enqueue(ev)
}

func (o *Orchestrator) emitTurnSummary(st *State, decision, reason string) {
	o.emit(st, audit.StageTurn, decision, func(ev *audit.Event) {
		ev.Reason = reason
		ev.HandlerKind = string(st.Routing.Kind)
		ev.Score = st.Routing.Score
		ev.RiskLevel = string(st.Threat.RiskLevel)
		ev.MessageHash = audit.HashContent(st.RawMessage)
		ev.DurationMS = timings(st).DurationMS
		ev.Metadata = map[string]interface{}{
			"workflow_step": string(st.Step),
			"attempt":       st.Attempt,
		}
	})
}

func timings(st *State) Timings {
	completed := st.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	return Timings{
		StartedAt:   st.StartedAt,
		CompletedAt: completed,
		DurationMS:  completed.Sub(st.StartedAt).Milliseconds(),
	}
}

func consentDecision(d consent.Decision) string {
	if d.Granted {
		return "granted"
	}
	return "denied"
}

func executeDecision(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// CacheStats exposes the handler cache counters for introspection.
func (o *Orchestrator) CacheStats() cache.Stats {
	return o.cache.Stats()
}

// CacheHealth probes the handler cache for introspection.
func (o *Orchestrator) CacheHealth(ctx context.Context) cache.HealthReport {
	return o.cache.HealthCheck(ctx)
}
