package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/audit"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/cache"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/consent"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/guard"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/handler"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
)

// fixture bundles an orchestrator with the fakes driving it.
type fixture struct {
	orch    *Orchestrator
	cache   *cache.Cache
	consent *consent.StaticService
	store   *audit.Store
	rec     *audit.Recorder
}

type fixtureOpts struct {
	factory handler.Factory
	cfg     Config
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	g, err := guard.NewDefault("")
	require.NoError(t, err)
	r, err := route.NewDefault("")
	require.NoError(t, err)
	policy, err := consent.NewPurposePolicy(context.Background())
	require.NoError(t, err)

	svc := consent.NewStaticService()
	gate := consent.NewGate(svc, policy)

	factory := opts.factory
	if factory == nil {
		factory = handler.StaticFactory(0.9)
	}
	c := cache.New(factory)

	store, err := audit.NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	rec := audit.NewRecorder(store, 64)

	return &fixture{
		orch:    New(g, gate, r, c, rec, opts.cfg),
		cache:   c,
		consent: svc,
		store:   store,
		rec:     rec,
	}
}

func userCtx(userID string) map[string]interface{} {
	return map[string]interface{}{"user_id": userID, "session_id": "sess-1"}
}

func TestProcessTurn_MarketingHappyPath(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.consent.Grant("u1", "marketing")

	res := f.orch.ProcessTurn(context.Background(), "Van kedvezményes kuponod?", userCtx("u1"), "sess-1")

	assert.Equal(t, StepCompleted, res.WorkflowStep)
	assert.Equal(t, route.KindMarketing, res.HandlerKind)
	assert.NotEmpty(t, res.ResponseText)
	assert.Equal(t, 0.9, res.Confidence)
	assert.GreaterOrEqual(t, res.Timings.DurationMS, int64(0))
	assert.False(t, res.Timings.CompletedAt.Before(res.Timings.StartedAt))
}

func TestProcessTurn_SecurityBlock(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	res := f.orch.ProcessTurn(context.Background(), `<script>document.location='evil'</script>`, userCtx("u1"), "sess-1")

	assert.Equal(t, StepFailed, res.WorkflowStep)
	assert.Zero(t, res.Confidence)
	assert.NotEmpty(t, res.ResponseText)
	assert.Equal(t, ReasonSecurityBlock, res.Metadata["reason"])
	assert.Empty(t, res.HandlerKind, "blocked turns never reach routing")

	// Blocked turns never touch the handler cache.
	assert.Zero(t, f.cache.Stats().TotalRequests)
}

func TestProcessTurn_HighRiskNeverExecutes(t *testing.T) {
	var executed atomic.Int64
	factory := func(kind route.Kind) (handler.Handler, error) {
		executed.Add(1)
		return handler.NewStaticHandler(kind, 0.9), nil
	}
	f := newFixture(t, fixtureOpts{factory: factory})

	inputs := []string{
		`<script>x</script>`,
		`' OR 1=1 --`,
		`hello <img onload=pwn()>`,
		`see javascript:alert(1)`,
	}
	for _, in := range inputs {
		res := f.orch.ProcessTurn(context.Background(), in, userCtx("u1"), "sess-1")
		assert.Equal(t, StepFailed, res.WorkflowStep, "input %q", in)
		assert.Equal(t, ReasonSecurityBlock, res.Metadata["reason"], "input %q", in)
	}
	assert.Zero(t, executed.Load(), "no handler may be constructed for blocked turns")
}

func TestProcessTurn_ConsentDenied(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	// No grant for marketing: gate denies.

	res := f.orch.ProcessTurn(context.Background(), "kupon kedvezmény akció", userCtx("u1"), "sess-1")

	assert.Equal(t, StepFailed, res.WorkflowStep)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, ReasonConsentDenied, res.Metadata["reason"])
	assert.Contains(t, res.ResponseText, "marketing", "response must name the purpose to grant")
	assert.Equal(t, "denied", res.Metadata["consent_reason"])
}

func TestProcessTurn_NecessaryPurposeNeedsNoGrant(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	res := f.orch.ProcessTurn(context.Background(), "hol a csomagom és a rendelésem?", userCtx("u1"), "sess-1")

	assert.Equal(t, StepCompleted, res.WorkflowStep)
	assert.Equal(t, route.KindOrderStatus, res.HandlerKind)
}

func TestProcessTurn_FactoryFailure(t *testing.T) {
	factory := func(kind route.Kind) (handler.Handler, error) {
		if kind == route.KindRecommendation {
			return nil, errors.New("model not loaded")
		}
		return handler.NewStaticHandler(kind, 0.9), nil
	}
	f := newFixture(t, fixtureOpts{factory: factory})
	f.consent.Grant("u1", "personalization")

	res := f.orch.ProcessTurn(context.Background(), "tudsz ajánlani valamit?", userCtx("u1"), "sess-1")

	assert.Equal(t, StepFailed, res.WorkflowStep)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, ReasonExecutionError, res.Metadata["reason"])
	assert.NotEmpty(t, res.ResponseText, "execution failures still answer the user")

	// The failed construction must not be cached.
	assert.Zero(t, f.cache.Stats().CachedCount)
}

// failingOnceHandler errors on the first execution and succeeds after.
type failingOnceHandler struct {
	kind  route.Kind
	calls atomic.Int64
}

func (h *failingOnceHandler) Kind() route.Kind { return h.kind }

func (h *failingOnceHandler) Execute(context.Context, string, map[string]interface{}) (*handler.Result, error) {
	if h.calls.Add(1) == 1 {
		return nil, errors.New("transient backend error")
	}
	return &handler.Result{Text: "second try worked", Confidence: 0.7}, nil
}

func (h *failingOnceHandler) Healthy(context.Context) error { return nil }

func TestProcessTurn_NoRetryByDefault(t *testing.T) {
	h := &failingOnceHandler{kind: route.KindOrderStatus}
	f := newFixture(t, fixtureOpts{
		factory: func(route.Kind) (handler.Handler, error) { return h, nil },
	})

	res := f.orch.ProcessTurn(context.Background(), "rendelés csomag szállítás", userCtx("u1"), "sess-1")

	assert.Equal(t, StepFailed, res.WorkflowStep)
	assert.Equal(t, int64(1), h.calls.Load(), "default attempt budget is one")
}

func TestProcessTurn_RetryPathSucceeds(t *testing.T) {
	h := &failingOnceHandler{kind: route.KindOrderStatus}
	f := newFixture(t, fixtureOpts{
		factory: func(route.Kind) (handler.Handler, error) { return h, nil },
		cfg:     Config{MaxAttempts: 2},
	})

	res := f.orch.ProcessTurn(context.Background(), "rendelés csomag szállítás", userCtx("u1"), "sess-1")

	assert.Equal(t, StepCompleted, res.WorkflowStep)
	assert.Equal(t, "second try worked", res.ResponseText)
	assert.Equal(t, int64(2), h.calls.Load())
	assert.Equal(t, 2, res.Metadata["attempt"])
}

// panickyHandler exercises the never-raise contract end to end.
type panickyHandler struct{ kind route.Kind }

func (h *panickyHandler) Kind() route.Kind { return h.kind }

func (h *panickyHandler) Execute(context.Context, string, map[string]interface{}) (*handler.Result, error) {
	panic("handler went sideways")
}

func (h *panickyHandler) Healthy(context.Context) error { return nil }

func TestProcessTurn_HandlerPanicNeverEscapes(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		factory: func(kind route.Kind) (handler.Handler, error) {
			return &panickyHandler{kind: kind}, nil
		},
	})

	var res *TurnResult
	require.NotPanics(t, func() {
		res = f.orch.ProcessTurn(context.Background(), "mennyi az ár?", userCtx("u1"), "sess-1")
	})
	assert.Equal(t, StepFailed, res.WorkflowStep)
	assert.Equal(t, ReasonExecutionError, res.Metadata["reason"])
}

func TestProcessTurn_FallbackForUnmatchedMessage(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	res := f.orch.ProcessTurn(context.Background(), "szia, mi a helyzet?", userCtx("u1"), "sess-1")

	assert.Equal(t, StepCompleted, res.WorkflowStep)
	assert.Equal(t, route.KindGeneral, res.HandlerKind)
}

func TestProcessTurn_AuditTrailOrder(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	res := f.orch.ProcessTurn(context.Background(), "hol a rendelésem?", userCtx("u1"), "sess-1")
	require.Equal(t, StepCompleted, res.WorkflowStep)
	f.rec.Close()

	events, err := f.store.List(context.Background(), "sess-1", "", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 5)

	byTurn, err := f.store.ByTurn(context.Background(), events[0].TurnID)
	require.NoError(t, err)
	var stages []audit.Stage
	for _, ev := range byTurn {
		stages = append(stages, ev.Stage)
	}
	assert.Equal(t, []audit.Stage{
		audit.StageGuard, audit.StageConsent, audit.StageRoute, audit.StageExecute, audit.StageTurn,
	}, stages)

	// Message content is hashed, never stored verbatim.
	for _, ev := range byTurn {
		if ev.MessageHash != "" {
			assert.Contains(t, ev.MessageHash, "sha256:")
		}
	}
}

func TestProcessTurn_ConcurrentTurnsShareOneInstance(t *testing.T) {
	var constructions atomic.Int64
	factory := func(kind route.Kind) (handler.Handler, error) {
		constructions.Add(1)
		return handler.NewStaticHandler(kind, 0.9), nil
	}
	f := newFixture(t, fixtureOpts{factory: factory})

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := f.orch.ProcessTurn(context.Background(), "mennyibe kerül, mi az ár?", userCtx("u1"), "sess-1")
			assert.Equal(t, StepCompleted, res.WorkflowStep)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), constructions.Load())
	assert.Equal(t, 1, f.orch.CacheStats().CachedCount)
}

func TestCacheHealthPassthrough(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.consent.Grant("u1", "marketing")
	_ = f.orch.ProcessTurn(context.Background(), "kupon?", userCtx("u1"), "sess-1")

	report := f.orch.CacheHealth(context.Background())
	assert.Contains(t, report.Healthy, route.KindMarketing)
	assert.Empty(t, report.Unhealthy)
}
