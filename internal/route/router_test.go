package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/guard"
)

func newDefaultRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewDefault("")
	require.NoError(t, err)
	return r
}

func lowRisk() guard.Signal  { return guard.Signal{RiskLevel: guard.RiskLow} }
func highRisk() guard.Signal { return guard.Signal{RiskLevel: guard.RiskHigh} }

func TestRoute_KeywordMatching(t *testing.T) {
	r := newDefaultRouter(t)

	tests := []struct {
		name string
		msg  string
		want Kind
	}{
		{"hungarian marketing", "Van kedvezményes kuponod?", KindMarketing},
		{"english marketing", "is there a discount coupon today", KindMarketing},
		{"order status", "hol van a rendelésem, mikor jön a csomag?", KindOrderStatus},
		{"english order", "my order tracking shows no shipping update", KindOrderStatus},
		{"recommendation", "tudsz ajánlani valamit?", KindRecommendation},
		{"product info", "mennyi az ár és van készleten?", KindProductInfo},
		{"no match falls back", "szia, mi újság?", KindGeneral},
		{"empty message", "", KindGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := r.Route(tt.msg, lowRisk())
			assert.Equal(t, tt.want, dec.Kind)
		})
	}
}

func TestRoute_ThreatOverride(t *testing.T) {
	r := newDefaultRouter(t)

	// Marketing keywords present, but high threat short-circuits to general.
	dec := r.Route("kedvezmény kupon akció", highRisk())
	assert.Equal(t, KindGeneral, dec.Kind)
	assert.Zero(t, dec.Score)
	assert.Equal(t, TieBreakThreatOverride, dec.TieBreak)
}

func TestRoute_TieBreakPriorityOrder(t *testing.T) {
	r, err := New([]KeywordSet{
		{Kind: "product_info", Keywords: []string{"alpha"}},
		{Kind: "order_status", Keywords: []string{"beta"}},
	})
	require.NoError(t, err)

	// One hit each, weight 1.0 both: order_status outranks product_info.
	dec := r.Route("alpha beta", lowRisk())
	assert.Equal(t, KindOrderStatus, dec.Kind)
	assert.Equal(t, TieBreakPriorityOrder, dec.TieBreak)
	assert.Equal(t, 1.0, dec.Score)
}

func TestRoute_WeightBeatsHitCount(t *testing.T) {
	r, err := New([]KeywordSet{
		{Kind: "marketing", Weight: 3.0, Keywords: []string{"kupon"}},
		{Kind: "product_info", Keywords: []string{"ár", "készlet"}},
	})
	require.NoError(t, err)

	dec := r.Route("kupon ár készlet", lowRisk())
	assert.Equal(t, KindMarketing, dec.Kind)
	assert.Equal(t, 3.0, dec.Score)
	assert.Equal(t, TieBreakHighestScore, dec.TieBreak)
}

func TestRoute_Deterministic(t *testing.T) {
	r := newDefaultRouter(t)

	msg := "kedvezmény a rendelés mellé, és kérek egy ajánlást is"
	first := r.Route(msg, lowRisk())
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, r.Route(msg, lowRisk()))
	}
}

func TestRoute_CaseInsensitive(t *testing.T) {
	r := newDefaultRouter(t)
	assert.Equal(t, KindMarketing, r.Route("KUPON!!!", lowRisk()).Kind)
}

func TestNew_ConfigErrors(t *testing.T) {
	_, err := New([]KeywordSet{{Kind: "astrology", Keywords: []string{"mars"}}})
	assert.Error(t, err)

	_, err = New([]KeywordSet{{Kind: "marketing"}})
	assert.Error(t, err)

	_, err = New([]KeywordSet{{Kind: "marketing", Weight: -1, Keywords: []string{"kupon"}}})
	assert.Error(t, err)
}

func TestMergeTables_ReplacesWholeSet(t *testing.T) {
	defaults := []KeywordSet{
		{Kind: "marketing", Keywords: []string{"kupon", "akció"}},
		{Kind: "product_info", Keywords: []string{"ár"}},
	}
	overrides := []KeywordSet{
		{Kind: "marketing", Keywords: []string{"voucher"}},
	}

	merged := MergeTables(defaults, overrides)
	require.Len(t, merged, 2)
	assert.Equal(t, []string{"voucher"}, merged[0].Keywords)
}

func TestPurposeFor(t *testing.T) {
	tests := []struct {
		kind     Kind
		purpose  string
		category string
	}{
		{KindMarketing, PurposeMarketing, "contact_preferences"},
		{KindRecommendation, PurposePersonalization, "browsing_history"},
		{KindOrderStatus, PurposeNecessary, "order_history"},
		{KindProductInfo, PurposeNecessary, "catalog"},
		{KindGeneral, PurposeNecessary, "none"},
	}
	for _, tt := range tests {
		purpose, category := PurposeFor(tt.kind)
		assert.Equal(t, tt.purpose, purpose)
		assert.Equal(t, tt.category, category)
	}
}
