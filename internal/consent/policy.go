package consent

import (
	"context"
	"embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed rego/*.rego
var embeddedPolicies embed.FS

// regoQuery maps a query name to the OPA path evaluated for it.
type regoQuery struct {
	name  string
	query string
}

var purposeQueries = []regoQuery{
	{name: "allow", query: "data.chatbuddy.consent.allow"},
	{name: "fail_open", query: "data.chatbuddy.consent.fail_open"},
}

// PurposePolicy validates purpose/data-category pairs and decides which
// purposes may fail open, using the embedded Rego policy.
type PurposePolicy struct {
	prepared map[string]rego.PreparedEvalQuery
}

// NewPurposePolicy compiles the embedded purpose policy. A policy that does
// not compile is a fatal configuration error.
func NewPurposePolicy(ctx context.Context) (*PurposePolicy, error) {
	content, err := embeddedPolicies.ReadFile("rego/purposes.rego")
	if err != nil {
		return nil, fmt.Errorf("reading embedded purpose policy: %w", err)
	}

	prepared := make(map[string]rego.PreparedEvalQuery, len(purposeQueries))
	for _, q := range purposeQueries {
		r := rego.New(
			rego.Query(q.query),
			rego.Module("rego/purposes.rego", string(content)),
		)
		pq, err := r.PrepareForEval(ctx)
		if err != nil {
			return nil, fmt.Errorf("preparing purpose policy query %s: %w", q.name, err)
		}
		prepared[q.name] = pq
	}

	return &PurposePolicy{prepared: prepared}, nil
}

// Allows reports whether the purpose may process the data category at all.
func (p *PurposePolicy) Allows(ctx context.Context, purpose, dataCategory string) (bool, error) {
	return p.evalBool(ctx, "allow", purpose, dataCategory)
}

// FailsOpen reports whether a collaborator outage may be treated as consent
// for this purpose.
func (p *PurposePolicy) FailsOpen(ctx context.Context, purpose string) (bool, error) {
	return p.evalBool(ctx, "fail_open", purpose, "")
}

func (p *PurposePolicy) evalBool(ctx context.Context, name, purpose, dataCategory string) (bool, error) {
	pq, ok := p.prepared[name]
	if !ok {
		return false, fmt.Errorf("purpose policy query %s not prepared", name)
	}
	input := map[string]interface{}{
		"purpose":       purpose,
		"data_category": dataCategory,
	}
	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluating purpose policy %s: %w", name, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}
