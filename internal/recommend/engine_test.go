package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/planform/planform/internal/llm"
	"github.com/planform/planform/internal/plan"
)

type stubCompleter struct {
	reply string
	err   error
	last  llm.Prompt
}

func (s *stubCompleter) Complete(_ context.Context, p llm.Prompt) (string, error) {
	s.last = p
	return s.reply, s.err
}

func catalog() []plan.Service {
	return []plan.Service{
		{ServiceID: "seo-audit", Name: "SEO Audit", Description: "Audit.", Outcomes: []string{"visibility"}},
		{ServiceID: "ppc", Name: "Paid Search", Description: "PPC.", Outcomes: []string{"leads"}},
	}
}

func validReply(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(plan.RecommendationSet{
		Recommendations: []plan.Recommendation{
			{ServiceIndex: 1, ServiceID: "ppc", Reason: "Immediate lead flow."},
		},
		ExecutiveSummary: "A plan that puts you ahead.",
		PlanTitle:        "Own Your Market",
		SubTitle:         "Leads this quarter, not next year.",
		CallToAction:     "Start now",
	})
	require.NoError(t, err)
	return string(data)
}

func TestRecommendParsesAndValidatesOutput(t *testing.T) {
	t.Parallel()

	client := &stubCompleter{reply: validReply(t)}
	engine := New(client)

	agency := plan.Agency{Description: "Boutique growth agency.", Services: catalog()}
	set, err := engine.Recommend(context.Background(), agency, map[string]any{"budget": "5k"}, nil, "")
	require.NoError(t, err)
	require.Len(t, set.Recommendations, 1)
	require.Equal(t, "ppc", set.Recommendations[0].ServiceID)
	require.Equal(t, "Own Your Market", set.PlanTitle)

	require.Contains(t, client.last.System, "Boutique growth agency.")
	require.Contains(t, client.last.User, `"budget": "5k"`)
	require.Contains(t, client.last.User, "seo-audit")
	require.NotEmpty(t, client.last.Schema)
}

func TestRecommendOmitsAbsentEnrichmentSections(t *testing.T) {
	t.Parallel()

	client := &stubCompleter{reply: validReply(t)}
	engine := New(client)

	_, err := engine.Recommend(context.Background(), plan.Agency{Services: catalog()}, nil, nil, "")
	require.NoError(t, err)
	require.NotContains(t, client.last.User, "first fold")
	require.NotContains(t, client.last.User, "company insights")
}

func TestRecommendIncludesEnrichmentWhenPresent(t *testing.T) {
	t.Parallel()

	client := &stubCompleter{reply: validReply(t)}
	engine := New(client)

	analysis := &plan.WebsiteAnalysis{
		OverallImpression: "solid but slow",
		Strengths:         []string{"clear offer"},
		Weaknesses:        []string{"slow pages"},
		Recommendations:   []string{"compress images"},
	}
	_, err := engine.Recommend(context.Background(), plan.Agency{Services: catalog()}, nil, analysis, "Acme sells anvils.")
	require.NoError(t, err)
	require.Contains(t, client.last.User, "solid but slow")
	require.Contains(t, client.last.User, "clear offer")
	require.Contains(t, client.last.User, "Acme sells anvils.")
}

func TestRecommendRejectsMalformedOutput(t *testing.T) {
	t.Parallel()

	engine := New(&stubCompleter{reply: "I think you should buy PPC!"})
	_, err := engine.Recommend(context.Background(), plan.Agency{Services: catalog()}, nil, nil, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse recommendation output")
}

func TestRecommendPropagatesModelError(t *testing.T) {
	t.Parallel()

	engine := New(&stubCompleter{err: errors.New("upstream unavailable")})
	_, err := engine.Recommend(context.Background(), plan.Agency{Services: catalog()}, nil, nil, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "recommendation request")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	good := plan.RecommendationSet{
		Recommendations:  []plan.Recommendation{{ServiceIndex: 0, Reason: "r"}},
		ExecutiveSummary: "s", PlanTitle: "t", SubTitle: "st", CallToAction: "cta",
	}
	require.NoError(t, Validate(good, 2))

	empty := good
	empty.Recommendations = nil
	require.Error(t, Validate(empty, 2))

	outOfRange := good
	outOfRange.Recommendations = []plan.Recommendation{{ServiceIndex: 2}}
	require.Error(t, Validate(outOfRange, 2))

	negative := good
	negative.Recommendations = []plan.Recommendation{{ServiceIndex: -1}}
	require.Error(t, Validate(negative, 2))

	missingCopy := good
	missingCopy.CallToAction = ""
	require.Error(t, Validate(missingCopy, 2))
}

func TestEmbeddedSchemaIsValidJSON(t *testing.T) {
	t.Parallel()

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(recommendationSchema), &v))
	require.NotEmpty(t, v)
}
