// Package recommend matches a prospective client to the agency's service
// catalog and writes the surrounding sales copy.
package recommend

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/planform/planform/internal/llm"
	"github.com/planform/planform/internal/plan"
)

//go:embed schemas/recommendation_set.json
var recommendationSchema string

// Engine composes one structured model request from the agency description,
// the full catalog, the merged questionnaire answers and whatever enrichment
// survived, then validates the output strictly.
type Engine struct {
	client llm.Completer
}

// New constructs an Engine.
func New(client llm.Completer) *Engine {
	return &Engine{client: client}
}

// Recommend produces the recommendation set. Analysis and insights may each
// be absent; their prompt sections are simply omitted. Malformed model
// output, an empty recommendation list, missing copy fields or an
// out-of-range serviceIndex are errors, never coerced.
func (e *Engine) Recommend(
	ctx context.Context,
	agency plan.Agency,
	answers map[string]any,
	analysis *plan.WebsiteAnalysis,
	insights string,
) (plan.RecommendationSet, error) {
	user, err := buildUserPrompt(agency.Services, answers, analysis, insights)
	if err != nil {
		return plan.RecommendationSet{}, err
	}

	raw, err := e.client.Complete(ctx, llm.Prompt{
		System: buildSystemPrompt(agency.Description),
		User:   user,
		Schema: recommendationSchema,
	})
	if err != nil {
		return plan.RecommendationSet{}, fmt.Errorf("recommendation request: %w", err)
	}

	var set plan.RecommendationSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return plan.RecommendationSet{}, fmt.Errorf("parse recommendation output: %w", err)
	}
	if err := Validate(set, len(agency.Services)); err != nil {
		return plan.RecommendationSet{}, err
	}
	return set, nil
}

// Validate enforces the structural contract on a recommendation set against
// a catalog of the given length.
func Validate(set plan.RecommendationSet, catalogLen int) error {
	if len(set.Recommendations) == 0 {
		return fmt.Errorf("recommendation list is empty")
	}
	for i, rec := range set.Recommendations {
		if rec.ServiceIndex < 0 || rec.ServiceIndex >= catalogLen {
			return fmt.Errorf(
				"recommendation %d: serviceIndex %d out of range for catalog of %d services",
				i, rec.ServiceIndex, catalogLen,
			)
		}
	}
	if set.ExecutiveSummary == "" || set.PlanTitle == "" || set.SubTitle == "" || set.CallToAction == "" {
		return fmt.Errorf("recommendation output is missing required copy fields")
	}
	return nil
}

func buildSystemPrompt(agencyDesc string) string {
	return fmt.Sprintf("You are an expert business consultant that works for the agency and helps match "+
		"client needs to appropriate services. Provide structured, specific recommendations that are "+
		"directly tied to the client's responses. A brief description of the agency is: %s. "+
		"Keep this in mind and remember you work for this agency. Format the output according to the "+
		"service_recommendations schema. When recommending services, your reason for recommending should "+
		"be based on powerful sales tactics and proving value to the client. The executive summary should "+
		"be a masterpiece of sales copy, selling outcomes and emotions rather than features: a business "+
		"the client can be proud of, competitors left behind.", agencyDesc)
}

func buildUserPrompt(
	catalog []plan.Service,
	answers map[string]any,
	analysis *plan.WebsiteAnalysis,
	insights string,
) (string, error) {
	answersJSON, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal answers: %w", err)
	}
	catalogJSON, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal catalog: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I have a client with the following responses to a questionnaire:\n%s\n\n", answersJSON)

	if analysis != nil {
		fmt.Fprintf(&b, "We analyzed the first fold of their website and found the following.\n"+
			"Overall impression: %s\nStrengths: %s\nWeaknesses: %s\nWebsite recommendations: %s\n\n",
			analysis.OverallImpression,
			strings.Join(analysis.Strengths, "; "),
			strings.Join(analysis.Weaknesses, "; "),
			strings.Join(analysis.Recommendations, "; "),
		)
	}
	if insights != "" {
		fmt.Fprintf(&b, "We also crawled their website and synthesized these company insights:\n%s\n\n", insights)
	}

	fmt.Fprintf(&b, "Based on these responses, recommend the most appropriate services from this catalog "+
		"(services are listed in order; serviceIndex refers to this ordering):\n%s\n\n", catalogJSON)

	b.WriteString("For each recommended service, provide a clear justification based on the client's " +
		"specific needs. Your response will be shown to the client, so address them directly and be " +
		"specific about the transformation each service delivers. The plan title is a powerful hook in " +
		"large text: ultra brief and punchy. The sub title is one short punchy sentence just below it. " +
		"The call to action appears on a button: just a few powerful, personalised words. Sell outcomes " +
		"and emotions, not features, and keep it brief but powerful.")
	return b.String(), nil
}
