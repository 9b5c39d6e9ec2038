package llm

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/planform/planform/internal/plan"
)

//go:embed schemas/website_analysis.json
var websiteAnalysisSchema string

const analyzerSystemPrompt = "You are an expert web design and marketing consultant. " +
	"Analyze this website screenshot and provide specific, actionable feedback. " +
	"Format the output according to the website_analysis schema."

// ImageCompleter issues a structured prompt with an image attached.
type ImageCompleter interface {
	CompleteWithImage(ctx context.Context, p Prompt, png []byte) (string, error)
}

// WebsiteAnalyzer turns a first-fold screenshot into a structured critique.
type WebsiteAnalyzer struct {
	client ImageCompleter
}

// NewWebsiteAnalyzer constructs an analyzer over the given vision client.
func NewWebsiteAnalyzer(client ImageCompleter) *WebsiteAnalyzer {
	return &WebsiteAnalyzer{client: client}
}

// AnalyzeWebsite asks the model to critique the screenshot in the context of
// the client's questionnaire answers.
func (a *WebsiteAnalyzer) AnalyzeWebsite(
	ctx context.Context,
	screenshotPNG []byte,
	url string,
	answers map[string]any,
) (*plan.WebsiteAnalysis, error) {
	answersJSON, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}

	user := fmt.Sprintf(
		"Analyze the first fold of this website (%s) and provide insights on its design, "+
			"user experience, and effectiveness. Focus on strengths, weaknesses, and actionable "+
			"recommendations. The client has provided the following answers to a questionnaire:\n%s",
		url, answersJSON,
	)

	raw, err := a.client.CompleteWithImage(ctx, Prompt{
		System: analyzerSystemPrompt,
		User:   user,
		Schema: websiteAnalysisSchema,
	}, screenshotPNG)
	if err != nil {
		return nil, fmt.Errorf("analyze website: %w", err)
	}

	var analysis plan.WebsiteAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("parse website analysis: %w", err)
	}
	return &analysis, nil
}
