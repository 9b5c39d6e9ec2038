// Package plan defines the domain types and the orchestration core of the
// plan-generation pipeline.
package plan

import (
	"encoding/json"
	"strings"
	"time"
)

// Request is a submitted questionnaire. APIKey and Email are required; every
// field not enumerated here is preserved in Extras and forwarded verbatim to
// the recommendation stage.
type Request struct {
	WebsiteURL string `json:"websiteUrl,omitempty"`
	APIKey     string `json:"apiKey"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`

	Extras map[string]any `json:"-"`
}

// knownRequestFields are the schema-enumerated keys of Request; everything
// else in the payload lands in Extras.
var knownRequestFields = map[string]struct{}{
	"websiteUrl": {},
	"apiKey":     {},
	"email":      {},
	"name":       {},
}

// UnmarshalJSON decodes the fixed fields and collects unrecognized keys into
// Extras.
func (r *Request) UnmarshalJSON(data []byte) error {
	type fixed Request
	var f fixed
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		if _, known := knownRequestFields[key]; known {
			continue
		}
		var v any
		if err := json.Unmarshal(val, &v); err != nil {
			return err
		}
		if f.Extras == nil {
			f.Extras = map[string]any{}
		}
		f.Extras[key] = v
	}
	*r = Request(f)
	return nil
}

// MarshalJSON re-flattens Extras alongside the fixed fields.
func (r Request) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extras)+4)
	for k, v := range r.Extras {
		out[k] = v
	}
	if r.WebsiteURL != "" {
		out["websiteUrl"] = r.WebsiteURL
	}
	out["apiKey"] = r.APIKey
	out["email"] = r.Email
	if r.Name != "" {
		out["name"] = r.Name
	}
	return json.Marshal(out)
}

// Answers merges the fixed fields and the extras into a single map for the
// generative stages. Extras never shadow the fixed keys.
func (r Request) Answers() map[string]any {
	out := make(map[string]any, len(r.Extras)+4)
	for k, v := range r.Extras {
		out[k] = v
	}
	if r.WebsiteURL != "" {
		out["websiteUrl"] = r.WebsiteURL
	}
	if r.Email != "" {
		out["email"] = r.Email
	}
	if r.Name != "" {
		out["name"] = r.Name
	}
	return out
}

// TaskStatus is the lifecycle state of a plan-generation task.
type TaskStatus string

// Task lifecycle states. Completed and Failed are terminal.
const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is the pollable record of one background pipeline run. Tasks live in
// process memory only; restarts lose them.
type Task struct {
	ID         string     `json:"taskId"`
	Status     TaskStatus `json:"status"`
	Result     *Payload   `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// WebsiteAnalysis is the model's critique of a website screenshot.
type WebsiteAnalysis struct {
	CompanyName       string   `json:"companyName"`
	Strengths         []string `json:"strengths"`
	Weaknesses        []string `json:"weaknesses"`
	Recommendations   []string `json:"recommendations"`
	OverallImpression string   `json:"overallImpression"`
}

// CrawlResult maps page URL to extracted visible text, bounded in page count
// and per-page length by the crawler.
type CrawlResult map[string]string

// CrawlErrorPrefix marks a crawl entry that records a fetch failure rather
// than page content. Consumers skip such entries.
const CrawlErrorPrefix = "Error:"

// Usable returns the entries carrying real page text.
func (c CrawlResult) Usable() CrawlResult {
	out := CrawlResult{}
	for u, text := range c {
		if text == "" || strings.HasPrefix(text, CrawlErrorPrefix) {
			continue
		}
		out[u] = text
	}
	return out
}

// Recommendation references a catalog entry by position and, when the model
// supplies it, by stable service id.
type Recommendation struct {
	ServiceIndex int    `json:"serviceIndex"`
	ServiceID    string `json:"serviceId"`
	Reason       string `json:"reason"`
}

// RecommendationSet is the structured output of the recommendation engine.
type RecommendationSet struct {
	Recommendations  []Recommendation `json:"recommendations"`
	ExecutiveSummary string           `json:"executiveSummary"`
	PlanTitle        string           `json:"planTitle"`
	SubTitle         string           `json:"subTitle"`
	CallToAction     string           `json:"callToAction"`
}

// DisplayRecommendation splices the resolved service name and description
// into a recommendation for presentation.
type DisplayRecommendation struct {
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// Payload is the full result carried by a completed task.
type Payload struct {
	PlanID           int64                   `json:"planId"`
	ClientID         int64                   `json:"clientId"`
	Recommendations  []DisplayRecommendation `json:"recommendations"`
	ExecutiveSummary string                  `json:"executiveSummary"`
	PlanTitle        string                  `json:"planTitle"`
	SubTitle         string                  `json:"subTitle"`
	CallToAction     string                  `json:"callToAction"`
	WebsiteAnalysis  *WebsiteAnalysis        `json:"websiteAnalysis"`
	ScreenshotBase64 string                  `json:"screenshotBase64,omitempty"`
}

// Agency is the tenant owning a service catalog, looked up by API key.
type Agency struct {
	ID          int64
	Name        string
	APIKey      string
	Description string
	Services    []Service
}

// Service is one catalog entry offered to clients.
type Service struct {
	ID              int64    `json:"-"`
	ServiceID       string   `json:"serviceId"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Outcomes        []string `json:"outcomes"`
	PriceLower      int      `json:"priceLower"`
	PriceUpper      int      `json:"priceUpper"`
	WhenToRecommend []string `json:"whenToRecommend"`
	Active          bool     `json:"-"`
}

// Client is a prospective customer, unique per (email, agency).
type Client struct {
	ID         int64
	Email      string
	Name       string
	WebsiteURL string
	AgencyID   int64
}
