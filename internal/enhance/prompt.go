package enhance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/harvestmap/trust-cli/internal/model"
)

const systemPrompt = `You are a data quality assistant for a directory of food
assistance locations (pantries, soup kitchens, meal programs). Given one
submitted record, research what is verifiable about the location and respond
with a single JSON object:

{
  "confidence": 0.0-1.0,
  "summary": "one-paragraph plain-language description of the location",
  "sources": ["https://most-authoritative-source-first", ...],
  "hours": {"monday": [{"open": "09:00", "close": "17:00"}], ...},
  "fields": {"name": "", "address": "", "phone": "", "website": "", "description": ""}
}

Rules:
- confidence reflects how well the submission matches authoritative sources.
- sources must be ordered most authoritative first.
- omit "hours" entirely if opening hours cannot be confirmed.
- in "fields", propose a value only when you can correct or complete the
  submitted one; otherwise leave it empty.
- respond with JSON only, no prose.`

func buildPrompt(r model.Resource) string {
	var b strings.Builder
	b.WriteString("Submitted record:\n")
	fmt.Fprintf(&b, "Name: %s\n", r.Name)
	if r.Address != "" {
		fmt.Fprintf(&b, "Address: %s, %s, %s %s\n", r.Address, r.City, r.State, r.ZipCode)
	}
	if r.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", r.Phone)
	}
	if r.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", r.Website)
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", r.Description)
	}
	if r.RawHours != "" {
		fmt.Fprintf(&b, "Hours as submitted: %s\n", r.RawHours)
	}
	return b.String()
}

// cleanJSON strips markdown code fences and surrounding prose that models
// sometimes emit despite instructions.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// parseProposal decodes the model's response. Confidence is clamped into
// [0, 1]; a missing summary is rejected.
func parseProposal(raw string) (*model.Proposal, error) {
	var p model.Proposal
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &p); err != nil {
		return nil, eris.Wrap(err, "enhance: parse proposal")
	}
	if p.Summary == "" {
		return nil, eris.New("enhance: proposal missing summary")
	}
	if p.Confidence < 0 {
		p.Confidence = 0
	}
	if p.Confidence > 1 {
		p.Confidence = 1
	}
	return &p, nil
}
