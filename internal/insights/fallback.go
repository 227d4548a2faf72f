// Package insights produces palm and face reading insights, either from a
// configured inference endpoint or from the built-in catalogs.
package insights

import (
	"fmt"
	"strings"
)

type Domain string

const (
	Palm Domain = "palm"
	Face Domain = "face"
)

// ParseDomain accepts "palm" or "face" in any letter case.
func ParseDomain(s string) (Domain, error) {
	switch Domain(strings.ToLower(strings.TrimSpace(s))) {
	case Palm:
		return Palm, nil
	case Face:
		return Face, nil
	}
	return "", fmt.Errorf("insights: unknown domain %q", s)
}

type InsightTemplate struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Advice  string `json:"advice"`
}

var palmCatalog = []InsightTemplate{
	{
		ID:      "life_line",
		Title:   "Life line",
		Summary: "Strong, continuous line indicates resilience and consistent vitality.",
		Advice:  "Protect rest cycles and hydrate; add weekly grounding walks.",
	},
	{
		ID:      "heart_line",
		Title:   "Heart line",
		Summary: "Gentle arc shows warmth and balanced empathy with clear limits.",
		Advice:  "State your emotional needs early; journaling improves clarity.",
	},
	{
		ID:      "head_line",
		Title:   "Head line",
		Summary: "Even depth suggests practical creativity and thoughtful execution.",
		Advice:  "Use 25-minute focus sprints; end sessions with a 3-bullet recap.",
	},
	{
		ID:      "fate_line",
		Title:   "Fate line",
		Summary: "Visible and upright fate line hints at steady career direction.",
		Advice:  "Commit to one flagship goal this quarter and block deep-work time.",
	},
}

var faceCatalog = []InsightTemplate{
	{
		ID:      "forehead",
		Title:   "Forehead",
		Summary: "Broad, smooth forehead shows strategic thinking and future orientation.",
		Advice:  "Plan in weekly horizons; write a 3-bullet intent each morning.",
	},
	{
		ID:      "eyes",
		Title:   "Eyes",
		Summary: "Even gaze suggests clear perception and empathy.",
		Advice:  "Leverage active listening; pause before responding to complex topics.",
	},
	{
		ID:      "nose",
		Title:   "Nose",
		Summary: "Centered bridge indicates steady ambition and practical drive.",
		Advice:  "Pick one career lever to push this month; track wins weekly.",
	},
	{
		ID:      "mouth",
		Title:   "Mouth",
		Summary: "Balanced lips hint at honest expression and relational warmth.",
		Advice:  "State intentions plainly; summarize conversations with next steps.",
	},
}

// Fallback returns the fixed four-entry catalog for domain in declaration
// order. Unknown domains get the palm catalog. The slice is a fresh copy.
func Fallback(domain Domain) []InsightTemplate {
	src := palmCatalog
	if domain == Face {
		src = faceCatalog
	}
	return append([]InsightTemplate(nil), src...)
}

// DefaultRetakeReason is shown when a retake is needed and the endpoint gave
// no reason of its own.
func DefaultRetakeReason(domain Domain) string {
	if domain == Face {
		return "We need a clearer face photo: keep the face centered, lit evenly, and avoid motion."
	}
	return "We need a clearer palm photo: use natural light, keep lines sharp, and fill the frame."
}
