package insights

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

const (
	MinSide     = 900
	MinAspect   = 0.6
	MaxAspect   = 1.4
	checkSharp  = "Sharp lines"
	checkRes    = "Resolution ≥ 900px"
	checkFrame  = "Centered framing"
	checkResAny = "Resolution check"
)

type QualityCheck struct {
	Label  string `json:"label"`
	Passed bool   `json:"passed"`
	Helper string `json:"helper,omitempty"`
}

// Quality is the outcome of inspecting the photo's dimensions.
type Quality struct {
	Checks  []QualityCheck
	LowRes  bool
	Decoded bool
}

// InspectImage checks resolution for both domains and framing for palms.
// An image whose dimensions cannot be read passes every check.
func InspectImage(domain Domain, data []byte) Quality {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		q := Quality{Checks: []QualityCheck{{Label: checkResAny, Passed: true}}}
		if domain == Palm {
			q.Checks = append(q.Checks, QualityCheck{Label: checkFrame, Passed: true})
		}
		return q
	}

	lowRes := cfg.Width < MinSide || cfg.Height < MinSide
	res := QualityCheck{Label: checkRes, Passed: !lowRes}
	if lowRes {
		if domain == Face {
			res.Helper = "Move closer so your face fills the frame."
		} else {
			res.Helper = "Retake closer to the hand."
		}
	}
	q := Quality{Checks: []QualityCheck{res}, LowRes: lowRes, Decoded: true}

	if domain == Palm {
		ratio := float64(cfg.Width) / float64(cfg.Height)
		off := ratio < MinAspect || ratio > MaxAspect
		frame := QualityCheck{Label: checkFrame, Passed: !off}
		if off {
			frame.Helper = "Keep palm upright and fill frame."
		}
		q.Checks = append(q.Checks, frame)
	}
	return q
}

// Report is a complete palm or face reading.
type Report struct {
	Domain       Domain            `json:"domain"`
	Insights     []InsightTemplate `json:"insights"`
	Checks       []QualityCheck    `json:"checks"`
	NeedsRetake  bool              `json:"needsRetake"`
	RetakeReason string            `json:"retakeReason,omitempty"`
	Source       Source            `json:"source"`
}

// Read inspects the image, asks the endpoint for insights and merges both
// into a Report. A retake is requested when the endpoint flags one or the
// photo is under resolution.
func (c *Client) Read(ctx context.Context, domain Domain, data []byte) Report {
	q := InspectImage(domain, data)
	res := c.Analyze(ctx, domain, data)

	r := Report{
		Domain:   domain,
		Insights: res.Insights,
		Checks:   q.Checks,
		Source:   res.Source,
	}
	if res.NeedsRetake || q.LowRes {
		r.NeedsRetake = true
		r.RetakeReason = res.Reason
		if r.RetakeReason == "" {
			r.RetakeReason = DefaultRetakeReason(domain)
		}
		if domain == Palm {
			r.Checks = append(r.Checks, QualityCheck{
				Label:  checkSharp,
				Passed: false,
				Helper: "Retake with steady hand and good light.",
			})
		}
	}
	return r
}
