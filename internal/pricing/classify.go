package pricing

import (
	"fmt"
	"math"
)

// Status is the coverage health of a calculation.
type Status string

const (
	StatusNegative Status = "negative"
	StatusCritical Status = "critical"
	StatusLow      Status = "low"
	StatusHealthy  Status = "healthy"
)

// Warning codes.
const (
	WarnDBNegative = "db_negative"
	WarnDBCritical = "db_critical"
	WarnDBLow      = "db_low"
	WarnDBPerHour  = "db_per_hour_low"
)

// Warning is one classifier finding with its recommendation.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Classification struct {
	Status          Status    `json:"status"`
	Warnings        []Warning `json:"warnings"`
	Recommendations []string  `json:"recommendations"`
}

// Thresholds configure the classifier. A DB percentage below CriticalBelow is
// critical, below LowBelow is low. DB per hour below MinDBPerHour warns.
type Thresholds struct {
	CriticalBelow float64 `json:"critical_below"`
	LowBelow      float64 `json:"low_below"`
	MinDBPerHour  float64 `json:"min_db_per_hour"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{CriticalBelow: 10, LowBelow: 20, MinDBPerHour: 200}
}

var recommendations = map[string][]string{
	WarnDBNegative: {
		"The offer is priced below cost. Raise the margin or review the material and labor estimates before sending.",
	},
	WarnDBCritical: {
		"Coverage is critically thin. Consider a higher margin or a smaller discount.",
		"Check that overhead and risk percentages reflect the actual job.",
	},
	WarnDBLow: {
		"Coverage is below target. Review the discount before sending the offer.",
	},
	WarnDBPerHour: {
		"Contribution per labor hour is low. Review time estimates or raise the hourly rate.",
	},
}

// Classifier maps a result to a health status. It is safe for concurrent use.
type Classifier struct {
	t Thresholds
}

// NewClassifier returns a classifier using t.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{t: t}
}

type band struct {
	below  float64
	status Status
	code   string
	label  string
}

func (c *Classifier) bands() []band {
	return []band{
		{below: 0, status: StatusNegative, code: WarnDBNegative, label: "negative"},
		{below: c.t.CriticalBelow, status: StatusCritical, code: WarnDBCritical, label: "critical"},
		{below: c.t.LowBelow, status: StatusLow, code: WarnDBLow, label: "low"},
		{below: math.Inf(1), status: StatusHealthy},
	}
}

// Classify returns the status for r's DB percentage plus any warnings. The DB
// per hour check runs independently of the status band.
func (c *Classifier) Classify(r Result) Classification {
	out := Classification{Warnings: []Warning{}, Recommendations: []string{}}

	for _, b := range c.bands() {
		if r.DBPercentage >= b.below {
			continue
		}
		out.Status = b.status
		if b.code != "" {
			out.Warnings = append(out.Warnings, Warning{
				Code:    b.code,
				Message: fmt.Sprintf("DB percentage %.2f %% is %s", r.DBPercentage, b.label),
			})
		}
		break
	}

	if r.DBPerHour < c.t.MinDBPerHour {
		out.Warnings = append(out.Warnings, Warning{
			Code:    WarnDBPerHour,
			Message: fmt.Sprintf("DB per hour %.2f is below %.2f", r.DBPerHour, c.t.MinDBPerHour),
		})
	}

	for _, w := range out.Warnings {
		out.Recommendations = append(out.Recommendations, recommendations[w.Code]...)
	}
	return out
}

// Classify uses DefaultThresholds.
func Classify(r Result) Classification {
	return NewClassifier(DefaultThresholds()).Classify(r)
}
