// Package offer turns a stored calculation into customer-facing line items,
// summary amounts and narrative sections, rendered as text or a workbook.
package offer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/kalkia/internal/pricing"
	"github.com/Simplici0/kalkia/internal/snapshot"
)

// Meta describes the offer document itself.
type Meta struct {
	Title     string
	Reference string
	Currency  string
	Date      time.Time
	Settings  pricing.Settings
}

// MetaFromSnapshot builds offer metadata from a stored calculation.
func MetaFromSnapshot(s *snapshot.Snapshot) Meta {
	return Meta{
		Title:     s.Title,
		Reference: s.ID,
		Currency:  s.Currency,
		Date:      s.CreatedAt,
		Settings:  s.Settings,
	}
}

type Line struct {
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	Note        string          `json:"note,omitempty"`
}

// Summary amounts are rounded to two decimals and add up exactly:
// SaleExclVAT - Discount = Net, Net + VAT = Total.
type Summary struct {
	SaleExclVAT        decimal.Decimal `json:"sale_excl_vat"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Discount           decimal.Decimal `json:"discount"`
	Net                decimal.Decimal `json:"net"`
	VATPercentage      decimal.Decimal `json:"vat_percentage"`
	VAT                decimal.Decimal `json:"vat"`
	Total              decimal.Decimal `json:"total"`
}

// Section is a block of narrative text. Internal sections are for the
// estimator and are kept out of the customer sheet.
type Section struct {
	Heading  string   `json:"heading"`
	Lines    []string `json:"lines"`
	Internal bool     `json:"internal,omitempty"`
}

type Offer struct {
	Meta     Meta      `json:"-"`
	Lines    []Line    `json:"lines"`
	Summary  Summary   `json:"summary"`
	Sections []Section `json:"sections"`
}

const otherCostsDescription = "Other costs"

// Assemble renders calc into an offer. The sale price excl. VAT is spread
// over the lines in proportion to each line's cost price, so the line
// amounts always add up to the summary.
func Assemble(calc pricing.Calculation, meta Meta) Offer {
	r := calc.Result

	o := Offer{
		Meta:     meta,
		Summary:  summarize(r, meta.Settings),
		Sections: make([]Section, 0, 3),
	}

	costs := make([]float64, 0, len(calc.Items)+1)
	for _, item := range calc.Items {
		costs = append(costs, item.TotalCost)
	}
	if r.OtherCosts > 0 {
		costs = append(costs, r.OtherCosts)
	}
	amounts := spread(o.Summary.SaleExclVAT, costs, r.CostPrice)

	o.Lines = make([]Line, 0, len(amounts))
	for i, item := range calc.Items {
		qty := decimal.NewFromFloat(item.Quantity)
		o.Lines = append(o.Lines, Line{
			Position:    i + 1,
			Description: describe(item),
			Quantity:    qty,
			UnitPrice:   amounts[i].Div(qty).Round(2),
			Amount:      amounts[i],
			Note:        item.Note,
		})
	}
	if len(amounts) > len(calc.Items) {
		amount := amounts[len(amounts)-1]
		o.Lines = append(o.Lines, Line{
			Position:    len(o.Lines) + 1,
			Description: otherCostsDescription,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   amount,
			Amount:      amount,
		})
	}

	o.Sections = append(o.Sections, scope(calc), assumptions(calc, meta), health(calc))
	return o
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func summarize(r pricing.Result, s pricing.Settings) Summary {
	sale := money(r.SalePriceExclVAT)
	net := money(r.NetPrice)
	total := money(r.FinalAmount)
	return Summary{
		SaleExclVAT:        sale,
		DiscountPercentage: decimal.NewFromFloat(s.DiscountPercentage),
		Discount:           sale.Sub(net),
		Net:                net,
		VATPercentage:      decimal.NewFromFloat(s.VATPercentage),
		VAT:                total.Sub(net),
		Total:              total,
	}
}

// spread divides total over weights proportionally, rounding each share to
// two decimals. The rounding remainder goes to the largest share.
func spread(total decimal.Decimal, weights []float64, weightSum float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(weights))
	if len(weights) == 0 {
		return out
	}
	if weightSum <= 0 {
		for i := range out {
			out[i] = decimal.Zero
		}
		out[0] = total
		return out
	}

	sum := decimal.NewFromFloat(weightSum)
	allocated := decimal.Zero
	largest := 0
	for i, w := range weights {
		out[i] = total.Mul(decimal.NewFromFloat(w)).Div(sum).Round(2)
		allocated = allocated.Add(out[i])
		if w > weights[largest] {
			largest = i
		}
	}
	out[largest] = out[largest].Add(total.Sub(allocated))
	return out
}

func describe(item pricing.CalculatedItem) string {
	if item.VariantName == "" {
		return item.ComponentName
	}
	return fmt.Sprintf("%s (%s)", item.ComponentName, item.VariantName)
}

func scope(calc pricing.Calculation) Section {
	hours := decimal.NewFromFloat(calc.Result.LaborHours).Round(1)
	lines := []string{
		fmt.Sprintf("The offer covers %d work items with an estimated %s labor hours.", len(calc.Items), hours.String()),
	}
	for _, item := range calc.Items {
		if item.Note != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", describe(item), item.Note))
		}
	}
	return Section{Heading: "Scope", Lines: lines}
}

// flagText phrases rule flags for the customer. Unknown flags are listed as is.
var flagText = map[string]string{
	"scaffolding":          "Scaffolding is included for roof work.",
	"supervision_required": "Apprentice work is carried out under supervision.",
}

var timeAdjustmentText = map[pricing.TimeAdjustment]string{
	pricing.TimeNormal:   "within normal working hours",
	pricing.TimeEvening:  "in the evening",
	pricing.TimeOvertime: "as overtime",
	pricing.TimeWeekend:  "during the weekend",
}

func assumptions(calc pricing.Calculation, meta Meta) Section {
	lines := []string{
		fmt.Sprintf("Prices are in %s. VAT is stated separately.", meta.Currency),
	}
	if when, ok := timeAdjustmentText[calc.Context.TimeAdjustment]; ok {
		lines = append(lines, fmt.Sprintf("Work is carried out %s.", when))
	}
	if calc.Context.BuildingType != "" {
		lines = append(lines, fmt.Sprintf("Time estimates assume a %s building.", calc.Context.BuildingType))
	}

	seen := map[string]bool{}
	var flags []string
	for _, item := range calc.Items {
		for _, f := range item.Flags {
			if !seen[f] {
				seen[f] = true
				flags = append(flags, f)
			}
		}
	}
	sort.Strings(flags)
	for _, f := range flags {
		if text, ok := flagText[f]; ok {
			lines = append(lines, text)
		} else {
			lines = append(lines, "Includes: "+strings.ReplaceAll(f, "_", " ")+".")
		}
	}
	return Section{Heading: "Assumptions", Lines: lines}
}

func health(calc pricing.Calculation) Section {
	r := calc.Result
	c := calc.Classification
	lines := []string{
		fmt.Sprintf("Status: %s. DB %s (%s%%), %s per labor hour.",
			c.Status,
			money(r.DBAmount).StringFixed(2),
			decimal.NewFromFloat(r.DBPercentage).Round(1).String(),
			money(r.DBPerHour).StringFixed(2),
		),
	}
	for _, w := range c.Warnings {
		lines = append(lines, "Warning: "+w.Message)
	}
	lines = append(lines, c.Recommendations...)
	return Section{Heading: "Coverage", Lines: lines, Internal: true}
}
