package offer

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Text renders o as plain text, internal sections included.
func Text(o Offer) string {
	var b strings.Builder

	title := o.Meta.Title
	if title == "" {
		title = "Offer"
	}
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len([]rune(title))))
	b.WriteString("\n")
	if o.Meta.Reference != "" {
		fmt.Fprintf(&b, "Reference: %s\n", o.Meta.Reference)
	}
	if !o.Meta.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", o.Meta.Date.Format("2006-01-02"))
	}
	b.WriteString("\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDescription\tQty\tUnit price\tAmount\t")
	for _, l := range o.Lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", l.Position, l.Description, l.Quantity.String(), l.UnitPrice.StringFixed(2), l.Amount.StringFixed(2))
	}
	_ = tw.Flush()
	b.WriteString("\n")

	s := o.Summary
	cur := o.Meta.Currency
	tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Sale price excl. VAT\t%s %s\t\n", s.SaleExclVAT.StringFixed(2), cur)
	if !s.Discount.IsZero() {
		fmt.Fprintf(tw, "Discount (%s%%)\t-%s %s\t\n", s.DiscountPercentage.String(), s.Discount.StringFixed(2), cur)
		fmt.Fprintf(tw, "Net price\t%s %s\t\n", s.Net.StringFixed(2), cur)
	}
	fmt.Fprintf(tw, "VAT (%s%%)\t%s %s\t\n", s.VATPercentage.String(), s.VAT.StringFixed(2), cur)
	fmt.Fprintf(tw, "Total\t%s %s\t\n", s.Total.StringFixed(2), cur)
	_ = tw.Flush()

	for _, sec := range o.Sections {
		b.WriteString("\n")
		b.WriteString(sec.Heading)
		if sec.Internal {
			b.WriteString(" (internal)")
		}
		b.WriteString("\n")
		for _, line := range sec.Lines {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
