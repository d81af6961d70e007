package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/banktx/internal/config"
	"github.com/cleared-dev/banktx/internal/model"
)

// Options controls how transactions are rendered.
type Options struct {
	Location          *time.Location
	TimeLayout        string
	GroupingSeparator string
	DecimalSeparator  string
	FractionDigits    int32
}

// DefaultOptions renders UTC timestamps and amounts like "1 234.5".
func DefaultOptions() Options {
	return Options{
		Location:          time.UTC,
		TimeLayout:        "2006-01-02 15:04:05 MST",
		GroupingSeparator: " ",
		DecimalSeparator:  ".",
		FractionDigits:    2,
	}
}

// OptionsFromConfig resolves display settings into Options.
func OptionsFromConfig(cfg config.DisplayConfig) (Options, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return Options{}, fmt.Errorf("loading time zone %q: %w", cfg.TimeZone, err)
	}
	return Options{
		Location:          loc,
		TimeLayout:        cfg.TimeLayout,
		GroupingSeparator: cfg.GroupingSeparator,
		DecimalSeparator:  cfg.DecimalSeparator,
		FractionDigits:    cfg.FractionDigits,
	}, nil
}

// Formatter turns stored transactions into display rows.
type Formatter struct {
	opts Options
}

// New returns a Formatter. An unset Location, TimeLayout or DecimalSeparator
// falls back to DefaultOptions; an empty GroupingSeparator disables grouping.
func New(opts Options) *Formatter {
	def := DefaultOptions()
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if opts.TimeLayout == "" {
		opts.TimeLayout = def.TimeLayout
	}
	if opts.DecimalSeparator == "" {
		opts.DecimalSeparator = def.DecimalSeparator
	}
	return &Formatter{opts: opts}
}

// Format renders txs in the given order. The row with the strictly greatest
// positive amount is highlighted; on ties the first one wins.
func (f *Formatter) Format(txs []model.Transaction) []model.Row {
	hi := Highlight(txs)
	rows := make([]model.Row, len(txs))
	for i, t := range txs {
		rows[i] = model.Row{
			Reference:   t.Reference,
			Timestamp:   f.Timestamp(t.Timestamp),
			Amount:      f.Amount(t.Amount, t.Currency),
			Description: t.Description,
			Highlight:   i == hi,
		}
	}
	return rows
}

// Highlight returns the index of the largest positive amount, or -1.
func Highlight(txs []model.Transaction) int {
	best := -1
	for i, t := range txs {
		if !t.Amount.IsPositive() {
			continue
		}
		if best < 0 || t.Amount.GreaterThan(txs[best].Amount) {
			best = i
		}
	}
	return best
}

// Timestamp renders ts in the configured zone and layout.
func (f *Formatter) Timestamp(ts time.Time) string {
	return ts.In(f.opts.Location).Format(f.opts.TimeLayout)
}

// Amount renders d with banker's rounding, trailing zeros trimmed and the
// integer part grouped by three, followed by the currency.
func (f *Formatter) Amount(d decimal.Decimal, currency string) string {
	s := d.RoundBank(f.opts.FractionDigits).String()

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(group(intPart, f.opts.GroupingSeparator))
	if frac != "" {
		b.WriteString(f.opts.DecimalSeparator)
		b.WriteString(frac)
	}
	if currency != "" {
		b.WriteString(" ")
		b.WriteString(currency)
	}
	return b.String()
}

func group(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
