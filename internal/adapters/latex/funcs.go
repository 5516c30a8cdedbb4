package latex

import (
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"memberdesk/backend/internal/domain"
)

var texReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`#`, `\#`,
	`^`, `\textasciicircum{}`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
	`%`, `\%`,
)

// Escape quotes LaTeX special characters in user supplied text.
func Escape(value string) string {
	return texReplacer.Replace(value)
}

var templateFuncs = template.FuncMap{
	"tex":   Escape,
	"money": formatMoney,
	"date":  formatDate,
}

// formatMoney renders amounts with two decimals; German documents use a
// decimal comma.
func formatMoney(locale string, amount decimal.Decimal) string {
	formatted := amount.StringFixed(2)
	if locale == domain.LocaleGerman {
		formatted = strings.Replace(formatted, ".", ",", 1)
	}
	return formatted
}

func formatDate(locale, value string) string {
	parsed, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return Escape(value)
	}
	if locale == domain.LocaleGerman {
		return parsed.Format("02.01.2006")
	}
	return parsed.Format("January 2, 2006")
}
