package httpx

import (
	"net/http"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var supportedLanguages = language.NewMatcher([]language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Indonesian,
	language.Japanese,
})

// Printer returns a message printer for the request's Accept-Language.
func Printer(r *http.Request) *message.Printer {
	tags, _, _ := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	tag, _, _ := supportedLanguages.Match(tags...)
	return message.NewPrinter(tag)
}

// DisplayAmounts renders amounts with two fraction digits using the
// request locale. Stored money is already at cent scale so the rounding is a
// no-op for persisted values.
func DisplayAmounts(r *http.Request, amounts map[string]decimal.Decimal) map[string]string {
	p := Printer(r)
	out := make(map[string]string, len(amounts))
	for key, amount := range amounts {
		f, _ := amount.RoundBank(2).Float64()
		out[key] = p.Sprintf("%v", number.Decimal(f, number.Scale(2)))
	}
	return out
}
