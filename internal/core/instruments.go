package core

import "strings"

// exchangeSuffixes are stripped from raw tickers before any lookup.
var exchangeSuffixes = []string{".NS", ".NSE", ".BO", ".BSE"}

// NormalizeTicker upper-cases a ticker and strips any exchange suffix,
// e.g. "tcs.ns" -> "TCS". Every boundary that accepts a ticker calls this.
func NormalizeTicker(raw string) string {
	t := strings.ToUpper(strings.TrimSpace(raw))
	for _, suffix := range exchangeSuffixes {
		if strings.HasSuffix(t, suffix) {
			return strings.TrimSuffix(t, suffix)
		}
	}
	return t
}

// ExchangeSymbol returns the NSE-listed symbol for a normalized ticker.
func ExchangeSymbol(ticker string) string {
	return NormalizeTicker(ticker) + ".NS"
}

// Instrument is one tradable equity and the terms that identify it in headlines.
type Instrument struct {
	Ticker string
	Name   string
	Terms  []string
}

// DefaultInstruments returns the six NSE equities the pipeline covers.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Ticker: "TCS", Name: "Tata Consultancy Services",
			Terms: []string{"TCS", "Tata Consultancy", "Tata Consultancy Services", "IT services", "software services"}},
		{Ticker: "HDFCBANK", Name: "HDFC Bank",
			Terms: []string{"HDFC", "HDFC Bank", "housing development finance", "private bank", "banking"}},
		{Ticker: "BAJFINANCE", Name: "Bajaj Finance",
			Terms: []string{"Bajaj Finance", "Bajaj", "NBFC", "consumer finance", "financial services"}},
		{Ticker: "ASIANPAINT", Name: "Asian Paints",
			Terms: []string{"Asian Paints", "Asian Paint", "paint", "decorative", "coatings"}},
		{Ticker: "LEMONTREE", Name: "Lemon Tree Hotels",
			Terms: []string{"Lemon Tree", "hotel", "hospitality", "accommodation", "tourism"}},
		{Ticker: "VBL", Name: "Varun Beverages",
			Terms: []string{"Varun Beverages", "Varun", "beverages", "soft drinks", "pepsi", "cola"}},
	}
}

// Universe indexes instruments by normalized ticker.
type Universe map[string]Instrument

// NewUniverse builds a Universe, normalizing each ticker. The ticker itself
// is always one of the instrument's terms.
func NewUniverse(instruments []Instrument) Universe {
	u := make(Universe, len(instruments))
	for _, inst := range instruments {
		inst.Ticker = NormalizeTicker(inst.Ticker)
		if !containsFold(inst.Terms, inst.Ticker) {
			inst.Terms = append([]string{inst.Ticker}, inst.Terms...)
		}
		u[inst.Ticker] = inst
	}
	return u
}

// Lookup returns the instrument for a raw or normalized ticker.
func (u Universe) Lookup(raw string) (Instrument, bool) {
	inst, ok := u[NormalizeTicker(raw)]
	return inst, ok
}

func containsFold(terms []string, s string) bool {
	for _, t := range terms {
		if strings.EqualFold(t, s) {
			return true
		}
	}
	return false
}
