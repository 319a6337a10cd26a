package verify

import (
	"regexp"
	"strings"
)

// tickerLikePattern matches uppercase tokens of 1-5 letters, the shape of US
// exchange tickers.
var tickerLikePattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// symbolStoplist holds common short words and acronyms that look like tickers
// but never are in assistant prose. Kept deliberately small and fixed so the
// hallucination check stays deterministic.
var symbolStoplist = map[string]struct{}{
	// Pronouns, articles, conjunctions, prepositions
	"A": {}, "I": {}, "AN": {}, "AS": {}, "AT": {}, "BE": {}, "BY": {},
	"DO": {}, "GO": {}, "IF": {}, "IN": {}, "IS": {}, "IT": {}, "MY": {},
	"NO": {}, "OF": {}, "OK": {}, "ON": {}, "OR": {}, "SO": {}, "TO": {},
	"UP": {}, "US": {}, "WE": {}, "ALL": {}, "AND": {}, "ANY": {}, "ARE": {},
	"BUT": {}, "CAN": {}, "DID": {}, "FOR": {}, "HAS": {}, "HOW": {},
	"ITS": {}, "MAY": {}, "NOT": {}, "NOW": {}, "OUT": {}, "PER": {},
	"THE": {}, "WAS": {}, "WHO": {}, "WHY": {}, "YES": {}, "YOU": {},
	"FROM": {}, "HAVE": {}, "THAT": {}, "THIS": {}, "WHAT": {}, "WHEN": {},
	"WITH": {}, "YOUR": {},
	// Finance acronyms and units
	"AI": {}, "API": {}, "CEO": {}, "CFO": {}, "EPS": {}, "ETF": {},
	"ETFS": {}, "FAQ": {}, "GDP": {}, "IPO": {}, "IRA": {}, "LLC": {},
	"NAV": {}, "NYSE": {}, "PE": {}, "REIT": {}, "ROI": {}, "VS": {},
	"YTD": {},
	// Currencies
	"AUD": {}, "CAD": {}, "CHF": {}, "EUR": {}, "GBP": {}, "JPY": {},
	"USD": {}, "USA": {},
	// Plain words that often appear in caps in answers
	"BUY": {}, "CASH": {}, "COST": {}, "FEES": {}, "GAIN": {}, "GOOD": {},
	"HIGH": {}, "HOLD": {}, "LOW": {}, "NEW": {}, "POOR": {}, "RISK": {},
	"SELL": {}, "SOLD": {}, "TAX": {}, "TOP": {}, "TOTAL": {},
}

// tickerLikeTokens extracts candidate ticker tokens from answer text,
// deduplicated in order of first appearance, with stoplisted words removed.
func tickerLikeTokens(text string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, token := range tickerLikePattern.FindAllString(text, -1) {
		if _, stop := symbolStoplist[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

// knownSymbolSet builds the set of recognized tokens from portfolio symbols.
// Class-share symbols like BRK.B contribute their separator-split parts too,
// since the token scanner never sees dots or hyphens.
func knownSymbolSet(symbols []string) map[string]struct{} {
	known := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		upper := strings.ToUpper(strings.TrimSpace(symbol))
		if upper == "" {
			continue
		}
		known[upper] = struct{}{}
		for _, part := range strings.FieldsFunc(upper, func(r rune) bool { return r == '.' || r == '-' }) {
			known[part] = struct{}{}
		}
	}
	return known
}
