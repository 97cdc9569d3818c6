package normalize

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flight-booking-orchestrator/internal/reference"
)

var (
	terminalPattern    = regexp.MustCompile(`(?i)\bterminal\s*([A-Z0-9]{1,3})\b`)
	parenCodePattern   = regexp.MustCompile(`\(([A-Za-z]{3})\)`)
	carrierCodePattern = regexp.MustCompile(`^[A-Z0-9]{2,3}$`)
	flightNoPattern    = regexp.MustCompile(`^([A-Z][A-Z0-9]|[0-9][A-Z])\s*-?\s*(\d{1,4}[A-Z]?)$`)
	isoDuration        = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?$`)
	clockDuration      = regexp.MustCompile(`^(\d{1,3}):([0-5]\d)$`)
	durationPart       = regexp.MustCompile(`(?i)(\d+)\s*(days?|d|hours?|hrs?|h|minutes?|mins?|m)`)
	amountPattern      = regexp.MustCompile(`-?\d[\d.,]*`)
	currencyPattern    = regexp.MustCompile(`\b([A-Z]{3})\b`)
)

// ValidCarrierCode reports whether code is a 2-3 character provider carrier
// code. The placeholder codes YY and YYY are rejected.
func ValidCarrierCode(code string) bool {
	return carrierCodePattern.MatchString(code) && code != "YY" && code != "YYY"
}

// ValidAirportCode reports whether code is a 3-letter uppercase IATA code.
func ValidAirportCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ParseAirport extracts the IATA code and any embedded terminal from text
// like "DCA Terminal B", "Seattle (SEA)" or "Seattle-Tacoma International".
// A bare code is only accepted when it is the whole text once the terminal
// is removed; words inside a city name are never read as codes.
func ParseAirport(dir *reference.Directory, text string) (code, terminal string, err error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", "", ErrInvalidAirportCode
	}

	if m := terminalPattern.FindStringSubmatch(s); m != nil {
		terminal = strings.ToUpper(m[1])
		s = strings.TrimSpace(terminalPattern.ReplaceAllString(s, " "))
	}

	if m := parenCodePattern.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1]), terminal, nil
	}
	if code, ok := dir.AirportByName(s); ok {
		return code, terminal, nil
	}
	if upper := strings.ToUpper(s); ValidAirportCode(upper) {
		return upper, terminal, nil
	}
	return "", "", ErrInvalidAirportCode
}

// ResolveCarrier maps a carrier name, code or flight number to a provider
// carrier code.
func ResolveCarrier(dir *reference.Directory, text string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return "", false
	}
	if code, ok := dir.CarrierByName(s); ok {
		return code, true
	}
	if _, ok := dir.Carrier(s); ok && ValidCarrierCode(s) {
		return s, true
	}
	if code, ok := dir.MatchCarrierName(s); ok {
		return code, true
	}
	if ValidCarrierCode(s) && !isDigits(s) {
		return s, true
	}
	if prefix, _, ok := SplitFlightNumber(s); ok {
		return prefix, true
	}
	return "", false
}

// SplitFlightNumber splits "AS435" or "AS 435" into carrier prefix and number.
func SplitFlightNumber(s string) (prefix, number string, ok bool) {
	m := flightNoPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil || !ValidCarrierCode(m[1]) {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParseDuration converts "5h 45m", "5 hours 45 minutes", "05:45" or an
// ISO-8601 duration to the "PT5H45M" form.
func ParseDuration(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", ErrInvalidSchedule
	}

	var hours, minutes int
	upper := strings.ToUpper(s)
	switch {
	case isoDuration.MatchString(upper) && upper != "PT":
		m := isoDuration.FindStringSubmatch(upper)
		hours, _ = strconv.Atoi(m[1])
		minutes, _ = strconv.Atoi(m[2])
	case clockDuration.MatchString(s):
		m := clockDuration.FindStringSubmatch(s)
		hours, _ = strconv.Atoi(m[1])
		minutes, _ = strconv.Atoi(m[2])
	default:
		parts := durationPart.FindAllStringSubmatch(s, -1)
		if len(parts) == 0 {
			return "", ErrInvalidSchedule
		}
		for _, p := range parts {
			n, _ := strconv.Atoi(p[1])
			switch unit := strings.ToLower(p[2]); {
			case strings.HasPrefix(unit, "d"):
				hours += n * 24
			case strings.HasPrefix(unit, "h"):
				hours += n
			default:
				minutes += n
			}
		}
	}

	hours += minutes / 60
	minutes %= 60
	if hours == 0 && minutes == 0 {
		return "", ErrInvalidSchedule
	}

	var b strings.Builder
	b.WriteString("PT")
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dM", minutes)
	}
	return b.String(), nil
}

var currencySymbols = []struct{ symbol, code string }{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
}

// ParsePrice splits "168.02 USD", "$1,234.5", "168,02 EUR" or "EUR 99" into
// an amount with two fraction digits and a currency code. A single comma
// followed by exactly two digits is a decimal comma; any other separator
// layout must be valid thousands grouping. Negative amounts are rejected.
// An empty currency defaults to defaultCurrency.
func ParsePrice(text, defaultCurrency string) (amount, currency string, err error) {
	s := strings.TrimSpace(text)
	match := amountPattern.FindString(s)
	if match == "" || strings.HasPrefix(match, "-") {
		return "", "", ErrInvalidPrice
	}
	amount, err = decimalAmount(match)
	if err != nil {
		return "", "", err
	}

	rest := strings.Replace(s, match, " ", 1)
	if m := currencyPattern.FindStringSubmatch(strings.ToUpper(rest)); m != nil {
		currency = m[1]
	}
	if currency == "" {
		for _, cs := range currencySymbols {
			if strings.Contains(rest, cs.symbol) {
				currency = cs.code
				break
			}
		}
	}
	if currency == "" {
		currency = defaultCurrency
	}
	return amount, currency, nil
}

// decimalAmount reads a digit run with '.' and ',' separators.
func decimalAmount(raw string) (string, error) {
	raw = strings.TrimRight(raw, ".,")
	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")

	whole, frac := raw, ""
	var group string
	switch {
	case lastDot < 0 && lastComma < 0:
	case lastComma < 0:
		if strings.Count(raw, ".") > 1 {
			return "", ErrInvalidPrice
		}
		whole, frac = raw[:lastDot], raw[lastDot+1:]
	case lastDot < 0:
		if strings.Count(raw, ",") == 1 && len(raw)-lastComma-1 == 2 {
			whole, frac = raw[:lastComma], raw[lastComma+1:]
		} else {
			group = ","
		}
	case lastDot > lastComma:
		whole, frac, group = raw[:lastDot], raw[lastDot+1:], ","
	default:
		whole, frac, group = raw[:lastComma], raw[lastComma+1:], "."
	}

	if group != "" {
		if !thousandsGrouped(whole, group) {
			return "", ErrInvalidPrice
		}
		whole = strings.ReplaceAll(whole, group, "")
	}
	if !isDigits(whole) || frac != "" && !isDigits(frac) {
		return "", ErrInvalidPrice
	}
	if frac != "" {
		whole += "." + frac
	}
	return FormatAmount(whole)
}

// thousandsGrouped reports whether s is 1-3 digits followed by sep-separated
// groups of exactly three digits.
func thousandsGrouped(s, sep string) bool {
	parts := strings.Split(s, sep)
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// FormatAmount renders a non-negative decimal string with exactly two
// fraction digits, rounding half away from zero.
func FormatAmount(s string) (string, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok || r.Sign() < 0 {
		return "", ErrInvalidPrice
	}
	return r.FloatString(2), nil
}

// DivideAmount splits a two-digit amount across n travelers.
func DivideAmount(amount string, n int) (string, error) {
	r, ok := new(big.Rat).SetString(amount)
	if !ok || n <= 0 {
		return "", ErrInvalidPrice
	}
	return r.Quo(r, big.NewRat(int64(n), 1)).FloatString(2), nil
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 3:04 PM",
	"2006-01-02 3:04PM",
	time.RFC3339,
}

// ParseTimestamp returns a provider local timestamp "2006-01-02T15:04:05".
// Zone offsets are dropped, the wall clock time is kept.
func ParseTimestamp(text string) (string, error) {
	s := strings.TrimSpace(text)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02T15:04:05"), nil
		}
	}
	return "", ErrInvalidSchedule
}

// JoinDateTime combines separate date and time fields into one timestamp.
func JoinDateTime(date, clock string) (string, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" {
		return ParseTimestamp(clock)
	}
	if clock == "" {
		return ParseTimestamp(date)
	}
	if strings.Contains(clock, "T") || len(clock) > 10 && clock[4] == '-' {
		return ParseTimestamp(clock)
	}
	return ParseTimestamp(date + " " + strings.ToUpper(clock))
}

// FareClass maps free-text cabin names onto provider cabin values.
func FareClass(text string) string {
	s := strings.ToUpper(strings.TrimSpace(text))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "", "COACH", "MAIN", "MAIN_CABIN", "ECONOMY":
		return "ECONOMY"
	case "PREMIUM", "PREMIUM_ECONOMY":
		return "PREMIUM_ECONOMY"
	case "BUSINESS", "BUSINESS_CLASS":
		return "BUSINESS"
	case "FIRST", "FIRST_CLASS":
		return "FIRST"
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
