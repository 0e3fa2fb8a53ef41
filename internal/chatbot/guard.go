package chatbot

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Tables hold the keyword data driving the scope guard. They are injected as
// data rather than inlined in control flow so the lists can be unit-tested
// and extended independently.
type Tables struct {
	// Denylist blocks a message outright on a case-insensitive substring hit.
	Denylist []string
	// Allowlist marks a message as in-scope business/growth vocabulary.
	Allowlist []string
}

// DefaultTables returns the production classification tables.
func DefaultTables() Tables {
	return Tables{
		Denylist: []string{
			"recipe",
			"cook",
			"homework",
			"algebra",
			"calculus",
			"lyrics",
			"poem",
			"story",
			"diagnose",
			"medical",
			"legal",
		},
		Allowlist: []string{
			"saas",
			"b2b",
			"growth",
			"marketing",
			"positioning",
			"acquisition",
			"activation",
			"onboarding",
			"retention",
			"lifecycle",
			"churn",
			"funnel",
			"conversion",
			"mrr",
			"arr",
			"plg",
			"startup",
			"lead",
			"customer",
		},
	}
}

// Classification is the guard's verdict for one message.
type Classification struct {
	// Blocked means the message is clearly outside the assistant's mandate
	// and no model call should be spent on it.
	Blocked bool
	// SignalsInScope means the message carries budget or domain vocabulary,
	// so a heuristic fallback reply beats a flat decline when retrieval
	// comes back empty.
	SignalsInScope bool
}

// Guard is the cheap pre-filter run before any external call.
type Guard struct {
	tables Tables
}

// NewGuard builds a guard over the supplied tables.
func NewGuard(tables Tables) *Guard {
	return &Guard{tables: tables}
}

// Classify inspects a single message. Matching is case-insensitive substring
// matching; intentionally coarse. False negatives fall through to normal
// processing, false positives on the denylist are the accepted cost of not
// answering recipes and homework.
func (g *Guard) Classify(message string) Classification {
	text := strings.ToLower(message)
	var cls Classification
	for _, term := range g.tables.Denylist {
		if strings.Contains(text, term) {
			cls.Blocked = true
			break
		}
	}
	if HasBudgetSignal(message) {
		cls.SignalsInScope = true
		return cls
	}
	for _, term := range g.tables.Allowlist {
		if strings.Contains(text, term) {
			cls.SignalsInScope = true
			break
		}
	}
	return cls
}

var (
	budgetShorthandRe = regexp.MustCompile(`\b\d+(\.\d+)?\s?k\b`)
	currencyCodeRe    = regexp.MustCompile(`\b\d+(\.\d+)?\s?(usd|eur|gbp)\b`)
	budgetValueRe     = regexp.MustCompile(`[$€£]?\s?(\d+(\.\d+)?)(\s?k)?`)
	budgetWords       = []string{"budget", "pricing", "price", "cost"}
)

// HasBudgetSignal reports whether the message mentions money: currency
// symbols, "NNk" shorthand, three-letter currency codes, or pricing words.
func HasBudgetSignal(message string) bool {
	text := strings.ToLower(message)
	if strings.ContainsAny(text, "$€£") {
		return true
	}
	if budgetShorthandRe.MatchString(text) || currencyCodeRe.MatchString(text) {
		return true
	}
	for _, w := range budgetWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// ParseBudgetValue extracts the first numeric budget figure from the
// message, expanding "3k" style shorthand to 3000.
func ParseBudgetValue(message string) (float64, bool) {
	m := budgetValueRe.FindStringSubmatch(strings.ToLower(message))
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.Contains(m[3], "k") {
		value *= 1000
	}
	return value, true
}

// Budget bands used by the heuristic fallback reply.
const (
	BudgetUnknown    = "unknown"
	BudgetLow        = "low"
	BudgetMid        = "mid"
	BudgetHigh       = "high"
	BudgetEnterprise = "enterprise"
)

// ClassifyBudget places a parsed budget value into a band.
func ClassifyBudget(value float64) string {
	switch {
	case value <= 0:
		return BudgetUnknown
	case value < 2000:
		return BudgetLow
	case value < 5000:
		return BudgetMid
	case value < 10000:
		return BudgetHigh
	default:
		return BudgetEnterprise
	}
}

// FormatBudget renders a budget value the way a visitor would write it:
// "3k" for round thousands, plain digits otherwise.
func FormatBudget(value float64) string {
	if value >= 1000 && math.Mod(value, 100) == 0 {
		return strconv.FormatFloat(value/1000, 'f', -1, 64) + "k"
	}
	return fmt.Sprintf("%.0f", value)
}
