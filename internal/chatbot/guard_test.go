package chatbot

import "testing"

func TestClassifyBlocksDenylistedTopics(t *testing.T) {
	g := NewGuard(DefaultTables())
	cases := []string{
		"Can you give me a recipe for pasta?",
		"help me with my algebra homework",
		"write me a poem about the sea",
		"can you diagnose this rash",
		"I need legal advice about my lease",
	}
	for _, msg := range cases {
		if cls := g.Classify(msg); !cls.Blocked {
			t.Errorf("Classify(%q).Blocked = false, want true", msg)
		}
	}
}

func TestClassifyScopeSignals(t *testing.T) {
	g := NewGuard(DefaultTables())
	cases := []struct {
		msg     string
		blocked bool
		inScope bool
	}{
		{"How do I reduce churn in my SaaS?", false, true},
		{"our onboarding funnel is leaky", false, true},
		{"I have a $3k budget for marketing", false, true},
		{"what's the weather like today", false, false},
		{"tell me a story about growth marketing", true, true},
	}
	for _, tc := range cases {
		cls := g.Classify(tc.msg)
		if cls.Blocked != tc.blocked || cls.SignalsInScope != tc.inScope {
			t.Errorf("Classify(%q) = {Blocked:%v InScope:%v}, want {Blocked:%v InScope:%v}",
				tc.msg, cls.Blocked, cls.SignalsInScope, tc.blocked, tc.inScope)
		}
	}
}

func TestHasBudgetSignal(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"I can spend $5000", true},
		{"we have around 3k to invest", true},
		{"roughly 2500 eur", true},
		{"what's your pricing?", true},
		{"our budget is tight", true},
		{"how does retention work", false},
		{"the k8s cluster is down", false},
	}
	for _, tc := range cases {
		if got := HasBudgetSignal(tc.msg); got != tc.want {
			t.Errorf("HasBudgetSignal(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestParseBudgetValue(t *testing.T) {
	cases := []struct {
		msg   string
		want  float64
		found bool
	}{
		{"we have $3k", 3000, true},
		{"around 2.5k to spend", 2500, true},
		{"budget is 1500", 1500, true},
		{"€ 7k for the launch", 7000, true},
		{"no numbers here", 0, false},
	}
	for _, tc := range cases {
		got, found := ParseBudgetValue(tc.msg)
		if found != tc.found || got != tc.want {
			t.Errorf("ParseBudgetValue(%q) = (%v, %v), want (%v, %v)", tc.msg, got, found, tc.want, tc.found)
		}
	}
}

func TestClassifyBudget(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{0, BudgetUnknown},
		{-50, BudgetUnknown},
		{500, BudgetLow},
		{1999, BudgetLow},
		{2000, BudgetMid},
		{4999, BudgetMid},
		{5000, BudgetHigh},
		{9999, BudgetHigh},
		{10000, BudgetEnterprise},
		{120000, BudgetEnterprise},
	}
	for _, tc := range cases {
		if got := ClassifyBudget(tc.value); got != tc.want {
			t.Errorf("ClassifyBudget(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestFormatBudget(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{3000, "3k"},
		{2500, "2.5k"},
		{1234, "1234"},
		{800, "800"},
		{10000, "10k"},
	}
	for _, tc := range cases {
		if got := FormatBudget(tc.value); got != tc.want {
			t.Errorf("FormatBudget(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}
