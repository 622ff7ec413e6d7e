// Package pricing suggests retail prices for catalog products.
//
// Stores tune pricing constantly, so the formula is scriptable: when a
// Lua rule is configured it runs against the product facts, otherwise a
// built-in cost-plus formula applies. Scripts are trusted configuration
// written by the store owner, not tenant input.
package pricing

import (
	"fmt"
	"log"

	"github.com/Shopify/go-lua"

	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
)

// DefaultMarginPercent applies when no rule script and no configured
// margin override exist.
const DefaultMarginPercent = 60

// workRatePerGram is the built-in per-gram labor component in minor
// units, by metal. It covers polishing and handling baked into sticker
// prices; scripts replace it entirely.
var workRatePerGram = map[domain.Metal]money.Amount{
	domain.MetalGold585:     1500,
	domain.MetalGold750:     2000,
	domain.MetalSilver925:   300,
	domain.MetalPlatinum950: 2500,
	domain.MetalSteel:       100,
	domain.MetalOther:       200,
}

// Facts describes one product for price suggestion.
type Facts struct {
	Cost     money.Amount
	WeightMg int64
	Metal    domain.Metal
	Category domain.Category
	StockQty int64
}

// Engine computes price suggestions from product facts.
type Engine struct {
	source        string
	marginPercent int64
	logf          func(format string, args ...any)
}

// Option configures an Engine.
type Option func(*Engine)

// WithScript installs a Lua rule. The script must define a global
// function suggest(job) returning the price in minor units.
func WithScript(source string) Option {
	return func(e *Engine) { e.source = source }
}

// WithMarginPercent overrides the built-in formula margin.
func WithMarginPercent(pct int64) Option {
	return func(e *Engine) {
		if pct > 0 {
			e.marginPercent = pct
		}
	}
}

// WithLogf overrides the warning sink, primarily for tests.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(e *Engine) {
		if logf != nil {
			e.logf = logf
		}
	}
}

// NewEngine builds a pricing engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		marginPercent: DefaultMarginPercent,
		logf:          log.Printf,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Suggest returns a suggested retail price for the product facts. A
// configured rule script takes precedence; script failures log a warning
// and fall back to the built-in formula. Suggestions never drop below
// cost.
func (e *Engine) Suggest(facts Facts) money.Amount {
	if e == nil {
		return clamp(defaultSuggest(facts, DefaultMarginPercent), facts.Cost)
	}
	if e.source == "" {
		return clamp(defaultSuggest(facts, e.marginPercent), facts.Cost)
	}

	suggested, err := e.runScript(facts)
	if err != nil {
		e.logf("pricing: rule script failed, using built-in formula: %v", err)
		return clamp(defaultSuggest(facts, e.marginPercent), facts.Cost)
	}
	return clamp(suggested, facts.Cost)
}

// runScript evaluates the rule in a fresh interpreter. States are cheap
// to build and sharing one across goroutines is not safe.
func (e *Engine) runScript(facts Facts) (money.Amount, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadString(state, e.source); err != nil {
		return 0, fmt.Errorf("load rule script: %w", err)
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return 0, fmt.Errorf("run rule script: %w", err)
	}

	state.Global("suggest")
	if state.TypeOf(-1) != lua.TypeFunction {
		state.Pop(1)
		return 0, fmt.Errorf("rule script must define suggest(job)")
	}

	pushFacts(state, facts)
	if err := state.ProtectedCall(1, 1, 0); err != nil {
		return 0, fmt.Errorf("call suggest: %w", err)
	}

	value, ok := state.ToNumber(-1)
	state.Pop(1)
	if !ok {
		return 0, fmt.Errorf("suggest must return a number")
	}
	if value < 0 {
		return 0, fmt.Errorf("suggest returned a negative price")
	}
	return money.Amount(value + 0.5), nil
}

func pushFacts(state *lua.State, facts Facts) {
	state.NewTable()
	state.PushInteger(int(facts.Cost))
	state.SetField(-2, "cost")
	state.PushNumber(float64(facts.WeightMg) / 1000.0)
	state.SetField(-2, "weight_grams")
	state.PushString(facts.Metal.String())
	state.SetField(-2, "metal")
	state.PushString(facts.Category.String())
	state.SetField(-2, "category")
	state.PushInteger(int(facts.StockQty))
	state.SetField(-2, "stock_qty")
}

// defaultSuggest is the built-in cost-plus formula: cost marked up by the
// margin, plus a per-gram work rate for the metal.
func defaultSuggest(facts Facts, marginPercent int64) money.Amount {
	price := facts.Cost.Add(facts.Cost.PercentOf(marginPercent))
	grams := facts.WeightMg / 1000
	if rate, ok := workRatePerGram[facts.Metal]; ok && grams > 0 {
		price = price.Add(rate.MulQty(grams))
	}
	return price
}

func clamp(suggested, cost money.Amount) money.Amount {
	if suggested < cost {
		return cost
	}
	return suggested
}
