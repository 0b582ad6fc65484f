package models

import (
	"context"
	"sort"
	"time"

	"github.com/mmretail/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartLine is one line of a cart as seen by the tax engine: the variant's
// unit price, the quantity and the post-line-discount subtotal.
type CartLine struct {
	VariantId     int
	TaxCategoryId int
	UnitPrice     decimal.Decimal
	Quantity      decimal.Decimal
	Subtotal      decimal.Decimal
}

// CartContext carries cart-wide inputs to rule matching.
type CartContext struct {
	InvoiceTotal decimal.Decimal
	CustomerType string
	Now          time.Time
}

// RuleTax is one rule's rounded contribution to a line.
type RuleTax struct {
	RuleId   int
	RuleName string
	Rate     decimal.Decimal
	Amount   decimal.Decimal
}

type LineTax struct {
	Rules []RuleTax
	Total decimal.Decimal
}

type TaxBreakdown struct {
	Lines    []LineTax
	TotalTax decimal.Decimal
	// Inclusive reports that the resolved amounts are already contained in
	// the line prices rather than owed on top of them.
	Inclusive bool
}

// TaxRuleResolver selects applicable rules for each cart line and computes
// the tax amounts. Resolution itself is pure; the resolver only touches the
// store to load the active profile.
type TaxRuleResolver struct {
	db *gorm.DB
}

func NewTaxRuleResolver(db *gorm.DB) *TaxRuleResolver {
	return &TaxRuleResolver{db: db}
}

// ResolveForCart loads the active tax profile and resolves the cart against
// it. Absence of an active profile yields a zero breakdown.
func (r *TaxRuleResolver) ResolveForCart(ctx context.Context, lines []CartLine, cart CartContext) (*TaxBreakdown, error) {
	return r.resolveWithStore(ctx, r.db, 0, lines, cart)
}

// ResolveForProfile resolves against an explicit profile id, used when the
// caller overrides the active profile per bill.
func (r *TaxRuleResolver) ResolveForProfile(ctx context.Context, profileId int, lines []CartLine, cart CartContext) (*TaxBreakdown, error) {
	return r.resolveWithStore(ctx, r.db, profileId, lines, cart)
}

// resolveWithStore loads the profile through the given handle, so a caller
// holding an open transaction reads the same snapshot its writes will join.
// profileId 0 selects the active profile.
func (r *TaxRuleResolver) resolveWithStore(ctx context.Context, db *gorm.DB, profileId int, lines []CartLine, cart CartContext) (*TaxBreakdown, error) {
	var profile *TaxProfile
	var err error
	if profileId > 0 {
		profile, err = GetTaxProfile(ctx, db, profileId)
	} else {
		profile, err = ActiveTaxProfile(ctx, db)
	}
	if err != nil {
		return nil, err
	}
	return ResolveCartTax(profile, lines, cart)
}

// ResolveCartTax computes per-line and cart tax for a cart against a profile.
// A nil profile means an untaxed cart. Misconfigured rules (category scope with no
// category, inverted bands) fail the whole resolution with a ValidationError
// instead of being skipped: silently under-taxing is worse than a visible
// failure.
func ResolveCartTax(profile *TaxProfile, lines []CartLine, cart CartContext) (*TaxBreakdown, error) {
	breakdown := &TaxBreakdown{
		Lines:    make([]LineTax, len(lines)),
		TotalTax: decimal.Zero,
	}
	if profile == nil {
		return breakdown, nil
	}
	breakdown.Inclusive = profile.PricingMode == PricingModeInclusive

	rules := make([]*TaxRule, 0, len(profile.Rules))
	for i := range profile.Rules {
		rule := &profile.Rules[i]
		if err := rule.checkConfig(); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	// Evaluation order is a contract: ascending priority, id breaks ties.
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})

	now := cart.Now
	if now.IsZero() {
		now = time.Now()
	}

	for i, line := range lines {
		var applicable []*TaxRule
		for _, rule := range rules {
			if rule.appliesTo(line, cart, now) {
				applicable = append(applicable, rule)
			}
		}

		var lineTax LineTax
		if profile.PricingMode == PricingModeInclusive {
			lineTax = backOutInclusiveTax(line.Subtotal, applicable)
		} else {
			lineTax = addExclusiveTax(line.Subtotal, applicable)
		}
		breakdown.Lines[i] = lineTax
		breakdown.TotalTax = breakdown.TotalTax.Add(lineTax.Total)
	}

	breakdown.TotalTax = utils.RoundMoney(breakdown.TotalTax)
	return breakdown, nil
}

// addExclusiveTax applies rules on top of the net subtotal. Additive rules
// rate the original subtotal; compound rules rate the running subtotal as
// adjusted by every previously applied rule.
func addExclusiveTax(subtotal decimal.Decimal, rules []*TaxRule) LineTax {
	lineTax := LineTax{Total: decimal.Zero}
	running := subtotal
	for _, rule := range rules {
		base := subtotal
		if rule.IsCompound != nil && *rule.IsCompound {
			base = running
		}
		amount := utils.RoundMoney(utils.PercentOf(base, rule.RatePercent))
		running = running.Add(amount)
		lineTax.Rules = append(lineTax.Rules, RuleTax{
			RuleId:   rule.ID,
			RuleName: rule.Name,
			Rate:     rule.RatePercent,
			Amount:   amount,
		})
		lineTax.Total = lineTax.Total.Add(amount)
	}
	lineTax.Total = utils.RoundMoney(lineTax.Total)
	return lineTax
}

// backOutInclusiveTax divides tax out of a gross subtotal that already
// contains the net effect of all applicable rules. The cumulative multiplier
// grows additively for non-compound rules and multiplicatively per compound
// link, so net = gross / multiplier and each rule's share is recovered in
// priority order.
func backOutInclusiveTax(gross decimal.Decimal, rules []*TaxRule) LineTax {
	lineTax := LineTax{Total: decimal.Zero}
	if len(rules) == 0 {
		return lineTax
	}

	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)

	// factors[i] is the multiple of the net amount rule i contributes.
	factors := make([]decimal.Decimal, len(rules))
	multiplier := one
	for i, rule := range rules {
		rate := rule.RatePercent.Div(hundred)
		if rule.IsCompound != nil && *rule.IsCompound {
			factors[i] = rate.Mul(multiplier)
			multiplier = multiplier.Mul(one.Add(rate))
		} else {
			factors[i] = rate
			multiplier = multiplier.Add(rate)
		}
	}

	net := gross.DivRound(multiplier, utils.IntermediatePrecision)
	for i, rule := range rules {
		amount := utils.RoundMoney(net.Mul(factors[i]))
		lineTax.Rules = append(lineTax.Rules, RuleTax{
			RuleId:   rule.ID,
			RuleName: rule.Name,
			Rate:     rule.RatePercent,
			Amount:   amount,
		})
		lineTax.Total = lineTax.Total.Add(amount)
	}
	lineTax.Total = utils.RoundMoney(lineTax.Total)
	return lineTax
}

// The applicability predicate is a pipeline of independent checks ANDed
// together so each condition stays testable on its own.
func (rule *TaxRule) appliesTo(line CartLine, cart CartContext, now time.Time) bool {
	return rule.matchesScope(line) &&
		rule.priceBandContains(line.UnitPrice) &&
		rule.invoiceBandContains(cart.InvoiceTotal) &&
		rule.matchesCustomerType(cart.CustomerType) &&
		rule.validAt(now)
}

func (rule *TaxRule) matchesScope(line CartLine) bool {
	switch rule.Scope {
	case TaxRuleScopeGlobal:
		return true
	case TaxRuleScopeCategory:
		return rule.TaxCategoryId == line.TaxCategoryId
	case TaxRuleScopeProduct:
		return rule.VariantId == line.VariantId
	}
	return false
}

func (rule *TaxRule) priceBandContains(unitPrice decimal.Decimal) bool {
	if rule.PriceMin != nil && unitPrice.LessThan(*rule.PriceMin) {
		return false
	}
	if rule.PriceMax != nil && unitPrice.GreaterThan(*rule.PriceMax) {
		return false
	}
	return true
}

func (rule *TaxRule) invoiceBandContains(invoiceTotal decimal.Decimal) bool {
	if rule.InvoiceMin != nil && invoiceTotal.LessThan(*rule.InvoiceMin) {
		return false
	}
	if rule.InvoiceMax != nil && invoiceTotal.GreaterThan(*rule.InvoiceMax) {
		return false
	}
	return true
}

func (rule *TaxRule) matchesCustomerType(customerType string) bool {
	if rule.CustomerType == "" {
		return true
	}
	return rule.CustomerType == customerType
}

func (rule *TaxRule) validAt(now time.Time) bool {
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return false
	}
	if rule.ValidTo != nil && now.After(*rule.ValidTo) {
		return false
	}
	return true
}
