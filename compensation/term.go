/*
term.go - Compensation terms and their evaluation

PURPOSE:
  A contract is an ordered list of terms. Each term is one way the provider
  earns money in a period. Terms are a CLOSED set of variants, each with its
  own required parameters, so a field can never be "present but meaningless"
  for the variant it sits on.

TERM VARIANTS:
  BaseTerm:             contributes Amount unconditionally
  ProductivityTerm:     max(0, wRVUs - Threshold) * Rate
  QualityBonusTerm:     sum of BonusAmount for every metric at/above Threshold
  CollectionsBonusTerm: max(0, collections - expected) * Rate,
                        expected = wRVUs * ExpectedCollectionsPerWRVU

FREQUENCY:
  Every term carries a Frequency (annual, quarterly, monthly). It is
  informational. Evaluation never prorates by it: a monthly report against
  an annual base term returns the full annual amount. Callers that want
  period-scoped amounts must configure the term that way.

MISSING INPUTS:
  No variant fails on a missing optional input. A quality metric absent from
  the inputs simply does not meet its threshold.

SEE ALSO:
  - calculator.go: Sums term contributions into a breakdown
  - factory/terms.go: JSON representation and validation at the boundary
*/
package compensation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TERM KIND & FREQUENCY
// =============================================================================

// TermKind tags the variant of a Term.
type TermKind string

const (
	TermBase         TermKind = "base"
	TermProductivity TermKind = "wrvu"
	TermQuality      TermKind = "quality"
	TermCollections  TermKind = "collections"
)

// TermKinds lists every variant in breakdown order.
var TermKinds = []TermKind{TermBase, TermProductivity, TermQuality, TermCollections}

// Frequency is how often a term's amount is nominally paid.
type Frequency string

const (
	FrequencyAnnual    Frequency = "annual"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyMonthly   Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyAnnual, FrequencyQuarterly, FrequencyMonthly:
		return true
	}
	return false
}

// Schedule is shared by every term variant.
type Schedule struct {
	Amount    decimal.Decimal
	Frequency Frequency
}

func (s Schedule) validate() error {
	if s.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if !s.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Reason: "must be annual, quarterly or monthly"}
	}
	return nil
}

// =============================================================================
// TERM - Sealed sum type
// =============================================================================

// Term is one compensation term of a contract.
// Only the variants in this file implement it.
type Term interface {
	Kind() TermKind
	TermSchedule() Schedule
	Validate() error
	sealed()
}

// BaseTerm is a fixed salary component.
type BaseTerm struct {
	Schedule
}

// ProductivityTerm pays Rate per wRVU above Threshold.
type ProductivityTerm struct {
	Schedule
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// QualityTarget is the threshold and bonus for one quality metric.
type QualityTarget struct {
	Threshold   decimal.Decimal
	BonusAmount decimal.Decimal
}

// QualityBonusTerm pays a bonus per quality metric that meets its target.
type QualityBonusTerm struct {
	Schedule
	Metrics map[string]QualityTarget
}

// CollectionsBonusTerm pays Rate on collections above the expected baseline.
type CollectionsBonusTerm struct {
	Schedule
	Rate decimal.Decimal
}

func (BaseTerm) Kind() TermKind             { return TermBase }
func (ProductivityTerm) Kind() TermKind     { return TermProductivity }
func (QualityBonusTerm) Kind() TermKind     { return TermQuality }
func (CollectionsBonusTerm) Kind() TermKind { return TermCollections }

func (t BaseTerm) TermSchedule() Schedule             { return t.Schedule }
func (t ProductivityTerm) TermSchedule() Schedule     { return t.Schedule }
func (t QualityBonusTerm) TermSchedule() Schedule     { return t.Schedule }
func (t CollectionsBonusTerm) TermSchedule() Schedule { return t.Schedule }

func (BaseTerm) sealed()             {}
func (ProductivityTerm) sealed()     {}
func (QualityBonusTerm) sealed()     {}
func (CollectionsBonusTerm) sealed() {}

func (t BaseTerm) Validate() error { return t.Schedule.validate() }

func (t ProductivityTerm) Validate() error {
	if err := t.Schedule.validate(); err != nil {
		return err
	}
	if t.Threshold.IsNegative() {
		return &ValidationError{Field: "threshold", Reason: "must not be negative"}
	}
	if t.Rate.IsNegative() {
		return &ValidationError{Field: "rate", Reason: "must not be negative"}
	}
	return nil
}

func (t QualityBonusTerm) Validate() error {
	if err := t.Schedule.validate(); err != nil {
		return err
	}
	if len(t.Metrics) == 0 {
		return &ValidationError{Field: "metrics", Reason: "at least one metric is required"}
	}
	for name, target := range t.Metrics {
		if name == "" {
			return &ValidationError{Field: "metrics", Reason: "metric name is empty"}
		}
		if target.Threshold.IsNegative() || target.BonusAmount.IsNegative() {
			return &ValidationError{Field: "metrics." + name, Reason: "threshold and bonus must not be negative"}
		}
	}
	return nil
}

func (t CollectionsBonusTerm) Validate() error {
	if err := t.Schedule.validate(); err != nil {
		return err
	}
	if t.Rate.IsNegative() {
		return &ValidationError{Field: "rate", Reason: "must not be negative"}
	}
	return nil
}

// Compile-time checks
var (
	_ Term = BaseTerm{}
	_ Term = ProductivityTerm{}
	_ Term = QualityBonusTerm{}
	_ Term = CollectionsBonusTerm{}
)

// =============================================================================
// INPUTS
// =============================================================================

// Inputs are the aggregated period values terms are evaluated against.
type Inputs struct {
	WRVUs          decimal.Decimal
	Collections    decimal.Decimal
	QualityMetrics map[string]decimal.Decimal
}

// =============================================================================
// TERM EVALUATOR
// =============================================================================

// DefaultExpectedCollectionsPerWRVU is the collections baseline per wRVU
// used by collections bonuses when nothing else is configured.
var DefaultExpectedCollectionsPerWRVU = decimal.NewFromInt(55)

// TermEvaluator evaluates single terms. It is a pure function of its
// configuration and arguments.
type TermEvaluator struct {
	// ExpectedCollectionsPerWRVU multiplies wRVUs into the collections
	// baseline. Engine configuration, not a term parameter.
	ExpectedCollectionsPerWRVU decimal.Decimal
}

// NewTermEvaluator returns an evaluator with the given baseline multiplier.
// A zero or negative multiplier falls back to the default.
func NewTermEvaluator(expectedCollectionsPerWRVU decimal.Decimal) TermEvaluator {
	if !expectedCollectionsPerWRVU.IsPositive() {
		expectedCollectionsPerWRVU = DefaultExpectedCollectionsPerWRVU
	}
	return TermEvaluator{ExpectedCollectionsPerWRVU: expectedCollectionsPerWRVU}
}

// Evaluate returns the contribution of one term. Never negative.
func (e TermEvaluator) Evaluate(term Term, in Inputs) decimal.Decimal {
	switch t := term.(type) {
	case BaseTerm:
		return t.Amount
	case ProductivityTerm:
		return aboveThreshold(in.WRVUs, t.Threshold).Mul(t.Rate)
	case QualityBonusTerm:
		return evaluateQuality(t, in.QualityMetrics)
	case CollectionsBonusTerm:
		return aboveThreshold(in.Collections, e.ExpectedCollections(in.WRVUs)).Mul(t.Rate)
	default:
		return decimal.Zero
	}
}

// ExpectedCollections returns the collections baseline for a wRVU count.
func (e TermEvaluator) ExpectedCollections(wrvus decimal.Decimal) decimal.Decimal {
	perWRVU := e.ExpectedCollectionsPerWRVU
	if !perWRVU.IsPositive() {
		perWRVU = DefaultExpectedCollectionsPerWRVU
	}
	return wrvus.Mul(perWRVU)
}

func evaluateQuality(t QualityBonusTerm, metrics map[string]decimal.Decimal) decimal.Decimal {
	names := make([]string, 0, len(t.Metrics))
	for name := range t.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	bonus := decimal.Zero
	for _, name := range names {
		value, ok := metrics[name]
		if !ok {
			continue // absent metric never meets its threshold
		}
		target := t.Metrics[name]
		if value.GreaterThanOrEqual(target.Threshold) {
			bonus = bonus.Add(target.BonusAmount)
		}
	}
	return bonus
}

// aboveThreshold returns max(0, value - threshold).
func aboveThreshold(value, threshold decimal.Decimal) decimal.Decimal {
	excess := value.Sub(threshold)
	if excess.IsNegative() {
		return decimal.Zero
	}
	return excess
}
