/*
calculator.go - Contract resolution and compensation breakdown

PURPOSE:
  Answers "how much did this provider earn for these inputs?" by resolving
  the contract active at the reference date and summing its terms.

FLOW:
  1. Provider must exist                     -> NotFoundError("Provider")
  2. A contract must be active at the date   -> NotFoundError("Active contract")
  3. Every term is validated                  -> ValidationError
  4. Every term is evaluated, grouped by kind into Breakdown
  5. Total = sum(Breakdown)

WHY NOT DEFAULT TO ZERO:
  A missing contract is surfaced, never reported as $0, because an empty
  result is indistinguishable from "earned nothing".

INVARIANT:
  CompensationResult.Total always equals the sum of Breakdown. The only
  constructor, NewCompensationResult, derives Total from Breakdown.

NO CACHING:
  The contract is read from DataAccess on every call.
*/
package compensation

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESULT
// =============================================================================

// TermLine is the contribution of one contract term, by position.
type TermLine struct {
	Index  int
	Kind   TermKind
	Amount decimal.Decimal
}

// CompensationResult is the outcome of evaluating a contract.
type CompensationResult struct {
	ContractID ContractID
	Breakdown  map[TermKind]decimal.Decimal
	Lines      []TermLine
	Total      decimal.Decimal
}

// NewCompensationResult groups term lines by kind and derives Total from
// the grouped breakdown.
func NewCompensationResult(contractID ContractID, lines []TermLine) CompensationResult {
	breakdown := make(map[TermKind]decimal.Decimal)
	for _, line := range lines {
		breakdown[line.Kind] = breakdown[line.Kind].Add(line.Amount)
	}

	total := decimal.Zero
	for _, kind := range TermKinds {
		if amount, ok := breakdown[kind]; ok {
			total = total.Add(amount)
		}
	}

	copied := make([]TermLine, len(lines))
	copy(copied, lines)
	return CompensationResult{
		ContractID: contractID,
		Breakdown:  breakdown,
		Lines:      copied,
		Total:      total,
	}
}

// BreakdownTotal re-sums the breakdown. Equal to Total by construction.
func (r CompensationResult) BreakdownTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, amount := range r.Breakdown {
		sum = sum.Add(amount)
	}
	return sum
}

// Amount returns the breakdown entry for a kind, zero when absent.
func (r CompensationResult) Amount(kind TermKind) decimal.Decimal {
	return r.Breakdown[kind]
}

func (r CompensationResult) clone() CompensationResult {
	breakdown := make(map[TermKind]decimal.Decimal, len(r.Breakdown))
	for k, v := range r.Breakdown {
		breakdown[k] = v
	}
	lines := make([]TermLine, len(r.Lines))
	copy(lines, r.Lines)
	return CompensationResult{ContractID: r.ContractID, Breakdown: breakdown, Lines: lines, Total: r.Total}
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator resolves the active contract and evaluates its terms.
type Calculator struct {
	Data      DataAccess
	Evaluator TermEvaluator
}

// NewCalculator creates a calculator with the default evaluator.
func NewCalculator(data DataAccess) *Calculator {
	return &Calculator{Data: data, Evaluator: NewTermEvaluator(decimal.Zero)}
}

// Calculate evaluates the contract active at period.End.
// An unknown provider is reported before a malformed period.
func (c *Calculator) Calculate(ctx context.Context, providerID ProviderID, period Period, in Inputs) (CompensationResult, error) {
	if err := c.requireProvider(ctx, providerID); err != nil {
		return CompensationResult{}, err
	}
	if err := period.Validate(); err != nil {
		return CompensationResult{}, err
	}
	return c.calculateContract(ctx, providerID, period.End, in)
}

// CalculateAsOf evaluates the contract active at a caller-supplied date.
func (c *Calculator) CalculateAsOf(ctx context.Context, providerID ProviderID, asOf time.Time, in Inputs) (CompensationResult, error) {
	if err := c.requireProvider(ctx, providerID); err != nil {
		return CompensationResult{}, err
	}
	return c.calculateContract(ctx, providerID, asOf, in)
}

func (c *Calculator) requireProvider(ctx context.Context, providerID ProviderID) error {
	provider, err := c.Data.GetProvider(ctx, providerID)
	if err != nil {
		return externalErr("provider", err)
	}
	if provider == nil {
		return &NotFoundError{Entity: "Provider", ID: string(providerID)}
	}
	return nil
}

// calculateContract skips the provider lookup; callers have done it.
func (c *Calculator) calculateContract(ctx context.Context, providerID ProviderID, asOf time.Time, in Inputs) (CompensationResult, error) {
	contract, err := c.Data.GetActiveContract(ctx, providerID, Day(asOf))
	if err != nil {
		return CompensationResult{}, externalErr("contract", err)
	}
	if contract == nil {
		return CompensationResult{}, &NotFoundError{Entity: "Active contract", ID: string(providerID)}
	}
	return c.Evaluate(*contract, in)
}

// Evaluate validates and evaluates every term of a contract. Pure.
func (c *Calculator) Evaluate(contract Contract, in Inputs) (CompensationResult, error) {
	lines := make([]TermLine, 0, len(contract.Terms))
	for i, term := range contract.Terms {
		if term == nil {
			return CompensationResult{}, &ValidationError{Field: termField(i), Reason: "term is empty"}
		}
		if err := term.Validate(); err != nil {
			return CompensationResult{}, prefixValidation(termField(i), err)
		}
		lines = append(lines, TermLine{
			Index:  i,
			Kind:   term.Kind(),
			Amount: c.Evaluator.Evaluate(term, in),
		})
	}
	return NewCompensationResult(contract.ID, lines), nil
}

func termField(i int) string {
	return "terms[" + strconv.Itoa(i) + "]"
}

func prefixValidation(prefix string, err error) error {
	if verr, ok := err.(*ValidationError); ok {
		field := prefix
		if verr.Field != "" {
			field = prefix + "." + verr.Field
		}
		return &ValidationError{Field: field, Reason: verr.Reason, Err: verr.Err}
	}
	return err
}
