/*
Package factory provides JSON to Go conversion of contract terms.

PURPOSE:
  Contracts are configured as JSON (admin UI, API payloads, the terms_json
  column of the SQL stores). The factory turns that JSON into the sealed
  compensation.Term variants and back, rejecting anything a variant cannot
  carry.

JSON SCHEMA (one term):
  {"type": "base",        "amount": 250000, "frequency": "annual"}
  {"type": "wrvu",        "threshold": 4800, "rate": 45, "frequency": "annual"}
  {"type": "quality",     "frequency": "annual",
   "metrics": {"hcahps": {"threshold": 85, "bonus_amount": 7500}}}
  {"type": "collections", "rate": 0.10, "frequency": "quarterly"}

  Numbers may be JSON numbers or strings ("45.50"); both decode exactly.

RULES:
  - "type" is required and must be one of base, wrvu, quality, collections
  - "frequency" defaults to annual; any other unknown value is an error
  - base requires amount; wrvu requires threshold and rate;
    collections requires rate; quality requires at least one metric,
    each with threshold and bonus_amount
  - Errors are *compensation.ValidationError with Field "terms[i].field"

SEE ALSO:
  - compensation/term.go: Term variants
  - factory/presets.go: Standard contract shapes
*/
package factory

import (
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/warp/compensation-engine/compensation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TermJSON is the JSON representation of one term.
type TermJSON struct {
	Type      string                       `json:"type"`
	Amount    *decimal.Decimal             `json:"amount,omitempty"`
	Frequency string                       `json:"frequency,omitempty"`
	Threshold *decimal.Decimal             `json:"threshold,omitempty"`
	Rate      *decimal.Decimal             `json:"rate,omitempty"`
	Metrics   map[string]QualityTargetJSON `json:"metrics,omitempty"`
}

// QualityTargetJSON is one metric of a quality term.
// Both fields are required.
type QualityTargetJSON struct {
	Threshold   *decimal.Decimal `json:"threshold"`
	BonusAmount *decimal.Decimal `json:"bonus_amount"`
}

// ContractJSON is the JSON representation of a contract.
type ContractJSON struct {
	ID         string     `json:"id"`
	ProviderID string     `json:"provider_id"`
	Name       string     `json:"name"`
	StartDate  string     `json:"start_date"`
	EndDate    *string    `json:"end_date,omitempty"`
	Terms      []TermJSON `json:"terms"`
}

const dateLayout = "2006-01-02"

// =============================================================================
// PARSING
// =============================================================================

// ParseTerms decodes a JSON array of terms.
func ParseTerms(data []byte) ([]compensation.Term, error) {
	var tjs []TermJSON
	if err := json.Unmarshal(data, &tjs); err != nil {
		return nil, &compensation.ValidationError{Field: "terms", Reason: "malformed JSON: " + err.Error()}
	}
	return FromJSON(tjs)
}

// FromJSON converts decoded terms, validating each.
func FromJSON(tjs []TermJSON) ([]compensation.Term, error) {
	terms := make([]compensation.Term, 0, len(tjs))
	for i, tj := range tjs {
		term, err := termFromJSON(tj)
		if err == nil {
			err = term.Validate()
		}
		if err != nil {
			return nil, atIndex(i, err)
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// ParseContract decodes a full contract.
func ParseContract(data []byte) (compensation.Contract, error) {
	var cj ContractJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return compensation.Contract{}, &compensation.ValidationError{Field: "contract", Reason: "malformed JSON: " + err.Error()}
	}
	return ContractFromJSON(cj)
}

// ContractFromJSON converts a decoded contract.
func ContractFromJSON(cj ContractJSON) (compensation.Contract, error) {
	if cj.ID == "" {
		return compensation.Contract{}, &compensation.ValidationError{Field: "id", Reason: "is required"}
	}
	start, err := ParseDate("start_date", cj.StartDate)
	if err != nil {
		return compensation.Contract{}, err
	}

	contract := compensation.Contract{
		ID:         compensation.ContractID(cj.ID),
		ProviderID: compensation.ProviderID(cj.ProviderID),
		Name:       cj.Name,
		StartDate:  start,
	}
	if cj.EndDate != nil && *cj.EndDate != "" {
		end, err := ParseDate("end_date", *cj.EndDate)
		if err != nil {
			return compensation.Contract{}, err
		}
		if end.Before(start) {
			return compensation.Contract{}, &compensation.ValidationError{Field: "end_date", Reason: "must not be before start_date"}
		}
		contract.EndDate = &end
	}

	contract.Terms, err = FromJSON(cj.Terms)
	if err != nil {
		return compensation.Contract{}, err
	}
	return contract, nil
}

// ParseDate parses a YYYY-MM-DD date into a UTC calendar day.
func ParseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &compensation.ValidationError{Field: field, Reason: "is required"}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &compensation.ValidationError{Field: field, Reason: "expected YYYY-MM-DD"}
	}
	return compensation.Day(t), nil
}

func termFromJSON(tj TermJSON) (compensation.Term, error) {
	freq, err := parseFrequency(tj.Frequency)
	if err != nil {
		return nil, err
	}
	schedule := compensation.Schedule{Amount: orZero(tj.Amount), Frequency: freq}

	switch compensation.TermKind(tj.Type) {
	case compensation.TermBase:
		if tj.Amount == nil {
			return nil, missing("amount")
		}
		return compensation.BaseTerm{Schedule: schedule}, nil

	case compensation.TermProductivity:
		if tj.Threshold == nil {
			return nil, missing("threshold")
		}
		if tj.Rate == nil {
			return nil, missing("rate")
		}
		return compensation.ProductivityTerm{Schedule: schedule, Threshold: *tj.Threshold, Rate: *tj.Rate}, nil

	case compensation.TermQuality:
		names := make([]string, 0, len(tj.Metrics))
		for name := range tj.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		metrics := make(map[string]compensation.QualityTarget, len(tj.Metrics))
		for _, name := range names {
			m := tj.Metrics[name]
			if m.Threshold == nil {
				return nil, missing("metrics." + name + ".threshold")
			}
			if m.BonusAmount == nil {
				return nil, missing("metrics." + name + ".bonus_amount")
			}
			metrics[name] = compensation.QualityTarget{Threshold: *m.Threshold, BonusAmount: *m.BonusAmount}
		}
		return compensation.QualityBonusTerm{Schedule: schedule, Metrics: metrics}, nil

	case compensation.TermCollections:
		if tj.Rate == nil {
			return nil, missing("rate")
		}
		return compensation.CollectionsBonusTerm{Schedule: schedule, Rate: *tj.Rate}, nil

	case "":
		return nil, missing("type")
	default:
		return nil, &compensation.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown term type %q", tj.Type)}
	}
}

func parseFrequency(s string) (compensation.Frequency, error) {
	if s == "" {
		return compensation.FrequencyAnnual, nil
	}
	f := compensation.Frequency(s)
	if !f.Valid() {
		return "", &compensation.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", s)}
	}
	return f, nil
}

func missing(field string) error {
	return &compensation.ValidationError{Field: field, Reason: "is required"}
}

func atIndex(i int, err error) error {
	verr, ok := err.(*compensation.ValidationError)
	if !ok {
		return err
	}
	field := fmt.Sprintf("terms[%d]", i)
	if verr.Field != "" {
		field += "." + verr.Field
	}
	return &compensation.ValidationError{Field: field, Reason: verr.Reason, Err: verr.Err}
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// ToJSON converts terms to their JSON representation.
func ToJSON(terms []compensation.Term) []TermJSON {
	out := make([]TermJSON, 0, len(terms))
	for _, term := range terms {
		s := term.TermSchedule()
		tj := TermJSON{Type: string(term.Kind()), Frequency: string(s.Frequency), Amount: ptr(s.Amount)}
		switch t := term.(type) {
		case compensation.ProductivityTerm:
			tj.Threshold = ptr(t.Threshold)
			tj.Rate = ptr(t.Rate)
		case compensation.QualityBonusTerm:
			tj.Metrics = make(map[string]QualityTargetJSON, len(t.Metrics))
			for name, m := range t.Metrics {
				tj.Metrics[name] = QualityTargetJSON{Threshold: ptr(m.Threshold), BonusAmount: ptr(m.BonusAmount)}
			}
		case compensation.CollectionsBonusTerm:
			tj.Rate = ptr(t.Rate)
		}
		out = append(out, tj)
	}
	return out
}

// MarshalTerms encodes terms as a JSON array, the inverse of ParseTerms.
func MarshalTerms(terms []compensation.Term) ([]byte, error) {
	return json.Marshal(ToJSON(terms))
}

// ContractToJSON converts a contract to its JSON representation.
func ContractToJSON(c compensation.Contract) ContractJSON {
	cj := ContractJSON{
		ID:         string(c.ID),
		ProviderID: string(c.ProviderID),
		Name:       c.Name,
		StartDate:  c.StartDate.Format(dateLayout),
		Terms:      ToJSON(c.Terms),
	}
	if c.EndDate != nil {
		end := c.EndDate.Format(dateLayout)
		cj.EndDate = &end
	}
	return cj
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
