package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/clinicflow/clinicflow/internal/domain/proposal"
)

// evaluateConditions checks every guard on a transition against the
// proposal, returning a PreconditionError naming the first failing
// condition's description.
func evaluateConditions(p *proposal.Proposal, conds []Condition) error {
	if len(conds) == 0 {
		return nil
	}
	fields, err := proposalFields(p)
	if err != nil {
		return err
	}
	for _, c := range conds {
		ok, err := evaluate(fields, c)
		if err != nil {
			return err
		}
		if !ok {
			desc := c.Description
			if desc == "" {
				desc = fmt.Sprintf("%s %s %s", c.Field, c.Operator, c.Value)
			}
			return &PreconditionError{Condition: desc}
		}
	}
	return nil
}

// proposalFields flattens the proposal into its JSON field map so guard
// conditions can address fields by their wire names.
func proposalFields(p *proposal.Proposal) (map[string]interface{}, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode proposal for condition check: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode proposal for condition check: %w", err)
	}
	return fields, nil
}

func evaluate(fields map[string]interface{}, c Condition) (bool, error) {
	val, present := lookup(fields, c.Field)

	switch c.Operator {
	case OpIsEmpty:
		return !present || isEmpty(val), nil
	case OpIsNotEmpty:
		return present && !isEmpty(val), nil
	}

	if !present {
		// A missing field satisfies nothing but emptiness checks.
		return false, nil
	}

	switch c.Operator {
	case OpEquals:
		return compareEqual(val, c.Value), nil
	case OpNotEquals:
		return !compareEqual(val, c.Value), nil
	case OpGreaterThan, OpLessThan:
		lhs, lok := toFloat(val)
		rhs, err := strconv.ParseFloat(c.Value, 64)
		if !lok || err != nil {
			return false, nil
		}
		if c.Operator == OpGreaterThan {
			return lhs > rhs, nil
		}
		return lhs < rhs, nil
	case OpContains:
		s, ok := val.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(s, c.Value), nil
	default:
		return false, &ValidationError{Msg: fmt.Sprintf("unknown condition operator %q", c.Operator)}
	}
}

// lookup resolves a dot-separated field path against nested JSON objects.
func lookup(fields map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = fields
	for _, part := range parts {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// toFloat coerces JSON-decoded numeric values to float64 for ordering
// comparisons. Numeric strings count; anything else does not.
func toFloat(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func isEmpty(val interface{}) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	default:
		return false
	}
}

func compareEqual(val interface{}, want string) bool {
	switch v := val.(type) {
	case string:
		return v == want
	case float64:
		f, err := strconv.ParseFloat(want, 64)
		return err == nil && v == f
	case bool:
		b, err := strconv.ParseBool(want)
		return err == nil && v == b
	case nil:
		return want == ""
	default:
		return fmt.Sprintf("%v", v) == want
	}
}
