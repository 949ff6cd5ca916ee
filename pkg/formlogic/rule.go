package formlogic

import (
	"encoding/json"
	"errors"
	"strings"
)

type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
)

func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan:
		return true
	default:
		return false
	}
}

func (o Operator) numeric() bool {
	return o == OpGreaterThan || o == OpLessThan
}

type MatchMode string

const (
	MatchAll MatchMode = "all"
	MatchAny MatchMode = "any"
)

var ErrInvalidMatchMode = errors.New("formlogic: invalid match mode (expected all|any)")

func ParseMatchMode(raw string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MatchAll:
		return MatchAll, nil
	case MatchAny:
		return MatchAny, nil
	default:
		return "", ErrInvalidMatchMode
	}
}

func (m *MatchMode) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseMatchMode(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type Rule struct {
	TriggerFieldID string   `json:"fieldId"`
	Operator       Operator `json:"operator"`
	Comparand      Value    `json:"value"`
}

// Unset reports whether the rule has not been filled in yet: no trigger
// field, no operator, or a blank comparand. A non-empty operator that is not
// recognised is malformed, not unset, and always evaluates to false.
func (r Rule) Unset() bool {
	if strings.TrimSpace(r.TriggerFieldID) == "" || strings.TrimSpace(string(r.Operator)) == "" {
		return true
	}
	switch r.Comparand.Kind() {
	case KindNone:
		return true
	case KindText:
		return strings.TrimSpace(r.Comparand.text) == ""
	default:
		return false
	}
}

type ConditionalLogic struct {
	Match MatchMode `json:"match"`
	Rules []Rule    `json:"rules"`
}

func (c ConditionalLogic) Empty() bool { return len(c.Rules) == 0 }

func (c ConditionalLogic) MarshalJSON() ([]byte, error) {
	type wire struct {
		Match MatchMode `json:"match"`
		Rules []Rule    `json:"rules"`
	}
	w := wire{Match: c.Match, Rules: c.Rules}
	if w.Match == "" {
		w.Match = MatchAll
	}
	if w.Rules == nil {
		w.Rules = []Rule{}
	}
	return json.Marshal(w)
}
