package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Function names the voice agent can invoke.
const (
	FuncQualifyLead      = "qualify_lead"
	FuncScheduleFollowUp = "schedule_follow_up"
)

// Function is a decoded function invocation. The set is closed.
type Function interface {
	Name() string
	isFunction()
}

type QualifyLead struct {
	Params QualificationParameters
}

type ScheduleFollowUp struct {
	Params SchedulingParameters
}

type UnknownFunction struct {
	RawName string
}

func (QualifyLead) Name() string       { return FuncQualifyLead }
func (ScheduleFollowUp) Name() string  { return FuncScheduleFollowUp }
func (f UnknownFunction) Name() string { return f.RawName }

func (QualifyLead) isFunction()      {}
func (ScheduleFollowUp) isFunction() {}
func (UnknownFunction) isFunction()  {}

// QualificationParameters are the lead facts gathered during the call.
// Nil pointers mean the agent did not supply the field.
type QualificationParameters struct {
	BusinessType   *string
	TimeInBusiness *float64
	MonthlyRevenue *float64
	CreditScore    *CreditScore
	FundingNeeded  *float64
	Qualified      bool
}

// CreditScore is either a numeric score or a categorical band ("good", "650-700").
type CreditScore struct {
	Score    *float64
	Category string
}

// Value returns the score as it should be stored in the CRM.
func (c CreditScore) Value() any {
	if c.Score != nil {
		return *c.Score
	}
	return c.Category
}

// SchedulingParameters describe a requested callback.
type SchedulingParameters struct {
	// PreferredTime is the raw value, echoed verbatim in the task body.
	PreferredTime string
	// DueAt is PreferredTime parsed to UTC.
	DueAt time.Time
	Notes string
}

// DecodeFunction validates a function call's parameters into a typed Function.
// Unknown names decode to UnknownFunction without inspecting parameters.
func DecodeFunction(fc FunctionCall) (Function, error) {
	switch fc.Name {
	case FuncQualifyLead:
		p, err := decodeQualification(fc.Parameters)
		if err != nil {
			return nil, err
		}
		return QualifyLead{Params: p}, nil
	case FuncScheduleFollowUp:
		p, err := decodeScheduling(fc.Parameters)
		if err != nil {
			return nil, err
		}
		return ScheduleFollowUp{Params: p}, nil
	default:
		return UnknownFunction{RawName: fc.Name}, nil
	}
}

// parameterFields splits the parameters object into raw fields. Some agents
// send parameters as a JSON-encoded string; that form is unwrapped first.
func parameterFields(function string, raw json.RawMessage) (map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, &ParameterError{Function: function, Field: "parameters", Reason: "malformed string"}
		}
		raw = []byte(inner)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ParameterError{Function: function, Field: "parameters", Reason: "must be an object"}
	}
	return fields, nil
}

func present(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && !bytes.Equal(v, []byte("null"))
}

func decodeQualification(raw json.RawMessage) (QualificationParameters, error) {
	const fn = FuncQualifyLead
	var p QualificationParameters

	fields, err := parameterFields(fn, raw)
	if err != nil {
		return p, err
	}

	if v, ok := fields["businessType"]; ok && present(v) {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return p, &ParameterError{Function: fn, Field: "businessType", Reason: "must be a string"}
		}
		p.BusinessType = &s
	}
	for _, f := range []struct {
		name string
		dst  **float64
	}{
		{"timeInBusiness", &p.TimeInBusiness},
		{"monthlyRevenue", &p.MonthlyRevenue},
		{"fundingNeeded", &p.FundingNeeded},
	} {
		v, ok := fields[f.name]
		if !ok || !present(v) {
			continue
		}
		n, err := decodeNumber(v)
		if err != nil {
			return p, &ParameterError{Function: fn, Field: f.name, Reason: err.Error()}
		}
		*f.dst = &n
	}
	if v, ok := fields["creditScore"]; ok && present(v) {
		cs, err := decodeCreditScore(v)
		if err != nil {
			return p, &ParameterError{Function: fn, Field: "creditScore", Reason: err.Error()}
		}
		p.CreditScore = &cs
	}
	if v, ok := fields["qualified"]; ok && present(v) {
		q, err := decodeBool(v)
		if err != nil {
			return p, &ParameterError{Function: fn, Field: "qualified", Reason: err.Error()}
		}
		p.Qualified = q
	}
	return p, nil
}

func decodeScheduling(raw json.RawMessage) (SchedulingParameters, error) {
	const fn = FuncScheduleFollowUp
	var p SchedulingParameters

	fields, err := parameterFields(fn, raw)
	if err != nil {
		return p, err
	}

	v, ok := fields["preferredTime"]
	if !ok || !present(v) {
		return p, &ParameterError{Function: fn, Field: "preferredTime", Reason: "is required"}
	}
	if err := json.Unmarshal(v, &p.PreferredTime); err != nil {
		return p, &ParameterError{Function: fn, Field: "preferredTime", Reason: "must be a string"}
	}
	due, ok := parseTimestamp(p.PreferredTime)
	if !ok {
		return p, &ParameterError{Function: fn, Field: "preferredTime", Reason: fmt.Sprintf("unparseable time %q", p.PreferredTime)}
	}
	p.DueAt = due

	if v, ok := fields["notes"]; ok && present(v) {
		if err := json.Unmarshal(v, &p.Notes); err != nil {
			return p, &ParameterError{Function: fn, Field: "notes", Reason: "must be a string"}
		}
	}
	return p, nil
}

// decodeNumber accepts a JSON number or a numeric string.
func decodeNumber(v json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("must be a number")
}

func decodeCreditScore(v json.RawMessage) (CreditScore, error) {
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return CreditScore{Score: &n}, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return CreditScore{}, fmt.Errorf("must not be empty")
		}
		return CreditScore{Category: s}, nil
	}
	return CreditScore{}, fmt.Errorf("must be a number or a string")
}

// decodeBool accepts true/false and the strings true/false/yes/no (any case).
func decodeBool(v json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("must be a boolean")
}
