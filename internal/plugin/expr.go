package plugin

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/sluicehq/sluice/internal/registry"
)

// exprPlugin is a plugin whose capabilities are expr-lang programs loaded
// from a plugin file. It implements both capability interfaces; the loader
// wraps it when only one capability is declared.
type exprPlugin struct {
	flowID   string
	selector *vm.Program
	rules    []compiledRule
}

// selectorOnly exposes only the SchemaSelector capability.
type selectorOnly struct{ *exprPlugin }

// validatorOnly exposes only the CustomValidator capability.
type validatorOnly struct{ *exprPlugin }

// The wrappers hide the undeclared capability by shadowing its method
// without implementing the interface.
func (selectorOnly) ValidateCustom() {}
func (validatorOnly) SelectSchema()  {}

// FlowID implements Plugin.
func (p *exprPlugin) FlowID() string { return p.flowID }

// ruleEnv builds the evaluation environment shared by all expressions.
// Rules reach prior payloads through functions rather than materialized
// slices, so history is only walked when a rule actually asks for it.
func ruleEnv(payload any, qc *registry.QueryContext) map[string]any {
	return map[string]any{
		"payload":    payload,
		"session_id": qc.SessionID(),
		"flow_id":    qc.FlowID(),
		"payloads": func() []registry.PayloadRecord {
			return qc.FlowPayloads()
		},
		"session_payloads": func() []registry.PayloadRecord {
			return qc.FindPayloads(registry.FindOptions{})
		},
	}
}

// SelectSchema implements SchemaSelector. The expression may evaluate to a
// single reference string, a list of reference strings, or nil to abstain.
func (p *exprPlugin) SelectSchema(payload any, qc *registry.QueryContext) ([]string, error) {
	if p.selector == nil {
		return nil, nil
	}
	out, err := expr.Run(p.selector, ruleEnv(payload, qc))
	if err != nil {
		return nil, fmt.Errorf("select_schema: %w", err)
	}
	switch v := out.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		refs := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("select_schema: reference list contains %T, want string", item)
			}
			refs = append(refs, s)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("select_schema: returned %T, want string or list of strings", out)
	}
}

// ValidateCustom implements CustomValidator.
//
// Each rule expression evaluates to one of:
//   - bool: false appends the rule's configured message
//   - string: non-empty appends that text (a rule-raised domain error)
//   - nil: the rule abstains
//
// Any other result type, and any evaluation error, aborts with an error
// the engine treats as an internal fault.
func (p *exprPlugin) ValidateCustom(payload any, qc *registry.QueryContext) ([]string, error) {
	env := ruleEnv(payload, qc)
	var msgs []string
	for i, rule := range p.rules {
		out, err := expr.Run(rule.program, env)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		switch v := out.(type) {
		case bool:
			if !v {
				msgs = append(msgs, rule.message)
			}
		case string:
			if v != "" {
				return msgs, &RuleError{Message: v}
			}
		case nil:
			// Rule abstains.
		default:
			return nil, fmt.Errorf("rules[%d]: returned %T, want bool or string", i, out)
		}
	}
	return msgs, nil
}
