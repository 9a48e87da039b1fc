package engine

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog/log"
)

const signupQuery = "data.onboarding.signup.deny"

// Default Rego policy for signup. Extra modules may add deny rules to the same package.
const defaultRegoPolicy = `package onboarding.signup

deny contains msg if {
	input.action == "register"
	some blocked in input.config.blocked_email_domains
	lower(input.email_domain) == lower(blocked)
	msg := sprintf("email domain %s is not accepted", [input.email_domain])
}

deny contains "sms verification requires a phone number in E.164 format" if {
	input.action == "otp_send"
	input.method == "sms"
	not regex.match("^\\+[1-9][0-9]{6,14}$", input.phone_number)
}
`

// OPAEvaluator evaluates signup policies using OPA Rego.
type OPAEvaluator struct {
	query          rego.PreparedEvalQuery
	blockedDomains []string
}

// NewOPAEvaluator compiles the default policy plus any extra modules.
func NewOPAEvaluator(ctx context.Context, blockedDomains []string, extraModules ...string) (*OPAEvaluator, error) {
	modules := map[string]string{"policy_0.rego": defaultRegoPolicy}
	for i, m := range extraModules {
		modules[fmt.Sprintf("policy_%d.rego", i+1)] = m
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	q, err := rego.New(
		rego.Query(signupQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy query: %w", err)
	}
	return &OPAEvaluator{query: q, blockedDomains: blockedDomains}, nil
}

// NewOPAEvaluatorFromFile is NewOPAEvaluator with an optional Rego file. An empty path uses the default policy only.
func NewOPAEvaluatorFromFile(ctx context.Context, blockedDomains []string, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, blockedDomains)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewOPAEvaluator(ctx, blockedDomains, string(b))
}

// HealthCheck verifies that the compiled policy evaluates against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(e.buildInput(SignupInput{Action: ActionRegister, Email: "health@example.com"})))
	if err != nil {
		return fmt.Errorf("eval signup policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateSignup evaluates the signup policy. Evaluation failures are logged and the action is allowed.
func (e *OPAEvaluator) EvaluateSignup(ctx context.Context, in SignupInput) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(e.buildInput(in)))
	if err != nil {
		log.Warn().Err(err).Str("action", in.Action).Msg("policy: evaluation failed, allowing")
		return Decision{Allowed: true}, nil
	}
	var reasons []string
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if set, ok := rs[0].Expressions[0].Value.([]interface{}); ok {
			for _, v := range set {
				if s, ok := v.(string); ok {
					reasons = append(reasons, s)
				}
			}
		}
	}
	sort.Strings(reasons)
	return Decision{Allowed: len(reasons) == 0, Reasons: reasons}, nil
}

func (e *OPAEvaluator) buildInput(in SignupInput) map[string]interface{} {
	domain := ""
	if at := strings.LastIndex(in.Email, "@"); at >= 0 {
		domain = in.Email[at+1:]
	}
	blocked := make([]interface{}, len(e.blockedDomains))
	for i, d := range e.blockedDomains {
		blocked[i] = d
	}
	return map[string]interface{}{
		"action":       in.Action,
		"email_domain": domain,
		"phone_number": in.PhoneNumber,
		"method":       strings.ToLower(in.Method),
		"config": map[string]interface{}{
			"blocked_email_domains": blocked,
		},
	}
}
