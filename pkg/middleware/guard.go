package middleware

import (
	"errors"
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/vango-dev/chunk/pkg/chunk"
)

// ErrGuardRejected is matched by every error a guard returns.
var ErrGuardRejected = errors.New("chunk: rejected by guard")

// GuardRule allows a call only when Expression evaluates to true.
//
// The expression sees:
//   - chunk: the store name
//   - action: the action name
//   - args: the call's arguments
//   - state: the store's field values
//   - async: whether the action is async
type GuardRule struct {
	// Chunk limits the rule to one store. Empty matches every store.
	Chunk string

	// Action limits the rule to one action. Empty matches every action and
	// a trailing "*" matches by prefix, e.g. "set*".
	Action string

	// Expression is an expr-lang expression that must evaluate to a bool.
	// false rejects the call; any other result type is an error.
	Expression string

	// Message is used in the rejection error.
	// Default: the expression itself.
	Message string
}

// GuardError reports a rejected call.
type GuardError struct {
	Chunk   string
	Action  string
	Message string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("chunk: %s.%s rejected: %s", e.Chunk, e.Action, e.Message)
}

// Is makes errors.Is(err, ErrGuardRejected) true.
func (e *GuardError) Is(target error) bool {
	return target == ErrGuardRejected
}

type compiledRule struct {
	GuardRule
	program *exprvm.Program
}

func (r compiledRule) matches(ac *chunk.ActionContext) bool {
	if r.Chunk != "" && r.Chunk != ac.Chunk {
		return false
	}
	switch {
	case r.Action == "":
		return true
	case strings.HasSuffix(r.Action, "*"):
		return strings.HasPrefix(ac.Action, strings.TrimSuffix(r.Action, "*"))
	default:
		return r.Action == ac.Action
	}
}

// Guard compiles rules into an interceptor. A call matched by several rules
// must pass all of them; the first failing rule rejects it without running
// the rest of the chain.
func Guard(rules ...GuardRule) (chunk.Interceptor, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if strings.TrimSpace(rule.Expression) == "" {
			return nil, fmt.Errorf("guard %s.%s: expression must not be empty", rule.Chunk, rule.Action)
		}
		program, err := exprlang.Compile(rule.Expression,
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
		)
		if err != nil {
			return nil, fmt.Errorf("guard %s.%s: compile %q: %w", rule.Chunk, rule.Action, rule.Expression, err)
		}
		if rule.Message == "" {
			rule.Message = rule.Expression
		}
		compiled = append(compiled, compiledRule{GuardRule: rule, program: program})
	}

	return func(ac *chunk.ActionContext, next func() (any, error)) (any, error) {
		var env map[string]any
		for _, rule := range compiled {
			if !rule.matches(ac) {
				continue
			}
			if env == nil {
				env = guardEnv(ac)
			}
			out, err := exprlang.Run(rule.program, env)
			if err != nil {
				return nil, fmt.Errorf("guard %s.%s: %w", ac.Chunk, ac.Action, err)
			}
			allowed, ok := out.(bool)
			if !ok {
				return nil, fmt.Errorf("guard %s.%s: expression %q returned %T, want bool", ac.Chunk, ac.Action, rule.Expression, out)
			}
			if !allowed {
				return nil, &GuardError{Chunk: ac.Chunk, Action: ac.Action, Message: rule.Message}
			}
		}
		return next()
	}, nil
}

// MustGuard is like Guard but panics if a rule does not compile.
func MustGuard(rules ...GuardRule) chunk.Interceptor {
	fn, err := Guard(rules...)
	if err != nil {
		panic(err)
	}
	return fn
}

func guardEnv(ac *chunk.ActionContext) map[string]any {
	var state map[string]any
	if ac.Store != nil {
		state = ac.Store.Snapshot()
	}
	return map[string]any{
		"chunk":  ac.Chunk,
		"action": ac.Action,
		"args":   ac.Args,
		"state":  state,
		"async":  ac.Async,
	}
}
