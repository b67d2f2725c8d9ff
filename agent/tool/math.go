package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
)

const maxExpressionLen = 256

var errEmptyExpression = errors.New("expression is empty")

type CalculateOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

func calculateCapability() Capability {
	return Capability{
		Name:        ToolCalculate,
		Description: "Evaluate an arithmetic expression with + - * / % ^ and parentheses. Use it for returns, percentages and what-if numbers.",
		Params: map[string]*schema.ParameterInfo{
			"expression": {Type: schema.String, Desc: "Expression to evaluate, e.g. (35000 - 31000) / 31000 * 100", Required: true},
		},
		Invoke: func(_ context.Context, args map[string]any) (any, error) {
			raw, ok := args["expression"]
			if !ok || raw == nil {
				return nil, errors.New("expression is required")
			}
			expr, ok := raw.(string)
			if !ok {
				return nil, errors.New("expression must be a string")
			}
			expr = strings.TrimSpace(expr)
			result, err := Evaluate(expr)
			if err != nil {
				return nil, err
			}
			return CalculateOutput{Expression: expr, Result: result}, nil
		},
	}
}

// Evaluate computes an arithmetic expression. ^ is right associative and binds
// tighter than unary minus on its left operand only, so -2^2 is -4.
func Evaluate(expr string) (float64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, errEmptyExpression
	}
	if len(expr) > maxExpressionLen {
		return 0, fmt.Errorf("expression longer than %d characters", maxExpressionLen)
	}
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &exprParser{toks: toks}
	v, err := p.sum()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("result is not a finite number")
	}
	return v, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++
		case (ch >= '0' && ch <= '9') || ch == '.':
			start := i
			for i < len(s) && ((s[i] >= '0' && s[i] <= '9') || s[i] == '.' || s[i] == '_') {
				i++
			}
			raw := strings.ReplaceAll(s[start:i], "_", "")
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", s[start:i], start)
			}
			toks = append(toks, token{kind: tokNum, text: s[start:i], num: n, pos: start})
		case strings.IndexByte("+-*/%^", ch) >= 0:
			toks = append(toks, token{kind: tokOp, text: string(ch), pos: i})
			i++
		case ch == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case ch == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			return nil, fmt.Errorf("invalid character %q at position %d", ch, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

type exprParser struct {
	toks []token
	i    int
}

func (p *exprParser) peek() token { return p.toks[p.i] }

func (p *exprParser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *exprParser) acceptOp(ops string) (byte, bool) {
	t := p.peek()
	if t.kind == tokOp && strings.Contains(ops, t.text) {
		p.i++
		return t.text[0], true
	}
	return 0, false
}

func (p *exprParser) sum() (float64, error) {
	left, err := p.product()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.acceptOp("+-")
		if !ok {
			return left, nil
		}
		right, err := p.product()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) product() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.acceptOp("*/%")
		if !ok {
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		case '%':
			if right == 0 {
				return 0, errors.New("modulo by zero")
			}
			left = math.Mod(left, right)
		}
	}
}

func (p *exprParser) unary() (float64, error) {
	if op, ok := p.acceptOp("+-"); ok {
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == '-' {
			return -v, nil
		}
		return v, nil
	}
	return p.power()
}

func (p *exprParser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if _, ok := p.acceptOp("^"); !ok {
		return base, nil
	}
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *exprParser) primary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		return t.num, nil
	case tokLParen:
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		if c := p.next(); c.kind != tokRParen {
			return 0, fmt.Errorf("missing closing parenthesis at position %d", c.pos)
		}
		return v, nil
	case tokEOF:
		return 0, errors.New("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
}
