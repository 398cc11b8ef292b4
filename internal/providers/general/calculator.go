// ABOUTME: Arithmetic expression evaluator for the calculator tool.
// ABOUTME: Recursive descent over +, -, *, /, unary minus, and parentheses.

package general

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// maxExpressionLength bounds input so a hostile caller cannot feed the parser
// megabytes of nested parentheses.
const maxExpressionLength = 1024

var errDivisionByZero = errors.New("division by zero")

// evaluate parses and computes an arithmetic expression. Only numbers and the
// operators + - * / ( ) are accepted; anything else is an error, never code.
func evaluate(expression string) (float64, error) {
	if strings.TrimSpace(expression) == "" {
		return 0, errors.New("expression is empty")
	}
	if len(expression) > maxExpressionLength {
		return 0, errors.New("expression too long")
	}

	p := &parser{input: expression}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	return value, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

// parseExpr handles + and -.
func (p *parser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return value, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			value += right
		} else {
			value -= right
		}
	}
}

// parseTerm handles * and /.
func (p *parser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return value, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			value *= right
		} else {
			if right == 0 {
				return 0, errDivisionByZero
			}
			value /= right
		}
	}
}

// parseFactor handles numbers, unary minus, and parenthesized groups.
func (p *parser) parseFactor() (float64, error) {
	ch, ok := p.peek()
	if !ok {
		return 0, errors.New("unexpected end of expression")
	}

	if ch == '-' {
		p.pos++
		value, err := p.parseFactor()
		return -value, err
	}

	if ch == '(' {
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if ch, ok := p.peek(); !ok || ch != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}

	return p.parseNumber()
}

func (p *parser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if (ch >= '0' && ch <= '9') || ch == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return 0, fmt.Errorf("expected a number at position %d", start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}
