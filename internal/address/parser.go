package address

import (
	"fmt"
	"strconv"
	"strings"
)

// Builtins holds the named values the expression parser recognizes without
// an explicit variable assignment (spec.md §4.7: "ram, sp, pc, stack").
type Builtins struct {
	RAM   uint64
	SP    uint64
	PC    uint64
	Stack uint64
}

// Parser turns address-expression strings into TypedAddress values.
// It is not safe for concurrent use without external synchronization, the
// same way the rest of the engine's single-session objects are not.
type Parser struct {
	vars     map[string]uint64
	builtins Builtins
}

// NewParser returns a Parser with no variables or builtins set.
func NewParser() *Parser {
	return &Parser{vars: make(map[string]uint64)}
}

// SetVariable assigns a named value usable as a term in later expressions.
func (p *Parser) SetVariable(name string, value uint64) {
	p.vars[strings.ToLower(name)] = value
}

// SetBuiltins installs the engine-provided built-in values (ram base,
// stack pointer, program counter, stack top) for the current context.
func (p *Parser) SetBuiltins(b Builtins) { p.builtins = b }

// Parse parses a fully-qualified "[prefix:]expr" string. An expression with
// no recognized prefix parses with Space == None; use ParseWithContext when
// an ambient address space is known (e.g. "the user is currently looking at
// physical memory").
func (p *Parser) Parse(input string) (TypedAddress, error) {
	return p.ParseWithContext(input, None, nil)
}

// ParseWithContext parses input the same way as Parse, but an expression
// with no space prefix is resolved against currentSpace (and currentPID, for
// GuestVirtual) instead of producing Space == None.
func (p *Parser) ParseWithContext(input string, currentSpace Space, currentPID *int) (TypedAddress, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return TypedAddress{}, fmt.Errorf("address: empty expression")
	}

	space := currentSpace
	pid := currentPID
	expr := s

	if prefixSpace, rest, ok := splitPrefix(s); ok {
		space = prefixSpace
		expr = rest
		if space == GuestVirtual {
			if p2, rest2, ok2 := splitPID(expr); ok2 {
				pid = &p2
				expr = rest2
			}
		}
	}

	value, err := p.evalExpression(expr)
	if err != nil {
		return TypedAddress{}, err
	}

	switch space {
	case SharedFileOffset:
		return SharedFileOffsetAddr(value), nil
	case GuestPhysical:
		return GuestPhysicalAddr(value), nil
	case GuestVirtual:
		return GuestVirtualAddr(value, pid), nil
	case Crunched:
		return CrunchedAddr(value), nil
	default:
		return TypedAddress{Value: value, Space: None}, nil
	}
}

// splitPrefix recognizes a leading "s:", "p:", "v:" or "c:" (case
// insensitive) and returns the corresponding space and the remainder.
func splitPrefix(s string) (Space, string, bool) {
	idx := strings.IndexByte(s, ':')
	if idx != 1 {
		return None, s, false
	}
	switch strings.ToLower(s[:1]) {
	case "s":
		return SharedFileOffset, s[idx+1:], true
	case "p":
		return GuestPhysical, s[idx+1:], true
	case "v":
		return GuestVirtual, s[idx+1:], true
	case "c":
		return Crunched, s[idx+1:], true
	default:
		return None, s, false
	}
}

// splitPID recognizes a leading decimal PID followed by ':' in a virtual
// address expression, e.g. "1234:0x7fff0000" -> (1234, "0x7fff0000").
func splitPID(s string) (int, string, bool) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return 0, s, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(s[:idx]))
	if err != nil || pid < 0 {
		return 0, s, false
	}
	return pid, s[idx+1:], true
}

// evalExpression evaluates a term, or two terms joined by a single '+' or
// '-' (spec.md §4.7: "a single operator per expression").
func (p *Parser) evalExpression(expr string) (uint64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, fmt.Errorf("address: empty expression")
	}

	// Find a binary +/- that isn't part of the leading sign of the first
	// term (e.g. a hex literal never starts with '+', so any '+'/'-' found
	// after position 0 is the operator).
	opPos := -1
	var op byte
	for i := 1; i < len(expr); i++ {
		if expr[i] == '+' || expr[i] == '-' {
			opPos = i
			op = expr[i]
			break
		}
	}

	if opPos < 0 {
		return p.evalTerm(expr)
	}

	lhs, err := p.evalTerm(strings.TrimSpace(expr[:opPos]))
	if err != nil {
		return 0, err
	}
	rhs, err := p.evalTerm(strings.TrimSpace(expr[opPos+1:]))
	if err != nil {
		return 0, err
	}
	if op == '+' {
		return lhs + rhs, nil
	}
	return lhs - rhs, nil
}

// evalTerm evaluates a single number literal or named built-in/variable.
func (p *Parser) evalTerm(term string) (uint64, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return 0, fmt.Errorf("address: empty term")
	}

	if v, ok := p.lookupName(term); ok {
		return v, nil
	}

	return parseNumber(term)
}

func (p *Parser) lookupName(term string) (uint64, bool) {
	switch strings.ToLower(term) {
	case "ram":
		return p.builtins.RAM, true
	case "sp":
		return p.builtins.SP, true
	case "pc":
		return p.builtins.PC, true
	case "stack":
		return p.builtins.Stack, true
	}
	if v, ok := p.vars[strings.ToLower(term)]; ok {
		return v, true
	}
	return 0, false
}

// parseNumber parses a hex or decimal literal. Hex is the default for
// address-like input; decimal requires an explicit "." prefix or "d" suffix.
func parseNumber(s string) (uint64, error) {
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		return strconv.ParseUint(s[2:], 16, 64)
	case strings.HasPrefix(s, "$"):
		return strconv.ParseUint(s[1:], 16, 64)
	case strings.HasPrefix(s, "."):
		return strconv.ParseUint(s[1:], 10, 64)
	case strings.HasSuffix(s, "h"), strings.HasSuffix(s, "H"):
		return strconv.ParseUint(s[:len(s)-1], 16, 64)
	case strings.HasSuffix(s, "d"), strings.HasSuffix(s, "D"):
		return strconv.ParseUint(s[:len(s)-1], 10, 64)
	default:
		// Address-like input defaults to hexadecimal.
		return strconv.ParseUint(s, 16, 64)
	}
}
