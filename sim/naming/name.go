// Package naming validates actor and port names and builds the dotted full
// names used in logs and traces.
package naming

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Named describes an object that has a name.
type Named interface {
	Name() string
}

// Token is one element of a hierarchical name, such as "Sampler" or
// "Channel[2]".
type Token struct {
	Elem  string
	Index []int
}

// Parse splits a dotted full name into its tokens.
func Parse(name string) ([]Token, error) {
	parts := strings.Split(name, ".")
	tokens := make([]Token, 0, len(parts))

	for _, p := range parts {
		tok, err := parseToken(p)
		if err != nil {
			return nil, fmt.Errorf("name %q is not valid: %w", name, err)
		}

		tokens = append(tokens, tok)
	}

	return tokens, nil
}

func parseToken(s string) (Token, error) {
	if err := bracketsMustMatch(s); err != nil {
		return Token{}, err
	}

	parts := strings.Split(s, "[")
	tok := Token{Elem: parts[0]}

	for _, p := range parts[1:] {
		i, err := strconv.Atoi(strings.TrimSuffix(p, "]"))
		if err != nil {
			return Token{}, fmt.Errorf("index %q must be an integer", p)
		}

		tok.Index = append(tok.Index, i)
	}

	return tok, elemMustBeValid(tok.Elem)
}

func bracketsMustMatch(s string) error {
	open := 0

	for _, c := range s {
		switch c {
		case '[':
			open++
		case ']':
			open--
		}

		if open < 0 || open > 1 {
			return fmt.Errorf("brackets must match")
		}
	}

	if open != 0 {
		return fmt.Errorf("brackets must match")
	}

	return nil
}

func elemMustBeValid(elem string) error {
	if elem == "" {
		return fmt.Errorf("name element must not be empty")
	}

	if !unicode.IsLetter(rune(elem[0])) {
		return fmt.Errorf("name element %q must start with a letter", elem)
	}

	for _, c := range elem {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			return fmt.Errorf("name element %q must not contain %q", elem, c)
		}
	}

	return nil
}

// ValidateLocal checks a name given to a single actor or port. Local names
// must be one token; dots are reserved for full names.
func ValidateLocal(name string) error {
	tokens, err := Parse(name)
	if err != nil {
		return err
	}

	if len(tokens) != 1 {
		return fmt.Errorf("name %q must not contain dots", name)
	}

	return nil
}

// MustBeValid panics if name is not a valid local name.
func MustBeValid(name string) {
	if err := ValidateLocal(name); err != nil {
		panic(err.Error())
	}
}

// Join builds a full name from a container's full name and a local name.
func Join(parent, local string) string {
	if parent == "" {
		return local
	}

	return parent + "." + local
}

// JoinIndex builds a full name for an element of a series.
func JoinIndex(parent, local string, index int) string {
	return Join(parent, local+"["+strconv.Itoa(index)+"]")
}
