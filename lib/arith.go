// Package lib provides reusable actors: sources, samplers, transformers,
// delays and sinks.
package lib

import (
	"fmt"

	"github.com/sarchlab/tempora/sim/token"
)

// add returns a+b. Integers stay integers; any double makes a double.
func add(a, b token.Token) (token.Token, error) {
	if a.Kind() == token.Int && b.Kind() == token.Int {
		x, _ := a.Int()
		y, _ := b.Int()

		return token.NewInt(x + y), nil
	}

	x, y, err := doubles(a, b)
	if err != nil {
		return token.Token{}, fmt.Errorf("add: %w", err)
	}

	return token.NewDouble(x + y), nil
}

// multiply returns a*b with the same widening as add.
func multiply(a, b token.Token) (token.Token, error) {
	if a.Kind() == token.Int && b.Kind() == token.Int {
		x, _ := a.Int()
		y, _ := b.Int()

		return token.NewInt(x * y), nil
	}

	x, y, err := doubles(a, b)
	if err != nil {
		return token.Token{}, fmt.Errorf("multiply: %w", err)
	}

	return token.NewDouble(x * y), nil
}

func doubles(a, b token.Token) (float64, float64, error) {
	x, err := a.Double()
	if err != nil {
		return 0, 0, err
	}

	y, err := b.Double()
	if err != nil {
		return 0, 0, err
	}

	return x, y, nil
}
