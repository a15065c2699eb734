package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/addwise/addwise-hub/internal/metrics"
)

// CodeLength is the number of decimal digits in a QR value.
const CodeLength = 16

var (
	codePattern = regexp.MustCompile(`^\d{16}$`)
	codeSpace   = new(big.Int).Exp(big.NewInt(10), big.NewInt(CodeLength), nil)
)

// ValidCode reports whether v is exactly 16 decimal digits.
func ValidCode(v string) bool { return codePattern.MatchString(v) }

// ValueChecker answers whether a QR value is already taken.
type ValueChecker interface {
	ValueExists(ctx context.Context, value string) (bool, error)
}

// Generator produces QR values that are unused at the time of the check.
// Nothing is reserved, so callers must persist promptly; the unique index
// on qr_value remains the authoritative guard.
type Generator struct {
	check ValueChecker
	draw  func() (string, error)
}

// NewGenerator returns a Generator drawing from crypto/rand.
func NewGenerator(check ValueChecker) *Generator {
	return &Generator{check: check, draw: randomCode}
}

// randomCode draws uniformly from [0, 10^16) and zero pads to 16 digits.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	s := n.String()
	return strings.Repeat("0", CodeLength-len(s)) + s, nil
}

// Generate returns one value not present in the registry.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	return g.next(ctx, nil)
}

// GenerateBatch returns n values, unique against the registry and against
// each other.
func (g *Generator) GenerateBatch(ctx context.Context, n int) ([]string, error) {
	out := make([]string, 0, n)
	taken := make(map[string]struct{}, n)
	for len(out) < n {
		v, err := g.next(ctx, taken)
		if err != nil {
			return nil, err
		}
		taken[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// next redraws until it finds a free value.  There is no retry bound; a
// collision in a 10^16 space is rare enough that the loop ends quickly,
// and ctx bounds it otherwise.
func (g *Generator) next(ctx context.Context, taken map[string]struct{}) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v, err := g.draw()
		if err != nil {
			return "", fmt.Errorf("draw qr value: %w", err)
		}
		if _, dup := taken[v]; dup {
			metrics.GeneratorCollisions.Inc()
			continue
		}
		exists, err := g.check.ValueExists(ctx, v)
		if err != nil {
			return "", fmt.Errorf("check qr value: %w", err)
		}
		if !exists {
			return v, nil
		}
		metrics.GeneratorCollisions.Inc()
	}
}
