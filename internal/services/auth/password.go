// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
)

const (
	minPasswordLength = 12
	maxSimilarity     = 0.7
)

// Weakness codes reported for the configured admin password.
const (
	WeakTooShort        = "min_length"
	WeakEntirelyNumeric = "entirely_numeric"
	WeakTooSimilar      = "too_similar"
)

// PasswordWeaknesses lists the reasons a password is weak. Attributes are
// values the password should not resemble, such as the username.
func PasswordWeaknesses(password string, attributes ...string) []string {
	var weak []string

	if len([]rune(password)) < minPasswordLength {
		weak = append(weak, WeakTooShort)
	}
	if password != "" && lo.EveryBy([]rune(password), unicode.IsDigit) {
		weak = append(weak, WeakEntirelyNumeric)
	}
	if lo.SomeBy(attributes, func(attr string) bool { return resembles(password, attr) }) {
		weak = append(weak, WeakTooSimilar)
	}

	return weak
}

// resembles reports whether password contains attr or shares most of its
// characters with it.
func resembles(password, attr string) bool {
	p := strings.ToLower(password)
	a := strings.ToLower(strings.TrimSpace(attr))
	if len(a) < 3 {
		return false
	}
	return strings.Contains(p, a) || similarity(p, a) >= maxSimilarity
}

// similarity is the longest common subsequence relative to the longer string.
func similarity(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 || a == "" || b == "" {
		return 0
	}
	return float64(lcs(a, b)) / float64(longest)
}

func lcs(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
