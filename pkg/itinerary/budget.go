package itinerary

import (
	"fmt"
	"strings"
)

// Budget is one of a fixed set of spending ranges.
type Budget string

const (
	BudgetFree      Budget = "$0"
	BudgetUpTo50    Budget = "$1-$50"
	BudgetUpTo150   Budget = "$50-$150"
	BudgetUpTo300   Budget = "$150-$300"
	BudgetUpTo500   Budget = "$300-$500"
	BudgetUnlimited Budget = "$500+"
)

var budgets = []Budget{BudgetFree, BudgetUpTo50, BudgetUpTo150, BudgetUpTo300, BudgetUpTo500, BudgetUnlimited}

// Budgets returns the enumeration in display order.
func Budgets() []Budget {
	out := make([]Budget, len(budgets))
	copy(out, budgets)
	return out
}

// Valid reports whether b is part of the enumeration.
func (b Budget) Valid() bool {
	for _, known := range budgets {
		if b == known {
			return true
		}
	}
	return false
}

func ParseBudget(s string) (Budget, error) {
	b := Budget(strings.TrimSpace(s))
	if !b.Valid() {
		return "", fmt.Errorf("%w: unknown budget %q", ErrInvalidRequest, s)
	}
	return b, nil
}
