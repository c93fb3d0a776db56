// Package split computes per-participant shares for an expense. It is pure:
// no storage, no side effects. Sum constraints on caller-supplied parameters
// (percentages adding to 100, direct amounts adding to the total) are the
// recorder's responsibility, not this package's.
package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"splitledger/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)
)

// Params carries the per-participant parameters for the non-equal policies.
// Percentages is consulted for PERCENTAGE, Amounts for DIRECT; a participant
// missing from the relevant map owes nothing.
type Params struct {
	Percentages map[uint]decimal.Decimal
	Amounts     map[uint]decimal.Decimal
}

// Calculate returns the amount owed by each participant for the given policy.
// The payer is always present in the result with an owed amount of zero, even
// when the policy parameters assign them a share.
func Calculate(policy models.SplitPolicy, amount decimal.Decimal, payerID uint, participantIDs []uint, params Params) (map[uint]decimal.Decimal, error) {
	if len(participantIDs) == 0 {
		return nil, fmt.Errorf("no participants")
	}

	switch policy {
	case models.SplitPolicyEqual, models.SplitPolicyParentChild:
		// Child expenses of a parent carry their own amounts and are split
		// equally among their participants.
		return equalShares(amount, payerID, participantIDs), nil
	case models.SplitPolicyPercentage:
		return percentageShares(amount, payerID, participantIDs, params.Percentages), nil
	case models.SplitPolicyDirect:
		return directShares(payerID, participantIDs, params.Amounts), nil
	}
	return nil, fmt.Errorf("unknown split policy %q", policy)
}

// equalShares divides the amount evenly. Division happens at full decimal
// precision and each share is then truncated to the cent; the truncation
// remainder stays with the payer.
func equalShares(amount decimal.Decimal, payerID uint, participantIDs []uint) map[uint]decimal.Decimal {
	perPerson := amount.Div(decimal.NewFromInt(int64(len(participantIDs)))).RoundDown(2)

	shares := make(map[uint]decimal.Decimal, len(participantIDs))
	for _, id := range participantIDs {
		if id == payerID {
			shares[id] = decimal.Zero
		} else {
			shares[id] = perPerson
		}
	}
	return shares
}

// percentageShares assigns amount * percentage/100 to each participant,
// truncated to the cent.
func percentageShares(amount decimal.Decimal, payerID uint, participantIDs []uint, percentages map[uint]decimal.Decimal) map[uint]decimal.Decimal {
	shares := make(map[uint]decimal.Decimal, len(participantIDs))
	for _, id := range participantIDs {
		if id == payerID {
			shares[id] = decimal.Zero
			continue
		}
		pct := percentages[id]
		shares[id] = amount.Mul(pct).Div(hundred).RoundDown(2)
	}
	return shares
}

// directShares uses the explicitly supplied amounts verbatim.
func directShares(payerID uint, participantIDs []uint, amounts map[uint]decimal.Decimal) map[uint]decimal.Decimal {
	shares := make(map[uint]decimal.Decimal, len(participantIDs))
	for _, id := range participantIDs {
		if id == payerID {
			shares[id] = decimal.Zero
			continue
		}
		shares[id] = amounts[id]
	}
	return shares
}
