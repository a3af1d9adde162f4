// Package idgen formats and parses the per-period sequential identifiers
// used for transactions (MM-YYYY-NNNNNN) and customers (MM-YYYY-CNNNNN).
package idgen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindTransaction Kind = "transaction"
	KindCustomer    Kind = "customer"
)

const (
	transactionDigits = 6
	customerDigits    = 5
	customerInfix     = "C"
)

// SequenceSource hands out the next sequence number for a kind and period.
// Implementations must run inside the same lock or database transaction as
// the insert that uses the resulting identifier.
type SequenceSource interface {
	NextSequence(ctx context.Context, kind Kind, period string) (int, error)
}

type Generator struct {
	src SequenceSource
}

func New(src SequenceSource) Generator {
	return Generator{src: src}
}

func (g Generator) NextTransactionID(ctx context.Context, now time.Time) (string, error) {
	period := Period(now)
	seq, err := g.src.NextSequence(ctx, KindTransaction, period)
	if err != nil {
		return "", err
	}
	return TransactionID(period, seq), nil
}

func (g Generator) NextCustomerID(ctx context.Context, now time.Time) (string, error) {
	period := Period(now)
	seq, err := g.src.NextSequence(ctx, KindCustomer, period)
	if err != nil {
		return "", err
	}
	return CustomerID(period, seq), nil
}

// Period is the MM-YYYY prefix for now.
func Period(now time.Time) string {
	return now.Format("01-2006")
}

func TransactionID(period string, seq int) string {
	return fmt.Sprintf("%s-%0*d", period, transactionDigits, seq)
}

func CustomerID(period string, seq int) string {
	return fmt.Sprintf("%s-%s%0*d", period, customerInfix, customerDigits, seq)
}

// Prefix is the id prefix shared by every identifier of kind in period.
func Prefix(kind Kind, period string) string {
	if kind == KindCustomer {
		return period + "-" + customerInfix
	}
	return period + "-"
}

// ParseSequence extracts the sequence number from id when it belongs to
// kind and period.
func ParseSequence(kind Kind, period string, id string) (int, bool) {
	prefix := Prefix(kind, period)
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	digits := strings.TrimPrefix(id, prefix)
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	seq, err := strconv.Atoi(digits)
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}

// MaxSequence returns the highest sequence among ids for kind and period, or 0.
func MaxSequence(kind Kind, period string, ids []string) int {
	highest := 0
	for _, id := range ids {
		if seq, ok := ParseSequence(kind, period, id); ok && seq > highest {
			highest = seq
		}
	}
	return highest
}
