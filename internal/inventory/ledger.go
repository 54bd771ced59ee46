package inventory

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Line is one variant quantity moved by the ledger.
type Line struct {
	VariantID uuid.UUID
	Quantity  int
	// Label is used in shortfall messages, e.g. "Tee (M / Black)".
	Label string
}

// Shortfall describes the line that could not be covered.
type Shortfall struct {
	VariantID uuid.UUID `json:"variant_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Ledger moves stock inside a caller-owned transaction. It never opens a
// transaction itself, so a failed line aborts everything the caller did.
type Ledger struct {
	repo Repository
}

// NewLedger returns a ledger over the provided repository.
func NewLedger(repo Repository) (*Ledger, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory repository required")
	}
	return &Ledger{repo: repo}, nil
}

// Decrement re-reads the variant under lock and subtracts qty, failing with
// INSUFFICIENT_STOCK when stock does not cover it.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, line Line) error {
	if line.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := l.repo.WithTx(tx)

	variant, err := repo.FindVariantForUpdate(ctx, line.VariantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
	}
	if variant == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	if variant.Stock < line.Quantity {
		return insufficient(line, variant.Stock)
	}

	ok, err := repo.DecrementIfAvailable(ctx, line.VariantID, line.Quantity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement variant stock")
	}
	if !ok {
		// Lost a race between the read and the guarded update.
		return insufficient(line, variant.Stock)
	}
	return nil
}

// Increment restores qty units. It only reverses an earlier decrement.
func (l *Ledger) Increment(ctx context.Context, tx *gorm.DB, line Line) error {
	if line.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if err := l.repo.WithTx(tx).Increment(ctx, line.VariantID, line.Quantity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment variant stock")
	}
	return nil
}

// DecrementAll commits every line or returns the first failure. Lines are
// visited in variant id order so concurrent orders lock rows consistently.
func (l *Ledger) DecrementAll(ctx context.Context, tx *gorm.DB, lines []Line) error {
	for _, line := range Merge(lines) {
		if err := l.Decrement(ctx, tx, line); err != nil {
			return err
		}
	}
	return nil
}

// IncrementAll restores every line.
func (l *Ledger) IncrementAll(ctx context.Context, tx *gorm.DB, lines []Line) error {
	for _, line := range Merge(lines) {
		if err := l.Increment(ctx, tx, line); err != nil {
			return err
		}
	}
	return nil
}

// Merge sums quantities of duplicate variants and sorts by variant id.
func Merge(lines []Line) []Line {
	byID := make(map[uuid.UUID]int, len(lines))
	merged := make([]Line, 0, len(lines))
	for _, line := range lines {
		if idx, ok := byID[line.VariantID]; ok {
			merged[idx].Quantity += line.Quantity
			continue
		}
		byID[line.VariantID] = len(merged)
		merged = append(merged, line)
	}
	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].VariantID[:], merged[j].VariantID[:]) < 0
	})
	return merged
}

func insufficient(line Line, available int) error {
	label := line.Label
	if label == "" {
		label = line.VariantID.String()
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("Insufficient stock for %s. Available: %d", label, available)).
		WithDetails(Shortfall{VariantID: line.VariantID, Requested: line.Quantity, Available: available})
}
