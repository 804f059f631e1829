// Package store persists contract records between test runs.
//
// Each run may observe a single payment event, so the stage rows computed by
// earlier runs are the only way a later run can continue the calculation
// chain. Loading a contract that was never saved returns an empty record.
//
// Stores do not lock. A ledger update is a Load followed by a Save, so two
// runs working on the same contract ID at once can lose each other's rows.
// Runs against one contract must be serialized by the caller.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// ErrInvalidContractID is returned for IDs that cannot name a record.
var ErrInvalidContractID = errors.New("invalid contract ID")

// Store loads and saves per-contract records.
type Store interface {
	Load(ctx context.Context, contractID string) (*model.ContractRecord, error)
	Save(ctx context.Context, rec *model.ContractRecord) error
}

// checkID rejects IDs that are empty or would escape a directory or key prefix.
func checkID(contractID string) error {
	if strings.TrimSpace(contractID) == "" || strings.ContainsAny(contractID, `/\`) || strings.Contains(contractID, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidContractID, contractID)
	}
	return nil
}
