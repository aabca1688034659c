// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"os"
	"path/filepath"

	"github.com/photonlab/abel/internal/basis"
)

// BasisDirChecker verifies the basis cache directory is writable.
type BasisDirChecker struct {
	Dir string
}

// Name implements Checker.
func (c BasisDirChecker) Name() string { return "basis_dir" }

// Check implements Checker.
func (c BasisDirChecker) Check(_ context.Context) CheckResult {
	probe := filepath.Join(c.Dir, ".health")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	_ = os.Remove(probe)
	return CheckResult{Status: StatusHealthy, Message: c.Dir}
}

// StoreChecker verifies the basis store answers a listing.
type StoreChecker struct {
	Store basis.Store
}

// Name implements Checker.
func (c StoreChecker) Name() string { return "basis_store" }

// Check implements Checker.
func (c StoreChecker) Check(ctx context.Context) CheckResult {
	if c.Store == nil {
		return CheckResult{Status: StatusDegraded, Message: "no basis store configured"}
	}
	if _, err := c.Store.List(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
