// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonlab/abel/internal/basis"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string                      { return c.name }
func (c staticChecker) Check(context.Context) CheckResult { return c.result }

func TestManagerNoCheckers(t *testing.T) {
	m := NewManager("v1.2.3")

	health := m.Health(context.Background())
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, "v1.2.3", health.Version)

	ready := m.Ready(context.Background())
	assert.True(t, ready.Ready)
}

func TestManagerAggregation(t *testing.T) {
	tests := []struct {
		name       string
		results    []CheckResult
		wantStatus Status
		wantReady  bool
	}{
		{
			name:       "all healthy",
			results:    []CheckResult{{Status: StatusHealthy}, {Status: StatusHealthy}},
			wantStatus: StatusHealthy,
			wantReady:  true,
		},
		{
			name:       "degraded stays ready",
			results:    []CheckResult{{Status: StatusHealthy}, {Status: StatusDegraded}},
			wantStatus: StatusDegraded,
			wantReady:  true,
		},
		{
			name:       "unhealthy wins",
			results:    []CheckResult{{Status: StatusDegraded}, {Status: StatusUnhealthy}},
			wantStatus: StatusUnhealthy,
			wantReady:  false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager("test")
			for i, r := range tc.results {
				m.RegisterChecker(staticChecker{name: string(rune('a' + i)), result: r})
			}
			ready := m.Ready(context.Background())
			assert.Equal(t, tc.wantStatus, ready.Status)
			assert.Equal(t, tc.wantReady, ready.Ready)
		})
	}
}

func TestBasisDirChecker(t *testing.T) {
	ok := BasisDirChecker{Dir: t.TempDir()}
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	missing := BasisDirChecker{Dir: filepath.Join(t.TempDir(), "does", "not", "exist")}
	assert.Equal(t, StatusUnhealthy, missing.Check(context.Background()).Status)
}

func TestStoreChecker(t *testing.T) {
	assert.Equal(t, StatusDegraded, StoreChecker{}.Check(context.Background()).Status)

	store, err := basis.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, StoreChecker{Store: store}.Check(context.Background()).Status)
}
