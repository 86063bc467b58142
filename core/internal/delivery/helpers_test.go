package delivery

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/twh32/my-fix-project/sdk/domain"
)

func testOrder(id string) domain.CanonicalOrder {
	tt := "20240102-06:04:05"
	return domain.CanonicalOrder{
		OrderID:            id,
		Symbol:             "BOND_XYZ",
		Quantity:           100,
		Price:              101.5,
		TransactTime:       &tt,
		BusinessUnit:       domain.DefaultBusinessUnit,
		TraderID:           domain.DefaultTraderID,
		RiskCategory:       domain.DefaultRiskCategory,
		ProcessedTimestamp: "2024-01-02T06:04:05.000006Z",
	}
}

func ledgerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "outbox", "ledger.db")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 10*time.Millisecond)
}
