package testutil

import (
	"testing"
	"time"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// Week parses a YYYY-MM-DD date into a UTC midnight time, failing the test
// on bad input.
func Week(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad week %q: %v", s, err)
	}
	return ts.UTC()
}

// SampleGapRows returns a small raw gap dataset in the mixed wire shapes the
// materialized view produces: one unsold placement, one sold with a clean
// key, one sold with a float-artifact key.
func SampleGapRows() []types.GapRow {
	return []types.GapRow{
		{
			SalespersonName: "Pat", ChainName: "Food Mart", StoreNumber: "101",
			StoreName: "Food Mart #101", ProductName: "Widget", SupplierName: "Acme",
			DGUPC: "850017944176", SRUPC: nil, InSchematic: int64(1),
		},
		{
			SalespersonName: "Pat", ChainName: "Food Mart", StoreNumber: "101",
			StoreName: "Food Mart #101", ProductName: "Gadget", SupplierName: "Acme",
			DGUPC: "850017944177", SRUPC: "850017944177", InSchematic: "1",
		},
		{
			SalespersonName: "Sam", ChainName: "Quick Stop", StoreNumber: "7",
			StoreName: "Quick Stop #7", ProductName: "Widget", SupplierName: "Acme",
			DGUPC: "850017944176.0", SRUPC: "850017944176.0", InSchematic: true,
		},
	}
}
