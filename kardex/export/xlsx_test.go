package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almacen/stock-engine/kardex"
	"github.com/almacen/stock-engine/kardex/export"
)

func sampleReport() *kardex.Report {
	d := func(day int) time.Time {
		return time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC)
	}
	mv := func(qty int64, cost string) *kardex.Movement {
		c := decimal.RequireFromString(cost)
		return &kardex.Movement{
			Quantity: qty,
			UnitCost: c,
			Total:    decimal.NewFromInt(qty).Mul(c),
		}
	}

	return &kardex.Report{
		From:   d(1),
		To:     d(31),
		Method: kardex.FIFO,
		Rows: []kardex.Row{
			{
				Date: d(1), Kind: kardex.KindEntry, ProductID: 1, Product: "widget",
				Entry: mv(10, "2.00"), Balance: mv(10, "2.00"),
			},
			{
				Date: d(15), Kind: kardex.KindExit, ProductID: 1, Product: "widget",
				Exit: mv(10, "2.00"), // drained lot, no balance
			},
		},
		Totals: []kardex.Total{
			{ProductID: 1, Product: "widget", Quantity: 3, Value: decimal.RequireFromString("9.00")},
		},
	}
}

func TestWorkbook_HeaderLayout(t *testing.T) {
	f, err := export.Workbook(sampleReport())
	require.NoError(t, err)
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue("Kardex", ref)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Date", cell("A1"))
	assert.Equal(t, "Type", cell("B1"))
	assert.Equal(t, "Product", cell("C1"))
	assert.Equal(t, "Entries", cell("D1"))
	assert.Equal(t, "Exits", cell("G1"))
	assert.Equal(t, "Final Inventory", cell("J1"))
	assert.Equal(t, "Quantity", cell("D2"))
	assert.Equal(t, "Unit Cost", cell("E2"))
	assert.Equal(t, "Total", cell("F2"))
}

func TestWorkbook_RowsAndDashes(t *testing.T) {
	f, err := export.Workbook(sampleReport())
	require.NoError(t, err)
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue("Kardex", ref)
		require.NoError(t, err)
		return v
	}

	// Entry row: entries filled, exits dashed.
	assert.Equal(t, "2024-01-01", cell("A3"))
	assert.Equal(t, "Purchase", cell("B3"))
	assert.Equal(t, "widget", cell("C3"))
	assert.Equal(t, "10", cell("D3"))
	assert.Equal(t, "2.00", cell("E3"))
	assert.Equal(t, "20.00", cell("F3"))
	assert.Equal(t, "-", cell("G3"))

	// Exit row: exits filled, entries and the drained balance dashed.
	assert.Equal(t, "Sale", cell("B4"))
	assert.Equal(t, "-", cell("D4"))
	assert.Equal(t, "10", cell("G4"))
	assert.Equal(t, "-", cell("J4"))

	// Total row.
	assert.Equal(t, "TOTAL", cell("B5"))
	assert.Equal(t, "widget", cell("C5"))
	assert.Equal(t, "3", cell("J5"))
	assert.Equal(t, "9.00", cell("L5"))
}

func TestWrite_ProducesNonEmptyWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Write(sampleReport(), &buf))
	assert.Greater(t, buf.Len(), 0)

	// xlsx files are zip archives.
	assert.Equal(t, []byte{'P', 'K'}, buf.Bytes()[:2])
}
