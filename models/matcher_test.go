package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func amount(v int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(v), Valid: true}
}

func record(invoice, gstin string, taxable int64) InvoiceRecord {
	rec := InvoiceRecord{TaxableValue: amount(taxable)}
	if invoice != "" {
		rec.InvoiceNumber = strPtr(invoice)
	}
	if gstin != "" {
		rec.GSTIN = strPtr(gstin)
	}
	return rec
}

func dataset(side Side, records ...InvoiceRecord) *InvoiceDataset {
	return &InvoiceDataset{Side: side, Records: records}
}

func TestMatchDatasets_TagsMembership(t *testing.T) {
	internal := dataset(SideInternal,
		record("INV-001", "G1", 100),
		record("INV-002", "G1", 200),
	)
	external := dataset(SideExternal,
		record("INV-001", "G1", 100),
		record("INV-003", "G2", 300),
	)

	rows := MatchDatasets(internal, external)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	expect := []struct {
		invoice    string
		membership Membership
	}{
		{"INV-001", MembershipBoth},
		{"INV-002", MembershipInternalOnly},
		{"INV-003", MembershipExternalOnly},
	}
	for i, e := range expect {
		if *rows[i].InvoiceNumber != e.invoice || rows[i].Membership != e.membership {
			t.Fatalf("row %d: expected %s/%s, got %s/%s", i, e.invoice, e.membership, *rows[i].InvoiceNumber, rows[i].Membership)
		}
	}
	if rows[1].External != nil || rows[2].Internal != nil {
		t.Fatalf("absent side must be nil on one-sided rows")
	}
}

func TestMatchDatasets_DuplicateKeysCrossProduct(t *testing.T) {
	internal := dataset(SideInternal,
		record("INV-1", "G", 1),
		record("INV-1", "G", 2),
	)
	external := dataset(SideExternal,
		record("INV-1", "G", 10),
		record("INV-1", "G", 20),
		record("INV-1", "G", 30),
	)

	rows := MatchDatasets(internal, external)
	if len(rows) != 6 {
		t.Fatalf("expected 2x3 cross product, got %d rows", len(rows))
	}
	seen := map[[2]int64]bool{}
	for _, r := range rows {
		if r.Membership != MembershipBoth {
			t.Fatalf("expected only both-rows, got %s", r.Membership)
		}
		seen[[2]int64{r.Internal.TaxableValue.Decimal.IntPart(), r.External.TaxableValue.Decimal.IntPart()}] = true
	}
	if len(seen) != 6 {
		t.Fatalf("expected 6 distinct pairs, got %d", len(seen))
	}
}

func TestMatchDatasets_NullKeysNeverJoin(t *testing.T) {
	internal := dataset(SideInternal, record("", "G", 1))
	external := dataset(SideExternal, record("", "G", 1))

	rows := MatchDatasets(internal, external)
	if len(rows) != 2 {
		t.Fatalf("expected 2 one-sided rows, got %d", len(rows))
	}
	if rows[0].Membership != MembershipInternalOnly || rows[1].Membership != MembershipExternalOnly {
		t.Fatalf("unexpected memberships %s, %s", rows[0].Membership, rows[1].Membership)
	}
}

func TestMatchDatasets_EveryRecordAppears(t *testing.T) {
	internal := dataset(SideInternal,
		record("A", "G", 1), record("B", "G", 2), record("A", "G", 3), record("", "G", 4), record("C", "H", 5),
	)
	external := dataset(SideExternal,
		record("A", "G", 1), record("C", "G", 2), record("D", "", 3), record("C", "H", 4), record("C", "H", 5),
	)

	rows := MatchDatasets(internal, external)

	internalSeen := map[*InvoiceRecord]bool{}
	externalSeen := map[*InvoiceRecord]bool{}
	for _, r := range rows {
		if r.Internal != nil {
			internalSeen[r.Internal] = true
		}
		if r.External != nil {
			externalSeen[r.External] = true
		}
	}
	for i := range internal.Records {
		if !internalSeen[&internal.Records[i]] {
			t.Fatalf("internal record %d missing from join", i)
		}
	}
	for j := range external.Records {
		if !externalSeen[&external.Records[j]] {
			t.Fatalf("external record %d missing from join", j)
		}
	}
	// A×1 twice, C/H×2 once → 4 both-rows; B, null-key → 2 internal-only; C/G, D → 2 external-only.
	if len(rows) != 8 {
		t.Fatalf("expected 8 joined rows, got %d", len(rows))
	}
}
