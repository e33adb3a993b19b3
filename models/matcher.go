package models

// MatchDatasets full-outer-joins two normalized datasets on CompositeKey.
//
// Every internal record sharing a key with external records is paired with
// each of them, so duplicate keys multiply. Rows come back as all
// both-rows (internal order), then internal-only rows, then external-only
// rows. Records with a null key part are emitted one-sided.
func MatchDatasets(internal, external *InvoiceDataset) []JoinedRow {
	externalByKey := make(map[CompositeKey][]int, len(external.Records))
	for j := range external.Records {
		if key, ok := external.Records[j].Key(); ok {
			externalByKey[key] = append(externalByKey[key], j)
		}
	}

	paired := make([]bool, len(external.Records))
	var both, internalOnly []JoinedRow
	for i := range internal.Records {
		rec := &internal.Records[i]
		key, ok := rec.Key()
		if matches := externalByKey[key]; ok && len(matches) > 0 {
			for _, j := range matches {
				both = append(both, JoinedRow{
					InvoiceNumber: rec.InvoiceNumber,
					GSTIN:         rec.GSTIN,
					Internal:      rec,
					External:      &external.Records[j],
					Membership:    MembershipBoth,
				})
				paired[j] = true
			}
			continue
		}
		internalOnly = append(internalOnly, JoinedRow{
			InvoiceNumber: rec.InvoiceNumber,
			GSTIN:         rec.GSTIN,
			Internal:      rec,
			Membership:    MembershipInternalOnly,
		})
	}

	rows := make([]JoinedRow, 0, len(both)+len(internalOnly)+len(external.Records))
	rows = append(rows, both...)
	rows = append(rows, internalOnly...)
	for j := range external.Records {
		if paired[j] {
			continue
		}
		rec := &external.Records[j]
		rows = append(rows, JoinedRow{
			InvoiceNumber: rec.InvoiceNumber,
			GSTIN:         rec.GSTIN,
			External:      rec,
			Membership:    MembershipExternalOnly,
		})
	}
	return rows
}
