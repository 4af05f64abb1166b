package federation

// Merge combines per-connection results into one table.
//
// Columns are the union of every successful connection's columns in
// first-seen order. When addProvenance is set, a trailing __connection
// column holds the source connection's name (a source column of the same
// name is dropped in favour of it). Values a connection does not have are
// nil. Rows follow connection order, then each connection's own row order.
//
// RowCount is the sum of the row counts the connections reported, which
// may differ from len(Rows). maxRows > 0 caps len(Rows) and sets Truncated.
//
// results is kept as ConnectionResults, failures included.
func Merge(results []MultiConnectionResult, addProvenance bool, maxRows int) *MergedResult {
	merged := &MergedResult{
		Columns:           []string{},
		Rows:              [][]any{},
		ConnectionResults: results,
	}

	var successes []MultiConnectionResult
	for _, r := range results {
		if r.Success && r.Data != nil {
			successes = append(successes, r)
		}
	}
	if len(successes) == 0 {
		return merged
	}

	seen := make(map[string]bool)
	for _, s := range successes {
		for _, col := range s.Data.Columns {
			if addProvenance && col == ProvenanceColumn {
				continue
			}
			if !seen[col] {
				seen[col] = true
				merged.Columns = append(merged.Columns, col)
			}
		}
	}
	if addProvenance {
		merged.Columns = append(merged.Columns, ProvenanceColumn)
	}

	for _, s := range successes {
		merged.RowCount += s.Data.RowCount

		index := columnIndex(s.Data.Columns)
		for _, row := range s.Data.Rows {
			if maxRows > 0 && len(merged.Rows) >= maxRows {
				merged.Truncated = true
				break
			}

			out := make([]any, len(merged.Columns))
			for j, col := range merged.Columns {
				if addProvenance && j == len(merged.Columns)-1 {
					out[j] = s.ConnectionName
					continue
				}
				if k, ok := index[col]; ok && k < len(row) {
					out[j] = row[k]
				}
			}
			merged.Rows = append(merged.Rows, out)
		}
	}

	return merged
}

// columnIndex maps each column name to its first position.
func columnIndex(columns []string) map[string]int {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, ok := index[col]; !ok {
			index[col] = i
		}
	}
	return index
}
