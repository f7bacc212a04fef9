package features

import "github.com/meridian-labs/demandcast/internal/dataset"

// applyMarkdown aggregates the five promotional-discount columns. A null
// markdown means "no active promotion" and counts as zero. Rows are never
// excluded for missing markdowns.
func applyMarkdown(rows []dataset.FeatureRow) {
	for i := range rows {
		r := &rows[i]

		total := 0.0
		count := 0
		for _, md := range r.RawMarkdowns {
			if md == nil {
				continue
			}
			total += *md
			if *md > 0 {
				count++
			}
		}

		r.TotalMarkdown = total
		r.HasMarkdown = total > 0
		r.MarkdownCount = count
	}
}
