// Package report renders run summaries for operator review on stdout.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/reclassify"
)

// displayOrder fixes the category order of rendered tables.
var displayOrder = []core.Category{
	core.CategoryCotizacion,
	core.CategoryRenovacion,
	core.CategoryEndoso,
	core.CategoryUnclassified,
}

// Batch renders a classification run summary.
func Batch(sum *core.BatchSummary) string {
	var b strings.Builder
	b.WriteString("=== Classification Run ===\n")
	fmt.Fprintf(&b, "Processed: %d\n", sum.Processed)
	fmt.Fprintf(&b, "Failed: %d\n", sum.Failed)
	fmt.Fprintf(&b, "Library version: %s\n", sum.LibraryVersion)
	fmt.Fprintf(&b, "Duration: %s\n", roundDuration(sum.Duration))

	b.WriteString("\n=== Categories ===\n")
	for _, cat := range displayOrder {
		n := sum.ByCategory[cat]
		fmt.Fprintf(&b, "%s: %d (%s)\n", cat.Display(), n, percent(n, sum.Processed))
	}
	return b.String()
}

// Reclassification renders a re-classification pass summary with the
// before/after movement between categories.
func Reclassification(sum *reclassify.Summary) string {
	var b strings.Builder
	b.WriteString("=== Re-classification Pass ===\n")
	fmt.Fprintf(&b, "Examined: %d\n", sum.Examined)
	fmt.Fprintf(&b, "Replaced: %d\n", sum.Replaced)
	fmt.Fprintf(&b, "Kept: %d\n", sum.Kept)
	fmt.Fprintf(&b, "First-time results: %d\n", sum.New)
	fmt.Fprintf(&b, "Failed: %d\n", sum.Failed)
	fmt.Fprintf(&b, "Library version: %s\n", sum.LibraryVersion)
	if len(sum.PrevVersions) > 0 {
		fmt.Fprintf(&b, "Previous versions: %s\n", joinVersions(sum.PrevVersions))
	}
	fmt.Fprintf(&b, "Duration: %s\n", roundDuration(sum.Duration))

	b.WriteString("\n=== Before / After ===\n")
	for _, cat := range displayOrder {
		before, after := sum.Before[cat], sum.After[cat]
		fmt.Fprintf(&b, "%s: %d -> %d (%+d)\n", cat.Display(), before, after, after-before)
	}

	fmt.Fprintf(&b, "\nMoved out of %s: %d\n", core.CategoryUnclassified.Display(), sum.NetFromUnclassified())
	fmt.Fprintf(&b, "Improved: %d\n", sum.Improved)
	fmt.Fprintf(&b, "Changed category: %d\n", sum.Changed)
	return b.String()
}

// Dataset renders store statistics.
func Dataset(stats *core.DatasetStats) string {
	var b strings.Builder
	b.WriteString("=== Dataset ===\n")
	fmt.Fprintf(&b, "Total emails: %d\n", stats.TotalEmails)
	fmt.Fprintf(&b, "With attachments: %d\n", stats.WithAttachments)
	fmt.Fprintf(&b, "Average confidence: %.4f\n", stats.AvgConfidence)

	b.WriteString("\n=== Categories ===\n")
	for _, cat := range displayOrder {
		n := stats.ByCategory[cat]
		fmt.Fprintf(&b, "%s: %d (%s)\n", cat.Display(), n, percent(n, stats.TotalEmails))
	}
	return b.String()
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}

func roundDuration(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}

func joinVersions(versions map[string]int) string {
	keys := make([]string, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, v := range keys {
		parts = append(parts, fmt.Sprintf("%s (%d)", v, versions[v]))
	}
	return strings.Join(parts, ", ")
}
