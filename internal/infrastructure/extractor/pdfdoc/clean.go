package pdfdoc

import (
	"regexp"
	"strings"
)

// edgeLines is how deep into a page's top and bottom the cleaners reach.
const edgeLines = 3

// recurringThreshold is the fraction of pages a line must open or close
// before it counts as a running header or footer.
const recurringThreshold = 0.3

var pageNumberPattern = regexp.MustCompile(`(?i)^(?:[ivxlc]+|\d+)$`)

func cleanPages(pages []string) []string {
	return removePageNumbers(removeRecurringLines(pages))
}

// removeRecurringLines drops lines that open or close more than 30% of the
// pages, but only when they sit within the first or last three lines of a
// page, so body text repeating across pages survives.
func removeRecurringLines(pages []string) []string {
	if len(pages) == 0 {
		return pages
	}

	topCounts := make(map[string]int)
	bottomCounts := make(map[string]int)
	for _, page := range pages {
		lines := nonEmptyLines(page)
		if len(lines) == 0 {
			continue
		}
		topCounts[lines[0]]++
		if len(lines) > 1 {
			bottomCounts[lines[len(lines)-1]]++
		}
	}

	threshold := float64(len(pages)) * recurringThreshold
	headers := recurring(topCounts, threshold)
	footers := recurring(bottomCounts, threshold)

	cleaned := make([]string, len(pages))
	for p, page := range pages {
		lines := strings.Split(page, "\n")
		kept := make([]string, 0, len(lines))
		for i, line := range lines {
			stripped := strings.TrimSpace(line)
			if headers[stripped] && i < edgeLines {
				continue
			}
			if footers[stripped] && i > len(lines)-edgeLines-1 {
				continue
			}
			kept = append(kept, line)
		}
		cleaned[p] = strings.Join(kept, "\n")
	}
	return cleaned
}

// removePageNumbers drops standalone arabic or roman numerals from the first
// and last three lines of every page.
func removePageNumbers(pages []string) []string {
	cleaned := make([]string, len(pages))
	for p, page := range pages {
		lines := strings.Split(page, "\n")
		kept := make([]string, 0, len(lines))
		for i, line := range lines {
			nearEdge := i < edgeLines || i > len(lines)-edgeLines-1
			if nearEdge && pageNumberPattern.MatchString(strings.TrimSpace(line)) {
				continue
			}
			kept = append(kept, line)
		}
		cleaned[p] = strings.Join(kept, "\n")
	}
	return cleaned
}

func recurring(counts map[string]int, threshold float64) map[string]bool {
	out := make(map[string]bool)
	for line, count := range counts {
		if float64(count) > threshold {
			out[line] = true
		}
	}
	return out
}

func nonEmptyLines(page string) []string {
	lines := strings.Split(page, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if stripped := strings.TrimSpace(line); stripped != "" {
			out = append(out, stripped)
		}
	}
	return out
}
