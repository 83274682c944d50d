package main

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"
)

type LogStats struct {
	Transitions         map[string]int
	Completed           int
	Failed              int
	DuplicateCallbacks  int
	RejectedCallbacks   int
	ReconciliationCases int
	WebhooksRejected    int
	TotalErrors         int
	ErrorPatterns       map[string]int
}

var (
	transitionTo = regexp.MustCompile(`\bto=(\w+)`)
	logMessage   = regexp.MustCompile(`msg="([^"]*)"`)
	attemptRef   = regexp.MustCompile(`attempt [0-9a-f-]{36}`)
	numberRef    = regexp.MustCompile(`\b(pay|order)_\w+|\b\d+\b`)
)

func newLogStats() *LogStats {
	return &LogStats{
		Transitions:   make(map[string]int),
		ErrorPatterns: make(map[string]int),
	}
}

// analyzeCheckoutLog reads a checkout log in logrus text format
func analyzeCheckoutLog(r io.Reader, stats *LogStats) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.Contains(line, `msg="Checkout transition"`) {
			if m := transitionTo.FindStringSubmatch(line); m != nil {
				stats.Transitions[m[1]]++
				switch m[1] {
				case "completed":
					stats.Completed++
				case "failed":
					stats.Failed++
				}
			}
		}
		if strings.Contains(line, "Duplicate callback") {
			stats.DuplicateCallbacks++
		}
		if strings.Contains(line, "Callback for attempt") && strings.Contains(line, "rejected") {
			stats.RejectedCallbacks++
		}
		if strings.Contains(line, "Reconciliation case") && strings.Contains(line, "opened") {
			stats.ReconciliationCases++
		}
		if strings.Contains(line, "Webhook signature rejected") {
			stats.WebhooksRejected++
		}

		if strings.Contains(line, "level=error") {
			stats.TotalErrors++
			extractErrorPattern(line, stats)
		}
	}
	return scanner.Err()
}

// extractErrorPattern groups errors by message with ids stripped out
func extractErrorPattern(line string, stats *LogStats) {
	m := logMessage.FindStringSubmatch(line)
	if m == nil {
		return
	}
	msg := m[1]
	if i := strings.Index(msg, ": "); i > 0 {
		msg = msg[:i]
	}
	msg = attemptRef.ReplaceAllString(msg, "attempt <id>")
	msg = numberRef.ReplaceAllString(msg, "<id>")
	stats.ErrorPatterns[msg]++
}

func printReport(w io.Writer, stats *LogStats) {
	fmt.Fprintln(w, "\n=== Checkout Log Report ===")
	fmt.Fprintln(w, "Generated:", time.Now().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w, "\n1. Attempts:")
	fmt.Fprintf(w, "   Completed: %d\n", stats.Completed)
	fmt.Fprintf(w, "   Failed: %d\n", stats.Failed)
	fmt.Fprintf(w, "   Needing reconciliation: %d\n", stats.ReconciliationCases)

	fmt.Fprintln(w, "\n2. Callbacks:")
	fmt.Fprintf(w, "   Duplicates suppressed: %d\n", stats.DuplicateCallbacks)
	fmt.Fprintf(w, "   Rejected for stale attempts: %d\n", stats.RejectedCallbacks)
	fmt.Fprintf(w, "   Webhooks with bad signatures: %d\n", stats.WebhooksRejected)

	fmt.Fprintln(w, "\n3. Transitions:")
	printTop(w, stats.Transitions, len(stats.Transitions), "entries")

	fmt.Fprintln(w, "\n4. Most Common Errors:")
	fmt.Fprintf(w, "   Total Errors: %d\n", stats.TotalErrors)
	printTop(w, stats.ErrorPatterns, 5, "occurrences")
}

func printTop(w io.Writer, counts map[string]int, limit int, unit string) {
	type entry struct {
		key   string
		count int
	}

	var entries []entry
	for k, n := range counts {
		entries = append(entries, entry{k, n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count == entries[j].count {
			return entries[i].key < entries[j].key
		}
		return entries[i].count > entries[j].count
	})

	for i, e := range entries {
		if i >= limit {
			break
		}
		fmt.Fprintf(w, "   %s: %d %s\n", e.key, e.count, unit)
	}
}
