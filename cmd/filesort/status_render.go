package main

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"filesort/internal/preflight"
	"filesort/internal/sorter"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 14
	statusIndent     = "  "
	// maxFailureRows caps the failure table; the journal keeps the full list.
	maxFailureRows = 20
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	status := "[" + statusKindLabel(kind) + "]"
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", status)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + line + ansiReset
		}
	}
	return line
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// reportLines renders the end-of-run summary: status lines, a bucket table,
// and a failure table when anything failed.
func reportLines(report *sorter.Report, colorize bool) []string {
	lines := renderSectionHeader("Sort "+shortID(report.RunID), colorize)
	lines = append(lines,
		renderStatusLine("Source", statusInfo, report.SourceRoot, colorize),
		renderStatusLine("Destination", statusInfo, report.DestRoot, colorize),
		renderStatusLine("Copied", statusOK, fmt.Sprintf("%d of %d files (%s)",
			report.Copied, report.Discovered, humanize.IBytes(uint64(max(report.Bytes, 0)))), colorize),
	)

	failedKind := statusOK
	if report.Failed > 0 {
		failedKind = statusError
	}
	lines = append(lines, renderStatusLine("Failed", failedKind, strconv.Itoa(report.Failed), colorize))
	if report.Renamed > 0 {
		lines = append(lines, renderStatusLine("Renamed", statusWarn, fmt.Sprintf("%d name clashes kept as name_N", report.Renamed), colorize))
	}
	if report.WalkSkipped > 0 {
		lines = append(lines, renderStatusLine("Skipped", statusWarn, fmt.Sprintf("%d unreadable or special entries", report.WalkSkipped), colorize))
	}
	if report.Cancelled {
		lines = append(lines, renderStatusLine("Cancelled", statusError, "run stopped before all files were copied", colorize))
	}
	lines = append(lines, renderStatusLine("Duration", statusInfo, report.Duration().Round(time.Millisecond).String(), colorize))

	if len(report.Buckets) > 0 {
		lines = append(lines, "", bucketTable(report.Buckets))
	}
	if len(report.Failures) > 0 {
		lines = append(lines, "", failureTable(report.Failures))
		if extra := len(report.Failures) - maxFailureRows; extra > 0 {
			lines = append(lines, fmt.Sprintf("... and %d more (filesort history show %s)", extra, shortID(report.RunID)))
		}
	}
	return lines
}

func bucketTable(buckets map[string]int) string {
	names := slices.Collect(maps.Keys(buckets))
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(buckets[b], buckets[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(buckets[name])})
	}
	return renderTable([]column{{"Folder", text.AlignLeft}, {"Files", text.AlignRight}}, rows)
}

func failureTable(failures []sorter.Failure) string {
	rows := make([][]string, 0, min(len(failures), maxFailureRows))
	for _, f := range failures[:min(len(failures), maxFailureRows)] {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		rows = append(rows, []string{f.Path, f.Bucket, msg})
	}
	return renderTable([]column{{"Path", text.AlignLeft}, {"Folder", text.AlignLeft}, {"Error", text.AlignLeft}}, rows)
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := renderSectionHeader("Preflight", colorize)
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
