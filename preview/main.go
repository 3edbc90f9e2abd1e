// Command preview runs one raw payload through the normalization
// pipeline without touching the store and prints the events it would
// produce. Handy for checking a saved calendar response before wiring a
// new source strategy.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/wlwv-tools/school-calendar/backend/internal/ingest"
	"github.com/wlwv-tools/school-calendar/backend/internal/logger"
	"github.com/wlwv-tools/school-calendar/backend/internal/models"
)

func main() {
	var (
		file        = flag.String("file", "-", "payload file, - for stdin")
		contentType = flag.String("content-type", "", "content type hint for format detection")
		school      = flag.String("school", "wlhs", "school code (wlhs or wvhs)")
		department  = flag.String("department", "Life", "department label for extracted events")
		month       = flag.String("month", "", "YYYY-MM; when set, events outside the month are dropped")
		asJSON      = flag.Bool("json", false, "print the full report as JSON instead of a table")
	)
	flag.Parse()

	log := logger.New("preview")

	sc := models.School(*school)
	if !sc.Valid() {
		fmt.Fprintln(os.Stderr, "school must be wlhs or wvhs")
		os.Exit(2)
	}

	payload, err := readPayload(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	runner := ingest.NewRunner(nil, nil, log)
	report := runner.Run(context.Background(), ingest.Input{
		Payload:     payload,
		ContentType: *contentType,
		School:      sc,
		Department:  *department,
		Month:       *month,
		FetchOnly:   true,
	})

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	printTable(os.Stdout, report.Events)
	fmt.Printf("\n%d event(s)\n", len(report.Events))
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func printTable(w io.Writer, events []models.Event) {
	header := []string{"DATE", "TIME", "TITLE", "DEPARTMENT"}
	rows := [][]string{header}
	for _, ev := range events {
		rows = append(rows, []string{ev.Date, ev.Time, ev.Title, ev.Department})
	}

	// Pad by display width so wide runes keep the columns aligned.
	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			if width := runewidth.StringWidth(cell); width > widths[i] {
				widths[i] = width
			}
		}
	}

	for _, row := range rows {
		var sb strings.Builder
		for i, cell := range row {
			sb.WriteString(cell)
			if i < len(row)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)+2))
			}
		}
		fmt.Fprintln(w, sb.String())
	}
}
