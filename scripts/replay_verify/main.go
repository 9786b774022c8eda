package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/scheduler"
)

type report struct {
	Active     int
	Expired    int
	Failures   []scheduler.ReplayFailure
	Missing    []string
	Unexpected []string
}

func (r report) Match() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0
}

func main() {
	var (
		file    string
		baseURL string
		token   string
		at      string
		timeout time.Duration
	)

	flag.StringVar(&file, "file", "", "Path to a published timetable JSON document")
	flag.StringVar(&baseURL, "url", "", "API base URL to fetch the published timetable from instead of -file")
	flag.StringVar(&token, "token", "", "Admin bearer token used with -url")
	flag.StringVar(&at, "at", "", "Evaluate expiry at this RFC3339 time (default now)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	now := time.Now().UTC()
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			log.Fatalf("invalid -at: %v", err)
		}
		now = parsed.UTC()
	}

	var (
		doc *models.PublishedTimetable
		err error
	)
	switch {
	case file != "":
		doc, err = loadFile(file)
	case baseURL != "":
		doc, err = fetchPublished(&http.Client{Timeout: timeout}, baseURL, token)
	default:
		err = errors.New("either -file or -url is required")
	}
	if err != nil {
		log.Fatalf("failed to load published timetable: %v", err)
	}

	res := verify(doc, now)
	printReport(res)
	if !res.Match() {
		os.Exit(1)
	}
}

func loadFile(path string) (*models.PublishedTimetable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc models.PublishedTimetable
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func fetchPublished(client *http.Client, base, token string) (*models.PublishedTimetable, error) {
	url := strings.TrimRight(base, "/") + "/api/v1/timetable/published"
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var envelope struct {
		Data models.PublishedTimetable `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// verify rebuilds the effective schedule from the base snapshot and the modifications still
// active at now, then diffs it against the stored effective rows.
func verify(doc *models.PublishedTimetable, now time.Time) report {
	active, expired := scheduler.ActiveModifications(doc.TemporaryChanges, now)
	base := doc.BaseTimetableData.Timetable
	if len(base) == 0 {
		base = doc.TimetableData.Timetable
	}

	rebuilt, failures := scheduler.NewOverlay(doc.InputData, nil).Rebuild(base, active)
	missing, unexpected := diffRows(doc.TimetableData.Timetable, rebuilt)
	return report{
		Active:     len(active),
		Expired:    len(expired),
		Failures:   failures,
		Missing:    missing,
		Unexpected: unexpected,
	}
}

// diffRows compares rows as multisets. missing holds stored rows the replay did not produce;
// unexpected holds replayed rows absent from the stored schedule.
func diffRows(stored, rebuilt []models.TimetableRow) (missing, unexpected []string) {
	counts := make(map[string]int, len(stored))
	for _, row := range stored {
		counts[rowKey(row)]++
	}
	for _, row := range rebuilt {
		key := rowKey(row)
		if counts[key] > 0 {
			counts[key]--
			continue
		}
		unexpected = append(unexpected, key)
	}
	for key, n := range counts {
		for ; n > 0; n-- {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return missing, unexpected
}

func rowKey(row models.TimetableRow) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s", row.Section, row.Day, row.Slot, row.Subject, row.Teacher, row.Room, row.Group)
	if row.MovedFrom != "" {
		key += "|from " + row.MovedFrom
	}
	return key
}

func printReport(res report) {
	fmt.Println("Replay Verify Report")
	fmt.Println("====================")
	fmt.Printf("Active modifications: %d | Expired: %d | Replay failures: %d\n", res.Active, res.Expired, len(res.Failures))
	for _, failure := range res.Failures {
		fmt.Printf("  [SKIPPED] %s %s %s %s: %v\n", failure.Modification.Type, failure.Modification.Teacher, failure.Modification.Day, failure.Modification.Slot, failure.Err)
	}
	for _, key := range res.Missing {
		fmt.Printf("  [MISSING] %s\n", key)
	}
	for _, key := range res.Unexpected {
		fmt.Printf("  [UNEXPECTED] %s\n", key)
	}
	if res.Match() {
		fmt.Println("Stored schedule matches replay")
		return
	}
	fmt.Printf("Missing: %d, Unexpected: %d\n", len(res.Missing), len(res.Unexpected))
	if res.Expired > 0 {
		fmt.Println("Expired modifications are still applied in the stored schedule; a refresh is due")
	}
}
