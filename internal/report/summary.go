// internal/report/summary.go
package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hpcloud/tail"
	json "github.com/json-iterator/go"
)

// Summary aggregates a JSONL report.
type Summary struct {
	Total     int
	ByKind    map[Kind]map[Outcome]int
	Slowest   []Event
	Malformed int
}

// slowestKept is how many of the slowest waits a Summary retains.
const slowestKept = 5

// Summarize reads a JSONL report from r. Malformed lines are counted and
// skipped.
func Summarize(r io.Reader) (Summary, error) {
	s := Summary{ByKind: map[Kind]map[Outcome]int{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.UnmarshalFromString(line, &ev); err != nil {
			s.Malformed++
			continue
		}
		s.add(ev)
	}
	if err := scanner.Err(); err != nil {
		return s, fmt.Errorf("failed to read report: %w", err)
	}
	return s, nil
}

func (s *Summary) add(ev Event) {
	s.Total++
	if s.ByKind[ev.Kind] == nil {
		s.ByKind[ev.Kind] = map[Outcome]int{}
	}
	s.ByKind[ev.Kind][ev.Outcome]++

	if ev.Kind != KindWait && ev.Kind != KindConfirm {
		return
	}
	s.Slowest = append(s.Slowest, ev)
	sort.SliceStable(s.Slowest, func(i, j int) bool {
		return s.Slowest[i].Elapsed > s.Slowest[j].Elapsed
	})
	if len(s.Slowest) > slowestKept {
		s.Slowest = s.Slowest[:slowestKept]
	}
}

// WriteTo prints a human readable summary.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "events: %d", s.Total)
	if s.Malformed > 0 {
		fmt.Fprintf(&b, " (%d malformed lines skipped)", s.Malformed)
	}
	b.WriteString("\n")

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		outcomes := s.ByKind[Kind(k)]
		names := make([]string, 0, len(outcomes))
		for o := range outcomes {
			names = append(names, string(o))
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, o := range names {
			parts = append(parts, fmt.Sprintf("%s=%d", o, outcomes[Outcome(o)]))
		}
		fmt.Fprintf(&b, "  %-12s %s\n", k, strings.Join(parts, " "))
	}

	if len(s.Slowest) > 0 {
		b.WriteString("slowest waits:\n")
		for _, ev := range s.Slowest {
			fmt.Fprintf(&b, "  %8s  %-8s %s %s\n", ev.Elapsed.Round(time.Millisecond), ev.Outcome, ev.Page, ev.Name)
		}
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Follow streams events appended to path until ctx is done. Only lines
// written after Follow starts are delivered.
func Follow(ctx context.Context, path string, fn func(Event) error) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow report file: %w", err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read report line: %w", line.Err)
			}
			var ev Event
			if err := json.UnmarshalFromString(line.Text, &ev); err != nil {
				continue
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
	}
}
