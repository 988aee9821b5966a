// internal/report/junit.go
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/beevik/etree"
)

// JUnit collects render and action events and writes them as a JUnit XML
// test suite when closed, so CI systems can chart slow or failing pages.
type JUnit struct {
	mu     sync.Mutex
	path   string
	suite  string
	cases  []Event
	closed bool
}

// NewJUnit returns a recorder that writes to path on Close.
func NewJUnit(path, suite string) *JUnit {
	return &JUnit{path: path, suite: suite}
}

func (j *JUnit) Record(ev Event) {
	if ev.Kind != KindRender && ev.Kind != KindAction {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.closed {
		j.cases = append(j.cases, ev)
	}
}

// Document builds the XML tree for everything recorded so far.
func (j *JUnit) Document() *etree.Document {
	j.mu.Lock()
	cases := append([]Event(nil), j.cases...)
	j.mu.Unlock()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	suites := doc.CreateElement("testsuites")
	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", j.suite)

	var failures int
	var total time.Duration
	for _, ev := range cases {
		total += ev.Elapsed
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", ev.Page)
		tc.CreateAttr("name", fmt.Sprintf("%s %s", ev.Kind, ev.Name))
		tc.CreateAttr("time", seconds(ev.Elapsed))

		switch ev.Outcome {
		case OutcomeTimeout, OutcomeFault, OutcomeStale:
			failures++
			f := tc.CreateElement("failure")
			f.CreateAttr("type", string(ev.Outcome))
			f.CreateAttr("message", ev.Error)
			f.SetText(ev.Error)
		case OutcomeLenient:
			out := tc.CreateElement("system-out")
			out.SetText("confirmation timed out; continued with best-effort page state: " + ev.Error)
		}
	}
	suite.CreateAttr("tests", fmt.Sprint(len(cases)))
	suite.CreateAttr("failures", fmt.Sprint(failures))
	suite.CreateAttr("time", seconds(total))
	doc.Indent(2)
	return doc
}

// Close writes the XML file. Later events are ignored.
func (j *JUnit) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("failed to create junit directory: %w", err)
	}
	if err := j.Document().WriteToFile(j.path); err != nil {
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return nil
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
