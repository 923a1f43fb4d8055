package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
)

// Problem is one structural defect found in a record file.
type Problem struct {
	Line    int    `json:"line"`
	QueryID string `json:"query_id,omitempty"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.QueryID != "" {
		return fmt.Sprintf("line %d (query %s): %s", p.Line, p.QueryID, p.Message)
	}
	return fmt.Sprintf("line %d: %s", p.Line, p.Message)
}

type trajectoryCheck struct {
	queryID  string
	lastLine int
	next     int
	last     string
}

// ValidateJSONL checks a JSONL record file for the trajectory invariants:
// every record has the four primary fields and a well-formed decision,
// iterations of a query run 0,1,2... with Context only after iteration 0,
// only the last record of a trajectory may stop it, and a trajectory that
// ends on CALL must have used all maxIterations. A read or JSON error is
// returned as an error; everything else is reported as a Problem.
func ValidateJSONL(r io.Reader, fields config.OutputFields, maxIterations int) ([]Problem, error) {
	fields = config.OutputConfig{Fields: fields}.Normalize().Fields
	var problems []Problem
	open := map[string]*trajectoryCheck{}
	var order []string
	finish := func(tc *trajectoryCheck) {
		if maxIterations <= 0 {
			return
		}
		if tc.next > maxIterations {
			problems = append(problems, Problem{Line: tc.lastLine, QueryID: tc.queryID,
				Message: fmt.Sprintf("%d iterations exceed max %d", tc.next, maxIterations)})
		}
		if tc.last == "CALL" && tc.next < maxIterations {
			problems = append(problems, Problem{Line: tc.lastLine, QueryID: tc.queryID,
				Message: fmt.Sprintf("trajectory ends on CALL after %d of %d iterations", tc.next, maxIterations)})
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return problems, fmt.Errorf("line %d: %w", line, err)
		}
		report := func(qid, format string, args ...interface{}) {
			problems = append(problems, Problem{Line: line, QueryID: qid, Message: fmt.Sprintf(format, args...)})
		}

		for _, key := range []string{fields.Query, fields.COT, fields.Decision} {
			if s, _ := rec[key].(string); strings.TrimSpace(s) == "" {
				report("", "missing %q", key)
			}
		}
		if _, ok := rec[fields.Tools].([]interface{}); !ok {
			report("", "%q is not a list", fields.Tools)
		}
		decision, _ := rec[fields.Decision].(string)
		kind := DecisionType(decision)
		if kind == "UNKNOWN" {
			report("", "malformed decision %q", decision)
		}

		meta, _ := rec["metadata"].(map[string]interface{})
		if meta == nil {
			continue
		}
		rawID, ok := meta["query_id"]
		if !ok {
			continue
		}
		qid := fmt.Sprint(rawID)
		iter, ok := meta["iteration"].(float64)
		if !ok {
			report(qid, "metadata.iteration missing")
			continue
		}
		if dt, _ := meta["decision_type"].(string); dt != "" && dt != kind {
			report(qid, "decision_type %s does not match decision %s", dt, kind)
		}
		_, hasContext := rec["Context"]
		if iter == 0 && hasContext {
			report(qid, "context present at iteration 0")
		}
		if iter > 0 && !hasContext {
			report(qid, "context missing at iteration %d", int(iter))
		}

		tc, seen := open[qid]
		if seen && iter == 0 {
			// Appended output from an earlier run restarts the query.
			finish(tc)
			tc.next, tc.last = 0, ""
		}
		if !seen {
			tc = &trajectoryCheck{queryID: qid}
			open[qid] = tc
			order = append(order, qid)
		}
		if int(iter) != tc.next {
			report(qid, "iteration %d out of sequence (expected %d)", int(iter), tc.next)
		}
		if tc.last == "ASK" || tc.last == "ANSWER" {
			report(qid, "record after terminal %s", tc.last)
		}
		tc.next = int(iter) + 1
		tc.last = kind
		tc.lastLine = line
	}
	if err := sc.Err(); err != nil {
		return problems, err
	}

	for _, qid := range order {
		finish(open[qid])
	}
	return problems, nil
}
