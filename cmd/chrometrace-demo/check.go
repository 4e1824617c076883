package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/maruel/subcommands"
)

var cmdCheck = &subcommands.Command{
	UsageLine: "check <trace.json[.gz]>",
	ShortDesc: "verifies that a written trace is complete and balanced",
	LongDesc:  "Parses a trace in array or object form and checks that every Begin has an End on the same thread.",
	CommandRun: func() subcommands.CommandRun {
		return &checkCmd{}
	},
}

type checkCmd struct {
	subcommands.CommandRunBase
}

func (c *checkCmd) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 1 {
		fmt.Fprintf(a.GetErr(), "%s: check takes exactly one trace file\n", a.GetName())
		return 1
	}
	sum, err := checkFile(args[0])
	if err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), err)
		return 1
	}
	fmt.Fprintln(a.GetOut(), sum)
	if !sum.balanced() {
		return 2
	}
	return 0
}

// traceSummary describes one trace file.
type traceSummary struct {
	Records int
	Phases  map[string]int
	Threads int

	// Unclosed counts Begins with no End on their thread.
	Unclosed int
	// Unmatched counts Ends with no open Begin on their thread.
	Unmatched int
}

func (s traceSummary) balanced() bool {
	return s.Unclosed == 0 && s.Unmatched == 0
}

func (s traceSummary) String() string {
	keys := make([]string, 0, len(s.Phases))
	for ph := range s.Phases {
		keys = append(keys, ph)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, ph := range keys {
		parts[i] = fmt.Sprintf("%s=%s", ph, humanize.Comma(int64(s.Phases[ph])))
	}
	return fmt.Sprintf("%s records on %d threads [%s], %d unclosed, %d unmatched",
		humanize.Comma(int64(s.Records)), s.Threads, strings.Join(parts, " "), s.Unclosed, s.Unmatched)
}

func checkFile(path string) (traceSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return traceSummary{}, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return traceSummary{}, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	return summarize(r)
}

type checkedRecord struct {
	Ph  string `json:"ph"`
	Pid int64  `json:"pid"`
	Tid int64  `json:"tid"`
}

// summarize reads a whole trace document. Records are taken in file order,
// which is the order the layer emitted them.
func summarize(r io.Reader) (traceSummary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return traceSummary{}, err
	}
	data = bytes.TrimSpace(data)

	var records []checkedRecord
	if bytes.HasPrefix(data, []byte("{")) {
		var doc struct {
			TraceEvents []checkedRecord `json:"traceEvents"`
		}
		err = json.Unmarshal(data, &doc)
		records = doc.TraceEvents
	} else {
		err = json.Unmarshal(data, &records)
	}
	if err != nil {
		return traceSummary{}, fmt.Errorf("failed to parse trace: %w", err)
	}

	type row struct{ pid, tid int64 }
	depth := map[row]int{}
	sum := traceSummary{Records: len(records), Phases: map[string]int{}}
	for _, rec := range records {
		sum.Phases[rec.Ph]++
		key := row{rec.Pid, rec.Tid}
		switch rec.Ph {
		case "B":
			depth[key]++
		case "E":
			if depth[key] == 0 {
				sum.Unmatched++
				continue
			}
			depth[key]--
		default:
			if _, ok := depth[key]; !ok {
				depth[key] = 0
			}
		}
	}
	sum.Threads = len(depth)
	for _, d := range depth {
		sum.Unclosed += d
	}
	return sum, nil
}
