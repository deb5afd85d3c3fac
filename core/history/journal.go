package history

import (
	"bufio"
	"encoding/json"
	"io"
)

// entry is one line of a JSONL journal: either a record or a tombstone.
type entry struct {
	Record  *Record `json:"record,omitempty"`
	Deleted string  `json:"deleted,omitempty"`
}

// journal is the in-memory view rebuilt from JSONL lines.
type journal struct {
	order []string
	recs  map[string]Record
}

func newJournal() *journal { return &journal{recs: make(map[string]Record)} }

// replay applies every decodable line of r. Corrupt lines are skipped.
func (j *journal) replay(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var e entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		j.apply(e)
	}
	return scanner.Err()
}

func (j *journal) apply(e entry) {
	switch {
	case e.Record != nil:
		if _, ok := j.recs[e.Record.ID]; !ok {
			j.order = append(j.order, e.Record.ID)
		}
		j.recs[e.Record.ID] = *e.Record
	case e.Deleted != "":
		delete(j.recs, e.Deleted)
	}
}

func (j *journal) records() []Record {
	out := make([]Record, 0, len(j.recs))
	for _, id := range j.order {
		if r, ok := j.recs[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

func writeEntry(w io.Writer, e entry) error {
	return json.NewEncoder(w).Encode(e)
}
