package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"strings"

	"badge-progress-system/utils"

	"github.com/goccy/go-json"
)

// Extensions of files a backfill source may contain.
var (
	RecordExts = []string{".json", ".jsonl", ".ndjson"}
	ImportExts = append([]string{".zip"}, RecordExts...)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Item is one entry of a backfill source: a decoded record or the reason it
// could not be decoded. Source and Index locate it for reports.
type Item struct {
	Source string
	Index  int
	Record Record
	Err    error
}

// ReadRecords decodes a JSON array of records or JSON lines, chosen by the
// first non-blank byte. Item.Index is the array position or the 1-based
// line. Per-record problems become Item.Err; only a document that cannot be
// split into records fails as a whole.
func ReadRecords(data []byte, source string) ([]Item, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("%s: not a JSON array of records: %w", source, err)
		}
		items := make([]Item, len(raws))
		for i, raw := range raws {
			items[i] = decodeItem(raw, source, i)
		}
		return items, nil
	}

	var items []Item
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		items = append(items, decodeItem(bytes.Clone(text), source, line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return items, nil
}

// ReadSource decodes a named blob: zip archives are expanded and every
// record file inside is read in name order.
func ReadSource(data []byte, name string) ([]Item, error) {
	if !strings.EqualFold(path.Ext(name), ".zip") {
		return ReadRecords(data, name)
	}
	entries, err := utils.ReadZip(data, RecordExts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	var items []Item
	for _, e := range entries {
		got, err := ReadRecords(e.Data, name+"!"+e.Name)
		if err != nil {
			return nil, err
		}
		items = append(items, got...)
	}
	return items, nil
}

func decodeItem(raw []byte, source string, index int) Item {
	rec, err := Decode(raw)
	return Item{Source: source, Index: index, Record: rec, Err: err}
}

// Records drops failed items.
func Records(items []Item) []Record {
	out := make([]Record, 0, len(items))
	for _, it := range items {
		if it.Err == nil {
			out = append(out, it.Record)
		}
	}
	return out
}
