package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	plog "github.com/phuslu/log"

	"memcapture/internal/groups"
	"memcapture/internal/logger"
	"memcapture/internal/stats"
)

// Dataset is one named table in the report. Data rows are maps, so
// ColumnOrder preserves the column sequence for rendering and doubles as
// the table heading list.
type Dataset struct {
	Name        string           `json:"name"`
	Data        []map[string]any `json:"data"`
	ColumnOrder []string         `json:"_columnOrder"`
}

// ProcessEntry is one per-process row of the final document.
type ProcessEntry struct {
	PID       int    `json:"pid"`
	PPID      int    `json:"ppid"`
	Name      string `json:"name"`
	Cmdline   string `json:"cmdline"`
	Service   string `json:"systemdService"`
	Container string `json:"container"`
	Group     string `json:"group"`

	Rss      stats.Summary `json:"rss"`
	Pss      stats.Summary `json:"pss"`
	Uss      stats.Summary `json:"uss"`
	Vss      stats.Summary `json:"vss"`
	Swap     stats.Summary `json:"swap"`
	SwapPss  stats.Summary `json:"swapPss"`
	SwapZram stats.Summary `json:"swapZram"`
	Locked   stats.Summary `json:"locked"`
}

// GroupPss is the summed average PSS attributed to one group.
type GroupPss struct {
	GroupName string `json:"groupName"`
	Pss       int    `json:"pss"`
}

// GrandTotal aggregates the whole-system usage estimates, in MB.
type GrandTotal struct {
	LinuxUsage      float64 `json:"linuxUsage"`
	CalculatedUsage float64 `json:"calculatedUsage"`
}

// Document is the complete report.
type Document struct {
	Processes  []ProcessEntry `json:"processes"`
	Data       []Dataset      `json:"data"`
	GrandTotal GrandTotal     `json:"grandTotal"`
	PssByGroup []GroupPss     `json:"pssByGroup"`
	Metadata   *Metadata      `json:"metadata"`
}

// Generator implements Recorder and renders the accumulated document. It is
// not safe for concurrent use: the capture session flushes metrics into it
// sequentially, after all collection workers have been joined.
type Generator struct {
	doc    Document
	groups *groups.Manager // nil when group classification is disabled
	log    plog.Logger
}

// NewGenerator creates a Generator. groupManager may be nil, in which case
// processes get no group label and pssByGroup is null in the JSON output.
func NewGenerator(metadata *Metadata, groupManager *groups.Manager) *Generator {
	return &Generator{
		doc: Document{
			Processes: []ProcessEntry{},
			Data:      []Dataset{},
			Metadata:  metadata,
		},
		groups: groupManager,
		log:    logger.NewLoggerWithContext("report"),
	}
}

// AddDataset implements Recorder. The first row fixes the column order.
func (g *Generator) AddDataset(name string, rows []Row) {
	if len(rows) == 0 {
		return
	}

	ds := Dataset{Name: name}
	for i, row := range rows {
		entry := make(map[string]any, len(row))
		for _, cell := range row {
			if cell.m != nil {
				entry[cell.m.Name()] = map[string]int{
					"Min":     cell.m.MinRounded(),
					"Max":     cell.m.MaxRounded(),
					"Average": cell.m.AverageRounded(),
				}
				if i == 0 {
					ds.ColumnOrder = append(ds.ColumnOrder,
						cell.m.Name()+" (Min)",
						cell.m.Name()+" (Max)",
						cell.m.Name()+" (Average)")
				}
				continue
			}

			entry[cell.label] = cell.text
			if i == 0 {
				ds.ColumnOrder = append(ds.ColumnOrder, cell.label)
			}
		}
		ds.Data = append(ds.Data, entry)
	}

	g.doc.Data = append(g.doc.Data, ds)
}

// AddProcesses implements Recorder: records the per-process rows sorted by
// average PSS descending and computes the per-group PSS totals.
func (g *Generator) AddProcesses(records []ProcessRecord) {
	sorted := make([]ProcessRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Pss.AverageRounded() > sorted[j].Pss.AverageRounded()
	})

	pssPerGroup := make(map[string]float64)

	for _, r := range sorted {
		group := ""
		if g.groups != nil {
			if name, ok := g.groups.Resolve(r.Container, filepath.Base(r.Name), r.Cmdline); ok {
				group = name
				pssPerGroup[name] += r.Pss.Average()
			}
		}

		g.doc.Processes = append(g.doc.Processes, ProcessEntry{
			PID:       r.PID,
			PPID:      r.PPID,
			Name:      r.Name,
			Cmdline:   r.Cmdline,
			Service:   r.Service,
			Container: r.Container,
			Group:     group,

			Rss:      r.Rss.Summarize(),
			Pss:      r.Pss.Summarize(),
			Uss:      r.Uss.Summarize(),
			Vss:      r.Vss.Summarize(),
			Swap:     r.Swap.Summarize(),
			SwapPss:  r.SwapPss.Summarize(),
			SwapZram: r.SwapZram.Summarize(),
			Locked:   r.Locked.Summarize(),
		})
	}

	if g.groups == nil {
		return
	}

	// Sorted descending so the report pie chart reads nicely.
	byGroup := make([]GroupPss, 0, len(pssPerGroup))
	for name, pss := range pssPerGroup {
		byGroup = append(byGroup, GroupPss{GroupName: name, Pss: int(math.Round(pss))})
	}
	sort.Slice(byGroup, func(i, j int) bool {
		if byGroup[i].Pss != byGroup[j].Pss {
			return byGroup[i].Pss > byGroup[j].Pss
		}
		return byGroup[i].GroupName < byGroup[j].GroupName
	})
	g.doc.PssByGroup = byGroup
}

// SetAverageLinuxMemoryUsage implements Recorder. Stored in MB.
func (g *Generator) SetAverageLinuxMemoryUsage(kb int) {
	g.doc.GrandTotal.LinuxUsage = float64(kb) / 1024.0
}

// AddToAccumulatedMemoryUsage implements Recorder. Stored in MB; the
// accumulation stays in float64 the whole way so long captures with large
// PSS sums don't lose precision.
func (g *Generator) AddToAccumulatedMemoryUsage(kb float64) {
	g.doc.GrandTotal.CalculatedUsage += kb / 1024.0
}

// Document returns the accumulated report document.
func (g *Generator) Document() *Document {
	return &g.doc
}

// WriteJSON writes report.json into the output directory.
func (g *Generator) WriteJSON(outputDir string) error {
	data, err := json.MarshalIndent(marshalDocument(&g.doc), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode report JSON: %w", err)
	}

	path := filepath.Join(outputDir, "report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	g.log.Info().Str("path", path).Msg("Saved JSON data")
	return nil
}

// marshalDocument keeps the documented JSON shape stable: pssByGroup is
// null (not absent, not an empty array) when groups are disabled.
func marshalDocument(doc *Document) map[string]any {
	var pssByGroup any
	if doc.PssByGroup != nil {
		pssByGroup = doc.PssByGroup
	}

	return map[string]any{
		"processes":  doc.Processes,
		"data":       doc.Data,
		"grandTotal": doc.GrandTotal,
		"pssByGroup": pssByGroup,
		"metadata":   doc.Metadata,
	}
}
