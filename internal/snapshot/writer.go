package snapshot

import (
	"Go2NetSentinel/internal/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	flowsFile   = "flows.gob"
	summaryFile = "summary.json"
	dirLayout   = "20060102-150405.000"
)

// SummaryData holds the metadata for one archived window.
type SummaryData struct {
	TotalFlows   int    `json:"total_flows"`
	TotalPackets uint64 `json:"total_packets"`
	TotalBytes   uint64 `json:"total_bytes"`
	TakenAt      string `json:"taken_at"`
}

// archivedFlow is the on-disk form of one flow table entry.
type archivedFlow struct {
	Key    model.FlowKey
	Record model.FlowRecord
}

// Writer archives flushed windows below a root directory, one timestamped
// directory per window.
type Writer struct {
	rootPath string
}

// NewWriter creates a new snapshot writer rooted at rootPath.
func NewWriter(rootPath string) *Writer {
	return &Writer{rootPath: rootPath}
}

// Write serializes the flow table of a window and its summary. Empty windows
// are skipped and return an empty path.
func (w *Writer) Write(snapshot model.WindowSnapshot) (string, error) {
	if snapshot.Len() == 0 {
		return "", nil
	}

	dir := filepath.Join(w.rootPath, snapshot.TakenAt().UTC().Format(dirLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	flows := make([]archivedFlow, 0, snapshot.Len())
	summary := SummaryData{TakenAt: snapshot.TakenAt().UTC().Format(time.RFC3339Nano)}
	for _, key := range snapshot.Keys() {
		rec, _ := snapshot.Lookup(key)
		flows = append(flows, archivedFlow{Key: key, Record: rec})
		summary.TotalPackets += rec.Packets
		summary.TotalBytes += rec.Bytes
	}
	summary.TotalFlows = len(flows)

	flowsPath := filepath.Join(dir, flowsFile)
	file, err := os.Create(flowsPath)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file '%s': %w", flowsPath, err)
	}
	if err := gob.NewEncoder(file).Encode(flows); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to encode flows to gob for file '%s': %w", flowsPath, err)
	}
	if err := file.Close(); err != nil {
		return "", err
	}

	out, err := os.Create(filepath.Join(dir, summaryFile))
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer out.Close()

	jsonEncoder := json.NewEncoder(out)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return "", fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return dir, nil
}

// Read loads a window archived by Write from dir.
func Read(dir string) (model.WindowSnapshot, error) {
	file, err := os.Open(filepath.Join(dir, flowsFile))
	if err != nil {
		return model.WindowSnapshot{}, err
	}
	defer file.Close()

	var flows []archivedFlow
	if err := gob.NewDecoder(file).Decode(&flows); err != nil {
		return model.WindowSnapshot{}, fmt.Errorf("failed to decode flows in '%s': %w", dir, err)
	}

	summaryBytes, err := os.ReadFile(filepath.Join(dir, summaryFile))
	if err != nil {
		return model.WindowSnapshot{}, err
	}
	var summary SummaryData
	if err := json.Unmarshal(summaryBytes, &summary); err != nil {
		return model.WindowSnapshot{}, fmt.Errorf("bad summary in '%s': %w", dir, err)
	}
	takenAt, err := time.Parse(time.RFC3339Nano, summary.TakenAt)
	if err != nil {
		return model.WindowSnapshot{}, fmt.Errorf("bad summary timestamp in '%s': %w", dir, err)
	}

	table := make(map[model.FlowKey]*model.FlowRecord, len(flows))
	for i := range flows {
		table[flows[i].Key] = &flows[i].Record
	}
	return model.NewWindowSnapshot(table, takenAt), nil
}
