package nonmem

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ColumnInfo describes the semantics of one dataset column.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Scale    string `json:"scale,omitempty"`
	Datatype string `json:"datatype,omitempty"`
	Drop     bool   `json:"drop,omitempty"`
}

// DataInfo is the column metadata of a dataset, either derived from $INPUT
// or read from a .datainfo sidecar next to the dataset file.
type DataInfo struct {
	Columns []ColumnInfo `json:"columns"`
	Path    string       `json:"path,omitempty"`
}

// Names returns the column names in order.
func (di *DataInfo) Names() []string {
	out := make([]string, len(di.Columns))
	for i, c := range di.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (di *DataInfo) Column(name string) (ColumnInfo, bool) {
	for _, c := range di.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// Copy returns a deep copy.
func (di *DataInfo) Copy() *DataInfo {
	out := &DataInfo{Path: di.Path, Columns: make([]ColumnInfo, len(di.Columns))}
	copy(out.Columns, di.Columns)
	return out
}

// Equal compares column metadata and path.
func (di *DataInfo) Equal(other *DataInfo) bool {
	if di == nil || other == nil {
		return di == other
	}
	if di.Path != other.Path || len(di.Columns) != len(other.Columns) {
		return false
	}
	for i := range di.Columns {
		if di.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

// ReadDataInfo reads a .datainfo sidecar JSON file.
func ReadDataInfo(path string) (*DataInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var di DataInfo
	if err := json.Unmarshal(data, &di); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &di, nil
}

// WriteJSON writes the sidecar file.
func (di *DataInfo) WriteJSON(path string) error {
	data, err := json.MarshalIndent(di, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// sidecarPath is the .datainfo path for a dataset file.
func sidecarPath(datasetPath string) string {
	if i := strings.LastIndexByte(datasetPath, '.'); i > strings.LastIndexByte(datasetPath, '/') {
		return datasetPath[:i] + ".datainfo"
	}
	return datasetPath + ".datainfo"
}

var dateColumns = map[string]bool{"DATE": true, "DAT1": true, "DAT2": true, "DAT3": true}

// deriveDataInfo builds column metadata from the $INPUT layout the way
// NONMEM interprets the reserved names. havePK selects the dosing-related
// typings that only apply to population PK models.
func deriveDataInfo(layout *columnLayout, datasetPath string, havePK bool) *DataInfo {
	hasDate := false
	for _, name := range layout.Names {
		if dateColumns[name] {
			hasDate = true
		}
	}
	di := &DataInfo{Path: datasetPath}
	for i, name := range layout.Names {
		drop := layout.Drop[i]
		var info ColumnInfo
		switch {
		case drop && !dateColumns[name]:
			info = ColumnInfo{Name: name, Drop: true, Datatype: "str"}
		case name == "ID" || name == "L1":
			info = ColumnInfo{Name: name, Drop: drop, Datatype: "int32", Type: "id", Scale: "nominal"}
		case name == "DV" || name == layout.Replacements["DV"]:
			info = ColumnInfo{Name: name, Drop: drop, Type: "dv"}
		case name == "TIME" || name == layout.Replacements["TIME"]:
			datatype := "float64"
			if hasDate {
				datatype = "nmtran-time"
			}
			info = ColumnInfo{Name: name, Drop: drop, Type: "idv", Scale: "ratio", Datatype: datatype}
		case dateColumns[name]:
			// Dropped in the control stream but still read for time parsing.
			info = ColumnInfo{Name: name, Scale: "interval", Datatype: "nmtran-date"}
		case name == "EVID" && havePK:
			info = ColumnInfo{Name: name, Drop: drop, Type: "event", Scale: "nominal"}
		case name == "MDV" && havePK:
			tp := "event"
			for _, n := range layout.Names {
				if n == "EVID" {
					tp = "mdv"
				}
			}
			info = ColumnInfo{Name: name, Drop: drop, Type: tp, Scale: "nominal", Datatype: "int32"}
		case name == "II" && havePK:
			info = ColumnInfo{Name: name, Drop: drop, Type: "ii", Scale: "ratio"}
		case name == "SS" && havePK:
			info = ColumnInfo{Name: name, Drop: drop, Type: "ss", Scale: "nominal"}
		case name == "ADDL" && havePK:
			info = ColumnInfo{Name: name, Drop: drop, Type: "additional", Scale: "ordinal"}
		case (name == "AMT" || name == layout.Replacements["AMT"]) && havePK:
			info = ColumnInfo{Name: name, Drop: drop, Type: "dose", Scale: "ratio"}
		case name == "CMT" && havePK:
			info = ColumnInfo{Name: name, Drop: drop, Type: "compartment", Scale: "nominal"}
		case name == "RATE" && havePK:
			info = ColumnInfo{Name: name, Drop: drop, Type: "rate"}
		default:
			info = ColumnInfo{Name: name, Drop: drop}
		}
		di.Columns = append(di.Columns, info)
	}
	return di
}
