package nonmem

import (
	"fmt"

	"github.com/pharmflow/go-nmtran/nmtran"
)

// reservedColumnNames are the dataset column names with built-in meaning. A
// $INPUT synonym must pair a reserved name with a non-reserved one.
var reservedColumnNames = map[string]bool{
	"ID": true, "L1": true, "L2": true,
	"DV": true, "MDV": true,
	"RAW_": true, "MRG_": true, "RPT_": true,
	"TIME": true, "DATE": true, "DAT1": true, "DAT2": true, "DAT3": true,
	"EVID": true, "AMT": true, "RATE": true,
	"SS": true, "II": true, "ADDL": true,
	"CMT": true, "PCMT": true, "CALL": true, "CONT": true,
}

// resolveSynonym splits a NAME=SYNONYM pair into its reserved name and the
// synonym. Exactly one side must be reserved.
func resolveSynonym(key, value string) (reserved, synonym string, err error) {
	if reservedColumnNames[key] {
		return key, value, nil
	}
	if reservedColumnNames[value] {
		return value, key, nil
	}
	return "", "", &nmtran.DatasetError{
		Msg: fmt.Sprintf("column name %q in $INPUT has a synonym to a non-reserved column name %q", key, value),
	}
}

// columnLayout is the resolved view of the $INPUT records: column names in
// dataset order, their drop flags, the synonym replacements for reserved
// names, and the name as given in $INPUT ("" for anonymous DROP columns).
type columnLayout struct {
	Names        []string
	Drop         []bool
	Replacements map[string]string
	Given        []string
}

// columnInfo resolves the $INPUT column declarations. Synonyms resolve to
// the synonym name; anonymous DROP/SKIP columns get unique _DROPn names.
func columnInfo(doc *nmtran.Document) (*columnLayout, error) {
	layout := &columnLayout{Replacements: make(map[string]string)}
	nextAnonymous := 1
	for _, rec := range doc.Records {
		input, ok := rec.(*nmtran.InputRecord)
		if !ok {
			continue
		}
		for _, opt := range input.Columns() {
			switch {
			case opt.Value == "":
				if opt.Key == "DROP" || opt.Key == "SKIP" {
					layout.Names = append(layout.Names, fmt.Sprintf("_DROP%d", nextAnonymous))
					nextAnonymous++
					layout.Given = append(layout.Given, "")
					layout.Drop = append(layout.Drop, true)
				} else {
					layout.Names = append(layout.Names, opt.Key)
					layout.Given = append(layout.Given, opt.Key)
					layout.Drop = append(layout.Drop, false)
				}
			case opt.Key == "DROP" || opt.Key == "SKIP":
				layout.Names = append(layout.Names, opt.Value)
				layout.Given = append(layout.Given, opt.Value)
				layout.Drop = append(layout.Drop, true)
			case opt.Value == "DROP" || opt.Value == "SKIP":
				layout.Names = append(layout.Names, opt.Key)
				layout.Given = append(layout.Given, opt.Key)
				layout.Drop = append(layout.Drop, true)
			default:
				reserved, synonym, err := resolveSynonym(opt.Key, opt.Value)
				if err != nil {
					return nil, err
				}
				layout.Replacements[reserved] = synonym
				layout.Names = append(layout.Names, synonym)
				layout.Given = append(layout.Given, synonym)
				layout.Drop = append(layout.Drop, false)
			}
		}
	}
	return layout, nil
}
