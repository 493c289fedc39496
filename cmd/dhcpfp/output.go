package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/InfraSecConsult/dhcp-osfp-go/internal/fingerprint"
	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

var noMatch = color.New(color.FgYellow).SprintFunc()

func encodeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

// formatClassifications formats classification results for output
func formatClassifications(w io.Writer, classifications []*model.Classification, format string) error {
	switch format {
	case "json":
		if classifications == nil {
			classifications = []*model.Classification{}
		}
		return encodeJSON(w, classifications)
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Timestamp", "ClientMAC", "ClientIP", "TransactionID", "MessageType",
			"VendorClass", "OptionList", "Fingerprinter", "Labels", "Weight", "Matched"})
		for _, c := range classifications {
			_ = cw.Write([]string{
				c.Timestamp.Format(time.RFC3339Nano), c.ClientMAC, ipString(c.ClientIP),
				fmt.Sprintf("0x%08x", c.TransactionID), c.MessageType, c.VendorClass, c.OptionList,
				c.Fingerprinter, strings.Join(c.Labels, ";"), strconv.Itoa(c.Weight), strconv.FormatBool(c.Matched),
			})
		}
		cw.Flush()
		return cw.Error()
	default: // table
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "TIME\tCLIENT MAC\tCLIENT IP\tXID\tTYPE\tVENDOR CLASS\tOPTIONS\tOS\tWEIGHT\n")
		for _, c := range classifications {
			label, weight := noMatch("no match"), "-"
			if c.Matched {
				label, weight = strings.Join(c.Labels, ", "), strconv.Itoa(c.Weight)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t0x%08x\t%s\t%s\t%s\t%s\t%s\n",
				c.Timestamp.Format("2006-01-02 15:04:05"), c.ClientMAC, ipString(c.ClientIP),
				c.TransactionID, c.MessageType, c.VendorClass, c.OptionList, label, weight)
		}
		return tw.Flush()
	}
}

type fingerprintSummary struct {
	Label     string `json:"label"`
	OSClass   string `json:"os_class,omitempty"`
	OSName    string `json:"os_name,omitempty"`
	Tests     int    `json:"tests"`
	MaxWeight int    `json:"max_weight"`
}

func summarize(db *fingerprint.Database) []fingerprintSummary {
	fps := db.Fingerprints()
	out := make([]fingerprintSummary, 0, len(fps))
	for _, f := range fps {
		s := fingerprintSummary{Label: f.Label(), OSClass: f.OSClass, OSName: f.OSName, Tests: len(f.Tests)}
		for _, t := range f.Tests {
			if t.Weight > s.MaxWeight {
				s.MaxWeight = t.Weight
			}
		}
		out = append(out, s)
	}
	return out
}

// formatFingerprints formats the fingerprints of a signature database for output
func formatFingerprints(w io.Writer, db *fingerprint.Database, format string) error {
	summaries := summarize(db)
	switch format {
	case "json":
		return encodeJSON(w, map[string]interface{}{
			"source":       db.Source(),
			"fingerprints": summaries,
		})
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Label", "OSClass", "OSName", "Tests", "MaxWeight"})
		for _, s := range summaries {
			_ = cw.Write([]string{s.Label, s.OSClass, s.OSName, strconv.Itoa(s.Tests), strconv.Itoa(s.MaxWeight)})
		}
		cw.Flush()
		return cw.Error()
	default: // table
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "#\tLABEL\tTESTS\tMAX WEIGHT\n")
		for i, s := range summaries {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", i, s.Label, s.Tests, s.MaxWeight)
		}
		fmt.Fprintf(tw, "\n%d fingerprints from %s\n", len(summaries), db.Source())
		return tw.Flush()
	}
}

// formatCheck reports the outcome of loading a signature file.
func formatCheck(w io.Writer, db *fingerprint.Database) error {
	tests := 0
	for _, f := range db.Fingerprints() {
		tests += len(f.Tests)
	}
	fmt.Fprintf(w, "%s: %d fingerprints, %d tests\n", db.Source(), db.Len(), tests)

	diagnostics := db.Diagnostics()
	if len(diagnostics) == 0 {
		return nil
	}
	fmt.Fprintf(w, "unrecognized attributes (ignored when matching): %s\n",
		strings.Join(db.UnrecognizedAttributes().List(), ", "))
	for _, d := range diagnostics {
		fmt.Fprintf(w, "  %s test %d: %s\n", d.Fingerprint, d.Test, d.Attribute)
	}
	return nil
}
