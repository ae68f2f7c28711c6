package cluster

import (
	"fmt"
	"strconv"
	"strings"
)

// FileEntry is one visible file in a directory listing.
type FileEntry struct {
	Name  string
	Size  int64
	Owner string
}

// ArrayListing is one array's section of an ls reply: its descriptor line
// plus every visible file.
type ArrayListing struct {
	Array        string
	N            int
	StripingUnit int
	Disks        []string // Disk names in array disk-order
	Files        []FileEntry
}

// FormatListing renders listings in the wire layout:
//
//	A: Disk array with n=4 (d1, d2, d3, d4) with striping-unit 256 B.
//	  report.txt 1000 B alice
//
// One descriptor line per array, one indented line per visible file.
func FormatListing(listings []ArrayListing) string {
	var sb strings.Builder
	for i, l := range listings {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: Disk array with n=%d (%s) with striping-unit %d B.",
			l.Array, l.N, strings.Join(l.Disks, ", "), l.StripingUnit)
		for _, f := range l.Files {
			fmt.Fprintf(&sb, "\n  %s %d B %s", f.Name, f.Size, f.Owner)
		}
	}
	return sb.String()
}

// ParseListing parses the layout produced by FormatListing. The driver uses
// it to enumerate an array's visible files during disk recovery.
func ParseListing(s string) ([]ArrayListing, error) {
	var listings []ArrayListing
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "  ") {
			// File line: name size B owner.
			if len(listings) == 0 {
				return nil, fmt.Errorf("cluster: file line before any array: %q", line)
			}
			parts := strings.Fields(line)
			if len(parts) != 4 || parts[2] != "B" {
				return nil, fmt.Errorf("cluster: malformed file line: %q", line)
			}
			size, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cluster: malformed file size: %q", line)
			}
			cur := &listings[len(listings)-1]
			cur.Files = append(cur.Files, FileEntry{Name: parts[0], Size: size, Owner: parts[3]})
			continue
		}

		// Descriptor line.
		name, rest, ok := strings.Cut(line, ": Disk array with n=")
		if !ok {
			return nil, fmt.Errorf("cluster: malformed array line: %q", line)
		}
		nStr, rest, ok := strings.Cut(rest, " (")
		if !ok {
			return nil, fmt.Errorf("cluster: malformed array line: %q", line)
		}
		diskStr, rest, ok := strings.Cut(rest, ") with striping-unit ")
		if !ok {
			return nil, fmt.Errorf("cluster: malformed array line: %q", line)
		}
		unitStr, ok := strings.CutSuffix(rest, " B.")
		if !ok {
			return nil, fmt.Errorf("cluster: malformed array line: %q", line)
		}
		n, err := strconv.Atoi(nStr)
		if err != nil {
			return nil, fmt.Errorf("cluster: malformed array n: %q", line)
		}
		unit, err := strconv.Atoi(unitStr)
		if err != nil {
			return nil, fmt.Errorf("cluster: malformed striping unit: %q", line)
		}
		listings = append(listings, ArrayListing{
			Array:        name,
			N:            n,
			StripingUnit: unit,
			Disks:        strings.Split(diskStr, ", "),
		})
	}
	return listings, nil
}
