// Package stakecsv reads block producer stake exports.
package stakecsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/canopy-network/forkx/pkg/db/models/tracker"
)

var (
	ErrNoRows        = errors.New("CSV must have a header row and at least one data row")
	ErrMissingColumn = errors.New("missing required column")
)

const (
	colPublicKey     = "bp_public_key"
	colTotalStake    = "total_stake"
	colNumDelegators = "num_delegators"
	colIsActive      = "is_active"
	colPercentTotal  = "percent_total_stake"
	colPercentActive = "percent_total_active_stake"
)

// RequiredColumns lists the header names Parse needs. Order and extra columns do not matter.
var RequiredColumns = []string{
	colPublicKey,
	colTotalStake,
	colNumDelegators,
	colIsActive,
	colPercentTotal,
	colPercentActive,
}

// Parse reads a stake export. Rows without a public key are skipped, unparsable or
// non-finite numbers become 0 and an empty active-stake cell becomes nil.
func Parse(r io.Reader) ([]tracker.StakeRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	records := make([]tracker.StakeRecord, 0)
	dataRows := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		dataRows++

		cell := func(col string) string {
			i := idx[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		key := cell(colPublicKey)
		if key == "" {
			continue
		}

		rec := tracker.StakeRecord{
			PublicKey:         key,
			TotalStake:        parseFloat(cell(colTotalStake)),
			NumDelegators:     parseUint(cell(colNumDelegators)),
			IsActive:          strings.EqualFold(cell(colIsActive), "true"),
			PercentTotalStake: parseFloat(cell(colPercentTotal)),
		}
		if v := cell(colPercentActive); v != "" {
			f := parseFloat(v)
			rec.PercentTotalActiveStake = &f
		}
		records = append(records, rec)
	}

	if dataRows == 0 {
		return nil, ErrNoRows
	}
	return records, nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseUint(s string) uint64 {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n
	}
	// exports sometimes carry "12.0"
	if f := parseFloat(s); f > 0 && f < math.MaxUint64 {
		return uint64(f)
	}
	return 0
}
