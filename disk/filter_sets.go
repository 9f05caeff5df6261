package disk

import (
	"fmt"
	"strconv"

	"github.com/opd-ai/vidpipe/filter"
	"github.com/opd-ai/vidpipe/video"
)

// SaveFilterSets encodes filter sets as row blocks. The set's activation is
// encoded into the resolution values of the "inout" row: a resolution whose
// activation bit is not set is written as zero, and a set activating on all
// resolutions writes both as zero.
func SaveFilterSets(sets []*filter.Set) [][]string {
	var rows [][]string

	for _, s := range sets {
		inRes, outRes := s.InRes, s.OutRes
		if s.Activation&filter.ActivationAll != 0 {
			inRes = video.Resolution{}
			outRes = video.Resolution{}
		} else {
			if s.Activation&filter.ActivationIn == 0 {
				inRes = video.Resolution{}
			}
			if s.Activation&filter.ActivationOut == 0 {
				outRes = video.Resolution{}
			}
		}

		rows = append(rows, []string{
			"inout",
			strconv.FormatUint(uint64(inRes.Width), 10),
			strconv.FormatUint(uint64(inRes.Height), 10),
			strconv.FormatUint(uint64(outRes.Width), 10),
			strconv.FormatUint(uint64(outRes.Height), 10),
		})
		rows = append(rows, []string{"description", brace(s.Description)})
		rows = append(rows, []string{"enabled", boolField(s.Enabled)})
		rows = append(rows, []string{"scaler", brace(s.ScalerName)})

		rows = append(rows, []string{"preFilters", strconv.Itoa(len(s.PreFilters))})
		for _, f := range s.PreFilters {
			rows = append(rows, filterRow("pre", f))
		}
		rows = append(rows, []string{"postFilters", strconv.Itoa(len(s.PostFilters))})
		for _, f := range s.PostFilters {
			rows = append(rows, filterRow("post", f))
		}
	}

	return rows
}

// LoadFilterSets decodes row blocks produced by SaveFilterSets, plus two
// legacy variations: blocks without a "description" row, and filters
// identified by display name instead of uuid. The whole input is validated
// before anything is returned.
func LoadFilterSets(rows [][]string) ([]*filter.Set, error) {
	var sets []*filter.Set

	for i := 0; i < len(rows); {
		s := &filter.Set{}

		if err := wantField(rows, i, "inout"); err != nil {
			return nil, fmt.Errorf("filter sets: %w", err)
		}
		if len(rows[i]) != 5 {
			return nil, fmt.Errorf("filter sets: row %d: expected a 5-field inout row, got %d fields",
				i, len(rows[i]))
		}
		var v [4]uint32
		for f := 0; f < 4; f++ {
			var err error
			if v[f], err = uintField(rows[i], f+1); err != nil {
				return nil, fmt.Errorf("filter sets: row %d: %w", i, err)
			}
		}
		s.InRes = video.Resolution{Width: v[0], Height: v[1]}
		s.OutRes = video.Resolution{Width: v[2], Height: v[3]}

		// The activation rule is recovered from the zero-resolution
		// encoding of the inout row.
		if s.InRes.IsZero() && s.OutRes.IsZero() {
			s.Activation = filter.ActivationAll
		} else {
			if s.InRes.Width != 0 && s.InRes.Height != 0 {
				s.Activation |= filter.ActivationIn
			}
			if s.OutRes.Width != 0 && s.OutRes.Height != 0 {
				s.Activation |= filter.ActivationOut
			}
		}
		i++

		// Legacy blocks predate the description row.
		if wantField(rows, i, "enabled") != nil {
			if err := wantField(rows, i, "description"); err != nil {
				return nil, fmt.Errorf("filter sets: %w", err)
			}
			if len(rows[i]) > 1 {
				s.Description = unbrace(rows[i][1])
			}
			i++
		}

		if err := wantField(rows, i, "enabled"); err != nil {
			return nil, fmt.Errorf("filter sets: %w", err)
		}
		enabled, err := intField(rows[i], 1)
		if err != nil {
			return nil, fmt.Errorf("filter sets: row %d: %w", i, err)
		}
		s.Enabled = enabled != 0
		i++

		if err := wantField(rows, i, "scaler"); err != nil {
			return nil, fmt.Errorf("filter sets: %w", err)
		}
		if len(rows[i]) < 2 {
			return nil, fmt.Errorf("filter sets: row %d: scaler row is missing its name", i)
		}
		s.ScalerName = unbrace(rows[i][1])
		i++

		if s.PreFilters, i, err = loadFilterList(rows, i, "preFilters", "pre"); err != nil {
			return nil, err
		}
		if s.PostFilters, i, err = loadFilterList(rows, i, "postFilters", "post"); err != nil {
			return nil, err
		}

		sets = append(sets, s)
	}

	return sets, nil
}

// filterRow encodes one filter instance: kind,{uuid},count,b0,...,bN.
func filterRow(kind string, f filter.Instance) []string {
	row := make([]string, 0, 3+filter.DataLength)
	row = append(row, kind, brace(f.Type.String()), strconv.Itoa(filter.DataLength))
	for _, b := range f.Data {
		row = append(row, strconv.Itoa(int(b)))
	}
	return row
}

// loadFilterList decodes a counted list of filter rows.
func loadFilterList(rows [][]string, i int, countKey, rowKey string) ([]filter.Instance, int, error) {
	if err := wantField(rows, i, countKey); err != nil {
		return nil, i, fmt.Errorf("filter sets: %w", err)
	}
	count, err := intField(rows[i], 1)
	if err != nil || count < 0 {
		return nil, i, fmt.Errorf("filter sets: row %d: invalid %s count", i, countKey)
	}
	i++

	var filters []filter.Instance
	for n := 0; n < count; n++ {
		if err := wantField(rows, i, rowKey); err != nil {
			return nil, i, fmt.Errorf("filter sets: %w", err)
		}
		f, err := loadFilterRow(rows[i])
		if err != nil {
			return nil, i, fmt.Errorf("filter sets: row %d: %w", i, err)
		}
		filters = append(filters, f)
		i++
	}

	return filters, i, nil
}

// loadFilterRow decodes one filter instance row, translating legacy display
// names to type uuids and rejecting out-of-range parameter bytes.
func loadFilterRow(row []string) (filter.Instance, error) {
	if len(row) < 3 {
		return filter.Instance{}, fmt.Errorf("filter row has too few fields: %d", len(row))
	}

	typeID, err := filter.ResolveTypeString(unbrace(row[1]))
	if err != nil {
		return filter.Instance{}, err
	}

	count, err := intField(row, 2)
	if err != nil {
		return filter.Instance{}, err
	}
	if count < 0 || count > filter.DataLength {
		return filter.Instance{}, fmt.Errorf("filter has too many parameters: %d (max %d)",
			count, filter.DataLength)
	}
	if len(row) < 3+count {
		return filter.Instance{}, fmt.Errorf("filter row declares %d parameters but carries %d",
			count, len(row)-3)
	}

	data := make([]byte, count)
	for p := 0; p < count; p++ {
		datum, err := intField(row, 3+p)
		if err != nil {
			return filter.Instance{}, err
		}
		if datum < 0 || datum > 255 {
			return filter.Instance{}, fmt.Errorf("filter parameter %d has a value outside of the allowed range (0..255): %d",
				p, datum)
		}
		data[p] = byte(datum)
	}

	return filter.NewInstance(typeID, data)
}

// boolField encodes a bool as the 0/1 the format uses.
func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
