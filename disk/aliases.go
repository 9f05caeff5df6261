package disk

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/opd-ai/vidpipe/mode"
	"github.com/opd-ai/vidpipe/video"
)

// SaveAliases encodes alias rules, one 4-field row each:
// fromW,fromH,toW,toH.
func SaveAliases(aliases []mode.Alias) [][]string {
	rows := make([][]string, 0, len(aliases))
	for _, a := range aliases {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(a.From.Width), 10),
			strconv.FormatUint(uint64(a.From.Height), 10),
			strconv.FormatUint(uint64(a.To.Width), 10),
			strconv.FormatUint(uint64(a.To.Height), 10),
		})
	}
	return rows
}

// LoadAliases decodes alias rows. A trailing empty field (produced by some
// older writers) is tolerated. The whole input is validated before anything
// is returned; the result is sorted by ascending pixel area of the target
// resolution.
func LoadAliases(rows [][]string) ([]mode.Alias, error) {
	var aliases []mode.Alias

	for i, row := range rows {
		if len(row) == 5 && row[4] == "" {
			row = row[:4]
		}
		if len(row) != 4 {
			return nil, fmt.Errorf("aliases: row %d: expected a 4-field row, got %d fields", i, len(row))
		}

		var a mode.Alias
		var err error
		var v [4]uint32
		for f := 0; f < 4; f++ {
			if v[f], err = uintField(row, f); err != nil {
				return nil, fmt.Errorf("aliases: row %d: %w", i, err)
			}
		}
		a.From = video.Resolution{Width: v[0], Height: v[1]}
		a.To = video.Resolution{Width: v[2], Height: v[3]}

		aliases = append(aliases, a)
	}

	sort.SliceStable(aliases, func(i, j int) bool {
		return aliases[i].To.Area() < aliases[j].To.Area()
	})

	return aliases, nil
}
