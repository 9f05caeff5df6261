package disk

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/opd-ai/vidpipe/mode"
	"github.com/opd-ai/vidpipe/video"
)

// The fixed save/load order of the per-mode parameter rows. Loads require
// exactly this order, matching the format the save side produces.
var modeParamKeys = []string{
	"vPos", "hPos", "hScale", "phase", "bLevel",
	"bright", "contr",
	"redBr", "redCn", "greenBr", "greenCn", "blueBr", "blueCn",
}

// SaveModeParams encodes calibration records as row blocks: a 3-field
// "resolution" row followed by one name/value row per parameter.
func SaveModeParams(params []mode.Params) [][]string {
	var rows [][]string

	for _, p := range params {
		rows = append(rows, []string{
			"resolution",
			strconv.FormatUint(uint64(p.Resolution.Width), 10),
			strconv.FormatUint(uint64(p.Resolution.Height), 10),
		})

		values := modeParamValues(p)
		for i, key := range modeParamKeys {
			rows = append(rows, []string{key, strconv.Itoa(values[i])})
		}
	}

	return rows
}

// LoadModeParams decodes row blocks produced by SaveModeParams. The whole
// input is validated before anything is returned; the result is sorted by
// ascending pixel area.
func LoadModeParams(rows [][]string) ([]mode.Params, error) {
	var params []mode.Params

	for i := 0; i < len(rows); {
		if err := wantField(rows, i, "resolution"); err != nil {
			return nil, fmt.Errorf("mode parameters: %w", err)
		}
		if len(rows[i]) != 3 {
			return nil, fmt.Errorf("mode parameters: row %d: expected a 3-field resolution row, got %d fields",
				i, len(rows[i]))
		}

		var p mode.Params
		w, err := uintField(rows[i], 1)
		if err != nil {
			return nil, fmt.Errorf("mode parameters: row %d: %w", i, err)
		}
		h, err := uintField(rows[i], 2)
		if err != nil {
			return nil, fmt.Errorf("mode parameters: row %d: %w", i, err)
		}
		p.Resolution = video.Resolution{Width: w, Height: h}
		i++

		values := make([]int, len(modeParamKeys))
		for k, key := range modeParamKeys {
			if err := wantField(rows, i, key); err != nil {
				return nil, fmt.Errorf("mode parameters: %w", err)
			}
			v, err := intField(rows[i], 1)
			if err != nil {
				return nil, fmt.Errorf("mode parameters: row %d (%s): %w", i, key, err)
			}
			values[k] = v
			i++
		}
		setModeParamValues(&p, values)

		params = append(params, p)
	}

	sort.SliceStable(params, func(i, j int) bool {
		return params[i].Resolution.Area() < params[j].Resolution.Area()
	})

	return params, nil
}

// modeParamValues flattens a record's parameters in persisted order.
func modeParamValues(p mode.Params) []int {
	return []int{
		p.Video.VerticalPosition,
		p.Video.HorizontalPosition,
		p.Video.HorizontalScale,
		p.Video.Phase,
		p.Video.BlackLevel,
		p.Color.OverallBrightness,
		p.Color.OverallContrast,
		p.Color.RedBrightness,
		p.Color.RedContrast,
		p.Color.GreenBrightness,
		p.Color.GreenContrast,
		p.Color.BlueBrightness,
		p.Color.BlueContrast,
	}
}

// setModeParamValues assigns flattened parameter values in persisted order.
func setModeParamValues(p *mode.Params, values []int) {
	p.Video.VerticalPosition = values[0]
	p.Video.HorizontalPosition = values[1]
	p.Video.HorizontalScale = values[2]
	p.Video.Phase = values[3]
	p.Video.BlackLevel = values[4]
	p.Color.OverallBrightness = values[5]
	p.Color.OverallContrast = values[6]
	p.Color.RedBrightness = values[7]
	p.Color.RedContrast = values[8]
	p.Color.GreenBrightness = values[9]
	p.Color.GreenContrast = values[10]
	p.Color.BlueBrightness = values[11]
	p.Color.BlueContrast = values[12]
}
