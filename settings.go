package vidpipe

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/disk"
	"github.com/opd-ai/vidpipe/filter"
)

// SaveModeParams persists every known per-resolution calibration record to
// the given file.
func (p *Pipeline) SaveModeParams(path string) error {
	if err := disk.WriteFile(path, disk.SaveModeParams(p.params.All())); err != nil {
		return fmt.Errorf("failed to save mode parameters: %w", err)
	}
	return nil
}

// LoadModeParams replaces the calibration store with the contents of the
// given file. Nothing is replaced if the file fails to validate.
func (p *Pipeline) LoadModeParams(path string) error {
	rows, err := disk.ReadFile(path)
	if err != nil {
		return err
	}
	params, err := disk.LoadModeParams(rows)
	if err != nil {
		return fmt.Errorf("failed to load mode parameters: %w", err)
	}
	p.params.Replace(params)

	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.LoadModeParams",
		"path":     path,
		"count":    len(params),
	}).Info("Mode parameters loaded")
	return nil
}

// SaveAliases persists the resolution alias table to the given file.
func (p *Pipeline) SaveAliases(path string) error {
	if err := disk.WriteFile(path, disk.SaveAliases(p.aliases.All())); err != nil {
		return fmt.Errorf("failed to save aliases: %w", err)
	}
	return nil
}

// LoadAliases replaces the alias table with the contents of the given file
// and re-resolves the current capture mode against it.
func (p *Pipeline) LoadAliases(path string) error {
	rows, err := disk.ReadFile(path)
	if err != nil {
		return err
	}
	aliases, err := disk.LoadAliases(rows)
	if err != nil {
		return fmt.Errorf("failed to load aliases: %w", err)
	}
	p.SetAliases(aliases)

	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.LoadAliases",
		"path":     path,
		"count":    len(aliases),
	}).Info("Resolution aliases loaded")
	return nil
}

// SaveFilterSets persists the filter engine's sets to the given file.
func (p *Pipeline) SaveFilterSets(path string) error {
	if err := disk.WriteFile(path, disk.SaveFilterSets(p.filters.All())); err != nil {
		return fmt.Errorf("failed to save filter sets: %w", err)
	}
	return nil
}

// LoadFilterSets replaces the filter engine's sets with the contents of the
// given file. Nothing is replaced if the file fails to validate.
func (p *Pipeline) LoadFilterSets(path string) error {
	rows, err := disk.ReadFile(path)
	if err != nil {
		return err
	}
	sets, err := disk.LoadFilterSets(rows)
	if err != nil {
		return fmt.Errorf("failed to load filter sets: %w", err)
	}
	p.filters.Replace(sets)

	logrus.WithFields(logrus.Fields{
		"function": "Pipeline.LoadFilterSets",
		"path":     path,
		"count":    len(sets),
	}).Info("Filter sets loaded")
	return nil
}

// SaveFilterGraph persists a filter graph to the given file.
func SaveFilterGraph(path string, g *filter.Graph) error {
	if err := disk.WriteFile(path, disk.SaveFilterGraph(g)); err != nil {
		return fmt.Errorf("failed to save the filter graph: %w", err)
	}
	return nil
}

// LoadFilterGraph reads a filter graph from the given file. Installing the
// compiled chains is a separate step, via Pipeline.ApplyFilterGraph.
func LoadFilterGraph(path string) (*filter.Graph, error) {
	rows, err := disk.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := disk.LoadFilterGraph(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load the filter graph: %w", err)
	}
	return g, nil
}
