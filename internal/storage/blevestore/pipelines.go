package blevestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/dropsearch/internal/storage"
)

const pipelinesFile = "pipelines.json"

func loadPipelines(dir string) (map[string]*storage.Pipeline, error) {
	pipelines := map[string]*storage.Pipeline{}
	if dir == "" {
		return pipelines, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, pipelinesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return pipelines, nil
		}
		return nil, fmt.Errorf("read pipelines: %w", err)
	}
	if len(data) == 0 {
		return pipelines, nil
	}
	if err := json.Unmarshal(data, &pipelines); err != nil {
		return nil, fmt.Errorf("parse pipelines: %w", err)
	}
	return pipelines, nil
}

func savePipelines(dir string, pipelines map[string]*storage.Pipeline) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir pipelines dir: %w", err)
	}
	data, err := json.MarshalIndent(pipelines, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pipelines: %w", err)
	}
	path := filepath.Join(dir, pipelinesFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write pipelines tmp: %w", err)
	}
	return os.Rename(tmp, path)
}
