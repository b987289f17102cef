package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hark-assistant/hark/pkg/engine"
)

// loadPlanFile reads a task plan from a JSON or YAML file. YAML documents are
// bridged through JSON so both formats share the plan's wire representation,
// including typed parameter values.
func loadPlanFile(path string) (*engine.TaskPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse plan file: %w", err)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert plan file: %w", err)
		}
	}

	plan := &engine.TaskPlan{}
	if err := json.Unmarshal(data, plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}
