// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package controller

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkerSpecTemplate is an operator-supplied set of defaults for every
// worker container the scheduler spawns: resource limits, extra
// environment, and deadlines that a deployment wants baked in without
// recompiling the controller. Shaped with yaml tags the same way the
// teacher's internal/config.Config is, since this is the same kind of
// file-based deployment config, not per-request state that belongs in
// the environment-variable-driven ControllerConfig.
type WorkerSpecTemplate struct {
	Image           string            `yaml:"image"`
	Env             map[string]string `yaml:"env"`
	CPURequestMilli int64             `yaml:"cpu_request_milli"`
	CPULimitMilli   int64             `yaml:"cpu_limit_milli"`
	MemRequestBytes int64             `yaml:"mem_request_bytes"`
	MemLimitBytes   int64             `yaml:"mem_limit_bytes"`
	Deadline        time.Duration     `yaml:"deadline"`
	TTLAfterFinish  time.Duration     `yaml:"ttl_after_finish"`
}

// LoadWorkerSpecTemplate reads and parses a WorkerSpecTemplate from
// path, mirroring the teacher's internal/config.Load (os.ReadFile +
// yaml.Unmarshal, wrapped error per field).
func LoadWorkerSpecTemplate(path string) (*WorkerSpecTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("controller: read worker spec template %s: %w", path, err)
	}
	var tmpl WorkerSpecTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("controller: parse worker spec template %s: %w", path, err)
	}
	return &tmpl, nil
}

// Apply fills the zero-valued fields of spec from the template,
// letting a per-spawn caller (file id, team-scoped env) override
// anything the template also sets. Env is merged with spec's entries
// winning on key collision.
func (t *WorkerSpecTemplate) Apply(spec WorkerSpec) WorkerSpec {
	if t == nil {
		return spec
	}
	if spec.Image == "" {
		spec.Image = t.Image
	}
	if len(t.Env) > 0 {
		merged := make(map[string]string, len(t.Env)+len(spec.Env))
		for k, v := range t.Env {
			merged[k] = v
		}
		for k, v := range spec.Env {
			merged[k] = v
		}
		spec.Env = merged
	}
	if spec.CPURequestMilli == 0 {
		spec.CPURequestMilli = t.CPURequestMilli
	}
	if spec.CPULimitMilli == 0 {
		spec.CPULimitMilli = t.CPULimitMilli
	}
	if spec.MemRequestBytes == 0 {
		spec.MemRequestBytes = t.MemRequestBytes
	}
	if spec.MemLimitBytes == 0 {
		spec.MemLimitBytes = t.MemLimitBytes
	}
	if spec.Deadline == 0 {
		spec.Deadline = t.Deadline
	}
	if spec.TTLAfterFinish == 0 {
		spec.TTLAfterFinish = t.TTLAfterFinish
	}
	return spec
}
