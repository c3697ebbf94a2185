package scheduler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
)

// Job creates a task on a cron schedule.
type Job struct {
	Name     string `yaml:"name"`
	Cron     string `yaml:"cron"`
	Type     string `yaml:"type"`
	Title    string `yaml:"title"`
	Body     string `yaml:"body"`
	Priority string `yaml:"priority"`

	// Attendance jobs ask for today's attendance to be marked instead of
	// creating a plain task.
	Attendance bool `yaml:"attendance"`

	schedule cron.Schedule
}

// Next returns the first run strictly after t.
func (j Job) Next(t time.Time) time.Time {
	return j.schedule.Next(t)
}

type jobsFile struct {
	Jobs []Job `yaml:"jobs"`
}

// ParseJobs decodes a jobs document. Unknown fields are errors.
func ParseJobs(data []byte) ([]Job, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f jobsFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	seen := make(map[string]bool, len(f.Jobs))
	out := make([]Job, 0, len(f.Jobs))
	for i, j := range f.Jobs {
		j, err := j.normalized()
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		if seen[j.Name] {
			return nil, fmt.Errorf("job %d: duplicate name %q", i+1, j.Name)
		}
		seen[j.Name] = true
		out = append(out, j)
	}
	return out, nil
}

// LoadJobs reads and parses the jobs file at path.
func LoadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs %s: %w", path, err)
	}
	jobs, err := ParseJobs(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return jobs, nil
}

func (j Job) normalized() (Job, error) {
	j.Name = strings.TrimSpace(j.Name)
	if j.Name == "" {
		return j, errors.New("name is required")
	}
	sched, err := cron.ParseStandard(strings.TrimSpace(j.Cron))
	if err != nil {
		return j, fmt.Errorf("%s: cron %q: %w", j.Name, j.Cron, err)
	}
	j.schedule = sched

	if j.Attendance {
		j.Type = string(domain.KindAttendanceMarking)
		return j, nil
	}
	if j.Type == string(domain.KindAttendanceMarking) {
		return j, fmt.Errorf("%s: attendance jobs set attendance: true", j.Name)
	}
	if strings.TrimSpace(j.Title) == "" {
		return j, fmt.Errorf("%s: title is required", j.Name)
	}
	if j.Type == "" {
		j.Type = string(domain.KindTask)
	}
	if j.Priority == "" {
		j.Priority = "normal"
	}
	return j, nil
}
