package queue

import (
	"fmt"
	"time"
)

const (
	TaskReportExport = "reports.export"
	TaskTokensPrune  = "tokens.prune"
)

// Job is one stream entry. Values are flat strings as stored by Redis.
type Job struct {
	ID     string
	Type   string
	Values map[string]string
}

func (j Job) Value(key string) string {
	return j.Values[key]
}

func ReportExportJob(exportID string) Job {
	return Job{Type: TaskReportExport, Values: map[string]string{"export_id": exportID}}
}

func TokensPruneJob(at time.Time) Job {
	return Job{Type: TaskTokensPrune, Values: map[string]string{"at": at.UTC().Format(time.RFC3339)}}
}

func (j Job) fields() map[string]any {
	out := make(map[string]any, len(j.Values)+1)
	for k, v := range j.Values {
		out[k] = v
	}
	out["type"] = j.Type
	return out
}

func jobFromMessage(id string, values map[string]any) (Job, error) {
	job := Job{ID: id, Values: make(map[string]string, len(values))}
	for k, v := range values {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if k == "type" {
			job.Type = s
			continue
		}
		job.Values[k] = s
	}
	if job.Type == "" {
		return Job{}, fmt.Errorf("message %s has no type", id)
	}
	return job, nil
}
