package handlers

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/yaml.v3"

	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/platform/s3"
	"github.com/imamik/fleetboot/internal/provisioning"
)

// runReport is the archived record of one build run.
type runReport struct {
	Run       string           `yaml:"run"`
	Build     string           `yaml:"build"`
	Project   string           `yaml:"project,omitempty"`
	Tag       string           `yaml:"tag"`
	Instances []instanceReport `yaml:"instances,omitempty"`
	Stages    []stageReport    `yaml:"stages,omitempty"`
	Failures  int              `yaml:"failures"`
	Error     string           `yaml:"error,omitempty"`
}

type instanceReport struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type stageReport struct {
	Stage string       `yaml:"stage"`
	Tasks []taskReport `yaml:"tasks"`
}

type taskReport struct {
	Instance string   `yaml:"instance"`
	OK       bool     `yaml:"ok"`
	Error    string   `yaml:"error,omitempty"`
	Duration string   `yaml:"duration"`
	Output   []string `yaml:"output,omitempty"`
}

// summarize converts a build report into its archived form. rep may be nil
// when the build failed before launching.
func summarize(runID, build, project, tag string, rep *provisioning.BuildReport, runErr error) runReport {
	out := runReport{Run: runID, Build: build, Project: project, Tag: tag}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	if rep == nil {
		return out
	}

	if l := rep.Launch; l != nil {
		for i, id := range l.InstanceIDs {
			out.Instances = append(out.Instances, instanceReport{ID: id, Name: l.Names[i]})
		}
	}
	for _, st := range rep.Stages {
		sr := stageReport{Stage: st.Stage}
		for _, c := range st.Completions {
			tr := taskReport{
				Instance: c.Task.InstanceID,
				OK:       !c.Failed(),
				Duration: c.Duration.String(),
				Output:   c.Result.Lines,
			}
			if c.Result.Instance != "" {
				tr.Instance = c.Result.Instance
			}
			if c.Err != nil {
				tr.Error = c.Err.Error()
			}
			sr.Tasks = append(sr.Tasks, tr)
		}
		out.Stages = append(out.Stages, sr)
	}
	out.Failures = len(rep.Failures())
	return out
}

// archiveReports stores each report under runs/<run>/<build>.yaml in the
// configured report bucket. Archiving never fails the command.
func archiveReports(ctx context.Context, cfg *config.Config, reports []runReport) {
	bucket := cfg.Storage.ReportBucket
	if bucket == "" || len(reports) == 0 {
		return
	}
	store, err := newObjectStore(ctx, storageOptions(cfg))
	if err != nil {
		log.Printf("Warning: report not archived: %v", err)
		return
	}
	for _, r := range reports {
		data, err := yaml.Marshal(r)
		if err != nil {
			log.Printf("Warning: failed to encode report for %s: %v", r.Build, err)
			continue
		}
		key, err := store.PutReport(ctx, bucket, r.Run, r.Build, data)
		if err != nil {
			log.Printf("Warning: report not archived: %v", err)
			continue
		}
		log.Printf("Report archived to s3://%s/%s", bucket, key)
	}
}

func storageOptions(cfg *config.Config) s3.Options {
	return s3.Options{
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
	}
}

// printInstances writes one line per launched instance.
func printInstances(rep *provisioning.BuildReport) {
	if rep == nil || rep.Launch == nil {
		return
	}
	for i, id := range rep.Launch.InstanceIDs {
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", rep.Launch.BuildName, rep.Launch.Names[i], id)
	}
}
