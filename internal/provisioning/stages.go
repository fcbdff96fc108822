package provisioning

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/imamik/fleetboot/internal/bundle"
	"github.com/imamik/fleetboot/internal/config"
	"github.com/imamik/fleetboot/internal/provisioning/activity"
)

// Stage is one configured setup step of a build, with its arguments
// resolved. The same arguments are sent to every instance.
type Stage struct {
	Name     string
	Activity activity.Activity
	Args     any
}

// PlanStages resolves the stages a build configures, in execution order.
// It reads scripts and public keys from disk and expands the package group,
// so every problem surfaces before anything is launched.
func PlanStages(ctx *Context, buildName string, b config.Build) ([]Stage, error) {
	var (
		stages []Stage
		all    []ValidationError
	)
	field := func(name string) string { return fmt.Sprintf("builds.%s.%s", buildName, name) }
	add := func(name string, args any) {
		stages = append(stages, Stage{Name: name, Activity: ctx.Activities.ForStage(name), Args: args})
	}

	if b.Upgrade != "" {
		if b.Upgrade != config.UpgradeModeUpgrade && b.Upgrade != config.UpgradeModeDistUpgrade {
			all = append(all, errorf(field("upgrade"), "unknown upgrade mode %q", b.Upgrade))
		} else {
			add(activity.StageUpgrade, activity.UpgradeArgs{Mode: b.Upgrade})
		}
	}

	if b.Group != "" {
		args, err := planGroup(ctx.Config, b.Group)
		if err != nil {
			all = append(all, ValidationError{Field: field("group"), Message: err.Error(), Severity: SeverityError, Err: err})
		} else {
			add(activity.StageGroup, args)
		}
	}

	if b.Pip != "" {
		pkgs, ok := ctx.Config.PythonBundles[b.Pip]
		switch {
		case !ok:
			all = append(all, ValidationError{
				Field: field("pip"), Message: fmt.Sprintf("unknown python bundle %q", b.Pip), Severity: SeverityError,
				Err: &bundle.ReferenceError{Kind: "python bundle", Name: b.Pip},
			})
		case len(pkgs) == 0:
			all = append(all, errorf(field("pip"), "python bundle %q is empty", b.Pip))
		default:
			add(activity.StagePip, activity.PipInstallArgs{Bundle: b.Pip, Packages: append([]string(nil), pkgs...)})
		}
	}

	if s := b.Script; s != nil {
		contents, err := os.ReadFile(ctx.Config.ScriptFile(s.Name))
		if err != nil {
			all = append(all, ValidationError{Field: field("script"), Message: fmt.Sprintf("cannot read script: %v", err), Severity: SeverityError, Err: err})
		} else {
			add(activity.StageScript, activity.ScriptArgs{
				Name:     s.Name,
				Contents: contents,
				User:     s.User,
				CopyOnly: s.CopyOnly,
				Template: s.Template,
			})
		}
	}

	if u := b.User; u != nil {
		keys, err := PublicKeys(ctx.Config.PubKeyPath)
		if err != nil {
			all = append(all, ValidationError{Field: "pub_key_path", Message: err.Error(), Severity: SeverityError, Err: err})
		} else {
			if len(keys) == 0 {
				all = append(all, ValidationError{
					Field: "pub_key_path", Severity: SeverityWarning,
					Message: fmt.Sprintf("no *.pub files in %s, user %s will have no authorized keys", ctx.Config.PubKeyPath, u.Name),
				})
			}
			add(activity.StageUser, activity.CreateUserArgs{
				Name:       u.Name,
				FullName:   u.FullName,
				PublicKeys: keys,
				Groups:     u.Groups,
				Sudo:       u.Sudo,
			})
		}
	}

	if err := report(ctx.Observer, all); err != nil {
		return nil, err
	}
	return stages, nil
}

func planGroup(cfg *config.Config, group string) (activity.GroupInstallArgs, error) {
	units, err := cfg.Catalog().Resolve(group)
	if err != nil {
		return activity.GroupInstallArgs{}, err
	}

	preseeds := make(map[string][]string)
	for _, p := range bundle.Packages(units) {
		if lines, ok := cfg.Preseeds[p]; ok {
			preseeds[p] = lines
		}
	}
	return activity.GroupInstallArgs{Group: group, Units: units, Preseeds: preseeds}, nil
}

// PublicKeys reads every *.pub file in dir, sorted by file name. A missing
// directory yields no keys.
func PublicKeys(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.pub"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var keys []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read public key %s: %w", p, err)
		}
		keys = append(keys, string(data))
	}
	return keys, nil
}
