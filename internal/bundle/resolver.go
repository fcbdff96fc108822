package bundle

import "slices"

// Catalog holds every definition a group may reference. It is read-only
// during resolution and safe to share between goroutines.
type Catalog struct {
	Groups   map[string][]Item
	Bundles  map[string][]string
	AptRepos map[string]AptRepo
	PPAs     map[string]string
}

// Resolve expands group using only groups and bundles.
func Resolve(group string, groups map[string][]Item, bundles map[string][]string) ([]Unit, error) {
	return Catalog{Groups: groups, Bundles: bundles}.Resolve(group)
}

// frame is one group being expanded on the current path.
type frame struct {
	name  string
	items []Item
	next  int
}

// Resolve expands group depth-first in item order.
//
// Output order is install order. A group may appear on several branches;
// only a group that is already on the current path is a cycle.
func (c Catalog) Resolve(group string) ([]Unit, error) {
	root, ok := c.Groups[group]
	if !ok {
		return nil, &ReferenceError{Kind: KindGroup, Name: group}
	}

	var units []Unit
	expanding := map[string]bool{group: true}
	stack := []*frame{{name: group, items: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.items) {
			delete(expanding, top.name)
			stack = stack[:len(stack)-1]
			continue
		}

		idx := top.next
		item := top.items[idx]
		top.next++

		kind, err := item.Kind()
		if err != nil {
			return nil, &ItemError{Group: top.name, Index: idx, Err: err}
		}

		switch kind {
		case KindGroup:
			if expanding[item.Group] {
				return nil, &CycleError{Path: append(path(stack), item.Group)}
			}
			items, ok := c.Groups[item.Group]
			if !ok {
				return nil, &ReferenceError{Kind: KindGroup, Name: item.Group, Group: top.name}
			}
			expanding[item.Group] = true
			stack = append(stack, &frame{name: item.Group, items: items})

		case KindBundle:
			pkgs, ok := c.Bundles[item.Bundle]
			if !ok {
				return nil, &ReferenceError{Kind: KindBundle, Name: item.Bundle, Group: top.name}
			}
			units = append(units, Unit{Kind: KindBundle, Label: item.Bundle, Packages: slices.Clone(pkgs)})

		case KindPackages:
			units = append(units, Unit{Kind: KindPackages, Label: "packages", Packages: slices.Clone(item.Packages)})

		case KindApt:
			repo, ok := c.AptRepos[item.Apt]
			if !ok {
				return nil, &ReferenceError{Kind: KindApt, Name: item.Apt, Group: top.name}
			}
			units = append(units, Unit{Kind: KindApt, Label: item.Apt, Packages: []string{repo.Package}, Repo: &repo})

		case KindPPA:
			ppa, ok := c.PPAs[item.PPA]
			if !ok {
				return nil, &ReferenceError{Kind: KindPPA, Name: item.PPA, Group: top.name}
			}
			units = append(units, Unit{Kind: KindPPA, Label: item.PPA, PPA: ppa})
		}
	}

	return units, nil
}

func path(stack []*frame) []string {
	names := make([]string, len(stack))
	for i, f := range stack {
		names[i] = f.name
	}
	return names
}
