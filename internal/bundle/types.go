package bundle

import (
	"fmt"
	"slices"
	"strings"
)

// ItemKind identifies which member of an Item is set.
type ItemKind string

// Item kinds.
const (
	KindBundle   ItemKind = "bundle"
	KindGroup    ItemKind = "group"
	KindPackages ItemKind = "packages"
	KindApt      ItemKind = "apt"
	KindPPA      ItemKind = "ppa"
)

// Item is one entry of a group. Exactly one field must be set.
type Item struct {
	Bundle   string   `yaml:"bundle,omitempty"`
	Group    string   `yaml:"group,omitempty"`
	Packages []string `yaml:"packages,omitempty"`
	Apt      string   `yaml:"apt,omitempty"`
	PPA      string   `yaml:"ppa,omitempty"`
}

// Kind returns the kind of the item, or an error unless exactly one member is set.
func (i Item) Kind() (ItemKind, error) {
	var kinds []ItemKind
	if i.Bundle != "" {
		kinds = append(kinds, KindBundle)
	}
	if i.Group != "" {
		kinds = append(kinds, KindGroup)
	}
	if len(i.Packages) > 0 {
		kinds = append(kinds, KindPackages)
	}
	if i.Apt != "" {
		kinds = append(kinds, KindApt)
	}
	if i.PPA != "" {
		kinds = append(kinds, KindPPA)
	}

	switch len(kinds) {
	case 1:
		return kinds[0], nil
	case 0:
		return "", fmt.Errorf("item sets none of bundle, group, packages, apt, ppa")
	default:
		return "", fmt.Errorf("item sets more than one of %v", kinds)
	}
}

// AptRepo describes a third-party apt repository and the package installed from it.
type AptRepo struct {
	// Keyserver is a key ID fetched from keyserver.ubuntu.com.
	Keyserver string `yaml:"keyserver,omitempty"`
	// PublicKey is a URL to an armored signing key.
	PublicKey string `yaml:"public_key,omitempty"`
	// Deb is the sources.list line without the leading "deb ".
	Deb     string `yaml:"deb"`
	Package string `yaml:"package"`
}

// Validate checks that the repository has a signing key source, a source line and a package.
func (r AptRepo) Validate() error {
	if r.Keyserver == "" && r.PublicKey == "" {
		return fmt.Errorf("one of keyserver or public_key is required")
	}
	if r.Keyserver != "" && r.PublicKey != "" {
		return fmt.Errorf("keyserver and public_key are mutually exclusive")
	}
	if r.Deb == "" {
		return fmt.Errorf("deb is required")
	}
	if r.Package == "" {
		return fmt.Errorf("package is required")
	}
	return nil
}

// Unit is one step of a resolved group, in install order.
type Unit struct {
	Kind ItemKind
	// Label is the bundle name, "packages" for inline lists, or the
	// repository or PPA name.
	Label    string
	Packages []string
	Repo     *AptRepo
	PPA      string
}

// String renders the unit for operator output.
func (u Unit) String() string {
	switch u.Kind {
	case KindApt:
		return fmt.Sprintf("apt repository %s (%s)", u.Label, u.Repo.Package)
	case KindPPA:
		return fmt.Sprintf("ppa %s", u.PPA)
	default:
		return fmt.Sprintf("%s [%s]", u.Label, strings.Join(u.Packages, " "))
	}
}

// Packages returns every package name of the units, in order, without duplicates.
func Packages(units []Unit) []string {
	var out []string
	for _, u := range units {
		for _, p := range u.Packages {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}
