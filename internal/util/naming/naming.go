package naming

import "fmt"

// runPrefixLength is how much of the run identifier goes into creation names.
const runPrefixLength = 8

// Creation returns the temporary name a server is created with.
func Creation(tag, run string, index int) string {
	if len(run) > runPrefixLength {
		run = run[:runPrefixLength]
	}
	return fmt.Sprintf("%s-%s-%d", tag, run, index+1)
}

// Instance returns the final name of the server at position (0-based)
// within its launch or project. The suffix, when set, is joined to the tag
// first. Numbered names get the 1-based position appended; an unnumbered
// name is the tag as is.
func Instance(tag, suffix string, position int, numbered bool) string {
	name := tag
	if suffix != "" {
		name = name + "-" + suffix
	}
	if numbered {
		name = fmt.Sprintf("%s-%d", name, position+1)
	}
	return name
}
