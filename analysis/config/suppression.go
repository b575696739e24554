package config

import "regexp"

// A Suppression silences diagnostics by lint name, source file, or message
// content, or any combination of those. Each string specification is seen as
// a regex when it compiles to one, otherwise as a plain string.
type Suppression struct {
	Lint    string `yaml:"lint"`
	File    string `yaml:"file"`
	Message string `yaml:"message"`
	// This will not be part of the yaml config
	computedRegexs *suppressionRegex
}

type suppressionRegex struct {
	lintRegex    *regexp.Regexp
	fileRegex    *regexp.Regexp
	messageRegex *regexp.Regexp
}

// CompileRegexes compiles the strings in the suppression into regexes. It
// compiles all of them or none.
func CompileRegexes(s Suppression) Suppression {
	lintRegex, err := regexp.Compile(s.Lint)
	if err != nil {
		return s
	}
	fileRegex, err := regexp.Compile(s.File)
	if err != nil {
		return s
	}
	messageRegex, err := regexp.Compile(s.Message)
	if err != nil {
		return s
	}
	s.computedRegexs = &suppressionRegex{
		lintRegex,
		fileRegex,
		messageRegex,
	}
	return s
}

// matchesOnNonEmptyFields returns true if each non-empty field of the
// suppression matches the corresponding diagnostic attribute.
func (s *Suppression) matchesOnNonEmptyFields(lint, file, message string) bool {
	if s.computedRegexs != nil {
		return (s.Lint == "" || s.computedRegexs.lintRegex.MatchString(lint)) &&
			(s.File == "" || s.computedRegexs.fileRegex.MatchString(file)) &&
			(s.Message == "" || s.computedRegexs.messageRegex.MatchString(message))
	}
	return (s.Lint == "" || s.Lint == lint) &&
		(s.File == "" || s.File == file) &&
		(s.Message == "" || s.Message == message)
}

// ExistsSuppression is true if there is some x in a such that f(x) is true.
// O(len(a))
func ExistsSuppression(a []Suppression, f func(Suppression) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}
