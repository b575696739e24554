package tools

import "regexp"

// Captures decode errors from feeding something other than an IR export
var regexBadJSON = regexp.MustCompile("invalid character|cannot unmarshal|unexpected end of JSON")

// Captures missing-file errors from a wrong export path
var regexNoSuchFile = regexp.MustCompile("no such file or directory")

// Captures config files rejected at load time
var regexBadConfig = regexp.MustCompile("failed to load config file")

// HintForErrorMessage looks for specific error message and returns some other message that might help the user
// resolve the problem.
func HintForErrorMessage(errMsg string) string {
	if regexBadJSON.MatchString(errMsg) {
		return "the input does not look like an IR export; pass the JSON file produced by the compiler driver"
	}
	if regexNoSuchFile.MatchString(errMsg) {
		return "check the path to the IR export file; all command line flags should come before it"
	}
	if regexBadConfig.MatchString(errMsg) {
		return "the config file must be a yaml file; see the config package documentation for the accepted keys"
	}
	return ""
}
