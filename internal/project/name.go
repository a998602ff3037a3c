package project

import (
	"strings"
)

const defaultOrg = "leanprover-community"

// ParseProjectName interprets the argument of `leanproject get`: a bare
// project name (a leanprover-community repository), an org/name pair, or a
// git URL, each optionally followed by `:branch`. It returns the project
// name, the clone URL and the branch.
func ParseProjectName(arg string) (name, url, branch string) {
	url = arg
	if i := strings.LastIndex(arg, ":"); i >= 0 {
		rest := arg[i+1:]
		// the colon of an ssh or https URL is followed by a path
		isURLColon := strings.HasPrefix(rest, "//") ||
			(strings.HasPrefix(arg, "git@") && !strings.Contains(arg[:i], ":"))
		if !isURLColon {
			url, branch = arg[:i], rest
		}
	}

	if !strings.HasPrefix(url, "git@") && !strings.HasPrefix(url, "http") {
		if !strings.Contains(url, "/") {
			url = defaultOrg + "/" + url
		}
		url = "https://github.com/" + url + ".git"
	}
	return CloneTarget(url), url, branch
}
