package models

import "fmt"

// Category identifies what kind of installable content a repository holds.
type Category string

const (
	CategoryIntegration  Category = "integration"
	CategoryPlugin       Category = "plugin"
	CategoryTheme        Category = "theme"
	CategoryPythonScript Category = "python_script"
	CategoryAppDaemon    Category = "appdaemon"
	CategoryNetDaemon    Category = "netdaemon"
)

// AllCategories lists every category the agent knows how to handle.
// AppDaemon and NetDaemon are opt-in through configuration.
var AllCategories = []Category{
	CategoryIntegration,
	CategoryPlugin,
	CategoryTheme,
	CategoryPythonScript,
	CategoryAppDaemon,
	CategoryNetDaemon,
}

// ParseCategory converts a string (e.g. from CLI or storage) to a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Title returns the category with the first letter upper-cased, used in log
// prefixes like "<Integration owner/repo>".
func (c Category) Title() string {
	s := string(c)
	if s == "" {
		return ""
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-32) + s[1:]
	}
	return s
}
