package pathutils_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/gitid/internal/utils/path"
)

const (
	testHomeDirectoryConstant = "/home/dev"
)

func fixedHome() (string, error) {
	return testHomeDirectoryConstant, nil
}

func TestHomeExpanderExpand(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(fixedHome)

	testCases := []struct {
		input    string
		expected string
	}{
		{input: "~", expected: testHomeDirectoryConstant},
		{input: "~/.ssh/config", expected: filepath.Join(testHomeDirectoryConstant, ".ssh", "config")},
		{input: "~other/projects", expected: "~other/projects"},
		{input: "/srv/work", expected: "/srv/work"},
		{input: "", expected: ""},
	}
	for _, testCase := range testCases {
		require.Equal(testInstance, testCase.expected, expander.Expand(testCase.input), testCase.input)
	}
}

func TestHomeExpanderLeavesPathWhenHomeUnknown(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		return "", errors.New("no home")
	})
	require.Equal(testInstance, "~/projects", expander.Expand("~/projects"))
}

func TestRootSanitizerSanitize(testInstance *testing.T) {
	sanitizer := pathutils.NewRootSanitizer(pathutils.NewHomeExpanderWithProvider(fixedHome))

	testCases := []struct {
		name     string
		inputs   []string
		expected []string
	}{
		{name: "empty", inputs: []string{" ", ""}, expected: nil},
		{name: "expands_home", inputs: []string{" ~/code\t"}, expected: []string{"/home/dev/code"}},
		{name: "prunes_nested", inputs: []string{"/srv/work/api", "/srv/work", "/srv/personal"}, expected: []string{"/srv/work", "/srv/personal"}},
		{name: "drops_duplicates", inputs: []string{"/srv/work", "/srv/work/", "/srv/work"}, expected: []string{"/srv/work"}},
		{name: "sibling_prefix_kept", inputs: []string{"/srv/work", "/srv/workshop"}, expected: []string{"/srv/work", "/srv/workshop"}},
	}
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, sanitizer.Sanitize(testCase.inputs))
		})
	}
}
