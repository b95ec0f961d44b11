// Package plugins runs external juneau-<command> binaries for commands
// juneau does not build in, the way git and kubectl do.
package plugins

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Prefix is prepended to a command name to get its plugin binary name.
const Prefix = "juneau-"

// KnownPlugins lists plugin commands users commonly expect, with a short
// description shown when the binary is missing.
var KnownPlugins = map[string]string{
	"prophet": "Forecasting with an external Prophet model, reading the same data files.",
	"serve":   "HTTP service that accepts data files and returns forecasts.",
}

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// SearchDirs returns the directories searched before PATH: the directory
// holding the juneau binary, then ~/.juneau/plugins.
func SearchDirs() []string {
	var dirs []string
	if self, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(self))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".juneau", "plugins"))
	}
	return dirs
}

// FindPlugin returns the path of the juneau-<command> binary, looking in
// SearchDirs and then PATH.
func FindPlugin(command string) (string, error) {
	name := Prefix + command

	for _, dir := range SearchDirs() {
		if candidate := filepath.Join(dir, name); isExecutable(candidate) {
			return candidate, nil
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", ErrPluginNotFound
}

// List returns the sorted command names of every installed plugin.
func List() []string {
	seen := map[string]bool{}
	var names []string

	dirs := append(SearchDirs(), filepath.SplitList(os.Getenv("PATH"))...)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name, ok := strings.CutPrefix(e.Name(), Prefix)
			if !ok || name == "" || seen[name] {
				continue
			}
			if isExecutable(filepath.Join(dir, e.Name())) {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	sort.Strings(names)
	return names
}

// Execute runs a plugin with the process's stdio and returns its exit code.
// The plugin inherits the environment plus JUNEAU_BIN, the path of the
// running juneau binary.
func Execute(pluginPath string, args []string) int {
	cmd := exec.Command(pluginPath, args...)
	cmd.Env = os.Environ()
	if self, err := os.Executable(); err == nil {
		cmd.Env = append(cmd.Env, "JUNEAU_BIN="+self)
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing plugin: %v\n", err)
		return 1
	}
	return 0
}

// FormatNotFoundError explains where a missing plugin binary would be
// picked up from, with a description if the command is a known plugin.
func FormatNotFoundError(command string) string {
	var sb strings.Builder
	name := Prefix + command

	fmt.Fprintf(&sb, "unknown command %q for \"juneau\"\n\n", command)
	if info, ok := KnownPlugins[command]; ok {
		fmt.Fprintf(&sb, "%q is available as a plugin.\n%s\n\nInstall the plugin binary as one of:\n", command, info)
	} else {
		sb.WriteString("If this is a plugin, install the binary as one of:\n")
	}

	fmt.Fprintf(&sb, "  - %s in the same directory as juneau\n", name)
	fmt.Fprintf(&sb, "  - ~/.juneau/plugins/%s\n", name)
	fmt.Fprintf(&sb, "  - %s anywhere in your PATH\n", name)
	sb.WriteString("\nRun 'juneau --help' for usage.")

	return sb.String()
}

// isExecutable reports whether path is a regular file with any execute bit set.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode()&0111 != 0
}
