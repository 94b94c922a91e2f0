package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"snapsheet/internal/config"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckGenerator verifies the generator interpreter is on PATH and,
// when a script is configured, that the script file is readable.
func CheckGenerator(cfg config.Generator) []Result {
	var results []Result

	command := strings.TrimSpace(cfg.Command)
	switch {
	case command == "":
		results = append(results, Result{Name: "Generator command", Detail: "command not configured"})
	case filepath.IsAbs(command) || strings.ContainsRune(command, os.PathSeparator):
		if info, err := os.Stat(command); err != nil {
			results = append(results, Result{Name: "Generator command", Detail: fmt.Sprintf("%s (error: %v)", command, err)})
		} else if info.IsDir() || info.Mode()&0o111 == 0 {
			results = append(results, Result{Name: "Generator command", Detail: fmt.Sprintf("%s (error: not executable)", command)})
		} else {
			results = append(results, Result{Name: "Generator command", Passed: true, Detail: command})
		}
	default:
		if resolved, err := exec.LookPath(command); err != nil {
			results = append(results, Result{Name: "Generator command", Detail: fmt.Sprintf("binary %q not found on PATH", command)})
		} else {
			results = append(results, Result{Name: "Generator command", Passed: true, Detail: resolved})
		}
	}

	script := strings.TrimSpace(cfg.Script)
	if script != "" {
		if err := unix.Access(script, unix.R_OK); err != nil {
			results = append(results, Result{Name: "Generator script", Detail: fmt.Sprintf("%s (error: %v)", script, err)})
		} else {
			results = append(results, Result{Name: "Generator script", Passed: true, Detail: script})
		}
	}

	return results
}
