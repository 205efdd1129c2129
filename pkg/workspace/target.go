package workspace

import "strings"

// TargetKind is the closed set of target platforms a run can execute on.
// All OS-conditional behavior downstream (command template, entrypoint
// presence, mount and log paths) hangs off the resolved Target, so the
// OS identifier is matched exactly once.
type TargetKind string

const (
	TargetPosix   TargetKind = "posix"
	TargetWindows TargetKind = "windows"
)

const (
	posixMountPath   = "/osbench"
	windowsMountPath = `C:\osbench`

	// ScriptBase is the fixed name the user script is materialized under
	// (plus the caller-supplied extension).
	ScriptBase = "script"

	// EntrypointName is the generated wrapper for posix targets.
	EntrypointName = "entrypoint.sh"

	// LogName is the durable log the entrypoint tees into output/.
	LogName = "run.log"
)

// Target carries everything the driver and orchestrator need to know
// about how a run executes on its platform.
type Target struct {
	Kind       TargetKind
	ScriptName string // script file name inside the workspace
	Entrypoint string // wrapper file name; empty for windows targets
	MountPath  string // workspace mount point inside the environment
}

// ResolveTarget builds the Target variant for a run. scriptExtension
// includes the leading dot (".sh", ".ps1", ".bat"); when empty a
// platform default is applied.
func ResolveTarget(windows bool, scriptExtension string) Target {
	ext := strings.TrimSpace(scriptExtension)
	if windows {
		if ext == "" {
			ext = ".ps1"
		}
		return Target{
			Kind:       TargetWindows,
			ScriptName: ScriptBase + ext,
			MountPath:  windowsMountPath,
		}
	}
	if ext == "" {
		ext = ".sh"
	}
	return Target{
		Kind:       TargetPosix,
		ScriptName: ScriptBase + ext,
		Entrypoint: EntrypointName,
		MountPath:  posixMountPath,
	}
}

// Command returns the process command line executed inside the
// environment. Posix targets run the generated entrypoint wrapper;
// windows targets run the script directly through the platform shell,
// propagating the script's own exit code as the process exit code.
func (t Target) Command() []string {
	if t.Kind == TargetWindows {
		script := t.MountPath + `\` + t.ScriptName
		if strings.HasSuffix(t.ScriptName, ".ps1") {
			return []string{
				"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass",
				"-Command", "& '" + script + "'; exit $LASTEXITCODE",
			}
		}
		return []string{"cmd", "/S", "/C", script + " & exit %errorlevel%"}
	}
	return []string{"/bin/sh", t.MountPath + "/" + t.Entrypoint}
}

// LogPath returns the path of the durable entrypoint log inside the
// environment, or "" when the target has no entrypoint wrapper.
func (t Target) LogPath() string {
	if t.Entrypoint == "" {
		return ""
	}
	return t.MountPath + "/output/" + LogName
}
