package workspace

import "fmt"

// renderEntrypoint generates the posix wrapper script. The wrapper exists
// because the container runtime's native log channel is ephemeral and
// order-sensitive: the teed output/run.log is a durable artifact that can
// be read back even when attach-based streaming delivered nothing.
//
// The body pipes through tee, which runs the group in a subshell, so the
// script's exit code is smuggled out through a file rather than a shell
// variable.
func renderEntrypoint(t Target) string {
	return fmt.Sprintf(`#!/bin/sh
set -u

WORKDIR=%q
SCRIPT="$WORKDIR/%s"
OUTDIR="$WORKDIR/output"
LOG=%q
RCFILE="$OUTDIR/.exit_code"

mkdir -p "$OUTDIR"
chmod +x "$SCRIPT"

{
	echo "=== Start time: $(date -u '+%%Y-%%m-%%d %%H:%%M:%%S') ==="
	"$SCRIPT" 2>&1
	rc=$?
	echo "$rc" > "$RCFILE"
	echo "=== End time: $(date -u '+%%Y-%%m-%%d %%H:%%M:%%S') ==="
	echo "=== Exit code: $rc ==="
} | tee "$LOG"

rc=1
[ -f "$RCFILE" ] && rc=$(cat "$RCFILE")
exit "$rc"
`, t.MountPath, t.ScriptName, t.LogPath())
}
