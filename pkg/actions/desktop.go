package actions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/hark-assistant/hark/pkg/engine"
)

// openerTable launches a file, folder or URL with the platform opener.
var openerTable = commandTable{
	"linux":   {"xdg-open"},
	"darwin":  {"open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// LaunchAppHandler starts a desktop application by name.
type LaunchAppHandler struct{}

func (h *LaunchAppHandler) Kind() engine.ActionKind { return engine.ActionLaunchApp }

func (h *LaunchAppHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	app, err := requireString(step, "app")
	if err != nil {
		return "", err
	}

	var argv []string
	switch runtime.GOOS {
	case "darwin":
		argv = []string{"open", "-a", app}
	case "windows":
		argv = []string{"cmd", "/c", "start", "", app}
	default:
		argv = []string{app}
	}

	if err := startDetached(ctx, argv); err != nil {
		return "", err
	}
	return fmt.Sprintf("Launched %s", app), nil
}

// CloseAppHandler terminates an application by process name.
type CloseAppHandler struct{}

func (h *CloseAppHandler) Kind() engine.ActionKind { return engine.ActionCloseApp }

func (h *CloseAppHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	app, err := requireString(step, "app")
	if err != nil {
		return "", err
	}

	var argv []string
	switch runtime.GOOS {
	case "darwin":
		argv = []string{"osascript", "-e", fmt.Sprintf("quit app %q", app)}
	case "windows":
		argv = []string{"taskkill", "/IM", app + ".exe", "/F"}
	default:
		argv = []string{"pkill", "-x", app}
	}

	if _, err := runCommand(ctx, argv); err != nil {
		// pkill exits 1 when no process matched; the goal state holds.
		var exitErr *exec.ExitError
		if runtime.GOOS == "linux" && errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return fmt.Sprintf("%s was not running", app), nil
		}
		return "", err
	}
	return fmt.Sprintf("Closed %s", app), nil
}

// OpenFolderHandler opens a directory in the platform file manager.
type OpenFolderHandler struct{}

func (h *OpenFolderHandler) Kind() engine.ActionKind { return engine.ActionOpenFolder }

func (h *OpenFolderHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	path, err := requireString(step, "path")
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", engine.NewFatalError(fmt.Sprintf("folder %s does not exist", path), err)
	}
	if !info.IsDir() {
		return "", engine.NewFatalError(fmt.Sprintf("%s is not a folder", path), nil)
	}

	opener, err := openerTable.resolve("open folder")
	if err != nil {
		return "", err
	}
	if err := startDetached(ctx, append(opener, path)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Opened %s", path), nil
}

// SearchWebHandler opens a web search for the query in the default browser.
type SearchWebHandler struct{}

func (h *SearchWebHandler) Kind() engine.ActionKind { return engine.ActionSearchWeb }

func (h *SearchWebHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	query, err := requireString(step, "query")
	if err != nil {
		return "", err
	}

	opener, err := openerTable.resolve("web search")
	if err != nil {
		return "", err
	}
	target := "https://duckduckgo.com/?q=" + url.QueryEscape(query)
	if err := startDetached(ctx, append(opener, target)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Searching the web for %q", query), nil
}

// SystemControlHandler performs power and session operations. Every operation
// of this kind is confirmation-gated by default policy.
type SystemControlHandler struct{}

func (h *SystemControlHandler) Kind() engine.ActionKind { return engine.ActionSystemControl }

var systemControlCommands = map[string]commandTable{
	"shutdown": {
		"linux":   {"systemctl", "poweroff"},
		"darwin":  {"osascript", "-e", `tell app "System Events" to shut down`},
		"windows": {"shutdown", "/s", "/t", "0"},
	},
	"restart": {
		"linux":   {"systemctl", "reboot"},
		"darwin":  {"osascript", "-e", `tell app "System Events" to restart`},
		"windows": {"shutdown", "/r", "/t", "0"},
	},
	"sleep": {
		"linux":   {"systemctl", "suspend"},
		"darwin":  {"pmset", "sleepnow"},
		"windows": {"rundll32", "powrprof.dll,SetSuspendState", "0,1,0"},
	},
	"lock": {
		"linux":   {"loginctl", "lock-session"},
		"darwin":  {"pmset", "displaysleepnow"},
		"windows": {"rundll32", "user32.dll,LockWorkStation"},
	},
}

func (h *SystemControlHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	op, err := requireString(step, "op")
	if err != nil {
		return "", err
	}

	table, ok := systemControlCommands[op]
	if !ok {
		return "", engine.NewFatalError(fmt.Sprintf("unknown system operation %q", op), nil)
	}
	argv, err := table.resolve("system " + op)
	if err != nil {
		return "", err
	}
	if _, err := runCommand(ctx, argv); err != nil {
		return "", err
	}
	return fmt.Sprintf("System %s initiated", op), nil
}

// VolumeControlHandler adjusts the output volume.
type VolumeControlHandler struct{}

func (h *VolumeControlHandler) Kind() engine.ActionKind { return engine.ActionVolumeControl }

func (h *VolumeControlHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	mode, err := requireString(step, "mode")
	if err != nil {
		return "", err
	}

	var argv []string
	var outcome string

	switch mode {
	case "set":
		level, ok := step.Param("level")
		if !ok || level.Kind != engine.ParamPercent {
			return "", engine.NewFatalError("volume set requires a level percent parameter", nil)
		}
		pct := int(level.Percent)
		if pct < 0 || pct > 100 {
			return "", engine.NewFatalError("volume level must be between 0 and 100", nil)
		}
		switch runtime.GOOS {
		case "darwin":
			argv = []string{"osascript", "-e", fmt.Sprintf("set volume output volume %d", pct)}
		case "linux":
			argv = []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", pct)}
		}
		outcome = fmt.Sprintf("Volume set to %d%%", pct)
	case "up":
		switch runtime.GOOS {
		case "darwin":
			argv = []string{"osascript", "-e", "set volume output volume ((output volume of (get volume settings)) + 10)"}
		case "linux":
			argv = []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", "+10%"}
		}
		outcome = "Volume raised"
	case "down":
		switch runtime.GOOS {
		case "darwin":
			argv = []string{"osascript", "-e", "set volume output volume ((output volume of (get volume settings)) - 10)"}
		case "linux":
			argv = []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", "-10%"}
		}
		outcome = "Volume lowered"
	case "mute":
		switch runtime.GOOS {
		case "darwin":
			argv = []string{"osascript", "-e", "set volume output muted true"}
		case "linux":
			argv = []string{"pactl", "set-sink-mute", "@DEFAULT_SINK@", "1"}
		}
		outcome = "Muted"
	case "unmute":
		switch runtime.GOOS {
		case "darwin":
			argv = []string{"osascript", "-e", "set volume output muted false"}
		case "linux":
			argv = []string{"pactl", "set-sink-mute", "@DEFAULT_SINK@", "0"}
		}
		outcome = "Unmuted"
	default:
		return "", engine.NewFatalError(fmt.Sprintf("unknown volume mode %q", mode), nil)
	}

	if argv == nil {
		return "", engine.NewFatalError(
			fmt.Sprintf("volume control is not supported on %s", runtime.GOOS), nil)
	}
	if _, err := runCommand(ctx, argv); err != nil {
		return "", err
	}
	return outcome, nil
}

// MediaControlHandler sends playback commands to the active media player.
type MediaControlHandler struct{}

func (h *MediaControlHandler) Kind() engine.ActionKind { return engine.ActionMediaControl }

var mediaCommands = map[string]commandTable{
	"play":     {"linux": {"playerctl", "play"}, "darwin": {"osascript", "-e", `tell app "Music" to play`}},
	"pause":    {"linux": {"playerctl", "pause"}, "darwin": {"osascript", "-e", `tell app "Music" to pause`}},
	"next":     {"linux": {"playerctl", "next"}, "darwin": {"osascript", "-e", `tell app "Music" to next track`}},
	"previous": {"linux": {"playerctl", "previous"}, "darwin": {"osascript", "-e", `tell app "Music" to previous track`}},
	"stop":     {"linux": {"playerctl", "stop"}, "darwin": {"osascript", "-e", `tell app "Music" to stop`}},
}

var mediaOutcomes = map[string]string{
	"play":     "Playback resumed",
	"pause":    "Playback paused",
	"next":     "Skipped to next track",
	"previous": "Went back a track",
	"stop":     "Playback stopped",
}

func (h *MediaControlHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	op, err := requireString(step, "op")
	if err != nil {
		return "", err
	}

	table, ok := mediaCommands[op]
	if !ok {
		return "", engine.NewFatalError(fmt.Sprintf("unknown media operation %q", op), nil)
	}
	argv, err := table.resolve("media " + op)
	if err != nil {
		return "", err
	}
	if _, err := runCommand(ctx, argv); err != nil {
		return "", err
	}
	return mediaOutcomes[op], nil
}

// WindowManagementHandler manipulates the focused window.
type WindowManagementHandler struct{}

func (h *WindowManagementHandler) Kind() engine.ActionKind { return engine.ActionWindowManagement }

var windowCommands = map[string]commandTable{
	"minimize":   {"linux": {"xdotool", "getactivewindow", "windowminimize"}},
	"maximize":   {"linux": {"wmctrl", "-r", ":ACTIVE:", "-b", "add,maximized_vert,maximized_horz"}},
	"fullscreen": {"linux": {"wmctrl", "-r", ":ACTIVE:", "-b", "toggle,fullscreen"}},
	"close":      {"linux": {"wmctrl", "-c", ":ACTIVE:"}},
}

func (h *WindowManagementHandler) Execute(ctx context.Context, step engine.ActionStep) (string, error) {
	op, err := requireString(step, "op")
	if err != nil {
		return "", err
	}

	table, ok := windowCommands[op]
	if !ok {
		return "", engine.NewFatalError(fmt.Sprintf("unknown window operation %q", op), nil)
	}
	argv, err := table.resolve("window " + op)
	if err != nil {
		return "", err
	}
	if _, err := runCommand(ctx, argv); err != nil {
		return "", err
	}
	return fmt.Sprintf("Window %s applied", strings.ReplaceAll(op, "_", " ")), nil
}
