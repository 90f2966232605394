//go:build windows

package proxy

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var netstatPIDRe = regexp.MustCompile(`\s(\d+)\s*$`)

// killProcessesOnPort finds and force-kills every process bound to port
// using netstat+taskkill, matching the windows half of §4.H's
// port-in-use retry.
func killProcessesOnPort(ctx context.Context, port int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "netstat", "-ano").Output()
	if err != nil {
		return nil
	}

	needle := ":" + strconv.Itoa(port)
	seen := map[string]bool{}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, needle) {
			continue
		}
		m := netstatPIDRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		_ = exec.CommandContext(ctx, "taskkill", "/F", "/PID", m[1]).Run()
	}
	return nil
}

// treeKillFallback is the last-resort escalation when a native
// force-kill fails on windows (§4.H shutdown): invoke taskkill's
// process-tree option.
func treeKillFallback(ctx context.Context, pid int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
