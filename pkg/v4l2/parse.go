package v4l2

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zoobzio/shutter"
)

// node is one capture device from v4l2-ctl --list-devices.
type node struct {
	name string
	path string
}

// parseDeviceList parses v4l2-ctl --list-devices output. Only the first
// /dev/video node of each device is a capture node; the rest are metadata.
// Broadcom codec devices are skipped.
func parseDeviceList(out string) []node {
	var (
		nodes   []node
		current string
		taken   bool
	)
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, " ") {
			current = strings.TrimSuffix(strings.TrimSpace(line), ":")
			taken = false
			continue
		}
		if current == "" || taken || strings.HasPrefix(current, "bcm2835-") {
			continue
		}
		path := strings.TrimSpace(line)
		if !strings.HasPrefix(path, "/dev/video") {
			continue
		}
		nodes = append(nodes, node{name: current, path: path})
		taken = true
	}
	return nodes
}

var (
	formatLine = regexp.MustCompile(`^\s*\[\d+\]:\s*'([^']+)'`)
	sizeLine   = regexp.MustCompile(`^\s*Size:\s*Discrete\s+(\d+)x(\d+)`)
)

// parseFrameSizes parses v4l2-ctl --list-formats-ext output. Sizes of the
// MJPG format are returned when it is offered, otherwise the sizes of every
// format. Order is preserved and duplicates dropped.
func parseFrameSizes(out string) []shutter.Size {
	var (
		format string
		mjpeg  []shutter.Size
		all    []shutter.Size
	)
	for _, line := range strings.Split(out, "\n") {
		if m := formatLine.FindStringSubmatch(line); m != nil {
			format = m[1]
			continue
		}
		m := sizeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		size := shutter.Size{Width: w, Height: h}
		if format == "MJPG" {
			mjpeg = appendUnique(mjpeg, size)
		}
		all = appendUnique(all, size)
	}
	if len(mjpeg) > 0 {
		return mjpeg
	}
	return all
}

func appendUnique(sizes []shutter.Size, s shutter.Size) []shutter.Size {
	for _, have := range sizes {
		if have == s {
			return sizes
		}
	}
	return append(sizes, s)
}
