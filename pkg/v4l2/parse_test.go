package v4l2

import (
	"testing"

	"github.com/zoobzio/shutter"
)

const listDevicesOutput = `bcm2835-codec-decode (platform:bcm2835-codec):
	/dev/video10
	/dev/video11

HD Pro Webcam C920 (usb-0000:00:14.0-1):
	/dev/video0
	/dev/video1
	/dev/media0

Integrated Camera: Integrated C (usb-0000:00:14.0-8):
	/dev/media1
	/dev/video2
	/dev/video3
`

const formatsOutput = `ioctl: VIDIOC_ENUM_FMT
	Type: Video Capture

	[0]: 'YUYV' (YUYV 4:2:2)
		Size: Discrete 640x480
			Interval: Discrete 0.033s (30.000 fps)
		Size: Discrete 1920x1080
			Interval: Discrete 0.200s (5.000 fps)
	[1]: 'MJPG' (Motion-JPEG, compressed)
		Size: Discrete 1920x1080
			Interval: Discrete 0.033s (30.000 fps)
		Size: Discrete 1280x720
			Interval: Discrete 0.033s (30.000 fps)
		Size: Discrete 1280x720
			Interval: Discrete 0.067s (15.000 fps)
`

func TestParseDeviceList(t *testing.T) {
	nodes := parseDeviceList(listDevicesOutput)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d: %+v", len(nodes), nodes)
	}
	if nodes[0].path != "/dev/video0" || nodes[0].name != "HD Pro Webcam C920 (usb-0000:00:14.0-1)" {
		t.Errorf("unexpected first node %+v", nodes[0])
	}
	if nodes[1].path != "/dev/video2" {
		t.Errorf("expected /dev/video2 skipping the media node, got %s", nodes[1].path)
	}
}

func TestParseDeviceList_Empty(t *testing.T) {
	if nodes := parseDeviceList(""); len(nodes) != 0 {
		t.Errorf("expected no nodes, got %+v", nodes)
	}
}

func TestParseFrameSizes_PrefersMJPG(t *testing.T) {
	sizes := parseFrameSizes(formatsOutput)
	want := []shutter.Size{{Width: 1920, Height: 1080}, {Width: 1280, Height: 720}}
	if len(sizes) != len(want) {
		t.Fatalf("expected %v, got %v", want, sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("size %d: expected %v, got %v", i, want[i], sizes[i])
		}
	}
}

func TestParseFrameSizes_NoMJPG(t *testing.T) {
	out := "\t[0]: 'YUYV' (YUYV 4:2:2)\n\t\tSize: Discrete 640x480\n\t\tSize: Discrete 320x240\n"
	sizes := parseFrameSizes(out)
	if len(sizes) != 2 || sizes[0] != (shutter.Size{Width: 640, Height: 480}) {
		t.Errorf("unexpected sizes %v", sizes)
	}
}
