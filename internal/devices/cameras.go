package devices

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
)

// Camera is a video capture node found in sysfs.
type Camera struct {
	// Device is the /dev node, for example /dev/video0.
	Device string
	// Serial is the USB serial of the device the node belongs to.
	Serial string
	// Name is the V4L2 card name; user-defined names live here.
	Name    string
	SysPath string
}

// Identifiers returns every string the camera can be selected by.
func (c Camera) Identifiers() []string {
	ids := make([]string, 0, 2)
	for _, id := range []string{c.Serial, c.Name} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// CameraLister enumerates connected cameras.
type CameraLister interface {
	ListCameras(ctx context.Context) ([]Camera, error)
}

// SysfsCameras lists video4linux capture nodes by crawling sysfs.
type SysfsCameras struct{}

// ListCameras walks the existing uevent files under /sys/devices and keeps
// the primary node (index 0) of every video4linux device.
func (SysfsCameras) ListCameras(ctx context.Context) ([]Camera, error) {
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{"SUBSYSTEM": "video4linux"},
	})
	if err := rules.Compile(); err != nil {
		return nil, fmt.Errorf("compile video4linux matcher: %w", err)
	}

	queue := make(chan crawler.Device)
	errs := make(chan error, 1)
	quit := crawler.ExistingDevices(queue, errs, rules)
	return collectCameras(ctx, queue, errs, quit)
}

// collectCameras consumes a crawl until the queue closes. On cancellation
// or a crawl error it stops the crawler and returns the error.
func collectCameras(ctx context.Context, queue chan crawler.Device, errs <-chan error, quit chan struct{}) ([]Camera, error) {
	// The crawler blocks on its unbuffered queue, so stopping it early
	// means draining until it closes the queue.
	abort := func() {
		close(quit)
		for range queue {
		}
	}

	var cams []Camera
	for {
		select {
		case <-ctx.Done():
			abort()
			return nil, ctx.Err()
		case err := <-errs:
			abort()
			return nil, fmt.Errorf("crawl sysfs: %w", err)
		case dev, ok := <-queue:
			if !ok {
				select {
				case err := <-errs:
					return nil, fmt.Errorf("crawl sysfs: %w", err)
				default:
				}
				sort.Slice(cams, func(i, j int) bool { return cams[i].Device < cams[j].Device })
				return cams, nil
			}
			if cam, keep := cameraFromSysfs(dev.KObj, dev.Env); keep {
				cams = append(cams, cam)
			}
		}
	}
}

func cameraFromSysfs(kobj string, env map[string]string) (Camera, bool) {
	devName := strings.TrimSpace(env["DEVNAME"])
	if devName == "" {
		return Camera{}, false
	}
	sysPath := kobj
	if strings.HasPrefix(sysPath, "/devices/") {
		sysPath = filepath.Join("/sys", sysPath)
	}
	if index := readAttr(filepath.Join(sysPath, "index")); index != "" && index != "0" {
		return Camera{}, false
	}
	if !strings.HasPrefix(devName, "/dev/") {
		devName = "/dev/" + devName
	}
	return Camera{
		Device:  devName,
		Name:    readAttr(filepath.Join(sysPath, "name")),
		Serial:  findUpwards(sysPath, "serial"),
		SysPath: sysPath,
	}, true
}

// findUpwards reads the first attribute file named attr found in dir or one
// of its parents below /sys/devices.
func findUpwards(dir, attr string) string {
	for dir != "/" && dir != "." && strings.HasPrefix(dir, "/sys/devices") {
		if value := readAttr(filepath.Join(dir, attr)); value != "" {
			return value
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

func readAttr(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
