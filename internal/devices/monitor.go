package devices

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"titaniatest/internal/logging"
)

// Event is one hotplug notification for a camera or serial device.
type Event struct {
	Time      time.Time
	Action    string
	Subsystem string
	Device    string
}

// Monitor listens for udev netlink add/remove events on the video4linux and
// tty subsystems and forwards them on a buffered channel. Events are dropped
// rather than blocking when the consumer falls behind.
type Monitor struct {
	logger *slog.Logger
	events chan Event

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

const monitorBuffer = 64

// NewMonitor returns an unstarted monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		logger: logging.NewComponentLogger(logger, "hotplug"),
		events: make(chan Event, monitorBuffer),
	}
}

// Events returns the receive side of the event channel.
func (m *Monitor) Events() <-chan Event {
	if m == nil {
		return nil
	}
	return m.events
}

// Start connects to the netlink socket. Failure is logged and not returned:
// the run continues without hotplug notifications.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; hotplug events will not be recorded",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the process may open NETLINK_KOBJECT_UEVENT sockets"),
			logging.String(logging.FieldImpact, "camera and serial hotplug events are not logged"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Debug("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			if event, ok := eventFromUEvent(uevent, time.Now()); ok {
				m.publish(event)
			}
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "hotplug events may be missed"),
			)
		}
	}
}

func (m *Monitor) publish(event Event) {
	select {
	case m.events <- event:
	default:
		m.logger.Debug("hotplug event dropped; consumer behind",
			logging.String("device", event.Device),
			logging.String("action", event.Action),
		)
	}
}

// buildMatcher matches add and remove events on video4linux and tty.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	for _, subsystem := range []string{"video4linux", "tty"} {
		rules.AddRule(netlink.RuleDefinition{
			Action: &action,
			Env:    map[string]string{"SUBSYSTEM": subsystem},
		})
	}
	return rules
}

func eventFromUEvent(uevent netlink.UEvent, now time.Time) (Event, bool) {
	device := extractDeviceName(uevent)
	if device == "" {
		return Event{}, false
	}
	return Event{
		Time:      now,
		Action:    string(uevent.Action),
		Subsystem: uevent.Env["SUBSYSTEM"],
		Device:    device,
	}, true
}

// extractDeviceName gets the device path from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/dev/") {
			return "/dev/" + devname
		}
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
