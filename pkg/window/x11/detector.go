package x11

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/focuswatch/pkg/window"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
)

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// Detector implements window.Detector over a single X11 connection
type Detector struct {
	conn        *xgb.Conn
	root        xproto.Window
	atoms       map[string]xproto.Atom
	hasIdleInfo bool
}

// NewDetector connects to the display named by $DISPLAY
func NewDetector() (*Detector, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	d := &Detector{
		conn:  conn,
		root:  setup.DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom, len(atomNames)),
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("intern atom %s: %w", name, err)
		}
		d.atoms[name] = reply.Atom
	}

	// MIT-SCREEN-SAVER is optional; without it idle time reads as zero.
	d.hasIdleInfo = screensaver.Init(conn) == nil

	return d, nil
}

// ActiveWindow returns the focused top-level window
func (d *Detector) ActiveWindow(ctx context.Context) (*window.Info, error) {
	return withContext(ctx, func() (*window.Info, error) {
		id, err := d.activeWindow()
		if err != nil {
			return nil, err
		}

		info := &window.Info{
			Title: d.windowName(id),
			PID:   int(d.windowPID(id)),
		}
		instance, class := d.windowClass(id)
		info.Class = class

		if info.PID > 0 {
			info.ProcessName = processName(info.PID)
		}
		if info.ProcessName == "" {
			info.ProcessName = instance
		}
		if info.ProcessName == "" {
			info.ProcessName = class
		}
		return info, nil
	})
}

// IdleTime returns time since the last user input
func (d *Detector) IdleTime(ctx context.Context) (time.Duration, error) {
	if !d.hasIdleInfo {
		return 0, nil
	}
	return withContext(ctx, func() (time.Duration, error) {
		reply, err := screensaver.QueryInfo(d.conn, xproto.Drawable(d.root)).Reply()
		if err != nil {
			return 0, fmt.Errorf("query screensaver info: %w", err)
		}
		return time.Duration(reply.MsSinceUserInput) * time.Millisecond, nil
	})
}

// Close closes the X connection
func (d *Detector) Close() error {
	d.conn.Close()
	return nil
}

func (d *Detector) property(win xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(d.conn, false, win, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (d *Detector) activeWindow() (xproto.Window, error) {
	data, err := d.property(d.root, d.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err == nil && len(data) >= 4 {
		if id := xproto.Window(binary.LittleEndian.Uint32(data)); id != 0 {
			return id, nil
		}
	}

	// Window managers without EWMH support: fall back to input focus.
	focus, err := xproto.GetInputFocus(d.conn).Reply()
	if err != nil {
		return 0, fmt.Errorf("get input focus: %w", err)
	}
	if focus.Focus == 0 || focus.Focus == d.root {
		return 0, window.ErrNoActiveWindow
	}
	return d.topLevel(focus.Focus), nil
}

func (d *Detector) topLevel(win xproto.Window) xproto.Window {
	for {
		reply, err := xproto.QueryTree(d.conn, win).Reply()
		if err != nil || reply.Parent == d.root || reply.Parent == 0 {
			return win
		}
		win = reply.Parent
	}
}

func (d *Detector) windowName(win xproto.Window) string {
	data, err := d.property(win, d.atoms["_NET_WM_NAME"], d.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	data, err = d.property(win, d.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	return ""
}

func (d *Detector) windowClass(win xproto.Window) (instance, class string) {
	data, err := d.property(win, d.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil || len(data) == 0 {
		return "", ""
	}

	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}

func (d *Detector) windowPID(win xproto.Window) uint32 {
	data, err := d.property(win, d.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

// processName reads the executable name the kernel reports for pid.
func processName(pid int) string {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/comm")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// withContext runs fn on its own goroutine so a stalled X server cannot
// hold the caller past ctx's deadline.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
