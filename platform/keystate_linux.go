//go:build linux

package platform

import (
	"sync"

	"github.com/robotn/xgb"
	"github.com/robotn/xgb/xproto"
)

// X11 keysyms of the modifier keys
const (
	xkShiftL   = 0xffe1
	xkShiftR   = 0xffe2
	xkControlL = 0xffe3
	xkControlR = 0xffe4
	xkMetaL    = 0xffe7
	xkMetaR    = 0xffe8
	xkAltL     = 0xffe9
	xkAltR     = 0xffea
	xkSuperL   = 0xffeb
	xkSuperR   = 0xffec
)

// keyState queries the X server keymap. The connection is opened on first
// use and dropped after a failed request.
type keyState struct {
	mu    sync.Mutex
	conn  *xgb.Conn
	codes map[xproto.Keysym][]xproto.Keycode
}

// pressed reports false when the X server cannot be reached.
func (s *keyState) pressed(combo KeyCombo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if err := s.connectLocked(); err != nil {
			return false
		}
	}

	reply, err := xproto.QueryKeymap(s.conn).Reply()
	if err != nil {
		s.conn.Close()
		s.conn = nil
		return false
	}

	for _, sym := range comboKeysyms(combo) {
		if keysDown(reply.Keys, s.codes[sym]) {
			return true
		}
	}
	return false
}

func (s *keyState) connectLocked() error {
	conn, err := xgb.NewConn()
	if err != nil {
		return err
	}

	setup := xproto.Setup(conn)
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)
	mapping, err := xproto.GetKeyboardMapping(conn, setup.MinKeycode, count).Reply()
	if err != nil {
		conn.Close()
		return err
	}

	s.conn = conn
	s.codes = keycodesBySym(setup.MinKeycode, mapping.KeysymsPerKeycode, mapping.Keysyms)
	return nil
}

// comboKeysyms lists every keysym that counts as holding a key of combo
func comboKeysyms(combo KeyCombo) []xproto.Keysym {
	var syms []xproto.Keysym
	if combo.Ctrl {
		syms = append(syms, xkControlL, xkControlR)
	}
	if combo.Shift {
		syms = append(syms, xkShiftL, xkShiftR)
	}
	if combo.Alt {
		syms = append(syms, xkAltL, xkAltR, xkMetaL, xkMetaR)
	}
	if combo.Win {
		syms = append(syms, xkSuperL, xkSuperR)
	}
	if combo.Key != 0 {
		syms = append(syms, xproto.Keysym(combo.Key))
	}
	return syms
}

// keycodesBySym inverts a GetKeyboardMapping reply. syms holds perCode
// entries for each keycode starting at first.
func keycodesBySym(first xproto.Keycode, perCode byte, syms []xproto.Keysym) map[xproto.Keysym][]xproto.Keycode {
	codes := make(map[xproto.Keysym][]xproto.Keycode)
	if perCode == 0 {
		return codes
	}
	for i, sym := range syms {
		if sym == 0 {
			continue
		}
		code := first + xproto.Keycode(i/int(perCode))
		if n := len(codes[sym]); n > 0 && codes[sym][n-1] == code {
			continue
		}
		codes[sym] = append(codes[sym], code)
	}
	return codes
}

// keysDown reports whether any of codes is set in a QueryKeymap bit vector
func keysDown(keymap []byte, codes []xproto.Keycode) bool {
	for _, c := range codes {
		i := int(c) / 8
		if i < len(keymap) && keymap[i]&(1<<(c%8)) != 0 {
			return true
		}
	}
	return false
}
