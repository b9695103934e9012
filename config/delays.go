package config

import (
	"time"

	"github.com/jinzheng8115/smartanychat/clipio"
)

// DelaysConfig holds the clipboard protocol waits in milliseconds
type DelaysConfig struct {
	PreCopyMs       int `toml:"pre_copy_ms" json:"pre_copy_ms"`
	CopySettleMs    int `toml:"copy_settle_ms" json:"copy_settle_ms"`
	RetryIntervalMs int `toml:"retry_interval_ms" json:"retry_interval_ms"`
	ReadAttempts    int `toml:"read_attempts" json:"read_attempts"`
	PasteReadyMs    int `toml:"paste_ready_ms" json:"paste_ready_ms"`
	PasteSettleMs   int `toml:"paste_settle_ms" json:"paste_settle_ms"`
	ReleasePollMs   int `toml:"release_poll_ms" json:"release_poll_ms"`
}

// DefaultDelays mirrors clipio.DefaultDelays
func DefaultDelays() DelaysConfig {
	d := clipio.DefaultDelays()
	return DelaysConfig{
		PreCopyMs:       int(d.PreCopy / time.Millisecond),
		CopySettleMs:    int(d.CopySettle / time.Millisecond),
		RetryIntervalMs: int(d.RetryInterval / time.Millisecond),
		ReadAttempts:    d.ReadAttempts,
		PasteReadyMs:    int(d.PasteReady / time.Millisecond),
		PasteSettleMs:   int(d.PasteSettle / time.Millisecond),
		ReleasePollMs:   int(d.ReleasePoll / time.Millisecond),
	}
}

// fill replaces non-positive values with the defaults
func (d *DelaysConfig) fill() {
	def := DefaultDelays()
	for _, f := range []struct {
		v   *int
		def int
	}{
		{&d.PreCopyMs, def.PreCopyMs},
		{&d.CopySettleMs, def.CopySettleMs},
		{&d.RetryIntervalMs, def.RetryIntervalMs},
		{&d.ReadAttempts, def.ReadAttempts},
		{&d.PasteReadyMs, def.PasteReadyMs},
		{&d.PasteSettleMs, def.PasteSettleMs},
		{&d.ReleasePollMs, def.ReleasePollMs},
	} {
		if *f.v <= 0 {
			*f.v = f.def
		}
	}
}

// Protocol converts the configured delays for clipio
func (d DelaysConfig) Protocol() clipio.Delays {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return clipio.Delays{
		PreCopy:       ms(d.PreCopyMs),
		CopySettle:    ms(d.CopySettleMs),
		RetryInterval: ms(d.RetryIntervalMs),
		ReadAttempts:  d.ReadAttempts,
		PasteReady:    ms(d.PasteReadyMs),
		PasteSettle:   ms(d.PasteSettleMs),
		ReleasePoll:   ms(d.ReleasePollMs),
	}
}
