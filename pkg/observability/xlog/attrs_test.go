package xlog_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/omeyang/xtrap/pkg/observability/xlog"
)

func TestAttrs(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"Err", xlog.Err(errors.New("boom")), xlog.KeyError, "boom"},
		{"Duration", xlog.Duration(1500 * time.Millisecond), xlog.KeyDuration, "1.5s"},
		{"Count", xlog.Count(3), xlog.KeyCount, "3"},
		{"Component", xlog.Component("xsignal"), xlog.KeyComponent, "xsignal"},
		{"Operation", xlog.Operation("arm"), xlog.KeyOperation, "arm"},
		{"Trap", xlog.Trap("t1"), xlog.KeyTrap, "t1"},
		{"Context", xlog.Context(42), xlog.KeyContext, "42"},
		{"Handle", xlog.Handle(9), xlog.KeyHandle, "9"},
		{"Signals", xlog.Signals(0xff), xlog.KeySignals, "0xff"},
		{"Path", xlog.Path("/tmp/a"), xlog.KeyPath, "/tmp/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if got := tt.attr.Value.String(); got != tt.wantVal {
				t.Errorf("value = %q, want %q", got, tt.wantVal)
			}
		})
	}
}

func TestErr_Nil(t *testing.T) {
	if a := xlog.Err(nil); a.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty", a.Key)
	}
}
