package models

import "testing"

func TestFileStatus_Valid(t *testing.T) {
	for _, s := range []FileStatus{StatusUploading, StatusProcessing, StatusReady, StatusFailed} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range []FileStatus{"", "pending", "READY"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestFileStatus_Terminal(t *testing.T) {
	if StatusUploading.Terminal() || StatusProcessing.Terminal() {
		t.Error("live states must not be terminal")
	}
	if !StatusReady.Terminal() || !StatusFailed.Terminal() {
		t.Error("ready and failed must be terminal")
	}
}

func TestFileStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to FileStatus
		want     bool
	}{
		{StatusUploading, StatusProcessing, true},
		{StatusUploading, StatusReady, false},
		{StatusUploading, StatusFailed, false},
		{StatusProcessing, StatusProcessing, true},
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusFailed, true},
		{StatusReady, StatusProcessing, false},
		{StatusReady, StatusFailed, false},
		{StatusFailed, StatusProcessing, false},
		{StatusFailed, StatusReady, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestFile_CloneIsolatesContent(t *testing.T) {
	f := &File{ID: "a", Content: map[string]any{"rows": 2}}
	c := f.Clone()
	c.Content["rows"] = 99
	if f.Content["rows"] != 2 {
		t.Error("clone must not share the content map")
	}
}
