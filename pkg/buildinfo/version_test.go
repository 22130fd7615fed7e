package buildinfo

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "v1.4.0"

	info := Get()
	if info.Version != "v1.4.0" || info.Commit != Commit || info.Date != Date {
		t.Errorf("Get() = %+v", info)
	}
	if got := info.String(); !strings.HasPrefix(got, "v1.4.0 (") {
		t.Errorf("String() = %q", got)
	}
	if !strings.Contains(Template(), "version v1.4.0") {
		t.Errorf("Template() = %q", Template())
	}
}
