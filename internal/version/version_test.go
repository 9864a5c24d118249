package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Name != Name || info.Version == "" || info.GoVersion == "" {
		t.Errorf("unexpected info: %+v", info)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q", info.Platform)
	}
}

func TestString_Injected(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "1.2.0"
	if String() != "1.2.0" {
		t.Errorf("String() = %q", String())
	}
	if !strings.HasPrefix(UserAgent(), "leilao/1.2.0") {
		t.Errorf("UserAgent() = %q", UserAgent())
	}
	if !strings.HasPrefix(Full(), "leilao 1.2.0\n") {
		t.Errorf("Full() = %q", Full())
	}
}
