package di

import (
	"testing"
	"time"

	"github.com/mikey/phish-scanner/internal/adapters/filter"
	"github.com/mikey/phish-scanner/internal/config"
	"github.com/mikey/phish-scanner/internal/core"
	"github.com/mikey/phish-scanner/internal/whitelist"
)

func TestParseArgs(t *testing.T) {
	flags, err := ParseArgs([]string{"-file", "msg.eml", "-json", "-no-dns", "-whitelist", " example.org, ,corp.example ", "-since", "1h"})
	if err != nil {
		t.Fatal(err)
	}
	if flags.InputFile != "msg.eml" || !flags.JSON || !flags.NoDNS || flags.Since != time.Hour {
		t.Errorf("flags = %+v", flags)
	}
	if flags.CoreMode != "naive" {
		t.Errorf("core mode = %q", flags.CoreMode)
	}

	if _, err := ParseArgs([]string{"-unknown"}); err == nil {
		t.Error("expected an error for an unknown flag")
	}
}

func TestCreateConfigFromFlags(t *testing.T) {
	flags := &CLIFlags{CoreMode: "publicsuffix", NoDNS: true, JSON: true, Whitelist: "example.org,corp.example"}
	cfg := createConfigFromFlags(flags)

	if cfg.GetString("server.filter_type") != "cli" || !cfg.GetBool("cli.json") {
		t.Error("cli settings not applied")
	}
	if cfg.GetBool("dns.enabled") {
		t.Error("dns should be disabled")
	}
	if got := cfg.GetEngine().CoreMode; got != "publicsuffix" {
		t.Errorf("core mode = %q", got)
	}
	if got := cfg.GetStringSlice("server.whitelisted_domains"); len(got) != 2 || got[1] != "corp.example" {
		t.Errorf("whitelist = %v", got)
	}
}

func TestBuildCLIContainer(t *testing.T) {
	flags, err := ParseArgs([]string{"-no-dns", "-whitelist", "example.org"})
	if err != nil {
		t.Fatal(err)
	}
	container, err := BuildCLIContainer(flags)
	if err != nil {
		t.Fatal(err)
	}

	err = container.Invoke(func(
		cfg *config.Config,
		cli *filter.CliFilter,
		service *core.ScanService,
		repo core.ScanRepository,
		checker *whitelist.Checker,
	) {
		if cli == nil || service == nil {
			t.Error("missing cli filter or scan service")
		}
		if repo == nil {
			t.Error("expected an in-memory store")
		}
		if !checker.IsWhitelisted("someone@mail.example.org") {
			t.Error("whitelist flag not applied")
		}
		if cfg.GetBool("dns.enabled") {
			t.Error("dns should be disabled")
		}
	})
	if err != nil {
		t.Fatal(err)
	}
}
