package config

import "testing"

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.ORCA.UpdateHz != 18 {
		t.Fatalf("expected orca.update_hz=18 from embedded defaults, got %v", cfg.ORCA.UpdateHz)
	}
	if cfg.TargetResolver.EnableOneVsOne != true {
		t.Fatal("expected target_resolver.enable_one_vs_one=true from embedded defaults")
	}
	if cfg.Derived.DT == 0 {
		t.Fatal("expected computeDerived to populate Derived.DT")
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	global = nil
	defer func() {
		if recover() == nil {
			t.Fatal("expected Cfg() to panic before Init")
		}
	}()
	Cfg()
}

func TestInitThenCfg(t *testing.T) {
	if err := Init(""); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if Cfg().ORCA.MaxIterations != 20 {
		t.Fatalf("expected orca.max_iterations=20, got %d", Cfg().ORCA.MaxIterations)
	}
}
