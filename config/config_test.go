package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.MapWidth != 64 || cfg.SpawnX != 32 || cfg.RoomID != "room-1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadServerFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	body := "addr: \":9000\"\nmap_width: 32\nmap_height: 24\nspawn_x: 10\nspawn_y: 10\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRIDSYNC_SERVER_NAME", "from-env")
	t.Setenv("GRIDSYNC_SIMULATE_DROP_PROB", "0.25")

	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.MapWidth != 32 || cfg.MapHeight != 24 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.ServerName != "from-env" || cfg.SimulateDropProb != 0.25 {
		t.Fatalf("env values not applied: %+v", cfg)
	}
}

func TestLoadServerRejectsBadValues(t *testing.T) {
	t.Setenv("GRIDSYNC_SPAWN_X", "0")
	if _, err := LoadServer(""); err == nil {
		t.Fatalf("spawn on the border wall should be rejected")
	}
}

func TestLoadClient(t *testing.T) {
	t.Setenv("GRIDSYNC_PLAYER_NAME", "alice")
	cfg, err := LoadClient("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PlayerName != "alice" || cfg.Bot != "square" {
		t.Fatalf("unexpected client config: %+v", cfg)
	}
	t.Setenv("GRIDSYNC_BOT", "dance")
	if _, err := LoadClient(""); err == nil {
		t.Fatalf("unknown bot should fail")
	}
}
