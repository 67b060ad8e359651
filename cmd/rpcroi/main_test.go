package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFiles creates a config pointing at a fresh cache plus a polar camera
// whose coefficients are exact in binary
func writeFiles(t *testing.T) (configPath, cameraPath string) {
	t.Helper()
	dir := t.TempDir()

	configPath = filepath.Join(dir, "rpcroi.yaml")
	cfg := "srtm:\n  cacheDir: " + filepath.Join(dir, "srtm") + "\n  url: http://127.0.0.1:1\n"
	if err := os.WriteFile(configPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	cameraPath = filepath.Join(dir, "polar.yaml")
	cam := `lon: [10, 0.0009765625, 0, 0]
lat: [-70, 0, -0.0009765625, 0]
alt_offset: 500
alt_scale: 200
`
	if err := os.WriteFile(cameraPath, []byte(cam), 0644); err != nil {
		t.Fatal(err)
	}
	return configPath, cameraPath
}

func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestRunTiles(t *testing.T) {
	configPath, _ := writeFiles(t)

	out, err := runArgs(t, "-config", configPath, "tiles", "-bbox", "4.9,5.1,49.9,50.1")
	if err != nil {
		t.Fatalf("tiles: %v", err)
	}
	want := "srtm_37_02\tabsent\nsrtm_37_03\tabsent\nsrtm_38_02\tabsent\nsrtm_38_03\tabsent\n"
	if out != want {
		t.Errorf("tiles output:\n%s\nwant:\n%s", out, want)
	}
}

func TestRunAltrangeOutsideCoverage(t *testing.T) {
	configPath, cameraPath := writeFiles(t)

	out, err := runArgs(t, "-config", configPath, "altrange", "-camera", cameraPath, "-roi", "100,200,50,30")
	if err != nil {
		t.Fatalf("altrange: %v", err)
	}
	if strings.TrimSpace(out) != "300 700" {
		t.Errorf("altrange = %q, want 300 700", out)
	}
}

func TestRunROISameCamera(t *testing.T) {
	configPath, cameraPath := writeFiles(t)

	out, err := runArgs(t, "-config", configPath, "roi",
		"-camera-a", cameraPath, "-camera-b", cameraPath, "-roi", "100,200,50,30")
	if err != nil {
		t.Fatalf("roi: %v", err)
	}
	if strings.TrimSpace(out) != "100 200 50 30" {
		t.Errorf("roi = %q, want 100 200 50 30", out)
	}
}

func TestRunUsage(t *testing.T) {
	configPath, _ := writeFiles(t)

	for _, args := range [][]string{
		{},
		{"-config", configPath, "teleport"},
		{"-config", configPath, "tiles"},
		{"-config", configPath, "elevation", "2.35"},
		{"-config", configPath, "altrange", "-roi", "1,2,3,4"},
	} {
		if _, err := runArgs(t, args...); !errors.Is(err, errUsage) {
			t.Errorf("run(%q) = %v, want usage error", args, err)
		}
	}
}

func TestParseROI(t *testing.T) {
	roi, err := parseROI("100, 200,50,30")
	if err != nil {
		t.Fatalf("parseROI: %v", err)
	}
	if roi.X != 100 || roi.Y != 200 || roi.W != 50 || roi.H != 30 {
		t.Errorf("parseROI = %+v", roi)
	}

	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "1,2,3.5,4", "1,2,0,4"} {
		if _, err := parseROI(bad); err == nil {
			t.Errorf("parseROI(%q) should fail", bad)
		}
	}
}

func TestParseBounds(t *testing.T) {
	b, err := parseBounds("2.1,2.2,48.8,48.9")
	if err != nil {
		t.Fatalf("parseBounds: %v", err)
	}
	if b.MinLon != 2.1 || b.MaxLat != 48.9 {
		t.Errorf("parseBounds = %s", b)
	}
	if _, err := parseBounds("3,2,48,49"); err == nil {
		t.Error("parseBounds should reject an unordered box")
	}
}

func TestRunUsesCallerContext(t *testing.T) {
	configPath, _ := writeFiles(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{"-config", configPath, "fetch", "-tile", "srtm_37_03"}, &stdout, &stderr)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("fetch with cancelled context = %v, want context.Canceled", err)
	}
}
