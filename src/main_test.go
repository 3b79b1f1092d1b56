package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"icoforge/src/common"
	"icoforge/src/config"
)

func writeRedPNG(t *testing.T, path string) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 512, 512))
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create PNG: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
}

func TestRunSuccess(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "ClipSpeakIcon.png")
	output := filepath.Join(tmpDir, "app.ico")
	writeRedPNG(t, input)

	var stdout, stderr bytes.Buffer
	code := run([]string{input, output}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d (stdout: %s)", code, stdout.String())
	}

	expected := "Successfully converted " + input + " to " + output + "\n"
	if stdout.String() != expected {
		t.Errorf("Expected %q, got %q", expected, stdout.String())
	}

	frames, err := common.ReadIcon(output)
	if err != nil {
		t.Fatalf("ReadIcon failed: %v", err)
	}
	if len(frames) != 6 {
		t.Errorf("Expected 6 frames, got %d", len(frames))
	}
}

func TestRunFlags(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "logo.png")
	output := filepath.Join(tmpDir, "logo.ico")
	writeRedPNG(t, input)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-in", input, "-out", output, "-filter", "lanczos3"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d (stdout: %s)", code, stdout.String())
	}

	if _, err := os.Stat(output); err != nil {
		t.Errorf("Output not written: %v", err)
	}
}

func TestRunMissingInput(t *testing.T) {
	tmpDir := t.TempDir()
	output := filepath.Join(tmpDir, "app.ico")

	var stdout, stderr bytes.Buffer
	code := run([]string{filepath.Join(tmpDir, "missing.png"), output}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "Error: ") {
		t.Errorf("Expected error line, got %q", stdout.String())
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("Output should not be created")
	}
}

func TestRunNonImageInput(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "readme.txt")
	if err := os.WriteFile(input, []byte("plain text"), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{input, filepath.Join(tmpDir, "app.ico")}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "Error: ") {
		t.Errorf("Expected error line, got %q", stdout.String())
	}
}

func TestRunDeploy(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "in.png")
	output := filepath.Join(tmpDir, "app.ico")
	target := filepath.Join(tmpDir, "bin")
	writeRedPNG(t, input)

	configFile := filepath.Join(tmpDir, "config.yaml")
	configContent := "deploy:\n  targets:\n    - " + target + "\n"
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", configFile, "-deploy", input, output}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d (stdout: %s)", code, stdout.String())
	}

	if _, err := os.Stat(filepath.Join(target, "app.ico")); err != nil {
		t.Errorf("Icon not deployed: %v", err)
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-bogus"}},
		{"one positional", []string{"only-input.png"}},
		{"three positionals", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != 2 {
				t.Errorf("Expected exit code 2, got %d", code)
			}
		})
	}
}

func TestRunInvalidFilter(t *testing.T) {
	tmpDir := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-filter", "bicubic", filepath.Join(tmpDir, "a.png"), filepath.Join(tmpDir, "a.ico")}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "Error: ") {
		t.Errorf("Expected error line, got %q", stdout.String())
	}
}

func TestRunFlagsOverrideEnv(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "in.png")
	output := filepath.Join(tmpDir, "out.ico")
	writeRedPNG(t, input)

	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{
			name: "filter flag replaces bad env filter",
			env:  map[string]string{config.EnvFilter: "bogus"},
			args: []string{"-env", "", "-filter", "nearest", input, output},
		},
		{
			name: "positional paths replace clashing env input",
			env:  map[string]string{config.EnvInput: "app.ico"},
			args: []string{"-env", "", input, output},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != 0 {
				t.Errorf("Expected exit code 0, got %d (stdout: %s)", code, stdout.String())
			}
		})
	}
}

func TestRunBadEnvWithoutOverrideFails(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "in.png")
	writeRedPNG(t, input)
	t.Setenv(config.EnvFilter, "bogus")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-env", "", input, filepath.Join(tmpDir, "out.ico")}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "Error: invalid config") {
		t.Errorf("Expected invalid config line, got %q", stdout.String())
	}
}
