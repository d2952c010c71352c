package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{
		"input": "rtsp://camera.local/stream",
		"flip_image": true,
		"show_text": false,
		"ffmpeg": {"enabled": true, "width": 640, "height": 480, "max_restarts": 5}
	}`
	test.That(t, os.WriteFile(path, []byte(data), 0o644), test.ShouldBeNil)

	config, err := loadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, config.Input, test.ShouldEqual, "rtsp://camera.local/stream")
	test.That(t, config.FlipImage, test.ShouldBeTrue)
	test.That(t, config.ShowText, test.ShouldBeFalse)
	test.That(t, config.FFmpeg.Enabled, test.ShouldBeTrue)
	test.That(t, config.FFmpeg.Width, test.ShouldEqual, 640)
	test.That(t, config.FFmpeg.MaxRestarts, test.ShouldEqual, 5)
}

func TestLoadConfigKeepsDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, []byte(`{"input": "file.mp4"}`), 0o644), test.ShouldBeNil)

	config, err := loadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, config.Input, test.ShouldEqual, "file.mp4")
	test.That(t, config.ShowText, test.ShouldBeTrue)
	test.That(t, config.ShowFeature, test.ShouldBeTrue)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadConfigBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, []byte("{not json"), 0o644), test.ShouldBeNil)

	_, err := loadConfig(path)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMergeFlagsKeepsFileValues(t *testing.T) {
	// No flags are set in the test binary, so file values should survive the
	// merge except for the zero-value width/height fallbacks.
	config := Config{Input: "file.mp4", FlipImage: true}
	config.FFmpeg.Width = 320

	merged := mergeFlags(config)
	test.That(t, merged.Input, test.ShouldEqual, "file.mp4")
	test.That(t, merged.FlipImage, test.ShouldBeTrue)
	test.That(t, merged.FFmpeg.Width, test.ShouldEqual, 320)
	test.That(t, merged.FFmpeg.Height, test.ShouldEqual, 720)
}
