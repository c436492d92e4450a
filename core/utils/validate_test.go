package utils

import "testing"

func TestIsAudioFile(t *testing.T) {
	valid := []string{"song.mp3", "SONG.MP3", "a.flac", "b.ogg", "c.wav", "d.aac", "e.m4a"}
	for _, name := range valid {
		if !IsAudioFile(name) {
			t.Errorf("IsAudioFile(%q) = false, want true", name)
		}
	}
	invalid := []string{"notes.txt", "clip.mp4", "archive.zip", "noext"}
	for _, name := range invalid {
		if IsAudioFile(name) {
			t.Errorf("IsAudioFile(%q) = true, want false", name)
		}
	}
}

func TestValidateFilename(t *testing.T) {
	good := []string{"song.mp3", "my song (live).flac", "01-intro.aac"}
	for _, name := range good {
		if !ValidateFilename(name) {
			t.Errorf("ValidateFilename(%q) = false, want true", name)
		}
	}
	bad := []string{"", "../song.mp3", "a/b.mp3", "a\\b.mp3", "nul\x00.mp3", ".."}
	for _, name := range bad {
		if ValidateFilename(name) {
			t.Errorf("ValidateFilename(%q) = true, want false", name)
		}
	}
}

func TestValidateRelPath(t *testing.T) {
	good := []string{"song.mp3", "albums/2024/song.mp3"}
	for _, p := range good {
		if !ValidateRelPath(p) {
			t.Errorf("ValidateRelPath(%q) = false, want true", p)
		}
	}
	bad := []string{"", "../song.mp3", "albums/../../etc/passwd", "/abs/song.mp3", "a\\b.mp3", "x\x00.mp3"}
	for _, p := range bad {
		if ValidateRelPath(p) {
			t.Errorf("ValidateRelPath(%q) = true, want false", p)
		}
	}
}
