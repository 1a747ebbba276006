package ffmpeg

import "strings"

// Preset pins the encoder arguments for one container and quality tier.
type Preset struct {
	Container  string
	VideoCodec string
	VideoArgs  []string
	AudioCodec string
}

type presetKey struct {
	format  string
	quality string
}

var presetTable = map[presetKey]Preset{
	{"mp4", "high"}: {Container: "mp4", VideoCodec: "libx264", VideoArgs: []string{"-preset", "slow", "-crf", "18"}, AudioCodec: "aac"},
	{"mp4", "medium"}: {Container: "mp4", VideoCodec: "libx264", VideoArgs: []string{"-preset", "medium", "-crf", "23"}, AudioCodec: "aac"},
	{"mp4", "low"}: {Container: "mp4", VideoCodec: "libx264", VideoArgs: []string{"-preset", "fast", "-crf", "28"}, AudioCodec: "aac"},
	{"webm", "high"}: {Container: "webm", VideoCodec: "libvpx-vp9", VideoArgs: []string{"-b:v", "0", "-crf", "24"}, AudioCodec: "libopus"},
	{"webm", "medium"}: {Container: "webm", VideoCodec: "libvpx-vp9", VideoArgs: []string{"-b:v", "0", "-crf", "33"}, AudioCodec: "libopus"},
	{"webm", "low"}: {Container: "webm", VideoCodec: "libvpx-vp9", VideoArgs: []string{"-b:v", "0", "-crf", "40"}, AudioCodec: "libopus"},
}

// PresetFor resolves the encode preset for a format and quality pair. Unknown
// combinations fall back to mp4 at medium quality.
func PresetFor(format, quality string) Preset {
	key := presetKey{
		format:  strings.ToLower(strings.TrimSpace(format)),
		quality: strings.ToLower(strings.TrimSpace(quality)),
	}
	if preset, ok := presetTable[key]; ok {
		return preset
	}
	return presetTable[presetKey{"mp4", "medium"}]
}
