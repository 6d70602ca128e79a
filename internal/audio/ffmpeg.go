package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpeg probes and joins audio through the ffmpeg/ffprobe binaries.
type FFmpeg struct {
	codec   string
	bitrate string
}

var (
	_ Prober       = (*FFmpeg)(nil)
	_ Concatenator = (*FFmpeg)(nil)
)

// NewFFmpeg configures the output encoding; empty values default to mp3 at 128k.
func NewFFmpeg(codec, bitrate string) *FFmpeg {
	if codec == "" {
		codec = "libmp3lame"
	}
	if bitrate == "" {
		bitrate = "128k"
	}
	return &FFmpeg{codec: codec, bitrate: bitrate}
}

// Probe reads the container duration reported by ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var info struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(info.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("ffprobe reported no duration for %s", path)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Concat joins the audio streams of inputs in order with the concat filter.
func (f *FFmpeg) Concat(ctx context.Context, out string, inputs ...string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	streams := make([]*ffmpeg.Stream, 0, len(inputs))
	for _, in := range inputs {
		streams = append(streams, ffmpeg.Input(in))
	}

	joined := ffmpeg.Filter(streams, "concat", ffmpeg.Args{fmt.Sprintf("n=%d:v=0:a=1", len(inputs))})
	err := ffmpeg.Output([]*ffmpeg.Stream{joined}, out, ffmpeg.KwArgs{
		"c:a": f.codec,
		"b:a": f.bitrate,
	}).OverWriteOutput().Run()
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}
