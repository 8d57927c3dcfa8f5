package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type fakeRunner struct {
	mu       sync.Mutex
	commands []Command
	handler  func(cmd Command) (int, error)
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) (int, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if f.handler == nil {
		return 0, nil
	}
	return f.handler(cmd)
}

func (f *fakeRunner) calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.commands...)
}

const notAVideo = "this is not a video"

// fakeCodec treats any file whose contents are notAVideo as unplayable and
// everything else as a valid video.
type fakeCodec struct {
	frames     int
	convertErr error
	extractErr error
	convertOut []byte

	probed    []string
	converted []string
	policies  []SamplingPolicy
}

func (f *fakeCodec) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	f.probed = append(f.probed, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if string(data) == notAVideo {
		return &ProbeResult{}, nil
	}
	return &ProbeResult{Streams: []ProbeStream{{CodecType: "video", CodecName: "h264"}}}, nil
}

func (f *fakeCodec) Convert(ctx context.Context, inPath, outPath string) error {
	f.converted = append(f.converted, inPath)
	if f.convertErr != nil {
		return f.convertErr
	}
	out := f.convertOut
	if out == nil {
		out = []byte("converted mp4")
	}
	return os.WriteFile(outPath, out, 0644)
}

func (f *fakeCodec) ExtractFrames(ctx context.Context, videoPath, outDir string, policy SamplingPolicy) error {
	f.policies = append(f.policies, policy)
	if f.extractErr != nil {
		return f.extractErr
	}
	for i := 0; i < f.frames; i++ {
		name := filepath.Join(outDir, fmt.Sprintf(framePattern, i))
		if err := os.WriteFile(name, []byte(fmt.Sprintf("frame %d", i)), 0644); err != nil {
			return err
		}
	}
	return nil
}
