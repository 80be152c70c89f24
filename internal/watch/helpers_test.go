package watch

import (
	"context"
	"sync"

	"github.com/aliskhannn/image-compressor/internal/model"
	"github.com/aliskhannn/image-compressor/internal/processor"
)

type fakeCompressor struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
	block chan struct{}
}

func (f *fakeCompressor) Compress(ctx context.Context, path string) (model.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	err := f.errs[path]
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return model.Result{Source: path, Attempts: 1}, ctx.Err()
		}
	}

	if err != nil {
		return model.Result{Source: path, Attempts: 3}, err
	}

	return model.Result{
		Source:   path,
		Output:   processor.ArtifactPath(path, processor.DefaultSuffix),
		Quality:  95,
		Attempts: 1,
	}, nil
}

func (f *fakeCompressor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}
