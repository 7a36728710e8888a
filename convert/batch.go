package convert

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/murkland/krec2mp4/capture"
	"golang.org/x/exp/slices"
)

const logExt = ".krec"

type Summary struct {
	Succeeded []string
	Failed    []string
	Cancelled bool
}

// FindLogs lists the input logs directly inside dir, sorted by name.
func FindLogs(dir string) ([]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, dirent := range dirents {
		if dirent.IsDir() || !strings.EqualFold(filepath.Ext(dirent.Name()), logExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, dirent.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// ConvertAll converts each input into outDir, one at a time. It stops early
// only when ctx is cancelled.
func (c *Converter) ConvertAll(ctx context.Context, inputs []string, outDir string) Summary {
	var s Summary
	for i, input := range inputs {
		if ctx.Err() != nil {
			s.Cancelled = true
			break
		}

		log.Printf("[%d/%d] %s", i+1, len(inputs), filepath.Base(input))
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		output := filepath.Join(outDir, stem+".mp4")

		if err := c.Convert(ctx, input, output); err != nil {
			if errors.Is(err, capture.ErrCancelled) {
				s.Cancelled = true
				break
			}
			log.Printf("failed to convert %s: %s", input, err)
			s.Failed = append(s.Failed, input)
			continue
		}
		s.Succeeded = append(s.Succeeded, input)
	}

	log.Printf("batch complete: %d succeeded, %d failed", len(s.Succeeded), len(s.Failed))
	return s
}
