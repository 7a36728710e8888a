package m64p

import (
	"bufio"
	"bytes"
	"os"
	"strconv"
	"strings"
)

// VideoSettings are the GLideN64 options the converter controls.
type VideoSettings struct {
	Width  int
	Height int
	MSAA   int
	Aniso  int
}

const nativeWidth = 320

// GLideN64 keeps its own ini file and ignores the core's config system.
func (s VideoSettings) gliden64Values() map[string]string {
	factor := s.Width / nativeWidth
	if factor < 1 {
		factor = 1
	}
	return map[string]string{
		`frameBufferEmulation\nativeResFactor`: strconv.Itoa(factor),
		`video\windowedWidth`:                  strconv.Itoa(s.Width),
		`video\windowedHeight`:                 strconv.Itoa(s.Height),
		`video\multisampling`:                  strconv.Itoa(s.MSAA),
		`video\maxMultiSampling`:               strconv.Itoa(s.MSAA),
		`texture\anisotropy`:                   strconv.Itoa(s.Aniso),
		`texture\maxAnisotropy`:                strconv.Itoa(s.Aniso),
	}
}

// patchGLideN64 rewrites known keys in the [User] section and leaves every
// other line alone.
func patchGLideN64(lines []string, s VideoSettings) []string {
	values := s.gliden64Values()

	out := make([]string, 0, len(lines))
	inUser := false
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, "[") {
			inUser = line == "[User]"
			out = append(out, line)
			continue
		}
		if inUser {
			if key, _, ok := strings.Cut(line, "="); ok {
				if v, ok := values[key]; ok {
					line = key + "=" + v
				}
			}
		}
		out = append(out, line)
	}
	return out
}

// PatchGLideN64 applies s to the GLideN64.ini at path.
func PatchGLideN64(path string, s VideoSettings) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, line := range patchGLideN64(lines, s) {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
