// Package bootconfig parses the tiny configuration file orchestration
// reads off the FAT32 volume before opening an image: at most a primary
// path and a fallback path, one `key=value` pair per line. There is no
// third-party config library wired here; see the design notes for why.
package bootconfig

import (
	"bufio"
	"io"
	"strings"

	"github.com/mimiboot/mimiboot/fat32"
)

// Config names the image paths orchestration should try, in order.
type Config struct {
	Primary  string
	Fallback string
}

// Parse reads key=value lines from f, recognizing "primary" and
// "fallback"; any other key is ignored, and a missing fallback leaves
// Config.Fallback empty (orchestration then has nothing to retry with).
func Parse(f *fat32.File) (Config, error) {
	var cfg Config
	sc := bufio.NewScanner(&eofAdapter{f: f})
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "primary":
			cfg.Primary = value
		case "fallback":
			cfg.Fallback = value
		}
	}
	if err := sc.Err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// eofAdapter turns fat32's ErrEndOfFile terminal condition into the
// io.EOF bufio.Scanner expects, without fat32 itself needing to know
// about io.Reader conventions.
type eofAdapter struct{ f *fat32.File }

func (a *eofAdapter) Read(p []byte) (int, error) {
	n, err := a.f.Read(p)
	if err == fat32.ErrEndOfFile {
		err = io.EOF
	}
	return n, err
}
