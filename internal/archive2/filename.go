package archive2

import (
	"fmt"
	"strings"
	"time"
)

const fileNameTimeLayout = "20060102_150405"

// FileName builds the conventional archive name SSSSYYYYMMDD_HHMMSS.
func FileName(site [4]byte, t time.Time) string {
	return string(site[:]) + t.UTC().Format(fileNameTimeLayout)
}

// ParseFileName extracts the site and volume time from a name that starts
// with SSSSYYYYMMDD_HHMMSS. Anything after the timestamp (such as "_V06" or
// ".gz") is ignored.
func ParseFileName(name string) (site string, t time.Time, err error) {
	if len(name) < 4+len(fileNameTimeLayout) {
		return "", time.Time{}, fmt.Errorf("archive name %q too short", name)
	}
	site = name[:4]
	if strings.ContainsAny(site, "/\\ ") {
		return "", time.Time{}, fmt.Errorf("archive name %q has no site prefix", name)
	}
	t, err = time.ParseInLocation(fileNameTimeLayout, name[4:4+len(fileNameTimeLayout)], time.UTC)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("archive name %q: %w", name, err)
	}
	return site, t, nil
}
