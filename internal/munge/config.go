package munge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/l2munger/internal/archive2"
)

var ErrConfiguration = errors.New("configuration error")

// Config describes one rewrite: the site identifier stamped into the volume
// header, the new volume start time and the playback speed factor.
type Config struct {
	Site   [4]byte
	Target time.Time
	Speed  int
}

// ParseSite accepts exactly four bytes. Case is preserved.
func ParseSite(s string) ([4]byte, error) {
	var site [4]byte
	if len(s) != 4 {
		return site, fmt.Errorf("%w: site id %q must be exactly 4 bytes", ErrConfiguration, s)
	}
	copy(site[:], s)
	return site, nil
}

// ParseTarget parses YYYY/MM/DD and HH:MM:SS in UTC. Single digit fields
// are accepted.
func ParseTarget(date, clock string) (time.Time, error) {
	value := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	t, err := time.ParseInLocation("2006/1/2 15:4:5", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: target time %q: %v", ErrConfiguration, value, err)
	}
	return t, nil
}

// ParseConfig builds a Config from the classic command line form
// "SSSS YYYY/MM/DD HH:MM:SS X".
func ParseConfig(site, date, clock string, speed int) (Config, error) {
	var cfg Config
	var err error
	if cfg.Site, err = ParseSite(site); err != nil {
		return cfg, err
	}
	if cfg.Target, err = ParseTarget(date, clock); err != nil {
		return cfg, err
	}
	cfg.Speed = speed
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Speed <= 0 {
		return fmt.Errorf("%w: %w (got %d)", ErrConfiguration, archive2.ErrInvalidSpeedFactor, c.Speed)
	}
	if c.Target.IsZero() {
		return fmt.Errorf("%w: target time not set", ErrConfiguration)
	}
	if _, err := archive2.EncodeArchiveTime(c.Target.Unix()); err != nil {
		return fmt.Errorf("%w: target time %s: %w", ErrConfiguration, c.Target.UTC().Format(time.RFC3339), err)
	}
	if c.Site == ([4]byte{}) {
		return fmt.Errorf("%w: site id not set", ErrConfiguration)
	}
	return nil
}

// OutputName is SSSSYYYYMMDD_HHMMSS: the target site followed by the target
// volume time.
func (c Config) OutputName() string {
	return archive2.FileName(c.Site, c.Target)
}
