package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// A dissemination filename is a sequence of fixed-width fields:
//
//	BFS11120600111511001
//	^^                      product name
//	  ^                     stream use flag
//	   ^^^^^^^^             analysis start time, MMDDHHMM
//	           ^^^^^^^^     analysis end time, MMDDHHMM
//	                   ^    dataset version
//
// The HHMM part of either stamp may be "____" for an unknown time of day,
// and an entirely underscored stamp means the timestamp is absent.
const (
	filenameMinLength = 20

	productNameEnd = 2
	streamUseEnd   = 3
	startStampEnd  = 11
	endStampEnd    = 19
)

const absentStamp = "________"

// Components holds the parsed fields of a dataset filename. Absent
// timestamps are represented by the zero time.
type Components struct {
	ProductName   string
	StreamUse     string
	AnalysisStart time.Time
	AnalysisEnd   time.Time
	Version       int
}

// ParseFilename returns the parsed components of the dataset filename. The
// reference time now is required because the filename encodes month, day,
// hour, and minute but not the year. The result is cached after the first
// successful parse; a failed parse leaves no cached components behind.
func (d *Dataset) ParseFilename(now time.Time) (Components, error) {
	if d.components != nil {
		return *d.components, nil
	}

	filename := d.Filename()
	if len(filename) < filenameMinLength {
		return Components{}, fmt.Errorf("%w: %q does not match expected format", ErrInvalidFilename, filename)
	}

	start, err := ParseFilenameTimestamp(filename[streamUseEnd:startStampEnd], now)
	if err != nil {
		return Components{}, fmt.Errorf("%w: %q: %v", ErrInvalidFilename, filename, err)
	}
	end, err := ParseFilenameTimestamp(filename[startStampEnd:endStampEnd], now)
	if err != nil {
		return Components{}, fmt.Errorf("%w: %q: %v", ErrInvalidFilename, filename, err)
	}
	version, err := strconv.Atoi(filename[endStampEnd:])
	if err != nil {
		return Components{}, fmt.Errorf("%w: %q has a non-numeric version field", ErrInvalidFilename, filename)
	}

	d.components = &Components{
		ProductName:   filename[:productNameEnd],
		StreamUse:     filename[productNameEnd:streamUseEnd],
		AnalysisStart: start,
		AnalysisEnd:   end,
		Version:       version,
	}
	return *d.components, nil
}

// ParseFilenameTimestamp parses an 8-character MMDDHHMM stamp from a dataset
// filename. The year is not part of the stamp and is reconstructed by
// picking, among the previous, current, and next year relative to now, the
// candidate whose month matches the stamp and lies nearest to now. The HHMM
// part may be "____", which defaults the time of day to midnight. A stamp of
// only underscores yields the zero time. All results are in UTC.
func ParseFilenameTimestamp(stamp string, now time.Time) (time.Time, error) {
	if stamp == absentStamp {
		return time.Time{}, nil
	}
	if len(stamp) != len(absentStamp) {
		return time.Time{}, fmt.Errorf("timestamp %q is not %d characters", stamp, len(absentStamp))
	}

	month, err := stampField(stamp[0:2])
	if err != nil {
		return time.Time{}, err
	}
	day, err := stampField(stamp[2:4])
	if err != nil {
		return time.Time{}, err
	}

	hour, minute := 0, 0
	if stamp[4:] != "____" {
		if hour, err = stampField(stamp[4:6]); err != nil {
			return time.Time{}, err
		}
		if minute, err = stampField(stamp[6:8]); err != nil {
			return time.Time{}, err
		}
	}

	year := now.Year()
	// The stamp may belong to the adjacent year when processing lags around a
	// year boundary: a December dataset processed in January, or vice versa.
	for _, delta := range []int{-1, 1} {
		altMonth := int(now.Month()) + delta
		altYear := now.Year()
		if altMonth < 1 {
			altMonth += 12
			altYear--
		}
		if altMonth > 12 {
			altMonth -= 12
			altYear++
		}
		if altMonth == month {
			year = altYear
		}
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if int(ts.Month()) != month || ts.Day() != day || ts.Hour() != hour || ts.Minute() != minute {
		return time.Time{}, fmt.Errorf("timestamp %q is out of range", stamp)
	}
	return ts, nil
}

func stampField(field string) (int, error) {
	if strings.ContainsAny(field, "_") {
		return 0, fmt.Errorf("timestamp field %q mixes digits and placeholders", field)
	}
	value, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("timestamp field %q is not numeric", field)
	}
	return value, nil
}
